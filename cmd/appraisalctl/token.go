package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"appraisal/internal/domain/auth"
	"appraisal/internal/platform/config"
)

var (
	tokenEmployee string
	tokenRole     string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is required")
		}
		if cfg.Environment == "production" {
			return errors.New("refusing to mint tokens in production")
		}
		token, err := auth.GenerateToken(cfg.JWTSecret, auth.Claims{EmployeeID: tokenEmployee, Role: tokenRole}, tokenTTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmployee, "employee", "", "Employee id to embed")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "Role name to embed")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 8*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("employee")
	rootCmd.AddCommand(tokenCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"appraisal/internal/app/server"
	"appraisal/internal/domain/timer"
	"appraisal/internal/platform/config"
	"appraisal/internal/transport/http/shared"
)

var (
	timerStart  string
	timerEnd    string
	timerRemind string
)

var timersCmd = &cobra.Command{
	Use:   "timers",
	Short: "Inspect and edit submission windows",
}

var timersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(cfg config.Config, svc *server.Services) error {
			items, err := svc.Timers.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		})
	},
}

var timersSetCmd = &cobra.Command{
	Use:   "set <scope>",
	Short: "Set the window for one scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := timer.Scope(args[0])
		if !scope.Valid() {
			return fmt.Errorf("unknown scope %q", args[0])
		}
		return withServices(cmd.Context(), func(cfg config.Config, svc *server.Services) error {
			loc := cfg.Appraisal.Location
			start, err := shared.ParseDateIn(timerStart, loc)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			end, err := shared.ParseDateIn(timerEnd, loc)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			remind, err := shared.ParseDateIn(timerRemind, loc)
			if err != nil {
				return fmt.Errorf("invalid --remind: %w", err)
			}
			updated, err := svc.Timers.Update(cmd.Context(), scope, start, end, remind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		})
	},
}

func init() {
	timersSetCmd.Flags().StringVar(&timerStart, "start", "", "Window start date (YYYY-MM-DD)")
	timersSetCmd.Flags().StringVar(&timerEnd, "end", "", "Window end date, inclusive (YYYY-MM-DD)")
	timersSetCmd.Flags().StringVar(&timerRemind, "remind", "", "Reminder date (YYYY-MM-DD)")
	_ = timersSetCmd.MarkFlagRequired("start")
	_ = timersSetCmd.MarkFlagRequired("end")
	_ = timersSetCmd.MarkFlagRequired("remind")
	timersCmd.AddCommand(timersListCmd, timersSetCmd)
	rootCmd.AddCommand(timersCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"appraisal/internal/app/server"
	"appraisal/internal/platform/config"
	"appraisal/internal/platform/db"
	"appraisal/internal/transport/http/shared"
)

var rootCmd = &cobra.Command{
	Use:           "appraisalctl",
	Short:         "Operate the appraisal service: sweeps, timers and tokens",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply migrations and seed the permission matrix and timers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			return err
		}
		return db.Seed(ctx, pool, cfg)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withServices connects to the database and wires the services for one
// command invocation.
func withServices(ctx context.Context, fn func(cfg config.Config, svc *server.Services) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	svc, err := server.NewServices(pool, cfg)
	if err != nil {
		return err
	}
	defer svc.Close(ctx)
	return fn(cfg, svc)
}

// parseAt reads the --at flag. Empty means now.
func parseAt(value string, loc *time.Location, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	at, err := shared.ParseDateIn(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: use YYYY-MM-DD or RFC3339", value)
	}
	return at, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

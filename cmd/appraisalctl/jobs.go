package main

import (
	"time"

	"github.com/spf13/cobra"

	"appraisal/internal/app/server"
	"appraisal/internal/platform/config"
	"appraisal/internal/platform/jobs"
)

var jobAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run rollover, archive and reminders in order under the sweep lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(cfg config.Config, svc *server.Services) error {
			at, err := parseAt(jobAt, cfg.Appraisal.Location, time.Now())
			if err != nil {
				return err
			}
			results, err := svc.Jobs.Sweep(cmd.Context(), at)
			if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
				return perr
			}
			return err
		})
	},
}

func jobCommand(use, short, jobType string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(cfg config.Config, svc *server.Services) error {
				at, err := parseAt(jobAt, cfg.Appraisal.Location, time.Now())
				if err != nil {
					return err
				}
				result, err := svc.Jobs.RunNow(cmd.Context(), jobType, at)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func init() {
	commands := []*cobra.Command{
		sweepCmd,
		jobCommand("rollover", "Roll configured timers into the next cycle", jobs.JobRollover),
		jobCommand("archive", "Archive every appraisal track and provision the next cycle", jobs.JobArchive),
		jobCommand("reminders", "Send due reminders for open submission windows", jobs.JobReminders),
	}
	for _, c := range commands {
		c.Flags().StringVar(&jobAt, "at", "", "Evaluate as of this date (YYYY-MM-DD) or instant (RFC3339)")
		rootCmd.AddCommand(c)
	}
}

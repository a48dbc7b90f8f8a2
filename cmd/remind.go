package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubdesk/ticket-service/internal/application"
)

var remindTimeout time.Duration

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run one reminder sweep (same as GET /cron/remind) and print the report",
	RunE:  runRemind,
}

func init() {
	remindCmd.Flags().DurationVar(&remindTimeout, "timeout", 5*time.Minute, "sweep deadline")
}

func runRemind(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), remindTimeout)
	defer cancel()

	core, err := application.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer core.Close()

	report, err := core.Reminder.Sweep(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

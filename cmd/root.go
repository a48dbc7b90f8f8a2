package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clubdesk/ticket-service/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "ticket-service",
	Short:         "Club ticket API: tickets, Telegram notifications, reminders",
	RunE:          runAPI,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(remindCmd)
}

// loadConfig читает .env и окружение и создаёт логгер по LOG_LEVEL/APP_ENV.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log := config.NewLogger(cfg.LogLevel, cfg.AppEnv)
	slog.SetDefault(log)
	return cfg, log, nil
}

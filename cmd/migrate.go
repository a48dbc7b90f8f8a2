package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clubdesk/ticket-service/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations and add missing columns",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()
	dsn := cfg.DatabaseURL()
	if cfg.CreateDatabase {
		if err := database.EnsureDatabase(ctx, dsn, log); err != nil {
			return fmt.Errorf("ensure database: %w", err)
		}
	}
	db, err := database.Open(ctx, dsn, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()
	if err := database.Migrate(ctx, db, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrate up: ok")
	return nil
}

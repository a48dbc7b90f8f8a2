package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const ticketsTable = "tickets"

// columnSpec — колонка, которую старые версии таблицы могли не иметь.
type columnSpec struct {
	Name     string
	Postgres string
	SQLite   string
	// Backfill выполняется только сразу после добавления колонки.
	Backfill string
}

var ticketColumns = []columnSpec{
	{Name: "deadline", Postgres: "TIMESTAMPTZ NULL", SQLite: "DATETIME NULL"},
	{
		Name:     "updated_at",
		Postgres: "TIMESTAMPTZ NULL",
		SQLite:   "DATETIME NULL",
		Backfill: "UPDATE tickets SET updated_at = created_at WHERE updated_at IS NULL",
	},
	{Name: "tg_chat_id", Postgres: "TEXT NULL", SQLite: "TEXT NULL"},
	{Name: "tg_message_id", Postgres: "BIGINT NULL", SQLite: "BIGINT NULL"},
}

// ticketDataSteps приводят строки старых версий к текущим инвариантам; выполняются на каждом старте.
// Статусы вне new/in_progress/done (старый "cancelled") считаются закрытыми заявками.
var ticketDataSteps = []string{
	"UPDATE tickets SET status = 'done' WHERE status IS NULL OR status NOT IN ('new', 'in_progress', 'done')",
}

// Migrate applies the embedded goose migrations and then adds any ticket column
// an older deployment is missing. Safe to call on every boot.
func Migrate(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "migrate")

	dialect := db.Dialector.Name()
	var gooseDialect goose.Dialect
	switch dialect {
	case "postgres":
		gooseDialect = goose.DialectPostgres
	case "sqlite":
		gooseDialect = goose.DialectSQLite3
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", dialect)
	}
	fsys, err := fs.Sub(migrationsFS, "migrations/"+dialect)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("migrate: sql handle: %w", err)
	}
	provider, err := goose.NewProvider(gooseDialect, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("migrate: goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}
	if len(results) == 0 {
		log.Debug("no pending migrations")
	}
	for _, r := range results {
		log.Info("migration applied", "path", r.Source.Path, "duration", r.Duration)
	}
	if err := ensureColumns(ctx, db, log); err != nil {
		return err
	}
	return normalizeRows(ctx, db, log)
}

func normalizeRows(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	for _, step := range ticketDataSteps {
		res := db.WithContext(ctx).Exec(step)
		if res.Error != nil {
			return fmt.Errorf("migrate: data step: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			log.Info("legacy rows normalized", "table", ticketsTable, "rows", res.RowsAffected)
		}
	}
	return nil
}

func ensureColumns(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	conn := db.WithContext(ctx)
	migrator := conn.Migrator()
	dialect := db.Dialector.Name()
	for _, col := range ticketColumns {
		if migrator.HasColumn(ticketsTable, col.Name) {
			continue
		}
		log.Info("adding missing column", "table", ticketsTable, "column", col.Name)
		if err := conn.Exec(addColumnSQL(dialect, col)).Error; err != nil {
			return fmt.Errorf("migrate: add column %s: %w", col.Name, err)
		}
		if col.Backfill != "" {
			if err := conn.Exec(col.Backfill).Error; err != nil {
				return fmt.Errorf("migrate: backfill %s: %w", col.Name, err)
			}
		}
	}
	return nil
}

func addColumnSQL(dialect string, col columnSpec) string {
	if dialect == "postgres" {
		// IF NOT EXISTS covers two instances booting at the same time.
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", ticketsTable, col.Name, col.Postgres)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", ticketsTable, col.Name, col.SQLite)
}

// EnsureDatabase создаёт базу postgres из URL, если её ещё нет (через служебную БД postgres).
// Для не-postgres URL ничего не делает.
func EnsureDatabase(ctx context.Context, databaseURL string, log *slog.Logger) error {
	databaseURL = strings.TrimSpace(databaseURL)
	if rest, ok := strings.CutPrefix(databaseURL, "postgresql://"); ok {
		databaseURL = "postgres://" + rest
	}
	if !strings.HasPrefix(databaseURL, "postgres://") {
		return nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name is empty in url")
	}
	u.Path = "/postgres"
	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping admin connection: %w", err)
	}
	var exists bool
	err = db.QueryRowContext(ctx, "SELECT true FROM pg_database WHERE datname = $1", dbName).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check database existence: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	if log != nil {
		log.Info("database created", "component", "migrate", "database", dbName)
	}
	return nil
}

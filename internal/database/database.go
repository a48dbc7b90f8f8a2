package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open подключается к базе по URL: postgres://… или sqlite:/file:/*.db.
func Open(ctx context.Context, databaseURL string, log *slog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(slogWriter{log: log.With("component", "gorm")}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	if dialector.Name() == "postgres" {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", dialector.Name(), err)
	}
	return db, nil
}

// Ping checks the connection; used by /ready.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func dialectorFor(databaseURL string) (gorm.Dialector, error) {
	u := strings.TrimSpace(databaseURL)
	switch {
	case u == "":
		return nil, fmt.Errorf("database url is empty")
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return postgres.Open(u), nil
	case strings.HasPrefix(u, "sqlite://"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(u, "sqlite://"))), nil
	case strings.HasPrefix(u, "sqlite:"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(u, "sqlite:"))), nil
	case strings.HasPrefix(u, "file:"), strings.HasSuffix(u, ".db"):
		return sqlite.Open(sqliteDSN(u)), nil
	}
	return nil, fmt.Errorf("unsupported database url scheme in %q", redact(u))
}

// sqliteDSN adds a busy timeout so concurrent requests wait for the writer lock.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

func redact(u string) string {
	if i := strings.Index(u, "@"); i >= 0 {
		if j := strings.Index(u, "://"); j >= 0 && j < i {
			return u[:j+3] + "***" + u[i:]
		}
	}
	return u
}

type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

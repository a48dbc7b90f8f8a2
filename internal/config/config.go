package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	// RawDatabaseURL — DATABASE_URL как есть; если пусто, URL собирается из DB_*.
	RawDatabaseURL string
	// CreateDatabase — создать базу postgres перед миграцией (DB_CREATE_IF_MISSING).
	CreateDatabase bool

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}

	FrontendOrigin string
	CronSecret     string
	// Location — часовой пояс клуба для дат в сообщениях (CLUB_TZ, по умолчанию UTC).
	Location *time.Location

	Telegram struct {
		BotToken      string
		ChatID        string
		WebhookSecret string
		APIEndpoint   string
		Disabled      bool
	}

	Reminder struct {
		// Interval только попадает в стартовый лог: расписание задаёт внешний cron.
		Interval   time.Duration
		StaleAfter time.Duration
		Cooldown   time.Duration
		BatchSize  int
	}

	KafkaBrokers     []string
	KafkaTopicTicket string
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("PORT", "APP_PORT", "HTTP_PORT", "10000"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RawDatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CreateDatabase:   getBool("DB_CREATE_IF_MISSING"),
		FrontendOrigin:   getEnv("FRONTEND_ORIGIN", "*"),
		CronSecret:       strings.TrimSpace(os.Getenv("CRON_SECRET")),
		KafkaBrokers:     ParseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicTicket: getEnv("KAFKA_TOPIC_TICKET", ""),
	}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "tickets")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Telegram.BotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.Telegram.ChatID = strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID"))
	cfg.Telegram.WebhookSecret = strings.TrimSpace(os.Getenv("TELEGRAM_WEBHOOK_SECRET"))
	cfg.Telegram.APIEndpoint = getEnv("TELEGRAM_API_ENDPOINT", "")
	cfg.Telegram.Disabled = getBool("DISABLE_TELEGRAM")

	var err error
	if cfg.Location, err = loadLocation(os.Getenv("CLUB_TZ")); err != nil {
		return nil, err
	}
	if cfg.Reminder.Interval, err = getDuration("REMIND_INTERVAL", 3*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Reminder.StaleAfter, err = getDuration("REMIND_STALE_AFTER", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Reminder.Cooldown, err = getDuration("REMIND_COOLDOWN", time.Hour); err != nil {
		return nil, err
	}
	batch := getEnv("REMIND_BATCH", "50")
	if cfg.Reminder.BatchSize, err = strconv.Atoi(batch); err != nil {
		return nil, fmt.Errorf("config: REMIND_BATCH %q: %w", batch, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RawDatabaseURL == "" {
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DATABASE_URL or DB_HOST and DB_DATABASE are required")
		}
		if c.AppEnv == "production" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	}
	if c.FrontendOrigin != "*" {
		for _, o := range ParseList(c.FrontendOrigin) {
			if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
				return fmt.Errorf("config: FRONTEND_ORIGIN %q must start with http:// or https://", o)
			}
		}
	}
	if c.Reminder.StaleAfter <= 0 {
		return errors.New("config: REMIND_STALE_AFTER must be positive")
	}
	if c.Reminder.Cooldown < 0 {
		return errors.New("config: REMIND_COOLDOWN must not be negative")
	}
	if c.Reminder.BatchSize <= 0 {
		return errors.New("config: REMIND_BATCH must be positive")
	}
	return nil
}

// DatabaseURL returns the normalised connection string. Hosting panels hand out
// postgres:// and SQLAlchemy-style postgresql+psycopg:// URLs; both mean postgres.
func (c *Config) DatabaseURL() string {
	if c.RawDatabaseURL != "" {
		return NormalizeDatabaseURL(c.RawDatabaseURL)
	}
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

// TelegramEnabled reports whether outbound notifications can be attempted.
func (c *Config) TelegramEnabled() bool {
	return !c.Telegram.Disabled && c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func NormalizeDatabaseURL(raw string) string {
	for _, prefix := range []string{"postgresql+psycopg://", "postgresql+psycopg2://", "postgresql://"} {
		if strings.HasPrefix(raw, prefix) {
			return "postgres://" + strings.TrimPrefix(raw, prefix)
		}
	}
	return raw
}

// ParseList разбивает "a, b,,c" на ["a" "b" "c"].
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseDuration accepts Go durations ("90m") and bare integers meaning hours.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("config: load CLUB_TZ: %w", err)
	}
	return loc, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s %q: %w", key, v, err)
	}
	return d, nil
}

func getBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/clubdesk/ticket-service/internal/config"
	"github.com/clubdesk/ticket-service/internal/database"
	"github.com/clubdesk/ticket-service/internal/handler"
	"github.com/clubdesk/ticket-service/internal/kafka"
	"github.com/clubdesk/ticket-service/internal/router"
	"github.com/clubdesk/ticket-service/internal/service"
	"github.com/clubdesk/ticket-service/internal/telegram"
)

// Core — общие зависимости для api и remind: база (уже мигрированная), уведомления, события.
type Core struct {
	DB       *gorm.DB
	Notifier *telegram.Notifier
	Events   *kafka.Producer
	Tickets  *service.TicketService
	Reminder *service.Reminder
	log      *slog.Logger
}

// NewCore validates config, connects, migrates and wires the services. A failed
// migration is fatal: the service must not run on a schema it does not know.
func NewCore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn := cfg.DatabaseURL()
	if cfg.CreateDatabase {
		if err := database.EnsureDatabase(ctx, dsn, log); err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
	}
	db, err := database.Open(ctx, dsn, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	notifier := telegram.New(telegram.Options{
		Token:       cfg.Telegram.BotToken,
		ChatID:      cfg.Telegram.ChatID,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		Disabled:    !cfg.TelegramEnabled(),
		Location:    cfg.Location,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		Log:         log,
	})
	events := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket, log)

	tickets := service.NewTicketService(db,
		service.WithNotifier(notifier),
		service.WithEvents(events),
		service.WithLogger(log),
	)
	reminder := service.NewReminder(tickets, service.ReminderPolicy{
		StaleAfter: cfg.Reminder.StaleAfter,
		Cooldown:   cfg.Reminder.Cooldown,
		BatchSize:  cfg.Reminder.BatchSize,
	})

	return &Core{
		DB:       db,
		Notifier: notifier,
		Events:   events,
		Tickets:  tickets,
		Reminder: reminder,
		log:      log,
	}, nil
}

func (c *Core) Close() {
	if err := c.Events.Close(); err != nil {
		c.log.Warn("kafka close", "error", err)
	}
	closeDB(c.DB)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// API приложение: HTTP-сервер (режим api).
type API struct {
	cfg     *config.Config
	core    *Core
	httpSrv *http.Server
	log     *slog.Logger
}

// NewAPI создаёт приложение для режима api.
func NewAPI(ctx context.Context, cfg *config.Config, log *slog.Logger) (*API, error) {
	core, err := NewCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	webhook := telegram.NewWebhook(core.Tickets, core.Notifier, log)
	h := router.New(router.Deps{
		Health: handler.NewHealthHandler(func(ctx context.Context) error {
			return database.Ping(ctx, core.DB)
		}, log),
		Tickets:        handler.NewTicketHandler(core.Tickets, log),
		Telegram:       handler.NewTelegramHandler(webhook, cfg.Telegram.WebhookSecret, log),
		Cron:           handler.NewCronHandler(core.Reminder, cfg.CronSecret, log),
		FrontendOrigin: cfg.FrontendOrigin,
		Log:            log,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.Telegram.WebhookSecret == "" {
		log.Warn("TELEGRAM_WEBHOOK_SECRET is empty: webhook rejects every request")
	}
	if cfg.CronSecret == "" {
		log.Warn("CRON_SECRET is empty: /cron/remind rejects every request")
	}
	if !cfg.TelegramEnabled() {
		log.Info("telegram notifications are off", "disabled", cfg.Telegram.Disabled)
	}

	return &API{cfg: cfg, core: core, httpSrv: httpSrv, log: log}, nil
}

// Run запускает HTTP-сервер, блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	defer a.core.Close()

	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening",
		"addr", a.httpSrv.Addr,
		"swagger", base+router.PathSwagger,
		"health", base+router.PathHealth,
		"api", base+router.PathTickets,
		"telegram", a.core.Notifier.Enabled(),
		"kafka", a.core.Events.Enabled(),
		"remind_interval", a.cfg.Reminder.Interval.String(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

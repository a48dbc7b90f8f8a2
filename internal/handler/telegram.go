package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clubdesk/ticket-service/internal/service"
	"github.com/clubdesk/ticket-service/internal/telegram"
)

const HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler применяет апдейт Telegram к заявкам.
type UpdateHandler interface {
	Handle(ctx context.Context, update tgbotapi.Update) telegram.Outcome
}

type TelegramHandler struct {
	updates UpdateHandler
	secret  string
	log     *slog.Logger
}

func NewTelegramHandler(updates UpdateHandler, secret string, log *slog.Logger) *TelegramHandler {
	return &TelegramHandler{updates: updates, secret: secret, log: log}
}

// Webhook принимает апдейты бота. Кривое тело подтверждается, чтобы Telegram не ретраил его.
func (h *TelegramHandler) Webhook(c *gin.Context) {
	provided := c.GetHeader(HeaderTelegramSecret)
	if provided == "" {
		provided = firstQuery(c, "secret", "token")
	}
	if err := checkSecret(provided, h.secret); err != nil {
		writeError(c, h.log, err)
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.log.Warn("malformed telegram update", "request_id", RequestIDFrom(c), "error", err)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	outcome := h.updates.Handle(c.Request.Context(), update)
	h.log.Info("telegram update", "update_id", update.UpdateID, "outcome", outcome)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Sweeper runs one reminder pass.
type Sweeper interface {
	Sweep(ctx context.Context) (service.ReminderReport, error)
}

type CronHandler struct {
	reminder Sweeper
	secret   string
	log      *slog.Logger
}

func NewCronHandler(reminder Sweeper, secret string, log *slog.Logger) *CronHandler {
	return &CronHandler{reminder: reminder, secret: secret, log: log}
}

func (h *CronHandler) Remind(c *gin.Context) {
	if err := checkSecret(firstQuery(c, "key", "secret", "token"), h.secret); err != nil {
		writeError(c, h.log, err)
		return
	}
	report, err := h.reminder.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"checked": report.Checked,
		"sent":    report.Sent,
		"failed":  report.Failed,
		"skipped": report.Skipped,
	})
}

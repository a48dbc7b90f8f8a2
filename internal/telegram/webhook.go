package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clubdesk/ticket-service/internal/errs"
	"github.com/clubdesk/ticket-service/internal/model"
)

// StatusSetter — часть сервиса заявок, которой управляет вебхук.
type StatusSetter interface {
	SetStatus(ctx context.Context, id int64, status model.TicketStatus) (*model.Ticket, error)
}

// Responder answers operators in the chat.
type Responder interface {
	AnswerCallback(ctx context.Context, callbackID, text string)
	Reply(ctx context.Context, chatID int64, text string)
}

// Outcome describes what an update did; used for logs and tests.
type Outcome string

const (
	OutcomeIgnored       Outcome = "ignored"
	OutcomeHelp          Outcome = "help"
	OutcomeStatusChanged Outcome = "status_changed"
	OutcomeBadInput      Outcome = "bad_input"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeFailed        Outcome = "failed"
)

const helpText = "Команды:\n" +
	"/help — помощь\n" +
	"/take <id> — взять заявку в работу\n" +
	"/done <id> — отметить заявку как выполненную\n" +
	"/reopen <id> — вернуть заявку в новые\n" +
	"Также используйте кнопки под карточкой заявки."

var commandStatus = map[string]model.TicketStatus{
	"take":   model.TicketStatusInProgress,
	"done":   model.TicketStatusDone,
	"reopen": model.TicketStatusNew,
}

var (
	errBadAction     = errors.New("malformed callback data")
	errUnknownStatus = errors.New("unknown status in callback data")
)

type Webhook struct {
	tickets StatusSetter
	bot     Responder
	log     *slog.Logger
}

func NewWebhook(tickets StatusSetter, bot Responder, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Webhook{tickets: tickets, bot: bot, log: log.With("component", "webhook")}
}

// Handle applies one Telegram update. It never fails: unknown or malformed updates
// are acknowledged without touching tickets.
func (w *Webhook) Handle(ctx context.Context, update tgbotapi.Update) Outcome {
	switch {
	case update.CallbackQuery != nil:
		return w.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return w.handleMessage(ctx, update.Message)
	}
	w.log.Debug("update ignored", "update_id", update.UpdateID)
	return OutcomeIgnored
}

func (w *Webhook) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) Outcome {
	status, id, err := ParseAction(cb.Data)
	if err != nil {
		text := "Неверные данные кнопки"
		if errors.Is(err, errUnknownStatus) {
			text = "Неизвестное действие"
		}
		w.bot.AnswerCallback(ctx, cb.ID, text)
		return OutcomeBadInput
	}
	outcome, t := w.setStatus(ctx, id, status)
	switch outcome {
	case OutcomeStatusChanged:
		w.bot.AnswerCallback(ctx, cb.ID, "Статус: "+HumanStatus(t.Status))
	case OutcomeNotFound:
		w.bot.AnswerCallback(ctx, cb.ID, "Заявка не найдена")
	default:
		w.bot.AnswerCallback(ctx, cb.ID, "Ошибка, попробуйте позже")
	}
	return outcome
}

func (w *Webhook) handleMessage(ctx context.Context, msg *tgbotapi.Message) Outcome {
	cmd, args := splitCommand(msg.Text)
	if cmd == "" {
		return OutcomeIgnored
	}
	var chatID int64
	if msg.Chat != nil {
		chatID = msg.Chat.ID
	}
	if cmd == "start" || cmd == "help" {
		w.bot.Reply(ctx, chatID, helpText)
		return OutcomeHelp
	}
	status, ok := commandStatus[cmd]
	if !ok {
		return OutcomeIgnored
	}
	if len(args) == 0 {
		w.bot.Reply(ctx, chatID, fmt.Sprintf("Формат: /%s <id>", cmd))
		return OutcomeBadInput
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		w.bot.Reply(ctx, chatID, fmt.Sprintf("Формат: /%s <id>", cmd))
		return OutcomeBadInput
	}
	outcome, t := w.setStatus(ctx, id, status)
	switch outcome {
	case OutcomeStatusChanged:
		w.bot.Reply(ctx, chatID, fmt.Sprintf("Заявка #%d — %s %s", id, statusEmoji[t.Status], HumanStatus(t.Status)))
	case OutcomeNotFound:
		w.bot.Reply(ctx, chatID, fmt.Sprintf("Заявка #%d не найдена", id))
	default:
		w.bot.Reply(ctx, chatID, "Ошибка, попробуйте позже")
	}
	return outcome
}

func (w *Webhook) setStatus(ctx context.Context, id int64, status model.TicketStatus) (Outcome, *model.Ticket) {
	t, err := w.tickets.SetStatus(ctx, id, status)
	switch {
	case err == nil:
		w.log.Info("status changed by operator", "ticket_id", id, "status", status)
		return OutcomeStatusChanged, t
	case errors.Is(err, errs.ErrTicketNotFound):
		return OutcomeNotFound, nil
	default:
		w.log.Error("set status failed", "ticket_id", id, "error", err)
		return OutcomeFailed, nil
	}
}

// ParseAction разбирает callback data "act:<status>:<id>".
func ParseAction(data string) (model.TicketStatus, int64, error) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) != 3 || parts[0] != "act" {
		return "", 0, errBadAction
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, errBadAction
	}
	status := model.TicketStatus(parts[1])
	if !status.Valid() {
		return "", 0, errUnknownStatus
	}
	return status, id, nil
}

// splitCommand returns ("done", ["12"]) for "/done@club_bot 12".
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

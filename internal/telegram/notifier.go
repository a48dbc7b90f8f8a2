package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clubdesk/ticket-service/internal/model"
)

// Delivery is the outcome of one best-effort notification attempt. Callers log
// Err and move on; it is never returned to an HTTP client.
type Delivery struct {
	ChatID    string
	MessageID int64
	Skipped   bool
	Err       error
}

// Delivered reports whether a message landed and its ids can be recorded.
func (d Delivery) Delivered() bool {
	return !d.Skipped && d.Err == nil && d.MessageID != 0
}

type Options struct {
	Token  string
	ChatID string
	// APIEndpoint — формат "https://api.telegram.org/bot%s/%s"; пусто = по умолчанию.
	APIEndpoint string
	Disabled    bool
	Location    *time.Location
	HTTPClient  tgbotapi.HTTPClient
	Log         *slog.Logger
	Now         func() time.Time
}

// Notifier отправляет карточки заявок в чат (best-effort, не блокирует API).
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID string
	loc    *time.Location
	log    *slog.Logger
	now    func() time.Time
}

// New returns a notifier. Missing token, DISABLE_TELEGRAM or a failed getMe leave it
// disabled: every call becomes a skipped Delivery.
func New(opts Options) *Notifier {
	n := &Notifier{
		chatID: strings.TrimSpace(opts.ChatID),
		loc:    opts.Location,
		log:    opts.Log,
		now:    opts.Now,
	}
	if n.log == nil {
		n.log = slog.New(slog.DiscardHandler)
	}
	n.log = n.log.With("component", "telegram")
	if n.loc == nil {
		n.loc = time.UTC
	}
	if n.now == nil {
		n.now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Disabled || opts.Token == "" {
		n.log.Info("notifier disabled", "disabled_flag", opts.Disabled, "token_set", opts.Token != "")
		return n
	}
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, client)
	if err != nil {
		n.log.Warn("bot init failed, notifier disabled", "error", err)
		return n
	}
	n.bot = bot
	n.log.Info("bot authorized", "username", bot.Self.UserName, "chat_configured", n.chatID != "")
	return n
}

// Enabled reports whether the bot is usable at all (webhook replies need only that).
func (n *Notifier) Enabled() bool { return n != nil && n.bot != nil }

// Send posts a new ticket card to the configured chat.
func (n *Notifier) Send(ctx context.Context, t *model.Ticket) Delivery {
	if !n.Enabled() || n.chatID == "" {
		return Delivery{Skipped: true}
	}
	return n.post(ctx, n.chatID, FormatTicket(t, n.loc), t)
}

// Remind re-posts the card with a reminder header. The new message becomes the
// one later edits target.
func (n *Notifier) Remind(ctx context.Context, t *model.Ticket) Delivery {
	if !n.Enabled() || n.chatID == "" {
		return Delivery{Skipped: true}
	}
	return n.post(ctx, n.chatID, FormatReminder(t, n.now(), n.loc), t)
}

// Edit refreshes the stored message after a status or text change.
func (n *Notifier) Edit(ctx context.Context, t *model.Ticket) Delivery {
	if !n.Enabled() || !t.HasMessage() {
		return Delivery{Skipped: true}
	}
	if err := ctx.Err(); err != nil {
		return Delivery{Err: err}
	}
	chatID, err := strconv.ParseInt(*t.TGChatID, 10, 64)
	if err != nil {
		return Delivery{Err: fmt.Errorf("editMessageText: chat id %q: %w", *t.TGChatID, err)}
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, int(*t.TGMessageID), FormatTicket(t, n.loc), Keyboard(t))
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if _, err := n.bot.Request(edit); err != nil && !strings.Contains(err.Error(), "message is not modified") {
		return Delivery{Err: fmt.Errorf("editMessageText: %w", err)}
	}
	return Delivery{ChatID: *t.TGChatID, MessageID: *t.TGMessageID}
}

// AnswerCallback закрывает "часики" на кнопке; ошибки только логируются.
func (n *Notifier) AnswerCallback(ctx context.Context, callbackID, text string) {
	if !n.Enabled() || callbackID == "" || ctx.Err() != nil {
		return
	}
	if _, err := n.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		n.log.Warn("answerCallbackQuery failed", "error", err)
	}
}

// Reply sends plain text to a chat; ошибки только логируются.
func (n *Notifier) Reply(ctx context.Context, chatID int64, text string) {
	if !n.Enabled() || chatID == 0 || ctx.Err() != nil {
		return
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		n.log.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}

func (n *Notifier) post(ctx context.Context, chat, text string, t *model.Ticket) Delivery {
	if err := ctx.Err(); err != nil {
		return Delivery{Err: err}
	}
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chat, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = Keyboard(t)

	sent, err := n.bot.Send(msg)
	if err != nil {
		return Delivery{Err: fmt.Errorf("sendMessage: %w", err)}
	}
	d := Delivery{ChatID: chat, MessageID: int64(sent.MessageID)}
	if sent.Chat != nil && sent.Chat.ID != 0 {
		d.ChatID = strconv.FormatInt(sent.Chat.ID, 10)
	}
	return d
}

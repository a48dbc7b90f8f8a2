package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clubdesk/ticket-service/internal/model"
)

var statusEmoji = map[model.TicketStatus]string{
	model.TicketStatusNew:        "🆕",
	model.TicketStatusInProgress: "⏳",
	model.TicketStatusDone:       "✅",
}

// HumanStatus — подпись статуса для операторов.
func HumanStatus(s model.TicketStatus) string {
	switch s {
	case model.TicketStatusNew:
		return "Новая"
	case model.TicketStatusInProgress:
		return "В работе"
	case model.TicketStatusDone:
		return "Выполнено"
	}
	return string(s)
}

// FormatTicket renders the HTML card. User text is escaped; loc controls the deadline clock.
func FormatTicket(t *model.Ticket, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	emoji := statusEmoji[t.Status]
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Заявка #%d</b>\n", emoji, t.ID)
	fmt.Fprintf(&b, "🏢 Клуб: %s\n", html.EscapeString(orDash(t.Club)))
	fmt.Fprintf(&b, "💻 ПК: %s\n", html.EscapeString(orDash(t.PC)))
	fmt.Fprintf(&b, "📝 %s", html.EscapeString(orDash(t.Description)))
	if t.Deadline != nil {
		fmt.Fprintf(&b, "\n🗓 Дедлайн: %s", t.Deadline.In(loc).Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "\n\nСтатус: %s %s", emoji, HumanStatus(t.Status))
	return b.String()
}

// FormatReminder prefixes the card with a reminder header.
func FormatReminder(t *model.Ticket, now time.Time, loc *time.Location) string {
	head := "⏰ <b>Напоминание</b>"
	if t.Overdue(now) {
		head += ": дедлайн просрочен"
	}
	return head + "\n\n" + FormatTicket(t, loc)
}

// Keyboard returns the status buttons for the ticket's current state.
func Keyboard(t *model.Ticket) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	switch t.Status {
	case model.TicketStatusNew:
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("▶️ В работу", ActionData(model.TicketStatusInProgress, t.ID))),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Выполнено", ActionData(model.TicketStatusDone, t.ID))),
		)
	case model.TicketStatusInProgress:
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Выполнено", ActionData(model.TicketStatusDone, t.ID))),
		)
	default:
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("↩️ Снова в работу", ActionData(model.TicketStatusInProgress, t.ID))),
		)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ActionData builds callback data "act:<status>:<id>".
func ActionData(status model.TicketStatus, id int64) string {
	return fmt.Sprintf("act:%s:%d", status, id)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

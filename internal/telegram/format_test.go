package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/clubdesk/ticket-service/internal/model"
)

func TestFormatTicket(t *testing.T) {
	ticket := sampleTicket()
	deadline := time.Date(2026, 2, 1, 15, 0, 0, 0, time.UTC)
	ticket.Deadline = &deadline
	msk := time.FixedZone("MSK", 3*3600)

	text := FormatTicket(ticket, msk)
	for _, want := range []string{"🆕 <b>Заявка #5</b>", "Клуб: Пятак", "ПК: ПК 7", "&lt;принтер&gt;", "Дедлайн: 2026-02-01 18:00", "Статус: 🆕 Новая"} {
		if !strings.Contains(text, want) {
			t.Errorf("card missing %q:\n%s", want, text)
		}
	}

	ticket.Deadline = nil
	ticket.Club = " "
	text = FormatTicket(ticket, nil)
	if strings.Contains(text, "Дедлайн") {
		t.Error("card without deadline must not show one")
	}
	if !strings.Contains(text, "Клуб: —") {
		t.Errorf("blank club should render as dash:\n%s", text)
	}
}

func TestKeyboard(t *testing.T) {
	tests := []struct {
		status model.TicketStatus
		want   []string
	}{
		{model.TicketStatusNew, []string{"act:in_progress:5", "act:done:5"}},
		{model.TicketStatusInProgress, []string{"act:done:5"}},
		{model.TicketStatusDone, []string{"act:in_progress:5"}},
	}
	for _, tt := range tests {
		ticket := sampleTicket()
		ticket.Status = tt.status
		var got []string
		for _, row := range Keyboard(ticket).InlineKeyboard {
			for _, btn := range row {
				if btn.CallbackData != nil {
					got = append(got, *btn.CallbackData)
				}
			}
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("%s: buttons = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseAction(t *testing.T) {
	status, id, err := ParseAction("act:done:12")
	if err != nil || status != model.TicketStatusDone || id != 12 {
		t.Fatalf("ParseAction = %q, %d, %v", status, id, err)
	}
	for _, bad := range []string{"", "act:done", "act:done:x", "act:done:-1", "foo:done:1", "act:cancelled:1"} {
		if _, _, err := ParseAction(bad); err == nil {
			t.Errorf("ParseAction(%q): expected error", bad)
		}
	}
	if _, _, err := ParseAction("act:cancelled:1"); err != errUnknownStatus {
		t.Errorf("unknown status error = %v", err)
	}
}

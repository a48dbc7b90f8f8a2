package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/clubdesk/ticket-service/internal/model"
)

func sampleTicket() *model.Ticket {
	return &model.Ticket{
		ID:          5,
		Club:        "Пятак",
		PC:          "ПК 7",
		Description: "сломался <принтер>",
		Status:      model.TicketStatusNew,
		CreatedAt:   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestNotifier(t *testing.T, chatID string) (*Notifier, *fakeBotAPI) {
	t.Helper()
	fake, srv := newFakeBotAPI(t)
	n := New(Options{
		Token:       "123:abc",
		ChatID:      chatID,
		APIEndpoint: endpointFor(srv),
		HTTPClient:  srv.Client(),
	})
	if !n.Enabled() {
		t.Fatal("notifier should be enabled")
	}
	return n, fake
}

func TestNotifierDisabledIsNoop(t *testing.T) {
	for name, opts := range map[string]Options{
		"no token": {ChatID: "-1001"},
		"disabled": {Token: "123:abc", ChatID: "-1001", Disabled: true},
	} {
		n := New(opts)
		if n.Enabled() {
			t.Errorf("%s: Enabled() = true", name)
		}
		if d := n.Send(context.Background(), sampleTicket()); !d.Skipped || d.Delivered() {
			t.Errorf("%s: Send = %+v, want skipped", name, d)
		}
		if d := n.Edit(context.Background(), sampleTicket()); !d.Skipped {
			t.Errorf("%s: Edit = %+v, want skipped", name, d)
		}
		n.Reply(context.Background(), 1, "hi")
		n.AnswerCallback(context.Background(), "cb", "hi")
	}
}

func TestNotifierBotInitFailureDisables(t *testing.T) {
	fake, srv := newFakeBotAPI(t)
	fake.fail("getMe", "Unauthorized")
	n := New(Options{Token: "bad", ChatID: "-1001", APIEndpoint: endpointFor(srv), HTTPClient: srv.Client()})
	if n.Enabled() {
		t.Fatal("notifier with rejected token must be disabled")
	}
	if d := n.Send(context.Background(), sampleTicket()); !d.Skipped {
		t.Errorf("Send = %+v, want skipped", d)
	}
}

func TestNotifierSend(t *testing.T) {
	n, fake := newTestNotifier(t, "-1001")

	d := n.Send(context.Background(), sampleTicket())
	if !d.Delivered() {
		t.Fatalf("Send = %+v, want delivered", d)
	}
	if d.ChatID != "-1001" || d.MessageID == 0 {
		t.Errorf("delivery ids = %q/%d", d.ChatID, d.MessageID)
	}

	calls := fake.callsTo("sendMessage")
	if len(calls) != 1 {
		t.Fatalf("sendMessage calls = %d", len(calls))
	}
	p := calls[0].Params
	if p.Get("parse_mode") != "HTML" {
		t.Errorf("parse_mode = %q", p.Get("parse_mode"))
	}
	if !strings.Contains(p.Get("text"), "Заявка #5") || !strings.Contains(p.Get("text"), "&lt;принтер&gt;") {
		t.Errorf("text = %q", p.Get("text"))
	}
	if !strings.Contains(p.Get("reply_markup"), "act:in_progress:5") {
		t.Errorf("reply_markup = %q", p.Get("reply_markup"))
	}
}

func TestNotifierSendToChannelUsername(t *testing.T) {
	n, fake := newTestNotifier(t, "@club_alerts")
	d := n.Send(context.Background(), sampleTicket())
	if !d.Delivered() || d.ChatID != "-100777" {
		t.Fatalf("Send = %+v", d)
	}
	if got := fake.callsTo("sendMessage")[0].Params.Get("chat_id"); got != "@club_alerts" {
		t.Errorf("chat_id = %q", got)
	}
}

func TestNotifierSendFailureIsReported(t *testing.T) {
	n, fake := newTestNotifier(t, "-1001")
	fake.fail("sendMessage", "Bad Request: chat not found")

	d := n.Send(context.Background(), sampleTicket())
	if d.Err == nil || d.Delivered() {
		t.Fatalf("Send = %+v, want error", d)
	}
	if !strings.Contains(d.Err.Error(), "chat not found") {
		t.Errorf("error = %v", d.Err)
	}
}

func TestNotifierWithoutChatSkipsSend(t *testing.T) {
	n, fake := newTestNotifier(t, "")
	if d := n.Send(context.Background(), sampleTicket()); !d.Skipped {
		t.Errorf("Send = %+v, want skipped", d)
	}
	n.Reply(context.Background(), 42, "pong")
	if len(fake.callsTo("sendMessage")) != 1 {
		t.Error("Reply should still work without a default chat")
	}
}

func TestNotifierEdit(t *testing.T) {
	n, fake := newTestNotifier(t, "-1001")
	ticket := sampleTicket()
	if d := n.Edit(context.Background(), ticket); !d.Skipped {
		t.Fatalf("Edit without message = %+v, want skipped", d)
	}

	chat, msg := "-1001", int64(55)
	ticket.TGChatID, ticket.TGMessageID = &chat, &msg
	ticket.Status = model.TicketStatusDone
	d := n.Edit(context.Background(), ticket)
	if d.Err != nil || d.MessageID != 55 {
		t.Fatalf("Edit = %+v", d)
	}
	calls := fake.callsTo("editMessageText")
	if len(calls) != 1 {
		t.Fatalf("editMessageText calls = %d", len(calls))
	}
	if calls[0].Params.Get("message_id") != "55" || calls[0].Params.Get("chat_id") != "-1001" {
		t.Errorf("params = %v", calls[0].Params)
	}
	if !strings.Contains(calls[0].Params.Get("text"), "Выполнено") {
		t.Errorf("text = %q", calls[0].Params.Get("text"))
	}

	fake.fail("editMessageText", "Bad Request: message is not modified")
	if d := n.Edit(context.Background(), ticket); d.Err != nil {
		t.Errorf("not-modified must not be an error: %v", d.Err)
	}
}

func TestNotifierRemindMarksOverdue(t *testing.T) {
	fake, srv := newFakeBotAPI(t)
	now := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	n := New(Options{
		Token: "123:abc", ChatID: "-1001",
		APIEndpoint: endpointFor(srv), HTTPClient: srv.Client(),
		Now: func() time.Time { return now },
	})
	ticket := sampleTicket()
	past := now.Add(-time.Hour)
	ticket.Deadline = &past

	if d := n.Remind(context.Background(), ticket); !d.Delivered() {
		t.Fatalf("Remind = %+v", d)
	}
	text := fake.callsTo("sendMessage")[0].Params.Get("text")
	if !strings.Contains(text, "Напоминание") || !strings.Contains(text, "просрочен") {
		t.Errorf("text = %q", text)
	}
}

func TestNotifierCancelledContext(t *testing.T) {
	n, fake := newTestNotifier(t, "-1001")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if d := n.Send(ctx, sampleTicket()); d.Err == nil {
		t.Errorf("Send with cancelled ctx = %+v", d)
	}
	if len(fake.callsTo("sendMessage")) != 0 {
		t.Error("no request expected after cancellation")
	}
}

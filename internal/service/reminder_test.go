package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubdesk/ticket-service/internal/model"
	"github.com/clubdesk/ticket-service/internal/telegram"
)

// seedReminderTickets creates, at the clock's current time: a ticket without a
// deadline, one with a deadline in two hours and a finished one.
func seedReminderTickets(t *testing.T, svc *TicketService, clock *testClock) (stale, overdue, done *model.Ticket) {
	t.Helper()
	ctx := context.Background()
	var err error
	if stale, err = svc.Create(ctx, model.NewTicket{Club: "Пятак", PC: "ПК 1", Description: "залипает W"}); err != nil {
		t.Fatalf("Create stale: %v", err)
	}
	deadline := clock.Now().Add(2 * time.Hour)
	if overdue, err = svc.Create(ctx, model.NewTicket{Club: "Пятак", PC: "ПК 2", Description: "гарнитура", Deadline: &deadline}); err != nil {
		t.Fatalf("Create overdue: %v", err)
	}
	if done, err = svc.Create(ctx, model.NewTicket{Club: "Пятак", PC: "ПК 3", Description: "мышь", Status: "done"}); err != nil {
		t.Fatalf("Create done: %v", err)
	}
	return stale, overdue, done
}

func ticketIDs(items []model.Ticket) []int64 {
	ids := make([]int64, 0, len(items))
	for _, tk := range items {
		ids = append(ids, tk.ID)
	}
	return ids
}

func TestReminderDueSelection(t *testing.T) {
	n := &fakeNotifier{result: telegram.Delivery{Skipped: true}}
	svc, clock, _ := newTestService(t, n)
	r := NewReminder(svc, DefaultReminderPolicy())
	ctx := context.Background()

	stale, overdue, _ := seedReminderTickets(t, svc, clock)

	due, err := r.Due(ctx)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("fresh tickets due: %v", ticketIDs(due))
	}

	clock.Advance(3 * time.Hour)
	due, err = r.Due(ctx)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if got := ticketIDs(due); len(got) != 1 || got[0] != overdue.ID {
		t.Fatalf("due after deadline = %v, want [%d]", got, overdue.ID)
	}

	clock.Advance(22 * time.Hour)
	due, err = r.Due(ctx)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if got := ticketIDs(due); len(got) != 2 || got[0] != stale.ID || got[1] != overdue.ID {
		t.Fatalf("due after stale = %v, want [%d %d]", got, stale.ID, overdue.ID)
	}
}

func TestReminderSweepRespectsCooldown(t *testing.T) {
	n := &fakeNotifier{result: telegram.Delivery{Skipped: true}}
	svc, clock, _ := newTestService(t, n)
	r := NewReminder(svc, DefaultReminderPolicy())
	ctx := context.Background()

	stale, _, _ := seedReminderTickets(t, svc, clock)
	clock.Advance(25 * time.Hour)
	n.result = telegram.Delivery{}

	report, err := r.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report != (ReminderReport{Checked: 2, Sent: 2}) {
		t.Fatalf("report = %+v", report)
	}
	got, err := svc.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, clock.Now())
	}
	if got.TGMessageID == nil {
		t.Error("reminder message id not recorded")
	}

	report, err = r.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if report.Checked != 0 {
		t.Errorf("second sweep within cooldown checked %d tickets", report.Checked)
	}

	clock.Advance(61 * time.Minute)
	report, err = r.Sweep(ctx)
	if err != nil {
		t.Fatalf("third Sweep: %v", err)
	}
	if report.Sent != 2 {
		t.Errorf("after cooldown sent = %d, want 2", report.Sent)
	}
	if len(n.reminds) != 4 {
		t.Errorf("Remind calls = %d, want 4", len(n.reminds))
	}
}

func TestReminderSweepFailingDeliveryIsHarmless(t *testing.T) {
	n := &fakeNotifier{result: telegram.Delivery{Skipped: true}}
	svc, clock, _ := newTestService(t, n)
	r := NewReminder(svc, DefaultReminderPolicy())
	ctx := context.Background()

	stale, overdue, _ := seedReminderTickets(t, svc, clock)
	clock.Advance(25 * time.Hour)
	n.result = telegram.Delivery{Err: errors.New("chat not found")}

	for i := 0; i < 2; i++ {
		report, err := r.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep %d: %v", i+1, err)
		}
		if report != (ReminderReport{Checked: 2, Failed: 2}) {
			t.Fatalf("Sweep %d report = %+v", i+1, report)
		}
	}

	for _, want := range []*model.Ticket{stale, overdue} {
		got, err := svc.Get(ctx, want.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != want.Status || got.UpdatedAt != nil || got.TGMessageID != nil {
			t.Errorf("ticket %d modified by failed reminders: %+v", want.ID, got)
		}
	}
}

func TestReminderSweepDisabledNotifier(t *testing.T) {
	svc, clock, _ := newTestService(t, nil)
	r := NewReminder(svc, DefaultReminderPolicy())

	seedReminderTickets(t, svc, clock)
	clock.Advance(48 * time.Hour)

	report, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report != (ReminderReport{Checked: 2, Skipped: 2}) {
		t.Fatalf("report = %+v", report)
	}
}

func TestReminderSkipsUnknownStatuses(t *testing.T) {
	n := &fakeNotifier{}
	svc, clock, db := newTestService(t, n)
	r := NewReminder(svc, DefaultReminderPolicy())
	ctx := context.Background()

	// Строка, записанная старой версией в обход валидации.
	if err := db.Exec(`INSERT INTO tickets (club, pc, description, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		"Пятак", "ПК 9", "руль", "cancelled", clock.Now()).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	clock.Advance(48 * time.Hour)

	for i := 0; i < 2; i++ {
		report, err := r.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep %d: %v", i+1, err)
		}
		if report.Checked != 0 {
			t.Fatalf("Sweep %d checked %d tickets, want 0", i+1, report.Checked)
		}
	}
	if len(n.reminds) != 0 {
		t.Errorf("reminded %v", n.reminds)
	}
}

func TestReminderBatchSize(t *testing.T) {
	n := &fakeNotifier{result: telegram.Delivery{Skipped: true}}
	svc, clock, _ := newTestService(t, n)
	r := NewReminder(svc, ReminderPolicy{StaleAfter: time.Hour, Cooldown: time.Hour, BatchSize: 1})

	stale, _, _ := seedReminderTickets(t, svc, clock)
	clock.Advance(3 * time.Hour)

	due, err := r.Due(context.Background())
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if got := ticketIDs(due); len(got) != 1 || got[0] != stale.ID {
		t.Fatalf("due = %v, want oldest [%d]", got, stale.ID)
	}
}

func TestNewReminderFillsDefaults(t *testing.T) {
	svc := NewTicketService(nil)
	r := NewReminder(svc, ReminderPolicy{Cooldown: -1})
	if r.policy != DefaultReminderPolicy() {
		t.Errorf("policy = %+v, want defaults", r.policy)
	}
}

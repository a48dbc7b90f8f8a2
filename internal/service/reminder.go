package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clubdesk/ticket-service/internal/kafka"
	"github.com/clubdesk/ticket-service/internal/model"
)

// ReminderPolicy decides which tickets are due for a reminder.
type ReminderPolicy struct {
	// StaleAfter — заявка без дедлайна считается зависшей спустя это время после создания.
	StaleAfter time.Duration
	// Cooldown — не напоминать чаще, чем раз в Cooldown (по updated_at).
	Cooldown  time.Duration
	BatchSize int
}

func DefaultReminderPolicy() ReminderPolicy {
	return ReminderPolicy{StaleAfter: 24 * time.Hour, Cooldown: time.Hour, BatchSize: 50}
}

type ReminderReport struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Reminder is the cron sweep. It shares the ticket service's store, notifier and clock.
type Reminder struct {
	tickets *TicketService
	policy  ReminderPolicy
	log     *slog.Logger
}

func NewReminder(tickets *TicketService, policy ReminderPolicy) *Reminder {
	def := DefaultReminderPolicy()
	if policy.StaleAfter <= 0 {
		policy.StaleAfter = def.StaleAfter
	}
	if policy.Cooldown < 0 {
		policy.Cooldown = def.Cooldown
	}
	if policy.BatchSize <= 0 {
		policy.BatchSize = def.BatchSize
	}
	return &Reminder{
		tickets: tickets,
		policy:  policy,
		log:     tickets.log.With("job", "remind"),
	}
}

// Due returns open tickets that are overdue or stale and were not touched within
// the cooldown, oldest first.
func (r *Reminder) Due(ctx context.Context) ([]model.Ticket, error) {
	now := r.tickets.now()
	items := make([]model.Ticket, 0)
	err := r.tickets.db.WithContext(ctx).
		Where("status IN ?", []model.TicketStatus{model.TicketStatusNew, model.TicketStatusInProgress}).
		Where("((deadline IS NOT NULL AND deadline < ?) OR created_at < ?)", now, now.Add(-r.policy.StaleAfter)).
		Where("(updated_at IS NULL OR updated_at < ?)", now.Add(-r.policy.Cooldown)).
		Order("created_at ASC").
		Order("id ASC").
		Limit(r.policy.BatchSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("select due tickets: %w", err)
	}
	return items, nil
}

// Sweep sends one reminder per due ticket. Delivery failures are counted, never
// returned; only a failing query is an error.
func (r *Reminder) Sweep(ctx context.Context) (ReminderReport, error) {
	var report ReminderReport
	due, err := r.Due(ctx)
	if err != nil {
		return report, err
	}
	report.Checked = len(due)

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		t := &due[i]
		d := r.tickets.notifier.Remind(ctx, t)
		switch {
		case d.Skipped:
			report.Skipped++
		case !d.Delivered():
			report.Failed++
			r.log.Warn("reminder failed", "ticket_id", t.ID, "error", d.Err)
		default:
			if err := r.tickets.RecordDelivery(ctx, t, d); err != nil {
				report.Failed++
				r.log.Warn("record reminder failed", "ticket_id", t.ID, "error", err)
				continue
			}
			report.Sent++
			r.tickets.emit(kafka.EventTicketReminded, t)
		}
	}

	r.log.Info("sweep finished",
		"checked", report.Checked,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

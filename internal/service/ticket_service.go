package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/clubdesk/ticket-service/internal/errs"
	"github.com/clubdesk/ticket-service/internal/kafka"
	"github.com/clubdesk/ticket-service/internal/model"
	"github.com/clubdesk/ticket-service/internal/telegram"
)

const (
	DefaultListLimit = 300
	MaxListLimit     = 500
	// MaxListDays: окно больше ста лет равносильно отсутствию фильтра.
	MaxListDays = 36500
)

// TicketServicer — интерфейс для HTTP-хендлеров (Dependency Inversion).
type TicketServicer interface {
	Create(ctx context.Context, in model.NewTicket) (*model.Ticket, error)
	Get(ctx context.Context, id int64) (*model.Ticket, error)
	List(ctx context.Context, filter model.TicketFilter) ([]model.Ticket, error)
	Update(ctx context.Context, id int64, patch model.TicketPatch) (*model.Ticket, error)
	SetStatus(ctx context.Context, id int64, status model.TicketStatus) (*model.Ticket, error)
}

// Notifier is the outbound chat integration. Implementations report failures in
// the Delivery and never panic or block indefinitely.
type Notifier interface {
	Send(ctx context.Context, t *model.Ticket) telegram.Delivery
	Remind(ctx context.Context, t *model.Ticket) telegram.Delivery
	Edit(ctx context.Context, t *model.Ticket) telegram.Delivery
}

type TicketService struct {
	db       *gorm.DB
	notifier Notifier
	events   kafka.TicketEventProducer
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*TicketService)

func WithNotifier(n Notifier) Option {
	return func(s *TicketService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithEvents(p kafka.TicketEventProducer) Option {
	return func(s *TicketService) { s.events = p }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *TicketService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now; tests use it to control created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *TicketService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTicketService(db *gorm.DB, opts ...Option) *TicketService {
	s := &TicketService{
		db:       db,
		notifier: nopNotifier{},
		log:      slog.New(slog.DiscardHandler),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "tickets")
	return s
}

func (s *TicketService) Create(ctx context.Context, in model.NewTicket) (*model.Ticket, error) {
	t, err := newTicket(in)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = s.now()
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	s.log.Info("ticket created", "ticket_id", t.ID, "club", t.Club, "pc", t.PC)

	d := s.notifier.Send(ctx, t)
	s.logDelivery("send", t.ID, d)
	if d.Delivered() {
		if err := s.RecordDelivery(ctx, t, d); err != nil {
			s.log.Warn("record delivery failed", "ticket_id", t.ID, "error", err)
		}
	}
	s.emit(kafka.EventTicketCreated, t)
	return t, nil
}

func (s *TicketService) Get(ctx context.Context, id int64) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return &t, nil
}

// List returns tickets newest first. No matches is an empty slice, not an error.
func (s *TicketService) List(ctx context.Context, f model.TicketFilter) ([]model.Ticket, error) {
	tx := s.db.WithContext(ctx).Model(&model.Ticket{})
	if v := strings.TrimSpace(f.Status); v != "" {
		tx = tx.Where("status = ?", v)
	}
	if v := strings.TrimSpace(f.Club); v != "" {
		tx = tx.Where("club = ?", v)
	}
	if f.Days > 0 && f.Days <= MaxListDays {
		tx = tx.Where("created_at >= ?", s.now().AddDate(0, 0, -f.Days))
	}
	items := make([]model.Ticket, 0)
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(clampLimit(f.Limit)).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return items, nil
}

// Update validates the whole patch before writing, so a rejected patch leaves the row as it was.
func (s *TicketService) Update(ctx context.Context, id int64, patch model.TicketPatch) (*model.Ticket, error) {
	changes, err := patchChanges(patch)
	if err != nil {
		return nil, err
	}
	changes["updated_at"] = s.now()
	res := s.db.WithContext(ctx).Model(&model.Ticket{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("update ticket %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errs.ErrTicketNotFound
	}
	// Re-fetch: Updates по map не обновляет остальные поля структуры.
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("ticket updated", "ticket_id", id, "fields", len(changes)-1)

	s.logDelivery("edit", t.ID, s.notifier.Edit(ctx, t))
	s.emit(kafka.EventTicketUpdated, t)
	return t, nil
}

func (s *TicketService) SetStatus(ctx context.Context, id int64, status model.TicketStatus) (*model.Ticket, error) {
	v := string(status)
	return s.Update(ctx, id, model.TicketPatch{Status: &v})
}

// RecordDelivery stores where the card was posted. Only the delivery columns and
// updated_at are written, so it cannot clobber a concurrent status change.
func (s *TicketService) RecordDelivery(ctx context.Context, t *model.Ticket, d telegram.Delivery) error {
	now := s.now()
	chatID, messageID := d.ChatID, d.MessageID
	res := s.db.WithContext(ctx).Model(&model.Ticket{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
		"tg_chat_id":    chatID,
		"tg_message_id": messageID,
		"updated_at":    now,
	})
	if res.Error != nil {
		return fmt.Errorf("record delivery for ticket %d: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrTicketNotFound
	}
	t.TGChatID = &chatID
	t.TGMessageID = &messageID
	t.UpdatedAt = &now
	return nil
}

func (s *TicketService) logDelivery(op string, id int64, d telegram.Delivery) {
	switch {
	case d.Err != nil:
		s.log.Warn("notification failed", "op", op, "ticket_id", id, "error", d.Err)
	case d.Skipped:
		s.log.Debug("notification skipped", "op", op, "ticket_id", id)
	default:
		s.log.Debug("notification delivered", "op", op, "ticket_id", id, "message_id", d.MessageID)
	}
}

// emit is fire-and-forget: the event must go out even if the request is cancelled, but with a timeout.
func (s *TicketService) emit(event string, t *model.Ticket) {
	if s.events == nil {
		return
	}
	cp := *t
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.events.ProduceTicketEvent(ctx, event, &cp)
	}()
}

func newTicket(in model.NewTicket) (*model.Ticket, error) {
	t := &model.Ticket{
		Club:        strings.TrimSpace(in.Club),
		PC:          strings.TrimSpace(in.PC),
		Description: strings.TrimSpace(in.Description),
		Status:      model.TicketStatusNew,
		Deadline:    in.Deadline,
	}
	switch {
	case t.Club == "":
		return nil, errs.Validation("club", "club_required")
	case t.PC == "":
		return nil, errs.Validation("pc", "pc_required")
	case t.Description == "":
		return nil, errs.Validation("description", "description_required")
	}
	if strings.TrimSpace(in.Status) != "" {
		st, ok := model.ParseTicketStatus(in.Status)
		if !ok {
			return nil, errs.Validation("status", "invalid_status")
		}
		t.Status = st
	}
	return t, nil
}

func patchChanges(p model.TicketPatch) (map[string]interface{}, error) {
	if p.Empty() {
		return nil, errs.Validation("", "no_changes")
	}
	changes := make(map[string]interface{})
	if p.Status != nil {
		st, ok := model.ParseTicketStatus(*p.Status)
		if !ok {
			return nil, errs.Validation("status", "invalid_status")
		}
		changes["status"] = st
	}
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"club", p.Club},
		{"pc", p.PC},
		{"description", p.Description},
	} {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if v == "" {
			return nil, errs.Validation(f.column, f.column+"_required")
		}
		changes[f.column] = v
	}
	if p.Deadline.Set {
		changes["deadline"] = p.Deadline.Value
	}
	return changes, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, *model.Ticket) telegram.Delivery {
	return telegram.Delivery{Skipped: true}
}

func (nopNotifier) Remind(context.Context, *model.Ticket) telegram.Delivery {
	return telegram.Delivery{Skipped: true}
}

func (nopNotifier) Edit(context.Context, *model.Ticket) telegram.Delivery {
	return telegram.Delivery{Skipped: true}
}

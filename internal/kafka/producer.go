package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clubdesk/ticket-service/internal/model"
)

const (
	EventTicketCreated  = "ticket.created"
	EventTicketUpdated  = "ticket.updated"
	EventTicketReminded = "ticket.reminded"
)

// TicketEventProducer — интерфейс для отправки событий заявки (для подмены в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, t *model.Ticket)
}

// TicketEvent — тело сообщения в топике.
type TicketEvent struct {
	Event  string        `json:"event"`
	At     time.Time     `json:"at"`
	Ticket *model.Ticket `json:"ticket"`
}

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer пишет события заявок в топик Kafka (best-effort, не блокирует API).
type Producer struct {
	writer messageWriter
	log    *slog.Logger
}

// NewProducer создаёт продюсер. Если brokers или topic пустые — методы no-op.
func NewProducer(brokers []string, topic string, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Producer{log: log.With("component", "kafka")}
	if len(brokers) == 0 || topic == "" {
		return p
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
	return p
}

// Enabled reports whether events are actually written.
func (p *Producer) Enabled() bool { return p != nil && p.writer != nil }

// ProduceTicketEvent пишет событие; ключ — id заявки, чтобы события одной заявки шли по порядку.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, t *model.Ticket) {
	if !p.Enabled() || t == nil {
		return
	}
	body, err := json.Marshal(TicketEvent{Event: event, At: time.Now().UTC(), Ticket: t})
	if err != nil {
		p.log.Warn("marshal ticket event", "event", event, "error", err)
		return
	}
	msg := kafka.Message{Key: []byte(strconv.FormatInt(t.ID, 10)), Value: body}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("write ticket event", "event", event, "ticket_id", t.ID, "error", err)
	}
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}

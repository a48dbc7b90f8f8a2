package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/clubdesk/ticket-service/internal/model"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func TestProducerDisabledWithoutBrokers(t *testing.T) {
	p := NewProducer(nil, "tickets", nil)
	if p.Enabled() {
		t.Fatal("producer without brokers must be disabled")
	}
	p.ProduceTicketEvent(context.Background(), EventTicketCreated, &model.Ticket{ID: 1})
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if NewProducer([]string{"k:9092"}, "", nil).Enabled() {
		t.Error("producer without topic must be disabled")
	}
}

func TestProducerWritesKeyedEvent(t *testing.T) {
	w := &captureWriter{}
	p := &Producer{writer: w, log: NewProducer(nil, "", nil).log}

	p.ProduceTicketEvent(context.Background(), EventTicketUpdated, &model.Ticket{ID: 42, Status: model.TicketStatusDone})
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "42" {
		t.Errorf("key = %q", w.msgs[0].Key)
	}
	var ev struct {
		Event  string         `json:"event"`
		Ticket map[string]any `json:"ticket"`
	}
	if err := json.Unmarshal(w.msgs[0].Value, &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.Event != EventTicketUpdated || ev.Ticket["status"] != "done" {
		t.Errorf("event = %+v", ev)
	}
}

func TestProducerSwallowsWriteErrors(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	p := &Producer{writer: w, log: NewProducer(nil, "", nil).log}
	p.ProduceTicketEvent(context.Background(), EventTicketCreated, &model.Ticket{ID: 1})
	p.ProduceTicketEvent(context.Background(), EventTicketCreated, nil)
	if len(w.msgs) != 1 {
		t.Errorf("messages = %d, want 1 (nil ticket skipped)", len(w.msgs))
	}
}

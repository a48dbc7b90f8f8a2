package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusDone       TicketStatus = "done"
)

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusDone:
		return true
	}
	return false
}

// ParseTicketStatus normalises user input ("In_Progress ", "DONE") into a status.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	st := TicketStatus(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Ticket — заявка клуба. Nullable-поля всегда сериализуются (null), без omitempty.
type Ticket struct {
	ID          int64        `gorm:"primaryKey" json:"id"`
	Club        string       `gorm:"type:varchar(120);not null" json:"club"`
	PC          string       `gorm:"column:pc;type:varchar(120);not null" json:"pc"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Status      TicketStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Deadline    *time.Time   `gorm:"column:deadline" json:"deadline"`

	CreatedAt time.Time  `gorm:"not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`

	TGChatID    *string `gorm:"column:tg_chat_id" json:"tg_chat_id"`
	TGMessageID *int64  `gorm:"column:tg_message_id" json:"tg_message_id"`
}

func (Ticket) TableName() string { return "tickets" }

// AfterFind приводит времена к UTC: pgx отдаёт timestamptz в time.Local.
func (t *Ticket) AfterFind(*gorm.DB) error {
	t.normalizeTimes()
	return nil
}

func (t *Ticket) normalizeTimes() {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = utcPtr(t.UpdatedAt)
	t.Deadline = utcPtr(t.Deadline)
}

func utcPtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	u := v.UTC()
	return &u
}

// HasMessage reports whether a Telegram card was delivered for the ticket.
func (t *Ticket) HasMessage() bool {
	return t.TGChatID != nil && *t.TGChatID != "" && t.TGMessageID != nil && *t.TGMessageID != 0
}

// Overdue reports whether the deadline is set and already passed at now.
func (t *Ticket) Overdue(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now) && t.Status != TicketStatusDone
}

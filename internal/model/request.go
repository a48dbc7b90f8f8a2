package model

import "time"

// NewTicket — входные данные для создания заявки (до валидации).
type NewTicket struct {
	Club        string
	PC          string
	Description string
	Status      string
	Deadline    *time.Time
}

// TicketFilter — параметры выборки списка заявок.
type TicketFilter struct {
	Status string
	Club   string
	Days   int
	Limit  int
}

// OptionalTime distinguishes "field absent" from "explicitly null".
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// TicketPatch — частичное обновление; nil означает "не менять".
type TicketPatch struct {
	Status      *string
	Club        *string
	PC          *string
	Description *string
	Deadline    OptionalTime
}

// Empty reports whether the patch changes nothing.
func (p TicketPatch) Empty() bool {
	return p.Status == nil && p.Club == nil && p.PC == nil && p.Description == nil && !p.Deadline.Set
}

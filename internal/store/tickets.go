package store

import (
	"context"
	"time"
)

// Ticket statuses and priorities. Free-form strings in the DB; these are
// the values the ticketing agent is instructed to use.
const (
	TicketStatusOpen       = "open"
	TicketStatusInProgress = "in_progress"
	TicketStatusResolved   = "resolved"

	TicketPriorityLow    = "low"
	TicketPriorityMedium = "medium"
	TicketPriorityHigh   = "high"
)

// Ticket is one support ticket raised on behalf of a customer.
type Ticket struct {
	ID         int64
	Issue      string
	Priority   string
	Status     string
	AssignedTo string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TicketUpdate holds optional field changes for UpdateTicket.
// Nil fields are left untouched.
type TicketUpdate struct {
	Issue      *string
	Priority   *string
	Status     *string
	AssignedTo *string
}

// TicketStore manages support tickets.
type TicketStore interface {
	CreateTicket(ctx context.Context, issue, priority string) (*Ticket, error)
	GetTicket(ctx context.Context, id int64) (*Ticket, error)
	UpdateTicket(ctx context.Context, id int64, upd TicketUpdate) error
	// ListTickets returns tickets filtered by status; empty status = all.
	ListTickets(ctx context.Context, status string) ([]Ticket, error)
}

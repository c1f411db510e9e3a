package store

import (
	"context"
	"errors"
	"time"
)

// MessageStatus is the lifecycle state of a queued inbound message.
// There is no terminal "done" state: successfully processed messages
// are deleted from the queue.
type MessageStatus string

const (
	StatusNew        MessageStatus = "new"
	StatusProcessing MessageStatus = "processing"
	StatusFailed     MessageStatus = "failed"
)

// ErrNoMessages is returned by ClaimNext when the queue has no claimable rows.
var ErrNoMessages = errors.New("no messages available")

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// IncomingMessage is one raw inbound payload queued for processing.
// Payload is the untouched channel update (e.g. Telegram update JSON);
// the worker owns all parsing.
type IncomingMessage struct {
	ID        int64
	Payload   string
	Status    MessageStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageStore is the durable inbound queue.
//
// ClaimNext is the only operation with a locking contract: it must atomically
// select the oldest "new" message and flip it to "processing" such that no two
// concurrent callers ever claim the same row.
type MessageStore interface {
	// Enqueue inserts a raw payload with status "new" and returns its id.
	Enqueue(ctx context.Context, payload string) (int64, error)

	// ClaimNext atomically claims the oldest "new" message (FIFO by
	// created_at, id as tiebreak) and returns it with status already set
	// to "processing". Returns ErrNoMessages when nothing is claimable.
	ClaimNext(ctx context.Context) (*IncomingMessage, error)

	// Get re-fetches a message by id. Used by the worker to re-attach a
	// claimed message outside the claim transaction.
	Get(ctx context.Context, id int64) (*IncomingMessage, error)

	// Delete removes a message permanently (the success path).
	Delete(ctx context.Context, id int64) error

	// MarkFailed sets status to "failed". Failed rows are never re-claimed
	// by ClaimNext; remediation goes through Requeue.
	MarkFailed(ctx context.Context, id int64) error

	// Requeue flips a failed message back to "new" for another attempt.
	Requeue(ctx context.Context, id int64) error

	// ListByStatus returns up to limit messages in the given status,
	// oldest first.
	ListByStatus(ctx context.Context, status MessageStatus, limit int) ([]IncomingMessage, error)
}

package store

import (
	"context"
	"time"
)

// Customer is one end-user, keyed by their channel chat id.
// ConversationHistory is the legacy append-only text buffer
// ("[Name at time]: text\n" lines); ConversationSummary is the rolling
// condensation that replaces it once it grows past the worker threshold.
type Customer struct {
	ID                  int64
	ChatID              string
	Name                string
	ConversationHistory string
	ConversationSummary string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CustomerStore manages customer records.
type CustomerStore interface {
	// GetOrCreate looks up a customer by chat id, inserting a new record
	// with the given display name on first contact. Safe to call
	// concurrently for the same chat id: exactly one row results.
	GetOrCreate(ctx context.Context, chatID, name string) (*Customer, error)

	// Get fetches by primary key. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*Customer, error)

	// GetByChatID fetches by channel chat id. Returns ErrNotFound if absent.
	GetByChatID(ctx context.Context, chatID string) (*Customer, error)

	// AppendHistory concatenates a formatted line onto the history buffer.
	AppendHistory(ctx context.Context, id int64, line string) error

	// ReplaceSummary stores a new rolling summary and clears the history
	// buffer in the same write.
	ReplaceSummary(ctx context.Context, id int64, summary string) error

	// List returns all customers, oldest first.
	List(ctx context.Context) ([]Customer, error)
}

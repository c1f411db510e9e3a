package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

// CustomerStore implements store.CustomerStore on SQLite.
type CustomerStore struct {
	db *sql.DB
}

func NewCustomerStore(db *sql.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

// GetOrCreate relies on the UNIQUE constraint on chat_id: the insert is a
// no-op when the row already exists, and the reselect returns whichever
// insert won.
func (s *CustomerStore) GetOrCreate(ctx context.Context, chatID, name string) (*store.Customer, error) {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (chat_id, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO NOTHING`,
		chatID, name, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return s.GetByChatID(ctx, chatID)
}

func (s *CustomerStore) Get(ctx context.Context, id int64) (*store.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, name, conversation_history, conversation_summary, created_at, updated_at
		 FROM customers WHERE id = ?`, id,
	)
	return scanCustomer(row)
}

func (s *CustomerStore) GetByChatID(ctx context.Context, chatID string) (*store.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, name, conversation_history, conversation_summary, created_at, updated_at
		 FROM customers WHERE chat_id = ?`, chatID,
	)
	return scanCustomer(row)
}

func (s *CustomerStore) AppendHistory(ctx context.Context, id int64, line string) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers
		 SET conversation_history = conversation_history || ?, updated_at = ?
		 WHERE id = ?`,
		line, now, id,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *CustomerStore) ReplaceSummary(ctx context.Context, id int64, summary string) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers
		 SET conversation_summary = ?, conversation_history = '', updated_at = ?
		 WHERE id = ?`,
		summary, now, id,
	)
	if err != nil {
		return fmt.Errorf("replace summary: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *CustomerStore) List(ctx context.Context) ([]store.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, name, conversation_history, conversation_summary, created_at, updated_at
		 FROM customers ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []store.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func scanCustomer(row rowScanner) (*store.Customer, error) {
	var c store.Customer
	var name sql.NullString
	var created, updated int64
	err := row.Scan(&c.ID, &c.ChatID, &name, &c.ConversationHistory, &c.ConversationSummary, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	c.Name = name.String
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return &c, nil
}

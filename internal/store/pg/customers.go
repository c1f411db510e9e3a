package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

// CustomerStore implements store.CustomerStore on Postgres.
type CustomerStore struct {
	db *sql.DB
}

func NewCustomerStore(db *sql.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

func (s *CustomerStore) GetOrCreate(ctx context.Context, chatID, name string) (*store.Customer, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (chat_id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chat_id) DO NOTHING`,
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
		 FROM customers WHERE id = $1`, id,
	)
	return scanCustomer(row)
}

func (s *CustomerStore) GetByChatID(ctx context.Context, chatID string) (*store.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, name, conversation_history, conversation_summary, created_at, updated_at
		 FROM customers WHERE chat_id = $1`, chatID,
	)
	return scanCustomer(row)
}

func (s *CustomerStore) AppendHistory(ctx context.Context, id int64, line string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers
		 SET conversation_history = conversation_history || $1, updated_at = now()
		 WHERE id = $2`,
		line, id,
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE customers
		 SET conversation_summary = $1, conversation_history = '', updated_at = now()
		 WHERE id = $2`,
		summary, id,
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
	err := row.Scan(&c.ID, &c.ChatID, &name, &c.ConversationHistory, &c.ConversationSummary, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	c.Name = name.String
	return &c, nil
}

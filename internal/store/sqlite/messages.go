package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

// MessageStore implements store.MessageStore on SQLite.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Enqueue(ctx context.Context, payload string) (int64, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO incoming_messages (payload, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		payload, store.StatusNew, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue message: %w", err)
	}
	return res.LastInsertId()
}

// ClaimNext flips the oldest "new" row to "processing" in one UPDATE.
// SQLite serializes writers, so the guarded subselect cannot hand the same
// row to two callers: the second UPDATE re-evaluates after the first commits
// and picks the next row (or matches nothing).
func (s *MessageStore) ClaimNext(ctx context.Context) (*store.IncomingMessage, error) {
	now := time.Now().Unix()
	row := s.db.QueryRowContext(ctx,
		`UPDATE incoming_messages
		 SET status = ?, updated_at = ?
		 WHERE id = (
			SELECT id FROM incoming_messages
			WHERE status = ?
			ORDER BY created_at, id
			LIMIT 1
		 ) AND status = ?
		 RETURNING id, payload, status, created_at, updated_at`,
		store.StatusProcessing, now, store.StatusNew, store.StatusNew,
	)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoMessages
		}
		return nil, fmt.Errorf("claim message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) Get(ctx context.Context, id int64) (*store.IncomingMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, payload, status, created_at, updated_at
		 FROM incoming_messages WHERE id = ?`, id,
	)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM incoming_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *MessageStore) MarkFailed(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, store.StatusFailed)
}

func (s *MessageStore) Requeue(ctx context.Context, id int64) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE incoming_messages SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		store.StatusNew, now, id, store.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("requeue message: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MessageStore) ListByStatus(ctx context.Context, status store.MessageStatus, limit int) ([]store.IncomingMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, status, created_at, updated_at
		 FROM incoming_messages WHERE status = ?
		 ORDER BY created_at, id LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []store.IncomingMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func (s *MessageStore) setStatus(ctx context.Context, id int64, status store.MessageStatus) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE incoming_messages SET status = ?, updated_at = ? WHERE id = ?`,
		status, now, id,
	)
	if err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.IncomingMessage, error) {
	var msg store.IncomingMessage
	var created, updated int64
	if err := row.Scan(&msg.ID, &msg.Payload, &msg.Status, &created, &updated); err != nil {
		return nil, err
	}
	msg.CreatedAt = time.Unix(created, 0)
	msg.UpdatedAt = time.Unix(updated, 0)
	return &msg, nil
}

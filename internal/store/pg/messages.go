package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

// MessageStore implements store.MessageStore on Postgres.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Enqueue(ctx context.Context, payload string) (int64, error) {
	now := time.Now()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO incoming_messages (payload, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		payload, store.StatusNew, now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue message: %w", err)
	}
	return id, nil
}

// ClaimNext claims the oldest "new" row with FOR UPDATE SKIP LOCKED, so
// concurrent workers never block on, or double-claim, the same row.
func (s *MessageStore) ClaimNext(ctx context.Context) (*store.IncomingMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE incoming_messages
		 SET status = $1, updated_at = now()
		 WHERE id = (
			SELECT id FROM incoming_messages
			WHERE status = $2
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, payload, status, created_at, updated_at`,
		store.StatusProcessing, store.StatusNew,
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
		 FROM incoming_messages WHERE id = $1`, id,
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
	_, err := s.db.ExecContext(ctx, `DELETE FROM incoming_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *MessageStore) MarkFailed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE incoming_messages SET status = $1, updated_at = now() WHERE id = $2`,
		store.StatusFailed, id,
	)
	if err != nil {
		return fmt.Errorf("mark message failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MessageStore) Requeue(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE incoming_messages SET status = $1, updated_at = now()
		 WHERE id = $2 AND status = $3`,
		store.StatusNew, id, store.StatusFailed,
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
		 FROM incoming_messages WHERE status = $1
		 ORDER BY created_at, id LIMIT $2`,
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.IncomingMessage, error) {
	var msg store.IncomingMessage
	if err := row.Scan(&msg.ID, &msg.Payload, &msg.Status, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
		return nil, err
	}
	return &msg, nil
}

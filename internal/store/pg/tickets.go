package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

// TicketStore implements store.TicketStore on Postgres.
type TicketStore struct {
	db *sql.DB
}

func NewTicketStore(db *sql.DB) *TicketStore {
	return &TicketStore{db: db}
}

func (s *TicketStore) CreateTicket(ctx context.Context, issue, priority string) (*store.Ticket, error) {
	if priority == "" {
		priority = store.TicketPriorityMedium
	}
	now := time.Now()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tickets (issue, priority, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		issue, priority, store.TicketStatusOpen, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return s.GetTicket(ctx, id)
}

func (s *TicketStore) GetTicket(ctx context.Context, id int64) (*store.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, issue, priority, status, assigned_to, created_at, updated_at
		 FROM tickets WHERE id = $1`, id,
	)
	return scanTicket(row)
}

func (s *TicketStore) UpdateTicket(ctx context.Context, id int64, upd store.TicketUpdate) error {
	var sets []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Issue != nil {
		sets = append(sets, "issue = "+arg(*upd.Issue))
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = "+arg(*upd.Priority))
	}
	if upd.Status != nil {
		sets = append(sets, "status = "+arg(*upd.Status))
	}
	if upd.AssignedTo != nil {
		sets = append(sets, "assigned_to = "+arg(*upd.AssignedTo))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")

	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET `+strings.Join(sets, ", ")+` WHERE id = `+arg(id), args...,
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *TicketStore) ListTickets(ctx context.Context, status string) ([]store.Ticket, error) {
	query := `SELECT id, issue, priority, status, assigned_to, created_at, updated_at FROM tickets`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []store.Ticket
	for rows.Next() {
		tk, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *tk)
	}
	return tickets, rows.Err()
}

func scanTicket(row rowScanner) (*store.Ticket, error) {
	var tk store.Ticket
	err := row.Scan(&tk.ID, &tk.Issue, &tk.Priority, &tk.Status, &tk.AssignedTo, &tk.CreatedAt, &tk.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	return &tk, nil
}

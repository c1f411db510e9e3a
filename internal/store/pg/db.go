// Package pg implements the store interfaces on Postgres (managed mode).
package pg

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/kakak/internal/store"
)

// Open creates all Postgres-backed stores from one connection pool.
// Schema is managed by `kakak migrate`, not here.
func Open(dsn string) (*store.Stores, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &store.Stores{
		Messages:  NewMessageStore(db),
		Customers: NewCustomerStore(db),
		Tickets:   NewTicketStore(db),
	}, nil
}

// OpenDB opens a pgx-backed *sql.DB and verifies connectivity.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

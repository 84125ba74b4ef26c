// Package repository implements the PostgreSQL-backed subscription ledger
// and the exercise catalog store. The ledger is a versioned key-value
// store keyed by user uid: every write carries the version the caller
// read, and a mismatch is reported as ErrVersionConflict so the caller
// can re-read and recompute its transition.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// pgx driver registration for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrSubscriptionNotFound means the user never started a payment
	// attempt. Callers treat it as a valid non-entitled state.
	ErrSubscriptionNotFound = errors.New("subscription record not found")
	// ErrVersionConflict means a concurrent transition won the write race.
	ErrVersionConflict = errors.New("subscription version conflict")
	// ErrDuplicateEvent means the payment idempotency key was applied before.
	ErrDuplicateEvent = errors.New("payment event already applied")
)

// Storage encapsulates the PostgreSQL connection.
type Storage struct {
	DB *sql.DB
}

// New opens a connection to PostgreSQL and verifies it with a ping.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady verifies that the schema is in place.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table subscriptions missing or query error: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// NextOrderCode allocates the next sequential order code. The increment
// runs as a single UPDATE so concurrent submissions never see the same
// value; codes are strictly increasing.
func (s *Store) NextOrderCode(ctx context.Context) (int64, error) {
	var code int64
	err := s.db.GetContext(ctx, &code,
		"UPDATE counters SET value = value + 1 WHERE name = 'order_code' RETURNING value")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate order code: %w", err)
	}
	return code, nil
}

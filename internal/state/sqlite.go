// Package state records verification runs and their violations in SQLite
// so results can be compared over time.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DefaultPath is where the history database lives unless configured otherwise.
const DefaultPath = ".leapdc/history.db"

// Store persists runs in a SQLite database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a new store instance.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens the database at path and applies migrations.
// Use ":memory:" for an in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	s := NewStore(logger)
	if err := s.Open(ctx, path); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database.
func (s *Store) Open(ctx context.Context, path string) error {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened history database", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

func generateID() string {
	return uuid.New().String()
}

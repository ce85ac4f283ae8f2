// SPDX-License-Identifier: MIT

// Package store owns all durable records: messages, aircraft tracking
// snapshots, recordings, transcriptions, EAMs, photos, registration
// lookups, settings and daily statistics. Every write is a single
// transaction; WAL mode keeps readers unblocked.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/airwaveio/airwave/internal/log"
	"github.com/rs/zerolog"
)

// timeLayout is fixed-width UTC so stored timestamps compare
// lexicographically in SQL.
const timeLayout = "2006-01-02T15:04:05.000Z"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// Config defines SQLite operational parameters.
type Config struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended pool configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
	}
}

// Store wraps the SQLite connection pool.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open initializes the connection pool with mandatory PRAGMAs and creates
// the schema. Schema-initialization errors are fatal at boot.
func Open(cfg Config) (*Store, error) {
	// PRAGMAs go into the DSN so they apply to every connection in the pool.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}

	s := &Store{db: db, logger: log.WithComponent("store")}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: schema init failed: %w", err)
	}
	return s, nil
}

// Close flushes the WAL and closes the pool.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB exposes the underlying pool for tests.
func (s *Store) DB() *sql.DB { return s.db }

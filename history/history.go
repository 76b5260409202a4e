// Package history persists run records for executed tasks in a SQLite
// database, so embedders can inspect past runs.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed (or cancelled) task run.
type Record struct {
	ID        string
	Entry     string
	Outcome   string
	Fault     string
	Steps     int
	StartedAt time.Time
	Duration  time.Duration

	// HotFunctions is a comma-separated list of functions the profiler
	// marked hot during the run, empty when none crossed the threshold.
	HotFunctions string
}

// Store handles SQLite storage for run records.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) a run-history database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}

	// Busy timeout for concurrent access.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		entry TEXT NOT NULL,
		outcome TEXT NOT NULL,
		fault TEXT,
		steps INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		hot_functions TEXT
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists a run record.
func (s *Store) Save(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs (id, entry, outcome, fault, steps, started_at, duration_ms, hot_functions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Entry, r.Outcome, r.Fault, r.Steps, r.StartedAt.UTC(),
		r.Duration.Milliseconds(), r.HotFunctions,
	)
	if err != nil {
		return fmt.Errorf("history: saving run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit run records, most recent first.
func (s *Store) Recent(limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, entry, outcome, fault, steps, started_at, duration_ms, hot_functions
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: querying runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.Entry, &r.Outcome, &r.Fault, &r.Steps,
			&r.StartedAt, &durationMs, &r.HotFunctions); err != nil {
			return nil, fmt.Errorf("history: scanning run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: reading runs: %w", err)
	}
	return records, nil
}

// Package storage persists qualified gap events and scanned dates in SQLite,
// and writes the dashboard cache record to a JSON file.
//
// Events are stored as JSON payloads keyed by (ticker, date) so re-scanning a
// date replaces its events instead of duplicating them. Dates that finished
// scanning are recorded so later runs only fetch what is missing.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Traderyo93/gapdash/internal/models"
)

const memoryDSN = ":memory:"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gap_events (
		ticker     TEXT    NOT NULL,
		date       TEXT    NOT NULL,
		gap_pct    REAL    NOT NULL,
		payload    TEXT    NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (ticker, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gap_events_date ON gap_events(date)`,
	`CREATE TABLE IF NOT EXISTS scanned_dates (
		date       TEXT    PRIMARY KEY,
		candidates INTEGER NOT NULL,
		qualified  INTEGER NOT NULL,
		scanned_at INTEGER NOT NULL
	)`,
}

// Storage is the SQLite-backed event history.
type Storage struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath. An empty path or
// ":memory:" opens a private in-memory database.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = memoryDSN
	}
	if dbPath != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{"PRAGMA synchronous = NORMAL;", "PRAGMA busy_timeout = 5000;"}
	if dbPath != memoryDSN {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL;")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Storage{db: db}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveEvents upserts events in a single transaction.
func (s *Storage) SaveEvents(events []models.GapEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO gap_events (ticker, date, gap_pct, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET
			gap_pct = excluded.gap_pct,
			payload = excluded.payload,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i := range events {
		e := &events[i]
		if e.Ticker == "" || e.Date == "" {
			return fmt.Errorf("invalid event %q: ticker and date are required", e.Key())
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", e.Key(), err)
		}
		if _, err := stmt.Exec(e.Ticker, e.Date, e.GapPct, string(payload), now); err != nil {
			return fmt.Errorf("failed to save event %s: %w", e.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// LoadEvents returns the events whose date lies in [from, to], ordered by
// date then ticker. Empty bounds are open.
func (s *Storage) LoadEvents(from, to string) ([]models.GapEvent, error) {
	if to == "" {
		to = "9999-12-31"
	}
	rows, err := s.db.Query(`
		SELECT payload FROM gap_events
		WHERE date >= ? AND date <= ?
		ORDER BY date, ticker`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.GapEvent, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var e models.GapEvent
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// CountEvents returns the number of stored events.
func (s *Storage) CountEvents() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM gap_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// MarkScanned records that date was fully scanned.
func (s *Storage) MarkScanned(date string, candidates, qualified int) error {
	_, err := s.db.Exec(`
		INSERT INTO scanned_dates (date, candidates, qualified, scanned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			candidates = excluded.candidates,
			qualified = excluded.qualified,
			scanned_at = excluded.scanned_at`,
		date, candidates, qualified, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to mark %s scanned: %w", date, err)
	}
	return nil
}

// IsScanned reports whether date was fully scanned by an earlier run.
func (s *Storage) IsScanned(date string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scanned_dates WHERE date = ?`, date).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check scanned date %s: %w", date, err)
	}
	return n > 0, nil
}

// PruneBefore deletes events and scan records dated before date and returns
// the number of events removed.
func (s *Storage) PruneBefore(date string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM gap_events WHERE date < ?`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned events: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM scanned_dates WHERE date < ?`, date); err != nil {
		return removed, fmt.Errorf("failed to prune scanned dates: %w", err)
	}
	return removed, nil
}

// Package history persists a queryable record of every terminal rollback
// attempt in a local SQLite database. Report artifacts are the canonical
// per-run record; the history store is what lets an operator ask "how have
// rollbacks been going" without grepping a directory of JSON files.
package history

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no attempt matches the requested id.
var ErrNotFound = errors.New("history: attempt not found")

// DB wraps the attempt-history database.
type DB struct {
	db   *sql.DB
	path string
}

// Row is one persisted attempt summary.
type Row struct {
	ID              string  `json:"id"`
	Environment     string  `json:"environment"`
	Category        string  `json:"category"`
	Outcome         string  `json:"outcome"`
	FallbackUsed    bool    `json:"fallback_used"`
	DurationSeconds float64 `json:"duration_seconds"`
	RTOCompliance   string  `json:"rto_compliance"`
	StartedAt       string  `json:"started_at"`  // RFC3339
	FinishedAt      string  `json:"finished_at"` // RFC3339
}

// Open creates or opens the history database at path with WAL mode and a
// busy timeout, creating the attempts table when absent.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", p, err)
		}
	}

	ddl := `CREATE TABLE IF NOT EXISTS attempts (
		id               TEXT PRIMARY KEY,
		environment      TEXT NOT NULL,
		category         TEXT NOT NULL,
		outcome          TEXT NOT NULL,
		fallback_used    INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		rto_compliance   TEXT NOT NULL DEFAULT '',
		started_at       TEXT NOT NULL,
		finished_at      TEXT NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Record upserts one attempt row. Attempts are immutable once terminal, so
// a re-record of the same id only happens when a crashed process retries
// its final bookkeeping.
func (d *DB) Record(r Row) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO attempts
		 (id, environment, category, outcome, fallback_used, duration_seconds, rto_compliance, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Environment, r.Category, r.Outcome, r.FallbackUsed,
		r.DurationSeconds, r.RTOCompliance, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("history: record attempt: %w", err)
	}
	return nil
}

// Get returns one attempt by id.
func (d *DB) Get(id string) (Row, error) {
	var r Row
	err := d.db.QueryRow(
		`SELECT id, environment, category, outcome, fallback_used, duration_seconds, rto_compliance, started_at, finished_at
		 FROM attempts WHERE id = ?`, id,
	).Scan(&r.ID, &r.Environment, &r.Category, &r.Outcome, &r.FallbackUsed,
		&r.DurationSeconds, &r.RTOCompliance, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, fmt.Errorf("history: get attempt: %w", err)
	}
	return r, nil
}

// Recent returns up to n attempts, newest first.
func (d *DB) Recent(n int) ([]Row, error) {
	rows, err := d.db.Query(
		`SELECT id, environment, category, outcome, fallback_used, duration_seconds, rto_compliance, started_at, finished_at
		 FROM attempts ORDER BY started_at DESC, id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: list attempts: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Environment, &r.Category, &r.Outcome, &r.FallbackUsed,
			&r.DurationSeconds, &r.RTOCompliance, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("history: scan attempt: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByOutcome aggregates stored attempts per outcome.
func (d *DB) CountByOutcome() (map[string]int, error) {
	rows, err := d.db.Query(`SELECT outcome, COUNT(*) FROM attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("history: count by outcome: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("history: scan count: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

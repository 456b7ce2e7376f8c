// Package store persists probe history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pageready/internal/logging"
)

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("probe record not found")

// ProbeRecord is one persisted probe run.
type ProbeRecord struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	InitialState string    `json:"initial_state"`
	Subscribed   bool      `json:"subscribed"`
	Rechecked    bool      `json:"rechecked"`
	TimedOut     bool      `json:"timed_out"`
	Lines        []string  `json:"lines"`
	Console      []string  `json:"console,omitempty"`
	RequestCount int       `json:"request_count"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats summarizes the stored history.
type Stats struct {
	Total     int
	TimedOut  int
	Rechecked int
	AvgMs     float64
}

// HistoryStore is a concurrency-safe probe history backed by SQLite.
type HistoryStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open opens or creates the history database at path. ":memory:" is accepted.
func Open(path string) (*HistoryStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to :memory: would be a different database.
	db.SetMaxOpenConns(1)

	s := &HistoryStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("History store opened at %s", path)
	return s, nil
}

func (s *HistoryStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS probe_history (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		initial_state TEXT NOT NULL,
		subscribed INTEGER NOT NULL DEFAULT 0,
		rechecked INTEGER NOT NULL DEFAULT 0,
		timed_out INTEGER NOT NULL DEFAULT 0,
		lines_json TEXT NOT NULL DEFAULT '[]',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_probe_url ON probe_history(url);
	CREATE INDEX IF NOT EXISTS idx_probe_created ON probe_history(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := RunMigrations(s.db); err != nil {
		return err
	}
	return SetSchemaVersion(s.db, CurrentSchemaVersion)
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database path.
func (s *HistoryStore) Path() string { return s.dbPath }

// Save inserts rec, assigning an id and timestamp when missing. It returns
// the stored id.
func (s *HistoryStore) Save(ctx context.Context, rec ProbeRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Lines == nil {
		rec.Lines = []string{}
	}

	linesJSON, err := json.Marshal(rec.Lines)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lines: %w", err)
	}
	consoleJSON, err := json.Marshal(rec.Console)
	if err != nil {
		return "", fmt.Errorf("failed to marshal console: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO probe_history
			(id, url, initial_state, subscribed, rechecked, timed_out, lines_json,
			 console_json, request_count, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.InitialState, rec.Subscribed, rec.Rechecked, rec.TimedOut,
		string(linesJSON), string(consoleJSON), rec.RequestCount, rec.DurationMs, rec.Error,
		rec.CreatedAt.UTC())
	logging.Audit().StoreSave(rec.ID, err)
	if err != nil {
		logging.StoreError("Failed to save probe %s: %v", rec.ID, err)
		return "", fmt.Errorf("failed to save probe: %w", err)
	}
	logging.StoreDebug("Saved probe %s for %s", rec.ID, rec.URL)
	return rec.ID, nil
}

const selectColumns = `id, url, initial_state, subscribed, rechecked, timed_out, lines_json,
	console_json, request_count, duration_ms, error, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ProbeRecord, error) {
	var rec ProbeRecord
	var linesJSON, consoleJSON string
	var errText sql.NullString
	if err := row.Scan(&rec.ID, &rec.URL, &rec.InitialState, &rec.Subscribed, &rec.Rechecked,
		&rec.TimedOut, &linesJSON, &consoleJSON, &rec.RequestCount, &rec.DurationMs,
		&errText, &rec.CreatedAt); err != nil {
		return rec, err
	}
	rec.Error = errText.String
	if err := json.Unmarshal([]byte(linesJSON), &rec.Lines); err != nil {
		return rec, fmt.Errorf("corrupt lines for %s: %w", rec.ID, err)
	}
	if consoleJSON != "" && consoleJSON != "null" {
		if err := json.Unmarshal([]byte(consoleJSON), &rec.Console); err != nil {
			return rec, fmt.Errorf("corrupt console for %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// Get returns one record by id.
func (s *HistoryStore) Get(ctx context.Context, id string) (ProbeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM probe_history WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// Recent returns up to limit records, newest first. An empty url matches all.
func (s *HistoryStore) Recent(ctx context.Context, url string, limit int) ([]ProbeRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + selectColumns + " FROM probe_history"
	args := []any{}
	if url != "" {
		query += " WHERE url = ?"
		args = append(args, url)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []ProbeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			logging.StoreError("Skipping unreadable probe row: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats aggregates the whole history.
func (s *HistoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(timed_out), 0), COALESCE(SUM(rechecked), 0), AVG(duration_ms)
		FROM probe_history`).Scan(&st.Total, &st.TimedOut, &st.Rechecked, &avg)
	if err != nil {
		return st, fmt.Errorf("failed to compute stats: %w", err)
	}
	st.AvgMs = avg.Float64
	return st, nil
}

// Prune keeps the newest keep records and deletes the rest.
func (s *HistoryStore) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM probe_history WHERE id NOT IN (
			SELECT id FROM probe_history ORDER BY created_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("Pruned %d probe record(s), kept %d", n, keep)
	}
	return n, nil
}

// Package ledger records compile runs in SQLite, including the base divisor
// a table was rebased against, which the table itself does not store.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"divtable/internal/precompute"
)

const (
	createTables = `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			status TEXT NOT NULL,
			input_path TEXT NOT NULL,
			output_path TEXT NOT NULL,
			cache_path TEXT NOT NULL,
			threads INTEGER NOT NULL,
			div_start INTEGER NOT NULL,
			max_div INTEGER NOT NULL,
			mode TEXT NOT NULL,
			words_count INTEGER,
			fingerprint TEXT,
			records INTEGER,
			cached INTEGER,
			computed INTEGER,
			sentinel_count INTEGER,
			sentinels BLOB,
			base_div INTEGER,
			max_found INTEGER,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS runs_output ON runs (output_path, status);
	`

	dropTables = `
		DROP INDEX IF EXISTS runs_output;
		DROP TABLE IF EXISTS runs;
	`
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Ledger is a SQLite-backed log of compile runs.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and ensures its schema exists.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// InitSchema creates the runs table if it does not exist.
func (l *Ledger) InitSchema() error {
	if _, err := l.db.Exec(createTables); err != nil {
		return fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return nil
}

// ResetSchema drops every recorded run and recreates the schema.
func (l *Ledger) ResetSchema() error {
	if _, err := l.db.Exec(dropTables); err != nil {
		return fmt.Errorf("failed to drop ledger tables: %w", err)
	}
	return l.InitSchema()
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginRun records a run that is about to start and returns its ID.
func (l *Ledger) BeginRun(cfg precompute.Config) (string, error) {
	runID := uuid.New().String()

	query := `INSERT INTO runs (id, started_at, status, input_path, output_path, cache_path, threads, div_start, max_div, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.Exec(query, runID, time.Now().UTC(), StatusRunning,
		cfg.InputPath, cfg.OutputPath, cfg.CachePath,
		cfg.Threads, cfg.DivStart, cfg.MaxDivisor, cfg.Mode.String())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	return runID, nil
}

// FinishRun marks a run completed and stores its summary.
func (l *Ledger) FinishRun(runID string, s *precompute.Summary) error {
	sentinels, err := s.Sentinels.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize sentinel set: %w", err)
	}

	var base sql.NullInt64
	if s.HasBase {
		base = sql.NullInt64{Int64: int64(s.Base), Valid: true}
	}

	query := `UPDATE runs SET finished_at = ?, status = ?, words_count = ?, fingerprint = ?,
		records = ?, cached = ?, computed = ?, sentinel_count = ?, sentinels = ?, base_div = ?, max_found = ?
		WHERE id = ?`
	res, err := l.db.Exec(query, time.Now().UTC(), StatusCompleted, s.Words, fmt.Sprintf("%016x", s.Fingerprint),
		s.Records, s.Cached, s.Computed, s.Sentinels.GetCardinality(), sentinels, base, s.MaxDivisor,
		runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	return expectOneRow(res, runID)
}

// FailRun marks a run failed with the error that stopped it.
func (l *Ledger) FailRun(runID string, runErr error) error {
	query := `UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`
	res, err := l.db.Exec(query, time.Now().UTC(), StatusFailed, runErr.Error(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	return expectOneRow(res, runID)
}

func expectOneRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if n != 1 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

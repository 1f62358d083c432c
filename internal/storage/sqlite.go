package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/digest/internal/models"
)

// Ledger is a SQLite-backed record of written entries and past runs.
// It implements both the prior-state and the sink contracts of the pipeline.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func Open(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		unique_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		tags TEXT,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		author TEXT,
		date_added TEXT NOT NULL,
		notes TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		entries INTEGER NOT NULL,
		tokens INTEGER NOT NULL,
		summary TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Name identifies the ledger in publish warnings.
func (l *Ledger) Name() string {
	return "ledger"
}

// KnownIDs returns the unique ids of every entry in the ledger.
func (l *Ledger) KnownIDs(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT unique_id FROM entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// WriteEntries inserts entries in one transaction. Entries whose unique id is already
// present are ignored. It returns the number of rows actually inserted.
func (l *Ledger) WriteEntries(ctx context.Context, entries []models.Entry) (int, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO entries
		 (unique_id, title, category, tags, content, source, author, date_added, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	for _, e := range entries {
		tagsJSON, err := json.Marshal(e.Tags)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal tags: %w", err)
		}
		res, err := stmt.ExecContext(ctx,
			e.UniqueID, e.Title, e.Category, string(tagsJSON), e.Content, e.Source, e.Author, e.DateAdded, e.Notes,
		)
		if err != nil {
			return 0, fmt.Errorf("insert entry %s: %w", e.UniqueID, err)
		}
		n, _ := res.RowsAffected()
		written += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// GetEntry returns a stored entry by unique id.
func (l *Ledger) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	var e models.Entry
	var tagsJSON string
	err := l.db.QueryRowContext(ctx,
		`SELECT unique_id, title, category, tags, content, source, author, date_added, notes
		 FROM entries WHERE unique_id = ?`, id,
	).Scan(&e.UniqueID, &e.Title, &e.Category, &tagsJSON, &e.Content, &e.Source, &e.Author, &e.DateAdded, &e.Notes)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &e, nil
}

// RecordRun stores the summary of a finished run. Recording the same run id twice replaces it.
func (l *Ledger) RecordRun(ctx context.Context, s models.Summary) error {
	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	finished := s.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, source, status, entries, tokens, summary, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Document.SourceName, string(s.Status), s.EntriesKept, s.FinalTokenEstimate.Cumulative,
		string(summaryJSON), s.StartedAt, finished,
	)
	return err
}

// ListRuns returns the most recent runs first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, source, status, entries, tokens, summary, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var r RunRecord
		var status, summaryJSON string
		if err := rows.Scan(&r.ID, &r.Source, &status, &r.Entries, &r.Tokens, &summaryJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Status = models.Status(status)
		_ = json.Unmarshal([]byte(summaryJSON), &r.Summary)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// CountEntries returns the total number of stored entries.
func (l *Ledger) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS decision_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		insurer TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		violations TEXT NOT NULL DEFAULT '[]',
		ai_decision TEXT NOT NULL DEFAULT '',
		final_decision TEXT NOT NULL,
		confidence INTEGER NOT NULL DEFAULT 0,
		safety_override INTEGER NOT NULL DEFAULT 0,
		generator TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(request_id, created_at)
	);

	CREATE INDEX IF NOT EXISTS idx_decision_audit_request_id ON decision_audit(request_id);
	CREATE INDEX IF NOT EXISTS idx_decision_audit_created_at ON decision_audit(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// timestamps are stored as fixed-width RFC 3339 text so they sort and compare
// as strings.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(sqliteTimeLayout)
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteEntry(s scanner) (*Entry, error) {
	e := &Entry{}
	var violations, aiDecision, finalDecision, createdAt string

	err := s.Scan(
		&e.ID, &e.RequestID, &e.Insurer, &e.Category, &violations,
		&aiDecision, &finalDecision, &e.Confidence, &e.SafetyOverride,
		&e.Generator, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(violations), &e.Violations); err != nil {
		return nil, fmt.Errorf("failed to decode violations: %w", err)
	}
	e.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	e.AIDecision = decisionStatus(aiDecision)
	e.FinalDecision = decisionStatus(finalDecision)
	return e, nil
}

// Record appends an entry.
func (s *SQLiteStore) Record(ctx context.Context, entry Entry) error {
	entry.normalize()

	violations, err := json.Marshal(entry.Violations)
	if err != nil {
		return fmt.Errorf("failed to encode violations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_audit (
			request_id, insurer, category, violations,
			ai_decision, final_decision, confidence, safety_override,
			generator, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.RequestID,
		entry.Insurer,
		entry.Category,
		string(violations),
		string(entry.AIDecision),
		string(entry.FinalDecision),
		entry.Confidence,
		entry.SafetyOverride,
		entry.Generator,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// List returns entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, insurer, category, violations,
			ai_decision, final_decision, confidence, safety_override,
			generator, created_at
		FROM decision_audit
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Exists reports whether an entry for requestID at createdAt is stored.
func (s *SQLiteStore) Exists(ctx context.Context, requestID string, createdAt time.Time) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM decision_audit WHERE request_id = ? AND created_at = ?",
		requestID, formatTime(createdAt),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check existing: %w", err)
	}
	return count > 0, nil
}

// Count returns the total number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decision_audit").Scan(&count)
	return count, err
}

// CountOverrides returns the number of overridden decisions.
func (s *SQLiteStore) CountOverrides(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decision_audit WHERE safety_override = 1").Scan(&count)
	return count, err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL audit store.
// It expects the decision_audit table to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL audit store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Record appends an entry.
func (s *PostgresStore) Record(ctx context.Context, entry Entry) error {
	entry.normalize()

	violations, err := json.Marshal(entry.Violations)
	if err != nil {
		return fmt.Errorf("failed to encode violations: %w", err)
	}

	query := `
		INSERT INTO decision_audit (
			request_id, insurer, category, violations,
			ai_decision, final_decision, confidence, safety_override,
			generator, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.RequestID,
		entry.Insurer,
		entry.Category,
		string(violations),
		string(entry.AIDecision),
		string(entry.FinalDecision),
		entry.Confidence,
		entry.SafetyOverride,
		entry.Generator,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// List returns entries, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	query := `
		SELECT id, request_id, insurer, category, violations,
			ai_decision, final_decision, confidence, safety_override,
			generator, created_at
		FROM decision_audit
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		e := &Entry{}
		var violations []byte
		var aiDecision, finalDecision string

		err := rows.Scan(
			&e.ID, &e.RequestID, &e.Insurer, &e.Category, &violations,
			&aiDecision, &finalDecision, &e.Confidence, &e.SafetyOverride,
			&e.Generator, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(violations, &e.Violations); err != nil {
			return nil, fmt.Errorf("failed to decode violations: %w", err)
		}

		e.AIDecision = decisionStatus(aiDecision)
		e.FinalDecision = decisionStatus(finalDecision)
		e.CreatedAt = e.CreatedAt.UTC()
		result = append(result, e)
	}

	return result, rows.Err()
}

// Exists reports whether an entry for requestID at createdAt is stored.
func (s *PostgresStore) Exists(ctx context.Context, requestID string, createdAt time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM decision_audit WHERE request_id = $1 AND created_at = $2)",
		requestID, createdAt.UTC().Truncate(time.Microsecond),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing: %w", err)
	}
	return exists, nil
}

// Count returns the total number of entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decision_audit").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// CountOverrides returns the number of overridden decisions.
func (s *PostgresStore) CountOverrides(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decision_audit WHERE safety_override").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overrides: %w", err)
	}
	return count, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// SQLiteRequestStore keeps requests in an embedded SQLite file. It backs the
// MCP server and the CLI where no PostgreSQL instance is available.
type SQLiteRequestStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// fixed width so text comparison orders chronologically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// NewSQLiteRequestStore opens (and if needed creates) the store at dbPath.
func NewSQLiteRequestStore(dbPath string, logger *logrus.Logger) (*SQLiteRequestStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createRequestSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteRequestStore{db: db, log: logger}, nil
}

func createRequestSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS prior_auth_requests (
		request_id TEXT PRIMARY KEY,
		patient_info TEXT NOT NULL DEFAULT '',
		treatment TEXT NOT NULL DEFAULT '',
		insurance TEXT NOT NULL DEFAULT '',
		history TEXT NOT NULL DEFAULT '',
		provider_notes TEXT NOT NULL DEFAULT '',
		urgency TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'analyzed',
		timestamp TEXT NOT NULL,
		patient TEXT,
		treatment_analysis TEXT,
		document_data TEXT,
		decision TEXT,
		decision_reason TEXT,
		confidence_score INTEGER,
		missing_documentation TEXT,
		alternative_treatments TEXT,
		appeal_guidance TEXT,
		safety_override INTEGER,
		original_ai_decision TEXT,
		processed_timestamp TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_prior_auth_requests_status ON prior_auth_requests(status);
	CREATE INDEX IF NOT EXISTS idx_prior_auth_requests_timestamp ON prior_auth_requests(timestamp);
	`

	_, err := db.Exec(schema)
	return err
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// Create inserts a new request.
func (s *SQLiteRequestStore) Create(ctx context.Context, req *domain.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	docs, err := encodeDocuments(req)
	if err != nil {
		return err
	}
	status := req.Status
	if status == "" {
		status = domain.StatusAnalyzed
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prior_auth_requests (
			request_id, patient_info, treatment, insurance, history, provider_notes,
			urgency, status, timestamp, patient, treatment_analysis, document_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID,
		req.PatientInfo,
		req.Treatment,
		req.Insurance,
		req.History,
		req.ProviderNotes,
		req.Urgency,
		string(status),
		req.Timestamp.UTC().Format(sqliteTimeLayout),
		nullableText(docs.patient),
		nullableText(docs.analysis),
		nullableText(docs.document),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	s.log.WithFields(logrus.Fields(req.LogFields())).Debug("Request created")
	return nil
}

// Get retrieves a request by id.
func (s *SQLiteRequestStore) Get(ctx context.Context, id string) (*domain.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+`
		FROM prior_auth_requests
		WHERE request_id = ?`, id)

	req, err := scanSQLiteRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return req, nil
}

// UpdateDecision writes every decision field and marks the request processed.
func (s *SQLiteRequestStore) UpdateDecision(ctx context.Context, id string, update domain.DecisionUpdate) error {
	values, err := encodeDecision(update.Decision)
	if err != nil {
		return err
	}

	args := append(values, update.ProcessedAt.UTC().Format(sqliteTimeLayout), id)
	result, err := s.db.ExecContext(ctx, `
		UPDATE prior_auth_requests
		SET status = 'processed',
			decision = ?, decision_reason = ?, confidence_score = ?,
			missing_documentation = ?, alternative_treatments = ?,
			appeal_guidance = ?, safety_override = ?, original_ai_decision = ?,
			processed_timestamp = ?
		WHERE request_id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("updating decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating decision: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByStatus returns requests in the given status, newest first.
func (s *SQLiteRequestStore) ListByStatus(ctx context.Context, status domain.RequestStatus, limit int) ([]*domain.Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+`
		FROM prior_auth_requests
		WHERE status = ?
		ORDER BY timestamp DESC
		LIMIT ?`, string(status), listLimit(limit))
}

// ListRecent returns the most recent requests.
func (s *SQLiteRequestStore) ListRecent(ctx context.Context, limit int) ([]*domain.Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+`
		FROM prior_auth_requests
		ORDER BY timestamp DESC
		LIMIT ?`, listLimit(limit))
}

func (s *SQLiteRequestStore) list(ctx context.Context, query string, args ...any) ([]*domain.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	requests := []*domain.Request{}
	for rows.Next() {
		req, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request row: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Health pings the database.
func (s *SQLiteRequestStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteRequestStore) Close() error {
	return s.db.Close()
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteRequest(row scanner) (*domain.Request, error) {
	var req domain.Request
	var status, timestamp string
	var processedAt *string
	var docs requestDocuments
	var dc decisionColumns

	err := row.Scan(
		&req.ID,
		&req.PatientInfo,
		&req.Treatment,
		&req.Insurance,
		&req.History,
		&req.ProviderNotes,
		&req.Urgency,
		&status,
		&timestamp,
		&docs.patient,
		&docs.analysis,
		&docs.document,
		&dc.decision,
		&dc.reason,
		&dc.confidence,
		&dc.missing,
		&dc.alternatives,
		&dc.appeal,
		&dc.safetyOverride,
		&dc.original,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = domain.RequestStatus(status)
	if req.Timestamp, err = time.Parse(sqliteTimeLayout, timestamp); err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	if processedAt != nil {
		t, err := time.Parse(sqliteTimeLayout, *processedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing processed timestamp: %w", err)
		}
		req.ProcessedAt = &t
	}
	if err := docs.decodeInto(&req); err != nil {
		return nil, err
	}
	if req.Decision, err = dc.toDecision(); err != nil {
		return nil, err
	}
	return &req, nil
}

var (
	_ domain.RequestStore = (*SQLiteRequestStore)(nil)
	_ domain.RequestStore = (*RequestRepository)(nil)
)

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// RequestRepository handles prior-authorization request persistence in
// PostgreSQL.
type RequestRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *pgxpool.Pool, logger *logrus.Logger) *RequestRepository {
	return &RequestRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new request into the database
func (r *RequestRepository) Create(ctx context.Context, req *domain.Request) error {
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

	query := `
		INSERT INTO prior_auth_requests (
			request_id, patient_info, treatment, insurance, history, provider_notes,
			urgency, status, timestamp, patient, treatment_analysis, document_data
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err = r.db.Exec(ctx, query,
		req.ID,
		req.PatientInfo,
		req.Treatment,
		req.Insurance,
		req.History,
		req.ProviderNotes,
		req.Urgency,
		string(status),
		req.Timestamp.UTC(),
		docs.patient,
		docs.analysis,
		docs.document,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": req.ID,
			"error":      err,
		}).Error("Failed to create request")
		return fmt.Errorf("creating request: %w", err)
	}

	r.log.WithFields(logrus.Fields(req.LogFields())).Info("Request created successfully")
	return nil
}

// Get retrieves a request by its id
func (r *RequestRepository) Get(ctx context.Context, id string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM prior_auth_requests
		WHERE request_id = $1`

	req, err := scanPgRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"request_id": id,
			"error":      err,
		}).Error("Failed to get request")
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return req, nil
}

// UpdateDecision writes every decision field and marks the request processed.
func (r *RequestRepository) UpdateDecision(ctx context.Context, id string, update domain.DecisionUpdate) error {
	values, err := encodeDecision(update.Decision)
	if err != nil {
		return err
	}

	query := `
		UPDATE prior_auth_requests
		SET status = 'processed',
			decision = $2, decision_reason = $3, confidence_score = $4,
			missing_documentation = $5, alternative_treatments = $6,
			appeal_guidance = $7, safety_override = $8, original_ai_decision = $9,
			processed_timestamp = $10
		WHERE request_id = $1`

	args := append([]any{id}, values...)
	args = append(args, update.ProcessedAt.UTC())

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": id,
			"error":      err,
		}).Error("Failed to update decision")
		return fmt.Errorf("updating decision: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"request_id":      id,
		"decision":        string(update.Decision.Decision),
		"safety_override": update.Decision.SafetyOverride,
	}).Info("Decision stored")
	return nil
}

// ListByStatus returns requests in the given status, newest first.
func (r *RequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus, limit int) ([]*domain.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM prior_auth_requests
		WHERE status = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	return r.list(ctx, query, string(status), listLimit(limit))
}

// ListRecent returns the most recent requests.
func (r *RequestRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM prior_auth_requests
		ORDER BY timestamp DESC
		LIMIT $1`

	return r.list(ctx, query, listLimit(limit))
}

func (r *RequestRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Request, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.WithError(err).Error("Failed to list requests")
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	requests := []*domain.Request{}
	for rows.Next() {
		req, err := scanPgRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request row: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating request rows: %w", err)
	}
	return requests, nil
}

// Health pings the pool.
func (r *RequestRepository) Health(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanPgRequest(row pgx.Row) (*domain.Request, error) {
	var req domain.Request
	var status string
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
		&req.Timestamp,
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
		&req.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = domain.RequestStatus(status)
	req.Timestamp = req.Timestamp.UTC()
	req.ProcessedAt = utcPtr(req.ProcessedAt)
	if err := docs.decodeInto(&req); err != nil {
		return nil, err
	}
	if req.Decision, err = dc.toDecision(); err != nil {
		return nil, err
	}
	return &req, nil
}

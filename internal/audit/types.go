// Package audit records one entry per processed prior-authorization decision
// so overrides of the generated decision can be reviewed later.
package audit

import (
	"context"
	"io"
	"time"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

// Entry is one processed decision.
type Entry struct {
	ID             int64                 `json:"id,omitempty"`
	RequestID      string                `json:"request_id"`
	Insurer        string                `json:"insurer"`
	Category       string                `json:"category"`
	Violations     []string              `json:"violations"`
	AIDecision     domain.DecisionStatus `json:"ai_decision"`
	FinalDecision  domain.DecisionStatus `json:"final_decision"`
	Confidence     int                   `json:"confidence"`
	SafetyOverride bool                  `json:"safety_override"`
	Generator      string                `json:"generator"`
	CreatedAt      time.Time             `json:"created_at"`
}

// normalize prepares an entry for storage. Timestamps are kept in UTC at
// microsecond precision so they survive a round trip through PostgreSQL and
// a JSON export unchanged.
func (e *Entry) normalize() {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	if e.Violations == nil {
		e.Violations = []string{}
	}
}

// Store defines the interface for audit storage operations.
type Store interface {
	// Record appends an entry.
	Record(ctx context.Context, entry Entry) error

	// List returns entries, newest first.
	List(ctx context.Context, limit, offset int) ([]*Entry, error)

	// Exists reports whether an entry for requestID at createdAt is stored.
	Exists(ctx context.Context, requestID string, createdAt time.Time) (bool, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	// CountOverrides returns the number of entries where the safety override fired.
	CountOverrides(ctx context.Context) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Entries    []*Entry  `json:"entries"`
}

// Exporter writes the audit trail to w and returns the number of entries.
type Exporter func(ctx context.Context, store Store, w io.Writer) (int, error)

func decisionStatus(raw string) domain.DecisionStatus {
	return domain.DecisionStatus(raw)
}

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ExecutionRecord is the persisted form of one pipeline attempt.
type ExecutionRecord struct {
	ID          string           `json:"id"`
	Opportunity Opportunity      `json:"opportunity"`
	Simulation  SimulationResult `json:"simulation"`
	Result      ExecutionResult  `json:"result"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ExecutionStore persists execution attempts for audit and PnL.
type ExecutionStore interface {
	Create(ctx context.Context, rec ExecutionRecord) error
	GetByID(ctx context.Context, id string) (ExecutionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]ExecutionRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]ExecutionRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	SumPnL(ctx context.Context, since time.Time) (float64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ResultSink receives finished execution records off the hot path.
type ResultSink interface {
	Handle(ctx context.Context, rec ExecutionRecord) error
}

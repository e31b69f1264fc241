package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore. Hot columns are stored
// flat for querying; the full opportunity, simulation and result are kept as
// JSONB.
type ExecutionStore struct {
	db DB
}

// NewExecutionStore creates an ExecutionStore.
func NewExecutionStore(db DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

const executionColumns = `id, opportunity, simulation, result, created_at`

// Create inserts one execution record. Re-inserting an id is a no-op.
func (s *ExecutionStore) Create(ctx context.Context, rec domain.ExecutionRecord) error {
	opp, err := json.Marshal(rec.Opportunity)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity: %w", err)
	}
	sim, err := json.Marshal(rec.Simulation)
	if err != nil {
		return fmt.Errorf("postgres: marshal simulation: %w", err)
	}
	res, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("postgres: marshal result: %w", err)
	}

	var signature *string
	if rec.Result.Signature != "" {
		signature = &rec.Result.Signature
	}
	var landedSlot *int64
	if rec.Result.LandedSlot != nil {
		v := int64(*rec.Result.LandedSlot)
		landedSlot = &v
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO executions (id, opportunity_id, strategy, kind, signature, outcome, success, landing_mode,
			profit_usd, fee_paid_lamports, tip_lamports, latency_ms, landed_slot, opportunity, simulation, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Opportunity.ID, rec.Opportunity.Strategy, string(rec.Opportunity.Kind), signature,
		string(rec.Result.Outcome), rec.Result.Success, string(rec.Result.LandingMode),
		rec.Result.ProfitUSD, int64(rec.Result.FeePaidLamports), int64(rec.Result.TipLamports), rec.Result.LatencyMs,
		landedSlot, opp, sim, res, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", rec.ID, err)
	}
	return nil
}

// Handle implements domain.ResultSink.
func (s *ExecutionStore) Handle(ctx context.Context, rec domain.ExecutionRecord) error {
	return s.Create(ctx, rec)
}

// GetByID returns one record or domain.ErrNotFound.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)
	rec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionRecord{}, domain.ErrNotFound
		}
		return domain.ExecutionRecord{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns the newest records first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx, `SELECT `+executionColumns+` FROM executions ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListBefore returns records created strictly before the cutoff, oldest
// first.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionRecord, error) {
	return s.list(ctx, `SELECT `+executionColumns+` FROM executions WHERE created_at < $1 ORDER BY created_at`, before)
}

// DeleteBefore removes records created strictly before the cutoff.
func (s *ExecutionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM executions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete executions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SumPnL totals realized profit of executions since the given time.
func (s *ExecutionStore) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(profit_usd), 0) FROM executions WHERE created_at >= $1`,
		since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum pnl: %w", err)
	}
	return total, nil
}

func (s *ExecutionStore) list(ctx context.Context, query string, args ...any) ([]domain.ExecutionRecord, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var out []domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list executions rows: %w", err)
	}
	return out, nil
}

func scanExecution(row pgx.Row) (domain.ExecutionRecord, error) {
	var (
		rec           domain.ExecutionRecord
		opp, sim, res []byte
	)
	if err := row.Scan(&rec.ID, &opp, &sim, &res, &rec.CreatedAt); err != nil {
		return domain.ExecutionRecord{}, err
	}
	if err := json.Unmarshal(opp, &rec.Opportunity); err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("opportunity: %w", err)
	}
	if err := json.Unmarshal(sim, &rec.Simulation); err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("simulation: %w", err)
	}
	if err := json.Unmarshal(res, &rec.Result); err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("result: %w", err)
	}
	return rec, nil
}

var (
	_ domain.ExecutionStore = (*ExecutionStore)(nil)
	_ domain.ResultSink     = (*ExecutionStore)(nil)
)

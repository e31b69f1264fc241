package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

const riskSnapshotKey = keyPrefix + "risk:snapshot"

// RiskStateStore persists the risk snapshot as one JSON value. Snapshots
// expire after ttl so a long-dead deployment does not resurrect stale daily
// stats; an active kill switch is re-saved on every change.
type RiskStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRiskStateStore creates a store. A zero ttl keeps snapshots forever.
func NewRiskStateStore(c *Client, ttl time.Duration) *RiskStateStore {
	return &RiskStateStore{rdb: c.Underlying(), ttl: ttl}
}

// SaveRiskSnapshot implements domain.RiskStateStore.
func (s *RiskStateStore) SaveRiskSnapshot(ctx context.Context, snap domain.RiskSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal risk snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, riskSnapshotKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save risk snapshot: %w", err)
	}
	return nil
}

// LoadRiskSnapshot implements domain.RiskStateStore.
func (s *RiskStateStore) LoadRiskSnapshot(ctx context.Context) (domain.RiskSnapshot, error) {
	data, err := s.rdb.Get(ctx, riskSnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.RiskSnapshot{}, domain.ErrNotFound
		}
		return domain.RiskSnapshot{}, fmt.Errorf("redis: load risk snapshot: %w", err)
	}
	var snap domain.RiskSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("redis: decode risk snapshot: %w", err)
	}
	return snap, nil
}

var _ domain.RiskStateStore = (*RiskStateStore)(nil)

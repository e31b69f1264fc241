package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RiskStateStore persists the risk manager's daily state across restarts.
type RiskStateStore interface {
	SaveRiskSnapshot(ctx context.Context, snap RiskSnapshot) error
	LoadRiskSnapshot(ctx context.Context) (RiskSnapshot, error)
}

// Bus channels and streams.
const (
	ChannelExecutions = "ch:executions"
	ChannelRisk       = "ch:risk"
	StreamExecutions  = "stream:executions"
)

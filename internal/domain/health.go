package domain

import "time"

// ComponentHealth is the liveness report of one pipeline component.
type ComponentHealth struct {
	Healthy       bool      `json:"healthy"`
	LastActive    time.Time `json:"last_active"`
	ErrorCount    uint64    `json:"error_count"`
	StatusMessage string    `json:"status_message"`
}

// EngineHealth aggregates component health.
type EngineHealth struct {
	OverallHealthy bool                       `json:"overall_healthy"`
	Components     map[string]ComponentHealth `json:"components"`
	CheckedAt      time.Time                  `json:"checked_at"`
}

// HealthReporter is implemented by every component that reports liveness.
type HealthReporter interface {
	HealthCheck() ComponentHealth
}

// ExecutorStats are the executor counters exposed to the host.
type ExecutorStats struct {
	TransactionsSubmitted uint64  `json:"transactions_submitted"`
	TransactionsSucceeded uint64  `json:"transactions_succeeded"`
	TransactionsFailed    uint64  `json:"transactions_failed"`
	ConfirmationTimeouts  uint64  `json:"confirmation_timeouts"`
	SuccessRate           float64 `json:"success_rate"`
}

// SimulationStats are the simulation gate counters.
type SimulationStats struct {
	Performed   uint64  `json:"performed"`
	Successful  uint64  `json:"successful"`
	Profitable  uint64  `json:"profitable"`
	SuccessRate float64 `json:"success_rate"`
}

// RouterStats are the strategy router counters.
type RouterStats struct {
	Received          uint64                     `json:"received"`
	Duplicates        uint64                     `json:"duplicates"`
	Classified        map[OpportunityKind]uint64 `json:"classified"`
	Analyzed          uint64                     `json:"analyzed"`
	Opportunities     uint64                     `json:"opportunities"`
	SimulationRejects uint64                     `json:"simulation_rejects"`
	RiskRejects       uint64                     `json:"risk_rejects"`
	Executed          uint64                     `json:"executed"`
	Succeeded         uint64                     `json:"succeeded"`
	Lagged            uint64                     `json:"lagged"`
	SlowAnalyses      uint64                     `json:"slow_analyses"`
}

// ListenerStats are the event source counters.
type ListenerStats struct {
	Messages    uint64 `json:"messages"`
	Candidates  uint64 `json:"candidates"`
	Malformed   uint64 `json:"malformed"`
	Reconnects  uint64 `json:"reconnects"`
	Errors      uint64 `json:"errors"`
	Subscribers int    `json:"subscribers"`
}

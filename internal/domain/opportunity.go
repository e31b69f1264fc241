package domain

import (
	"time"
)

// OpportunityKind is the strategy family a Candidate is routed to.
type OpportunityKind string

const (
	KindArbitrage   OpportunityKind = "arbitrage"
	KindSandwich    OpportunityKind = "sandwich"
	KindLiquidation OpportunityKind = "liquidation"
	KindUnknown     OpportunityKind = "unknown"
)

// Hop is one venue leg of an opportunity route.
type Hop struct {
	Venue     string `json:"venue"`
	ProgramID string `json:"program_id"`
	Pool      string `json:"pool"`
	AmountIn  uint64 `json:"amount_in"`
	AmountOut uint64 `json:"amount_out"`
	FeeBps    uint16 `json:"fee_bps"`
}

// Opportunity is a fully specified trade produced by a single Strategy.
type Opportunity struct {
	ID                     string          `json:"id"`
	Kind                   OpportunityKind `json:"kind"`
	Strategy               string          `json:"strategy"`
	SourceSignature        string          `json:"source_signature"`
	Slot                   uint64          `json:"slot"`
	TokenIn                string          `json:"token_in"`
	TokenOut               string          `json:"token_out"`
	AmountIn               uint64          `json:"amount_in"`
	ExpectedProfitUSD      float64         `json:"expected_profit_usd"`
	ExpectedProfitLamports int64           `json:"expected_profit_lamports"`
	Route                  []Hop           `json:"route"`
	FlashLoanRequired      bool            `json:"flash_loan_required"`
	EstimatedComputeUnits  uint64          `json:"estimated_compute_units"`
	EstimatedSlippageBps   uint16          `json:"estimated_slippage_bps"`
	// ComputeUnitLimit and ComputeUnitPrice override the executor defaults
	// when non-zero.
	ComputeUnitLimit uint32 `json:"compute_unit_limit"`
	ComputeUnitPrice uint64 `json:"compute_unit_price"`
	// TradeSizeSOL is the notional used by risk admission.
	TradeSizeSOL float64 `json:"trade_size_sol"`
	// TTL is how long the opportunity stays actionable; zero means unknown.
	TTL time.Duration `json:"ttl"`
	// Competition is a 0..n estimate of rival searchers on the same target.
	Competition  float64       `json:"competition"`
	Instructions []Instruction `json:"-"`
	DetectedAt   time.Time     `json:"detected_at"`
}

// Venues returns the venue names along the route.
func (o Opportunity) Venues() []string {
	out := make([]string, 0, len(o.Route))
	for _, h := range o.Route {
		out = append(out, h.Venue)
	}
	return out
}

// Expired reports whether the opportunity TTL has elapsed at now.
func (o Opportunity) Expired(now time.Time) bool {
	return o.TTL > 0 && !o.DetectedAt.IsZero() && now.After(o.DetectedAt.Add(o.TTL))
}

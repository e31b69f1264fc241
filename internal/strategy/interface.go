// Package strategy classifies candidates, hands them to the matching
// strategy, and drives the simulate, admit and submit chain for every
// opportunity produced.
package strategy

import (
	"context"
	"math"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Strategy analyzes one family of opportunities. Analyze returning a nil
// opportunity with a nil error means nothing actionable was found.
type Strategy interface {
	Name() string
	Kind() domain.OpportunityKind
	// Accepts is the cheap classification heuristic for one decoded
	// instruction. It must not block.
	Accepts(ix domain.DecodedInstruction) bool
	Analyze(ctx context.Context, c domain.Candidate, ix domain.DecodedInstruction) (*domain.Opportunity, error)
}

// Quote is one venue's answer for swapping AmountIn of one token into
// another.
type Quote struct {
	Venue     string
	ProgramID string
	Pool      string
	AmountOut uint64
	FeeBps    uint16
}

// Quoter prices swaps on a venue. A nil quote with a nil error means the
// venue has no route for the pair.
type Quoter interface {
	Quote(ctx context.Context, venue, tokenIn, tokenOut string, amountIn uint64) (*Quote, error)
}

// Pricer converts token amounts into USD.
type Pricer interface {
	USDValue(mint string, amount uint64) float64
}

// SOLPricer values every amount as lamports at a fixed SOL price.
type SOLPricer struct {
	PriceUSD float64
}

// USDValue implements Pricer.
func (p SOLPricer) USDValue(_ string, amount uint64) float64 {
	return float64(amount) / 1e9 * p.PriceUSD
}

// SOLAmount converts amount of mint into SOL through a single pricer so the
// risk size and the profit agree on the SOL price. An unpriced SOL yields
// +Inf, which no position cap admits.
func SOLAmount(p Pricer, mint string, amount uint64) float64 {
	perSOL := p.USDValue(WrappedSOLMint, 1_000_000_000)
	if perSOL <= 0 {
		return math.Inf(1)
	}
	return p.USDValue(mint, amount) / perSOL
}

// Simulator is the simulation gate as seen by the router.
type Simulator interface {
	Simulate(ctx context.Context, opp domain.Opportunity) domain.SimulationResult
}

// RiskGate is the risk manager as seen by the router.
type RiskGate interface {
	CanExecuteTrade(ctx context.Context, tradeSizeSOL, expectedProfitUSD float64) error
	RecordTradeResult(ctx context.Context, success bool, pnlUSD, tradeSizeSOL float64)
}

// Submitter lands opportunities on chain.
type Submitter interface {
	Submit(ctx context.Context, opp domain.Opportunity) domain.ExecutionResult
}

// CandidateStream is the consuming side of the listener's broadcast ring.
type CandidateStream interface {
	Recv(ctx context.Context) (domain.Candidate, error)
}

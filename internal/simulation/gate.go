// Package simulation dry-runs opportunities before they reach the executor
// and decides whether they are worth submitting.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Estimate is what a simulation backend reports for one opportunity.
type Estimate struct {
	ProfitLamports int64
	ProfitUSD      float64
	SlippageBps    uint16
	ComputeUnits   uint64
	FeeLamports    uint64
	Logs           []string
}

// Simulator is a simulation backend. An error means the opportunity could
// not be simulated at all.
type Simulator interface {
	Estimate(ctx context.Context, opp domain.Opportunity) (Estimate, error)
}

// Config holds the admission thresholds.
type Config struct {
	MinProfitUSD         float64
	MaxSlippageBps       uint16
	ComputeUnitLimit     uint64
	ValidateSlippage     bool
	ValidateComputeUnits bool
}

// Gate runs a Simulator and applies the profitability, slippage and
// compute-unit gates to its estimate.
type Gate struct {
	cfg     Config
	backend Simulator
	logger  *slog.Logger

	performed  atomic.Uint64
	successful atomic.Uint64
	profitable atomic.Uint64

	mu         sync.Mutex
	lastActive time.Time
}

// NewGate creates a Gate backed by backend.
func NewGate(cfg Config, backend Simulator, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:     cfg,
		backend: backend,
		logger:  logger.With(slog.String("component", "simulation")),
	}
}

// Simulate never returns an error; backend failures become an unsuccessful
// result with a reason.
func (g *Gate) Simulate(ctx context.Context, opp domain.Opportunity) domain.SimulationResult {
	g.performed.Add(1)
	g.touch()

	res := domain.SimulationResult{OpportunityID: opp.ID}

	est, err := g.backend.Estimate(ctx, opp)
	if err != nil {
		res.Reason = fmt.Sprintf("simulation failed: %v", err)
		g.logger.Debug("simulation failed",
			slog.String("opportunity", opp.ID),
			slog.String("error", err.Error()),
		)
		return res
	}
	g.successful.Add(1)

	res.Success = true
	res.ExpectedProfitLamports = est.ProfitLamports
	res.ExpectedProfitUSD = est.ProfitUSD
	res.SlippageBps = est.SlippageBps
	res.ComputeUnitsConsumed = est.ComputeUnits
	res.FeeEstimateLamports = est.FeeLamports
	res.Logs = est.Logs

	res.Reason = g.reject(est)
	res.IsProfitable = res.Reason == ""
	if res.IsProfitable {
		g.profitable.Add(1)
	}
	return res
}

// reject returns the reason of the first failing gate, or "".
func (g *Gate) reject(est Estimate) string {
	switch {
	case est.ProfitLamports <= 0:
		return fmt.Sprintf("non-positive profit: %d lamports", est.ProfitLamports)
	case est.ProfitUSD < g.cfg.MinProfitUSD:
		return fmt.Sprintf("profit $%.4f below minimum $%.4f", est.ProfitUSD, g.cfg.MinProfitUSD)
	case g.cfg.ValidateSlippage && est.SlippageBps > g.cfg.MaxSlippageBps:
		return fmt.Sprintf("slippage %d bps exceeds %d bps", est.SlippageBps, g.cfg.MaxSlippageBps)
	case g.cfg.ValidateComputeUnits && est.ComputeUnits > g.cfg.ComputeUnitLimit:
		return fmt.Sprintf("compute units %d exceed limit %d", est.ComputeUnits, g.cfg.ComputeUnitLimit)
	}
	return ""
}

func (g *Gate) touch() {
	g.mu.Lock()
	g.lastActive = time.Now()
	g.mu.Unlock()
}

// Statistics returns the gate counters.
func (g *Gate) Statistics() domain.SimulationStats {
	performed := g.performed.Load()
	successful := g.successful.Load()
	stats := domain.SimulationStats{
		Performed:  performed,
		Successful: successful,
		Profitable: g.profitable.Load(),
	}
	if performed > 0 {
		stats.SuccessRate = float64(successful) / float64(performed)
	}
	return stats
}

// HealthCheck reports the gate as healthy; backend failures only show up in
// the error count.
func (g *Gate) HealthCheck() domain.ComponentHealth {
	stats := g.Statistics()
	g.mu.Lock()
	last := g.lastActive
	g.mu.Unlock()
	return domain.ComponentHealth{
		Healthy:    true,
		LastActive: last,
		ErrorCount: stats.Performed - stats.Successful,
		StatusMessage: fmt.Sprintf("Performed %d simulations, %.1f%% success rate",
			stats.Performed, stats.SuccessRate*100),
	}
}

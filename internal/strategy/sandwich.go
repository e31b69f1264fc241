package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// PoolSource returns constant-product reserves for a pool, oriented so that
// Base is the side the target swap sells.
type PoolSource interface {
	Reserves(ctx context.Context, pool string) (Reserves, error)
}

// SandwichConfig tunes the sandwich strategy.
type SandwichConfig struct {
	MinTargetSizeUSD    float64
	MinProfitUSD        float64
	MaxFrontRunLamports uint64
	SearchSteps         int
	PriorityFeeLamports uint64
	SlippageBps         uint16
	ComputeUnitLimit    uint32
	ComputeUnitPrice    uint64
	SOLPriceUSD         float64
	Competition         float64
	TTL                 time.Duration
}

func (c *SandwichConfig) applyDefaults() {
	if c.SearchSteps <= 0 {
		c.SearchSteps = 10
	}
	if c.MaxFrontRunLamports == 0 {
		c.MaxFrontRunLamports = 1_000_000_000
	}
	if c.ComputeUnitLimit == 0 {
		c.ComputeUnitLimit = 1_000_000
	}
	if c.ComputeUnitPrice == 0 {
		c.ComputeUnitPrice = 50_000
	}
	if c.SOLPriceUSD == 0 {
		c.SOLPriceUSD = 150
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 100
	}
	if c.TTL == 0 {
		c.TTL = 400 * time.Millisecond
	}
}

// minTargetAmount converts the USD threshold with the 1e6 scale used for
// classification.
func (c SandwichConfig) minTargetAmount() uint64 {
	return uint64(c.MinTargetSizeUSD * 1_000_000)
}

// Sandwich sizes a front-run and back-run around a target swap on a
// constant-product pool. The front-run is capped so the target's own
// minimum output still holds.
type Sandwich struct {
	cfg      SandwichConfig
	pools    PoolSource
	pricer   Pricer
	builders map[string]domain.InstructionBuilder
	logger   *slog.Logger
}

// NewSandwich creates the sandwich strategy. builders is keyed by the target
// swap's program id and may be nil.
func NewSandwich(cfg SandwichConfig, pools PoolSource, builders map[string]domain.InstructionBuilder, logger *slog.Logger) *Sandwich {
	cfg.applyDefaults()
	return &Sandwich{
		cfg:      cfg,
		pools:    pools,
		pricer:   SOLPricer{PriceUSD: cfg.SOLPriceUSD},
		builders: builders,
		logger:   logger.With(slog.String("component", "strategy_sandwich")),
	}
}

func (s *Sandwich) Name() string                 { return "sandwich" }
func (s *Sandwich) Kind() domain.OpportunityKind { return domain.KindSandwich }

// Accepts swaps at or above the minimum target size.
func (s *Sandwich) Accepts(ix domain.DecodedInstruction) bool {
	return ix.Kind == domain.InstructionSwap && ix.AmountIn >= s.cfg.minTargetAmount()
}

type sandwichPlan struct {
	front, frontOut, back uint64
}

// plan searches front-run sizes in equal steps and keeps the most
// profitable one that leaves the target executable.
func (s *Sandwich) plan(r Reserves, target, targetMinOut uint64) (sandwichPlan, bool) {
	var best sandwichPlan
	found := false
	step := s.cfg.MaxFrontRunLamports / uint64(s.cfg.SearchSteps)
	if step == 0 {
		return best, false
	}
	for i := 1; i <= s.cfg.SearchSteps; i++ {
		front := step * uint64(i)
		frontOut, r1 := r.swap(front, true)
		if frontOut == 0 {
			continue
		}
		victimOut, r2 := r1.swap(target, true)
		if victimOut < targetMinOut {
			// Larger front-runs only push the target further out.
			break
		}
		back, _ := r2.swap(frontOut, false)
		if back > front && (!found || back-front > best.back-best.front) {
			best = sandwichPlan{front: front, frontOut: frontOut, back: back}
			found = true
		}
	}
	return best, found
}

// Analyze implements Strategy.
func (s *Sandwich) Analyze(ctx context.Context, c domain.Candidate, ix domain.DecodedInstruction) (*domain.Opportunity, error) {
	if ix.Pool == "" {
		return nil, fmt.Errorf("sandwich: %w: swap without pool", domain.ErrUnparseable)
	}
	r, err := s.pools.Reserves(ctx, ix.Pool)
	if err != nil {
		return nil, fmt.Errorf("sandwich: reserves %s: %w", ix.Pool, err)
	}
	if r.Base == 0 || r.Quote == 0 {
		return nil, fmt.Errorf("sandwich: pool %s: %w", ix.Pool, domain.ErrInsufficientLiquidity)
	}

	p, ok := s.plan(r, ix.AmountIn, ix.MinOut)
	if !ok {
		return nil, nil
	}
	gas := 2*5_000 + s.cfg.PriorityFeeLamports
	gross := p.back - p.front
	if gross <= gas {
		return nil, nil
	}
	net := gross - gas
	profitUSD := s.pricer.USDValue(ix.TokenIn, net)
	if profitUSD < s.cfg.MinProfitUSD {
		return nil, nil
	}

	opp := &domain.Opportunity{
		ID:                     uuid.NewString(),
		Kind:                   domain.KindSandwich,
		Strategy:               s.Name(),
		SourceSignature:        c.Signature,
		Slot:                   c.Slot,
		TokenIn:                ix.TokenIn,
		TokenOut:               ix.TokenOut,
		AmountIn:               p.front,
		ExpectedProfitUSD:      profitUSD,
		ExpectedProfitLamports: int64(net),
		Route: []domain.Hop{
			{Venue: "front", ProgramID: ix.ProgramID, Pool: ix.Pool, AmountIn: p.front, AmountOut: p.frontOut, FeeBps: r.FeeBps},
			{Venue: "back", ProgramID: ix.ProgramID, Pool: ix.Pool, AmountIn: p.frontOut, AmountOut: p.back, FeeBps: r.FeeBps},
		},
		EstimatedSlippageBps: s.cfg.SlippageBps,
		ComputeUnitLimit:     s.cfg.ComputeUnitLimit,
		ComputeUnitPrice:     s.cfg.ComputeUnitPrice,
		TradeSizeSOL:         SOLAmount(s.pricer, ix.TokenIn, p.front),
		TTL:                  s.cfg.TTL,
		Competition:          s.cfg.Competition,
		DetectedAt:           time.Now(),
	}
	if opp.Instructions, err = s.build(ctx, ix, p); err != nil {
		return nil, err
	}

	s.logger.Info("sandwich opportunity",
		slog.String("id", opp.ID),
		slog.String("target", c.Signature),
		slog.Uint64("front_run", p.front),
		slog.Float64("profit_usd", profitUSD),
	)
	return opp, nil
}

func (s *Sandwich) build(ctx context.Context, ix domain.DecodedInstruction, p sandwichPlan) ([]domain.Instruction, error) {
	b, ok := s.builders[ix.ProgramID]
	if !ok {
		return nil, nil
	}
	front, _, err := b.Build(ctx, domain.SwapRequest{
		Direction:   domain.DirectionBuy,
		Mint:        ix.TokenOut,
		PoolRefs:    []string{ix.Pool},
		Amount:      p.front,
		SlippageBps: s.cfg.SlippageBps,
	})
	if err != nil {
		return nil, fmt.Errorf("sandwich: build front-run: %w", err)
	}
	back, _, err := b.Build(ctx, domain.SwapRequest{
		Direction:   domain.DirectionSell,
		Mint:        ix.TokenOut,
		PoolRefs:    []string{ix.Pool},
		Amount:      p.frontOut,
		SlippageBps: s.cfg.SlippageBps,
	})
	if err != nil {
		return nil, fmt.Errorf("sandwich: build back-run: %w", err)
	}
	return append(front, back...), nil
}

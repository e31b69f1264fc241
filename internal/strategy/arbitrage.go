package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Common intermediate mints for triangular routes.
const (
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// MintResolver maps a token account to its mint.
type MintResolver interface {
	MintOf(ctx context.Context, tokenAccount string) (string, error)
}

// ArbitrageConfig tunes the arbitrage strategy.
type ArbitrageConfig struct {
	MinAmountIn         uint64
	MinProfitUSD        float64
	Venues              []string
	MaxHops             int
	Intermediates       []string
	FlashLoanThreshold  uint64
	PriorityFeeLamports uint64
	SlippageBps         uint16
	ComputeUnitLimit    uint32
	ComputeUnitPrice    uint64
	SOLPriceUSD         float64
	TTL                 time.Duration
}

func (c *ArbitrageConfig) applyDefaults() {
	if c.MinAmountIn == 0 {
		c.MinAmountIn = 1_000_000
	}
	if c.MaxHops == 0 {
		c.MaxHops = 2
	}
	if len(c.Intermediates) == 0 {
		c.Intermediates = []string{WrappedSOLMint, USDCMint}
	}
	if c.FlashLoanThreshold == 0 {
		c.FlashLoanThreshold = 1_000_000_000
	}
	if c.ComputeUnitLimit == 0 {
		c.ComputeUnitLimit = 800_000
	}
	if c.ComputeUnitPrice == 0 {
		c.ComputeUnitPrice = 20_000
	}
	if c.SOLPriceUSD == 0 {
		c.SOLPriceUSD = 150
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 50
	}
	if c.TTL == 0 {
		c.TTL = 2 * time.Second
	}
}

// Arbitrage looks for round trips across venues that return more of the
// input token than they consume.
type Arbitrage struct {
	cfg      ArbitrageConfig
	quoter   Quoter
	pricer   Pricer
	mints    MintResolver
	builders map[string]domain.InstructionBuilder
	logger   *slog.Logger
}

// ArbitrageOption customizes an Arbitrage strategy.
type ArbitrageOption func(*Arbitrage)

// WithMintResolver resolves decoded token accounts into mints.
func WithMintResolver(r MintResolver) ArbitrageOption {
	return func(a *Arbitrage) { a.mints = r }
}

// WithPricer overrides the default SOL pricer.
func WithPricer(p Pricer) ArbitrageOption {
	return func(a *Arbitrage) { a.pricer = p }
}

// WithBuilders sets per-venue instruction builders. Without a builder for a
// venue the opportunity carries no instructions.
func WithBuilders(b map[string]domain.InstructionBuilder) ArbitrageOption {
	return func(a *Arbitrage) { a.builders = b }
}

// NewArbitrage creates the arbitrage strategy.
func NewArbitrage(cfg ArbitrageConfig, quoter Quoter, logger *slog.Logger, opts ...ArbitrageOption) *Arbitrage {
	cfg.applyDefaults()
	a := &Arbitrage{
		cfg:    cfg,
		quoter: quoter,
		pricer: SOLPricer{PriceUSD: cfg.SOLPriceUSD},
		logger: logger.With(slog.String("component", "strategy_arbitrage")),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Arbitrage) Name() string                 { return "arbitrage" }
func (a *Arbitrage) Kind() domain.OpportunityKind { return domain.KindArbitrage }

// Accepts large swaps.
func (a *Arbitrage) Accepts(ix domain.DecodedInstruction) bool {
	return ix.Kind == domain.InstructionSwap && ix.AmountIn > a.cfg.MinAmountIn
}

type route struct {
	hops []domain.Hop
	out  uint64
}

// Analyze implements Strategy.
func (a *Arbitrage) Analyze(ctx context.Context, c domain.Candidate, ix domain.DecodedInstruction) (*domain.Opportunity, error) {
	tokenIn, tokenOut, err := a.resolve(ctx, ix)
	if err != nil {
		return nil, err
	}
	amountIn := ix.AmountIn

	best, err := a.bestRoute(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	if best == nil || best.out <= amountIn {
		return nil, nil
	}

	gross := best.out - amountIn
	gas := a.gasCost(len(best.hops))
	if gross <= gas {
		return nil, nil
	}
	net := gross - gas
	profitUSD := a.pricer.USDValue(tokenIn, net)
	if profitUSD < a.cfg.MinProfitUSD {
		return nil, nil
	}

	opp := &domain.Opportunity{
		ID:                     uuid.NewString(),
		Kind:                   domain.KindArbitrage,
		Strategy:               a.Name(),
		SourceSignature:        c.Signature,
		Slot:                   c.Slot,
		TokenIn:                tokenIn,
		TokenOut:               tokenOut,
		AmountIn:               amountIn,
		ExpectedProfitUSD:      profitUSD,
		ExpectedProfitLamports: int64(net),
		Route:                  best.hops,
		FlashLoanRequired:      amountIn > a.cfg.FlashLoanThreshold,
		EstimatedSlippageBps:   a.cfg.SlippageBps,
		ComputeUnitLimit:       a.cfg.ComputeUnitLimit,
		ComputeUnitPrice:       a.cfg.ComputeUnitPrice,
		TradeSizeSOL:           SOLAmount(a.pricer, tokenIn, amountIn),
		TTL:                    a.cfg.TTL,
		DetectedAt:             time.Now(),
	}
	if opp.Instructions, err = a.build(ctx, best.hops, tokenIn); err != nil {
		return nil, err
	}

	a.logger.Info("arbitrage opportunity",
		slog.String("id", opp.ID),
		slog.Float64("profit_usd", profitUSD),
		slog.String("token_in", tokenIn),
		slog.String("token_out", tokenOut),
		slog.Any("route", opp.Venues()),
	)
	return opp, nil
}

func (a *Arbitrage) resolve(ctx context.Context, ix domain.DecodedInstruction) (string, string, error) {
	if a.mints == nil {
		return ix.TokenIn, ix.TokenOut, nil
	}
	in, err := a.mints.MintOf(ctx, ix.TokenIn)
	if err != nil {
		return "", "", fmt.Errorf("arbitrage: resolve %s: %w", ix.TokenIn, err)
	}
	out, err := a.mints.MintOf(ctx, ix.TokenOut)
	if err != nil {
		return "", "", fmt.Errorf("arbitrage: resolve %s: %w", ix.TokenOut, err)
	}
	return in, out, nil
}

// gasCost is the base fee per hop plus the configured priority fee.
func (a *Arbitrage) gasCost(hops int) uint64 {
	return 5_000*uint64(hops) + a.cfg.PriorityFeeLamports
}

// bestRoute evaluates two-leg round trips across distinct venues and, when
// MaxHops allows, three-leg cycles through the intermediates.
func (a *Arbitrage) bestRoute(ctx context.Context, tokenIn, tokenOut string, amountIn uint64) (*route, error) {
	var best *route
	consider := func(r *route) {
		if r != nil && (best == nil || r.out > best.out) {
			best = r
		}
	}

	for _, first := range a.cfg.Venues {
		for _, second := range a.cfg.Venues {
			if first == second {
				continue
			}
			r, err := a.walk(ctx, amountIn, []leg{
				{venue: first, from: tokenIn, to: tokenOut},
				{venue: second, from: tokenOut, to: tokenIn},
			})
			if err != nil {
				return nil, err
			}
			consider(r)
		}
	}

	if a.cfg.MaxHops >= 3 {
		for _, mid := range a.cfg.Intermediates {
			if mid == tokenIn || mid == tokenOut {
				continue
			}
			r, err := a.walkBest(ctx, amountIn, []pair{
				{from: tokenIn, to: mid},
				{from: mid, to: tokenOut},
				{from: tokenOut, to: tokenIn},
			})
			if err != nil {
				return nil, err
			}
			consider(r)
		}
	}
	return best, nil
}

type leg struct {
	venue, from, to string
}

type pair struct {
	from, to string
}

func (a *Arbitrage) walk(ctx context.Context, amount uint64, legs []leg) (*route, error) {
	r := &route{}
	for _, l := range legs {
		q, err := a.quoter.Quote(ctx, l.venue, l.from, l.to, amount)
		if err != nil {
			return nil, fmt.Errorf("arbitrage: quote %s: %w", l.venue, err)
		}
		if q == nil || q.AmountOut == 0 {
			return nil, nil
		}
		r.hops = append(r.hops, toHop(q, amount))
		amount = q.AmountOut
	}
	r.out = amount
	return r, nil
}

// walkBest picks the best venue independently for each leg.
func (a *Arbitrage) walkBest(ctx context.Context, amount uint64, pairs []pair) (*route, error) {
	r := &route{}
	for _, p := range pairs {
		var best *Quote
		for _, v := range a.cfg.Venues {
			q, err := a.quoter.Quote(ctx, v, p.from, p.to, amount)
			if err != nil {
				return nil, fmt.Errorf("arbitrage: quote %s: %w", v, err)
			}
			if q != nil && (best == nil || q.AmountOut > best.AmountOut) {
				best = q
			}
		}
		if best == nil || best.AmountOut == 0 {
			return nil, nil
		}
		r.hops = append(r.hops, toHop(best, amount))
		amount = best.AmountOut
	}
	r.out = amount
	return r, nil
}

func toHop(q *Quote, amountIn uint64) domain.Hop {
	return domain.Hop{
		Venue:     q.Venue,
		ProgramID: q.ProgramID,
		Pool:      q.Pool,
		AmountIn:  amountIn,
		AmountOut: q.AmountOut,
		FeeBps:    q.FeeBps,
	}
}

func (a *Arbitrage) build(ctx context.Context, hops []domain.Hop, tokenIn string) ([]domain.Instruction, error) {
	if len(a.builders) == 0 {
		return nil, nil
	}
	var out []domain.Instruction
	for i, h := range hops {
		b, ok := a.builders[h.Venue]
		if !ok {
			return nil, fmt.Errorf("arbitrage: no builder for venue %s: %w", h.Venue, domain.ErrNoInstructions)
		}
		dir := domain.DirectionBuy
		if i == len(hops)-1 {
			dir = domain.DirectionSell
		}
		ixs, _, err := b.Build(ctx, domain.SwapRequest{
			Direction:   dir,
			Mint:        tokenIn,
			PoolRefs:    []string{h.Pool},
			Amount:      h.AmountIn,
			SlippageBps: a.cfg.SlippageBps,
		})
		if err != nil {
			return nil, fmt.Errorf("arbitrage: build hop %d: %w", i, err)
		}
		out = append(out, ixs...)
	}
	return out, nil
}

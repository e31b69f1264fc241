package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Position is a lending position as reported by a PositionSource.
type Position struct {
	Address             string
	Protocol            string
	Owner               string
	CollateralMint      string
	DebtMint            string
	DebtAmount          uint64
	HealthFactor        float64
	LiquidationBonusBps uint16
	CloseFactorBps      uint16
}

// Liquidatable reports whether the position is under water.
func (p Position) Liquidatable() bool {
	return p.HealthFactor > 0 && p.HealthFactor < 1
}

// PositionSource lists positions of a lending protocol.
type PositionSource interface {
	Positions(ctx context.Context, protocol string) ([]Position, error)
}

// LiquidationBuilder builds the protocol's liquidate instruction.
type LiquidationBuilder interface {
	BuildLiquidation(ctx context.Context, p Position, repay uint64) ([]domain.Instruction, error)
}

// LiquidationConfig tunes the liquidation strategy.
type LiquidationConfig struct {
	Enabled             bool
	Protocols           []string
	MinProfitUSD        float64
	MaxRepayLamports    uint64
	PriorityFeeLamports uint64
	ComputeUnitLimit    uint32
	ComputeUnitPrice    uint64
	SOLPriceUSD         float64
	TTL                 time.Duration
}

func (c *LiquidationConfig) applyDefaults() {
	if c.ComputeUnitLimit == 0 {
		c.ComputeUnitLimit = 600_000
	}
	if c.ComputeUnitPrice == 0 {
		c.ComputeUnitPrice = 30_000
	}
	if c.SOLPriceUSD == 0 {
		c.SOLPriceUSD = 150
	}
	if c.TTL == 0 {
		c.TTL = 5 * time.Second
	}
}

// Liquidation repays part of an unhealthy loan for the protocol's bonus.
type Liquidation struct {
	cfg       LiquidationConfig
	positions PositionSource
	builder   LiquidationBuilder
	pricer    Pricer
	logger    *slog.Logger
}

// NewLiquidation creates the liquidation strategy. builder may be nil.
func NewLiquidation(cfg LiquidationConfig, positions PositionSource, builder LiquidationBuilder, logger *slog.Logger) *Liquidation {
	cfg.applyDefaults()
	return &Liquidation{
		cfg:       cfg,
		positions: positions,
		builder:   builder,
		pricer:    SOLPricer{PriceUSD: cfg.SOLPriceUSD},
		logger:    logger.With(slog.String("component", "strategy_liquidation")),
	}
}

func (l *Liquidation) Name() string                 { return "liquidation" }
func (l *Liquidation) Kind() domain.OpportunityKind { return domain.KindLiquidation }

// Accepts transfers while liquidation is enabled.
func (l *Liquidation) Accepts(ix domain.DecodedInstruction) bool {
	return l.cfg.Enabled && ix.Kind == domain.InstructionTransfer
}

func (l *Liquidation) repayFor(p Position) uint64 {
	closeBps := uint64(p.CloseFactorBps)
	if closeBps == 0 {
		closeBps = 5_000
	}
	repay := p.DebtAmount * closeBps / 10_000
	if l.cfg.MaxRepayLamports > 0 && repay > l.cfg.MaxRepayLamports {
		repay = l.cfg.MaxRepayLamports
	}
	return repay
}

// Analyze implements Strategy. The triggering transfer only signals that
// balances moved; every configured protocol is rescanned.
func (l *Liquidation) Analyze(ctx context.Context, c domain.Candidate, _ domain.DecodedInstruction) (*domain.Opportunity, error) {
	var (
		best      *Position
		bestRepay uint64
		bestNet   uint64
	)
	gas := 5_000 + l.cfg.PriorityFeeLamports

	for _, protocol := range l.cfg.Protocols {
		positions, err := l.positions.Positions(ctx, protocol)
		if err != nil {
			return nil, fmt.Errorf("liquidation: positions %s: %w", protocol, err)
		}
		for i := range positions {
			p := positions[i]
			if !p.Liquidatable() {
				continue
			}
			repay := l.repayFor(p)
			bonus := repay * uint64(p.LiquidationBonusBps) / 10_000
			if bonus <= gas {
				continue
			}
			if net := bonus - gas; best == nil || net > bestNet {
				best, bestRepay, bestNet = &p, repay, net
			}
		}
	}
	if best == nil {
		return nil, nil
	}

	profitUSD := l.pricer.USDValue(best.DebtMint, bestNet)
	if profitUSD < l.cfg.MinProfitUSD {
		return nil, nil
	}

	opp := &domain.Opportunity{
		ID:                     uuid.NewString(),
		Kind:                   domain.KindLiquidation,
		Strategy:               l.Name(),
		SourceSignature:        c.Signature,
		Slot:                   c.Slot,
		TokenIn:                best.DebtMint,
		TokenOut:               best.CollateralMint,
		AmountIn:               bestRepay,
		ExpectedProfitUSD:      profitUSD,
		ExpectedProfitLamports: int64(bestNet),
		Route: []domain.Hop{{
			Venue:     best.Protocol,
			ProgramID: best.Protocol,
			Pool:      best.Address,
			AmountIn:  bestRepay,
			AmountOut: bestRepay + bestNet + gas,
		}},
		ComputeUnitLimit: l.cfg.ComputeUnitLimit,
		ComputeUnitPrice: l.cfg.ComputeUnitPrice,
		TradeSizeSOL:     SOLAmount(l.pricer, best.DebtMint, bestRepay),
		TTL:              l.cfg.TTL,
		DetectedAt:       time.Now(),
	}
	if l.builder != nil {
		ixs, err := l.builder.BuildLiquidation(ctx, *best, bestRepay)
		if err != nil {
			return nil, fmt.Errorf("liquidation: build: %w", err)
		}
		opp.Instructions = ixs
	}

	l.logger.Info("liquidation opportunity",
		slog.String("id", opp.ID),
		slog.String("position", best.Address),
		slog.Float64("health_factor", best.HealthFactor),
		slog.Float64("profit_usd", profitUSD),
	)
	return opp, nil
}

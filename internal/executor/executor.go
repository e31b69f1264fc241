// Package executor signs opportunities into transactions, lands them through
// the configured path and polls for confirmation.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/mevbot/internal/cache"
	"github.com/alanyoungcy/mevbot/internal/chain"
	"github.com/alanyoungcy/mevbot/internal/domain"
	"github.com/alanyoungcy/mevbot/internal/fees"
)

// Config tunes submission and confirmation.
type Config struct {
	DefaultComputeUnitLimit uint32
	FeeStrategy             fees.Strategy
	ConfirmAttempts         int
	ConfirmInterval         time.Duration
	DedupWindow             time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultComputeUnitLimit == 0 {
		c.DefaultComputeUnitLimit = 200_000
	}
	if c.FeeStrategy == "" {
		c.FeeStrategy = fees.StrategyBalanced
	}
	if c.ConfirmAttempts <= 0 {
		c.ConfirmAttempts = 10
	}
	if c.ConfirmInterval <= 0 {
		c.ConfirmInterval = 100 * time.Millisecond
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 2 * time.Minute
	}
}

// Executor lands opportunities. A confirmation timeout is reported as its
// own outcome and is never resubmitted.
type Executor struct {
	cfg       Config
	chain     domain.ChainClient
	signer    domain.Signer
	landing   Landing
	estimator *fees.Estimator
	dedup     *cache.Dedup
	logger    *slog.Logger

	submitted atomic.Uint64
	succeeded atomic.Uint64
	timeouts  atomic.Uint64

	mu         sync.Mutex
	lastActive time.Time
}

// New creates an Executor.
func New(cfg Config, client domain.ChainClient, signer domain.Signer, landing Landing, estimator *fees.Estimator, logger *slog.Logger) *Executor {
	cfg.applyDefaults()
	return &Executor{
		cfg:       cfg,
		chain:     client,
		signer:    signer,
		landing:   landing,
		estimator: estimator,
		dedup:     cache.NewDedup(cfg.DedupWindow),
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// Submit runs one opportunity to a terminal ExecutionResult.
func (e *Executor) Submit(ctx context.Context, opp domain.Opportunity) domain.ExecutionResult {
	start := time.Now()
	e.touch(start)
	res := domain.ExecutionResult{
		OpportunityID: opp.ID,
		Strategy:      opp.Strategy,
		LandingMode:   e.landing.Mode(),
		ProfitUSD:     opp.ExpectedProfitUSD,
		TradeSizeSOL:  opp.TradeSizeSOL,
		SubmittedAt:   start,
	}
	log := e.logger.With(
		slog.String("opportunity", opp.ID),
		slog.String("strategy", opp.Strategy),
		slog.String("mode", string(e.landing.Mode())),
	)

	if skip := e.precheck(opp, start); skip != nil {
		res.Outcome = domain.OutcomeSkipped
		res.Error = skip.Error()
		log.Debug("opportunity skipped", slog.String("reason", res.Error))
		return res
	}

	e.submitted.Add(1)
	raw, sig, err := e.prepare(ctx, opp, &res)
	if err != nil {
		return e.fail(log, res, start, domain.OutcomeSubmitFailed, err)
	}
	res.Signature = sig

	if _, err := e.landing.Send(ctx, raw); err != nil {
		// nothing reached the leader, so nothing was paid
		res.FeePaidLamports, res.TipLamports = 0, 0
		return e.fail(log, res, start, domain.OutcomeSubmitFailed, err)
	}

	status, err := e.confirm(ctx, sig)
	res.LatencyMs = time.Since(start).Milliseconds()
	switch {
	case err != nil:
		e.timeouts.Add(1)
		return e.fail(log, res, start, domain.OutcomeConfirmationTimeout, err)
	case status.Err != "":
		slot := status.Slot
		res.LandedSlot = &slot
		return e.fail(log, res, start, domain.OutcomeReverted, fmt.Errorf("transaction reverted: %s", status.Err))
	}

	slot := status.Slot
	res.LandedSlot = &slot
	res.Success = true
	res.Outcome = domain.OutcomeLanded
	e.succeeded.Add(1)
	log.Info("transaction landed",
		slog.String("signature", sig),
		slog.Uint64("slot", slot),
		slog.Int64("latency_ms", res.LatencyMs),
	)
	return res
}

func (e *Executor) precheck(opp domain.Opportunity, now time.Time) error {
	if len(opp.Instructions) == 0 {
		return domain.ErrNoInstructions
	}
	if opp.Expired(now) {
		return domain.ErrOpportunityExpired
	}
	if e.dedup.IsDuplicate(dedupKey(opp)) {
		return domain.ErrDuplicate
	}
	return nil
}

// dedupKey identifies the on-chain event an opportunity reacts to. IDs are
// minted per detection, so a replayed source transaction would otherwise be
// submitted twice.
func dedupKey(opp domain.Opportunity) string {
	if opp.SourceSignature == "" {
		return opp.ID
	}
	return opp.SourceSignature
}

// prepare fetches a blockhash, prices the transaction and signs it.
func (e *Executor) prepare(ctx context.Context, opp domain.Opportunity, res *domain.ExecutionResult) ([]byte, string, error) {
	bh, err := e.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, "", err
	}
	hash, err := chain.ParseHash(bh.Hash)
	if err != nil {
		return nil, "", err
	}
	payer, err := chain.ParsePublicKey(e.signer.PublicKey())
	if err != nil {
		return nil, "", err
	}

	limit := opp.ComputeUnitLimit
	if limit == 0 {
		limit = e.cfg.DefaultComputeUnitLimit
	}
	price := e.computeUnitPrice(opp)
	tip := e.landing.Tip(fees.PriorityFromProfit(opp.ExpectedProfitUSD))

	tx, err := chain.BuildTransaction(chain.TxRequest{
		Payer:            payer,
		Blockhash:        hash,
		ComputeUnitLimit: limit,
		ComputeUnitPrice: price,
		Tip:              tip,
		Instructions:     opp.Instructions,
	})
	if err != nil {
		return nil, "", err
	}
	sig, raw, err := chain.SignTransaction(tx, e.signer)
	if err != nil {
		return nil, "", err
	}

	res.FeePaidLamports = fees.NetworkFee(1) + fees.PriorityFee(limit, price)
	if tip != nil {
		res.TipLamports = tip.Lamports
	}
	return raw, sig, nil
}

// computeUnitPrice takes the larger of the strategy's declared price and the
// estimator's bid for this opportunity's urgency.
func (e *Executor) computeUnitPrice(opp domain.Opportunity) uint64 {
	price := opp.ComputeUnitPrice
	if e.estimator == nil {
		return price
	}
	urgency := fees.UrgencyMultiplier(opp.ExpectedProfitUSD, opp.TTL.Seconds(), opp.Competition)
	if est := e.estimator.FeeForStrategy(e.cfg.FeeStrategy, urgency); est > price {
		price = est
	}
	return price
}

// confirm polls the signature status at a fixed interval. Exhausting the
// attempts returns domain.ErrConfirmationTimeout.
func (e *Executor) confirm(ctx context.Context, sig string) (domain.SignatureStatus, error) {
	for attempt := 0; attempt < e.cfg.ConfirmAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.SignatureStatus{}, fmt.Errorf("%w: %v", domain.ErrConfirmationTimeout, ctx.Err())
			case <-time.After(e.cfg.ConfirmInterval):
			}
		}
		status, err := e.chain.SignatureStatus(ctx, sig)
		if err != nil {
			e.logger.Debug("signature status poll failed",
				slog.String("signature", sig),
				slog.String("error", err.Error()))
			continue
		}
		if status != nil && status.Terminal() {
			return *status, nil
		}
	}
	return domain.SignatureStatus{}, domain.ErrConfirmationTimeout
}

func (e *Executor) fail(log *slog.Logger, res domain.ExecutionResult, start time.Time, outcome domain.ExecutionOutcome, err error) domain.ExecutionResult {
	res.Success = false
	res.Outcome = outcome
	res.Error = err.Error()
	if errors.Is(err, domain.ErrConfirmationTimeout) {
		res.Error = domain.ErrConfirmationTimeout.Error()
	}
	res.LatencyMs = time.Since(start).Milliseconds()
	log.Warn("execution failed",
		slog.String("outcome", string(outcome)),
		slog.String("signature", res.Signature),
		slog.String("error", err.Error()),
	)
	return res
}

func (e *Executor) touch(t time.Time) {
	e.mu.Lock()
	e.lastActive = t
	e.mu.Unlock()
}

// Cleanup drops expired dedup entries.
func (e *Executor) Cleanup() int {
	return e.dedup.Cleanup()
}

// Statistics returns the executor counters.
func (e *Executor) Statistics() domain.ExecutorStats {
	submitted := e.submitted.Load()
	succeeded := e.succeeded.Load()
	stats := domain.ExecutorStats{
		TransactionsSubmitted: submitted,
		TransactionsSucceeded: succeeded,
		TransactionsFailed:    submitted - succeeded,
		ConfirmationTimeouts:  e.timeouts.Load(),
	}
	if submitted > 0 {
		stats.SuccessRate = float64(succeeded) / float64(submitted)
	}
	return stats
}

// HealthCheck implements domain.HealthReporter.
func (e *Executor) HealthCheck() domain.ComponentHealth {
	stats := e.Statistics()
	e.mu.Lock()
	last := e.lastActive
	e.mu.Unlock()
	return domain.ComponentHealth{
		Healthy:    true,
		LastActive: last,
		ErrorCount: stats.TransactionsFailed,
		StatusMessage: fmt.Sprintf("Submitted %d transactions, %.1f%% success rate",
			stats.TransactionsSubmitted, stats.SuccessRate*100),
	}
}

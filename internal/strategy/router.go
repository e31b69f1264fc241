package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/mevbot/internal/cache"
	"github.com/alanyoungcy/mevbot/internal/domain"
	"github.com/alanyoungcy/mevbot/internal/listener"
)

// TransactionFetcher loads the full instruction list of a transaction seen
// only through its logs.
type TransactionFetcher interface {
	TransactionInstructions(ctx context.Context, signature string) ([]domain.Instruction, error)
}

// Observer receives pipeline events, typically for metrics.
type Observer interface {
	CandidateClassified(kind domain.OpportunityKind)
	SimulationCompleted(res domain.SimulationResult)
	RiskRejected(err error)
	ExecutionCompleted(res domain.ExecutionResult)
}

// ResultPublisher receives finished execution records.
type ResultPublisher interface {
	Publish(rec domain.ExecutionRecord)
}

// RouterConfig controls classification and admission.
type RouterConfig struct {
	AllowedPrograms []string
	LatencyBudget   time.Duration
	DedupWindow     time.Duration
	DryRun          bool
	// ClassifyOnly stops after classification; nothing is analyzed.
	ClassifyOnly bool
	SOLPriceUSD  float64
}

// Router consumes candidates one at a time so that every admission decision
// observes the recorded result of all earlier trades.
type Router struct {
	cfg      RouterConfig
	allowed  map[string]struct{}
	registry *Registry
	decoder  domain.Decoder
	fetcher  TransactionFetcher
	sim      Simulator
	risk     RiskGate
	exec     Submitter
	observer Observer
	results  ResultPublisher
	solPrice func() float64
	dedup    *cache.Dedup
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	stats      domain.RouterStats
	errCount   uint64
	lastActive time.Time
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithTransactionFetcher enables loading instructions for log-only
// candidates.
func WithTransactionFetcher(f TransactionFetcher) RouterOption {
	return func(r *Router) { r.fetcher = f }
}

// WithObserver attaches a pipeline observer.
func WithObserver(o Observer) RouterOption {
	return func(r *Router) { r.observer = o }
}

// WithResultPublisher forwards every submitted execution to p.
func WithResultPublisher(p ResultPublisher) RouterOption {
	return func(r *Router) { r.results = p }
}

// WithSOLPrice values failed-trade costs at a live SOL price instead of the
// configured one.
func WithSOLPrice(price func() float64) RouterOption {
	return func(r *Router) { r.solPrice = price }
}

// NewRouter creates a Router.
func NewRouter(
	cfg RouterConfig,
	registry *Registry,
	decoder domain.Decoder,
	sim Simulator,
	risk RiskGate,
	exec Submitter,
	logger *slog.Logger,
	opts ...RouterOption,
) *Router {
	if cfg.LatencyBudget <= 0 {
		cfg.LatencyBudget = 50 * time.Millisecond
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 2 * time.Minute
	}
	if cfg.SOLPriceUSD <= 0 {
		cfg.SOLPriceUSD = 150
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedPrograms))
	for _, p := range cfg.AllowedPrograms {
		allowed[p] = struct{}{}
	}
	r := &Router{
		cfg:      cfg,
		allowed:  allowed,
		registry: registry,
		decoder:  decoder,
		sim:      sim,
		risk:     risk,
		exec:     exec,
		dedup:    cache.NewDedup(cfg.DedupWindow),
		logger:   logger.With(slog.String("component", "strategy_router")),
		stop:     make(chan struct{}),
		stats:    domain.RouterStats{Classified: make(map[domain.OpportunityKind]uint64)},
	}
	r.solPrice = func() float64 { return cfg.SOLPriceUSD }
	for _, o := range opts {
		o(r)
	}
	return r
}

// ProcessOpportunities is the consuming loop. It returns when the stream
// closes, ctx is done or Stop is called. A lagged stream is logged and
// consumption continues.
func (r *Router) ProcessOpportunities(ctx context.Context, stream CandidateStream) error {
	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-recvCtx.Done():
		}
	}()

	r.logger.Info("router started",
		slog.Bool("dry_run", r.cfg.DryRun),
		slog.Bool("classify_only", r.cfg.ClassifyOnly))
	cleanup := time.NewTicker(30 * time.Second)
	defer cleanup.Stop()

	for {
		select {
		case <-cleanup.C:
			r.dedup.Cleanup()
		default:
		}

		c, err := stream.Recv(recvCtx)
		if err != nil {
			if missed, ok := listener.IsLagged(err); ok {
				r.mu.Lock()
				r.stats.Lagged++
				r.mu.Unlock()
				r.logger.Warn("candidate stream lagged, some candidates were missed",
					slog.Uint64("missed", missed))
				continue
			}
			if errors.Is(err, listener.ErrClosed) {
				r.logger.Info("candidate stream closed")
				return nil
			}
			if recvCtx.Err() != nil {
				r.logger.Info("router stopped")
				return nil
			}
			return fmt.Errorf("strategy: recv: %w", err)
		}

		// A signed transaction may already be on the wire, so shutdown waits
		// for its outcome instead of abandoning it. Confirmation polling is
		// bounded by the executor's attempt budget.
		r.Handle(context.WithoutCancel(ctx), c)
	}
}

// Stop ends ProcessOpportunities after the current candidate.
func (r *Router) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Classify returns the opportunity kind of c without analyzing it.
func (r *Router) Classify(c domain.Candidate) domain.OpportunityKind {
	s, _ := r.classify(c)
	if s == nil {
		return domain.KindUnknown
	}
	return s.Kind()
}

func (r *Router) allowListed(c domain.Candidate) bool {
	for _, p := range c.Programs() {
		if _, ok := r.allowed[p]; ok {
			return true
		}
	}
	return false
}

// classify tests decoded allow-listed instructions against each strategy's
// heuristic in fixed priority order; the first acceptance wins.
func (r *Router) classify(c domain.Candidate) (Strategy, domain.DecodedInstruction) {
	if c.Failed || !r.allowListed(c) {
		return nil, domain.DecodedInstruction{}
	}
	strategies := r.registry.Ordered()
	for _, ix := range c.Instructions {
		if _, ok := r.allowed[ix.ProgramID]; !ok {
			continue
		}
		decoded, err := r.decoder.Decode(ix)
		if err != nil {
			continue
		}
		for _, s := range strategies {
			if s.Accepts(decoded) {
				return s, decoded
			}
		}
	}
	return nil, domain.DecodedInstruction{}
}

// needsFetch reports whether c only carries program ids from its logs.
func needsFetch(c domain.Candidate) bool {
	if c.Source != domain.SourceLogs || c.Signature == "" {
		return false
	}
	for _, ix := range c.Instructions {
		if len(ix.Data) > 0 {
			return false
		}
	}
	return true
}

// Handle runs one candidate through classify, analyze, simulate, admit and
// submit. It returns the execution result when a submission happened.
func (r *Router) Handle(ctx context.Context, c domain.Candidate) *domain.ExecutionResult {
	r.mu.Lock()
	r.stats.Received++
	r.lastActive = time.Now()
	r.mu.Unlock()

	if r.dedup.IsDuplicate(c.Key()) {
		r.mu.Lock()
		r.stats.Duplicates++
		r.mu.Unlock()
		return nil
	}

	if r.fetcher != nil && c.SwapHint && needsFetch(c) && r.allowListed(c) {
		ixs, err := r.fetcher.TransactionInstructions(ctx, c.Signature)
		if err != nil {
			r.logger.Debug("transaction fetch failed",
				slog.String("signature", c.Signature),
				slog.String("error", err.Error()))
		} else {
			c.Instructions = ixs
		}
	}

	s, decoded := r.classify(c)
	kind := domain.KindUnknown
	if s != nil {
		kind = s.Kind()
	}
	r.mu.Lock()
	r.stats.Classified[kind]++
	r.mu.Unlock()
	if r.observer != nil {
		r.observer.CandidateClassified(kind)
	}
	if s == nil || r.cfg.ClassifyOnly {
		return nil
	}

	opp := r.analyze(ctx, s, c, decoded)
	if opp == nil {
		return nil
	}
	return r.execute(ctx, *opp)
}

func (r *Router) analyze(ctx context.Context, s Strategy, c domain.Candidate, decoded domain.DecodedInstruction) *domain.Opportunity {
	actx, cancel := context.WithTimeout(ctx, r.cfg.LatencyBudget)
	defer cancel()

	start := time.Now()
	opp, err := s.Analyze(actx, c, decoded)
	elapsed := time.Since(start)

	r.mu.Lock()
	r.stats.Analyzed++
	if elapsed > r.cfg.LatencyBudget {
		r.stats.SlowAnalyses++
	}
	if err != nil {
		r.errCount++
	}
	if opp != nil {
		r.stats.Opportunities++
	}
	r.mu.Unlock()

	if elapsed > r.cfg.LatencyBudget {
		r.logger.Warn("strategy exceeded latency budget",
			slog.String("strategy", s.Name()),
			slog.Duration("elapsed", elapsed),
			slog.Duration("budget", r.cfg.LatencyBudget))
	}
	if err != nil {
		r.registry.recordError(s.Name())
		level := slog.LevelError
		if domain.IsCandidateFatal(err) {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "candidate abandoned",
			slog.String("strategy", s.Name()),
			slog.String("signature", c.Signature),
			slog.String("error", err.Error()))
		return nil
	}
	if opp != nil {
		r.registry.recordFound(s.Name(), time.Now())
	}
	return opp
}

func (r *Router) execute(ctx context.Context, opp domain.Opportunity) *domain.ExecutionResult {
	sim := r.sim.Simulate(ctx, opp)
	if r.observer != nil {
		r.observer.SimulationCompleted(sim)
	}
	if !sim.IsProfitable {
		r.mu.Lock()
		r.stats.SimulationRejects++
		r.mu.Unlock()
		r.logger.Debug("opportunity rejected by simulation",
			slog.String("id", opp.ID),
			slog.String("reason", sim.Reason))
		return nil
	}

	if r.cfg.DryRun {
		r.logger.Info("dry run: opportunity would be submitted",
			slog.String("id", opp.ID),
			slog.String("strategy", opp.Strategy),
			slog.Float64("profit_usd", sim.ExpectedProfitUSD))
		return nil
	}

	if err := r.risk.CanExecuteTrade(ctx, opp.TradeSizeSOL, sim.ExpectedProfitUSD); err != nil {
		r.mu.Lock()
		r.stats.RiskRejects++
		r.mu.Unlock()
		if r.observer != nil {
			r.observer.RiskRejected(err)
		}
		r.logger.Info("opportunity rejected by risk",
			slog.String("id", opp.ID),
			slog.String("reason", err.Error()))
		return nil
	}

	res := r.exec.Submit(ctx, opp)
	if r.observer != nil {
		r.observer.ExecutionCompleted(res)
	}
	if res.Outcome == domain.OutcomeSkipped {
		return &res
	}

	r.mu.Lock()
	r.stats.Executed++
	if res.Success {
		r.stats.Succeeded++
	}
	r.mu.Unlock()

	pnl := sim.ExpectedProfitUSD
	if !res.Success {
		pnl = -float64(res.FeePaidLamports+res.TipLamports) / 1e9 * r.solPrice()
	}
	r.risk.RecordTradeResult(ctx, res.Success, pnl, opp.TradeSizeSOL)
	if r.results != nil {
		r.results.Publish(domain.ExecutionRecord{
			ID:          uuid.NewString(),
			Opportunity: opp,
			Simulation:  sim,
			Result:      res,
			CreatedAt:   time.Now().UTC(),
		})
	}

	if res.Success {
		r.logger.Info("opportunity executed",
			slog.String("id", opp.ID),
			slog.String("signature", res.Signature))
	} else {
		r.logger.Warn("opportunity execution failed",
			slog.String("id", opp.ID),
			slog.String("outcome", string(res.Outcome)),
			slog.String("error", res.Error))
	}
	return &res
}

// Statistics returns a copy of the router counters.
func (r *Router) Statistics() domain.RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.stats
	out.Classified = make(map[domain.OpportunityKind]uint64, len(r.stats.Classified))
	for k, v := range r.stats.Classified {
		out.Classified[k] = v
	}
	return out
}

// Registry returns the strategy registry.
func (r *Router) Registry() *Registry {
	return r.registry
}

// HealthCheck implements domain.HealthReporter.
func (r *Router) HealthCheck() domain.ComponentHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.ComponentHealth{
		Healthy:    true,
		LastActive: r.lastActive,
		ErrorCount: r.errCount,
		StatusMessage: fmt.Sprintf("Processed %d opportunities, %d successful trades",
			r.stats.Received, r.stats.Succeeded),
	}
}

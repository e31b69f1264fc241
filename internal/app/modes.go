package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mevbot/internal/cache/redis"
	"github.com/alanyoungcy/mevbot/internal/engine"
	"github.com/alanyoungcy/mevbot/internal/executor"
	"github.com/alanyoungcy/mevbot/internal/fees"
	"github.com/alanyoungcy/mevbot/internal/listener"
	"github.com/alanyoungcy/mevbot/internal/pipeline"
	"github.com/alanyoungcy/mevbot/internal/server"
	"github.com/alanyoungcy/mevbot/internal/server/handler"
	"github.com/alanyoungcy/mevbot/internal/server/ws"
	"github.com/alanyoungcy/mevbot/internal/simulation"
	"github.com/alanyoungcy/mevbot/internal/strategy"
)

// priceRefreshInterval is how often the live SOL price is re-read.
const priceRefreshInterval = 5 * time.Second

// stages are the pipeline components built for one run.
type stages struct {
	listener  *listener.Listener
	router    *strategy.Router
	gate      *simulation.Gate
	executor  *executor.Executor
	publisher *executor.Publisher
	engine    *engine.Engine
}

// EngineMode runs the full pipeline and submits transactions.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")
	return a.runPipeline(ctx, deps, true, false)
}

// DryRunMode detects, analyzes and simulates but never submits.
func (a *App) DryRunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting dry run mode")
	return a.runPipeline(ctx, deps, false, false)
}

// MonitorMode streams and classifies candidates only.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runPipeline(ctx, deps, false, true)
}

// ServerMode serves the API over the shared risk and storage state without
// running the pipeline.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	hub := ws.NewHub(deps.SignalBus, a.statusFunc(deps), a.logger)
	srv := a.buildServer(deps, hub, nil)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return quiet(ctx, hub.Run(ctx)) })
	g.Go(func() error { return srv.Run(ctx) })
	return g.Wait()
}

func (a *App) runPipeline(ctx context.Context, deps *Dependencies, submit, classifyOnly bool) error {
	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(deps.SignalBus, a.statusFunc(deps), a.logger)
	}

	st, err := a.buildStages(deps, hub, submit, classifyOnly)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return st.engine.Run(ctx) })
	if hub != nil {
		srv := a.buildServer(deps, hub, st)
		g.Go(func() error { return quiet(ctx, hub.Run(ctx)) })
		g.Go(func() error { return srv.Run(ctx) })
	}
	return g.Wait()
}

// quiet drops the error a loop returns because ctx ended.
func quiet(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) buildStages(deps *Dependencies, hub *ws.Hub, submit, classifyOnly bool) (*stages, error) {
	cfg := a.cfg
	logger := a.logger
	st := &stages{}

	// Event source.
	st.listener = listener.New(listener.Config{
		Endpoint:          cfg.Solana.WSURL,
		Programs:          cfg.Listener.Programs,
		Accounts:          cfg.Listener.Accounts,
		Filters:           cfg.Listener.Filters,
		Commitment:        cfg.Solana.Commitment,
		ReconnectDelay:    cfg.Listener.ReconnectDelay.Duration,
		SubscribeInterval: cfg.Listener.SubscribeInterval.Duration,
		Capacity:          cfg.Listener.ChannelCapacity,
		HealthWindow:      cfg.Listener.HealthWindow.Duration,
	}, logger)
	st.listener.OnPublish(deps.Metrics.CandidatePublished)
	stream := st.listener.Subscribe()

	// SOL pricing: live from Redis when available.
	var (
		pricer   strategy.Pricer
		solPrice func() float64
		live     *redis.LivePricer
	)
	if deps.Prices != nil {
		live = redis.NewLivePricer(deps.Prices, strategy.WrappedSOLMint,
			cfg.Strategies.SOLPriceUSD, cfg.Strategies.SOLPriceMaxAge.Duration, logger)
		pricer, solPrice = live, live.PriceUSD
	} else {
		static := strategy.SOLPricer{PriceUSD: cfg.Strategies.SOLPriceUSD}
		pricer, solPrice = static, func() float64 { return static.PriceUSD }
	}

	registry, err := a.buildStrategies(deps, pricer)
	if err != nil {
		return nil, err
	}

	// Simulation gate.
	var backend simulation.Simulator = simulation.StaticSimulator{}
	if cfg.Simulation.Backend == "rpc" && deps.Chain != nil && deps.Signer != nil {
		backend = simulation.Fallback{
			simulation.NewRPCSimulator(deps.Chain, deps.Signer),
			simulation.StaticSimulator{},
		}
	}
	st.gate = simulation.NewGate(simulation.Config{
		MinProfitUSD:         cfg.Simulation.MinProfitUSD,
		MaxSlippageBps:       uint16(cfg.Simulation.MaxSlippageBps),
		ComputeUnitLimit:     cfg.Simulation.ComputeUnitLimit,
		ValidateSlippage:     cfg.Simulation.ValidateSlippage,
		ValidateComputeUnits: cfg.Simulation.ValidateComputeUnits,
	}, backend, logger)

	// Executor and landing path.
	var submitter strategy.Submitter
	if submit {
		var landing executor.Landing = executor.NewDirectLanding(deps.Chain)
		if deps.Jito != nil {
			landing = executor.NewJitoLanding(deps.Jito, deps.Jito, cfg.Jito.BaseTipLamports, cfg.Jito.MaxTipLamports)
		}
		feeStrategy, err := fees.ParseStrategy(cfg.Fees.Strategy)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		st.executor = executor.New(executor.Config{
			DefaultComputeUnitLimit: cfg.Execution.ComputeUnitLimit,
			FeeStrategy:             feeStrategy,
			ConfirmAttempts:         cfg.Execution.ConfirmAttempts,
			ConfirmInterval:         cfg.Execution.ConfirmInterval.Duration,
			DedupWindow:             cfg.Execution.DedupWindow.Duration,
		}, deps.Chain, deps.Signer, landing, deps.Estimator, logger)
		submitter = st.executor
		logger.Info("landing path selected", slog.String("mode", string(landing.Mode())))
	}

	// Result fan-out.
	st.publisher = executor.NewPublisher(cfg.Execution.ResultQueue, logger)
	a.addSinks(st.publisher, deps, hub)

	// Router.
	opts := []strategy.RouterOption{
		strategy.WithObserver(deps.Metrics),
		strategy.WithResultPublisher(st.publisher),
		strategy.WithSOLPrice(solPrice),
	}
	if deps.Chain != nil {
		opts = append(opts, strategy.WithTransactionFetcher(deps.Chain))
	}
	st.router = strategy.NewRouter(strategy.RouterConfig{
		AllowedPrograms: cfg.Strategies.DexPrograms,
		LatencyBudget:   cfg.Strategies.LatencyBudget.Duration,
		DedupWindow:     cfg.Strategies.DedupWindow.Duration,
		DryRun:          !submit,
		ClassifyOnly:    classifyOnly,
		SOLPriceUSD:     cfg.Strategies.SOLPriceUSD,
	}, registry, strategy.DefaultDecoders(), st.gate, deps.Risk, submitter, logger, opts...)

	// Maintenance loops.
	var poller *pipeline.FeePoller
	if deps.Chain != nil {
		poller = pipeline.NewFeePoller(deps.Chain, deps.Estimator, cfg.Fees.PollAccounts, logger)
	}
	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, cfg.Pipeline.ArchiveRetentionDays, logger)
		if deps.LockManager != nil {
			archiver.WithLock(deps.LockManager, 0)
		}
	}
	var cleaners []pipeline.Cleaner
	if st.executor != nil {
		cleaners = append(cleaners, st.executor)
	}
	maintenance := pipeline.NewOrchestrator(pipeline.Config{
		FeePollInterval: cfg.Fees.PollInterval.Duration,
		ArchiveCron:     cfg.Pipeline.ArchiveCron,
		CleanupInterval: cfg.Pipeline.CleanupInterval.Duration,
	}, poller, archiver, deps.Cache, logger, cleaners...)

	// Health.
	deps.Health.Register("listener", st.listener)
	deps.Health.Register("router", st.router)
	deps.Health.Register("simulation", st.gate)
	if st.executor != nil {
		deps.Health.Register("executor", st.executor)
	}

	engineOpts := []engine.Option{
		engine.WithLoop("results", st.publisher.Run),
		engine.WithLoop("maintenance", maintenance.Run),
	}
	if live != nil {
		engineOpts = append(engineOpts, engine.WithLoop("sol_price", func(ctx context.Context) error {
			return live.Run(ctx, priceRefreshInterval)
		}))
	}
	if deps.Notifier.Enabled() {
		engineOpts = append(engineOpts, engine.WithAlerts(deps.Risk, deps.Notifier))
	}
	st.engine = engine.New(engine.Config{AlertInterval: cfg.Risk.AlertInterval.Duration},
		st.listener, stream, st.router, deps.Health, logger, engineOpts...)

	logger.Info("pipeline built",
		slog.Any("strategies", registry.List()),
		slog.Bool("submit", submit),
		slog.Bool("classify_only", classifyOnly),
	)
	return st, nil
}

// buildStrategies registers every enabled strategy over the configured
// pool book.
func (a *App) buildStrategies(deps *Dependencies, pricer strategy.Pricer) (*strategy.Registry, error) {
	sc := a.cfg.Strategies
	specs := make([]strategy.PoolSpec, 0, len(sc.Pools))
	for _, p := range sc.Pools {
		specs = append(specs, strategy.PoolSpec{
			Venue:      p.Venue,
			Address:    p.Address,
			ProgramID:  p.ProgramID,
			BaseMint:   p.BaseMint,
			QuoteMint:  p.QuoteMint,
			BaseVault:  p.BaseVault,
			QuoteVault: p.QuoteVault,
			FeeBps:     p.FeeBps,
		})
	}
	book := strategy.NewPoolBook(specs, deps.Cache)
	registry := strategy.NewRegistry()

	if sc.Arbitrage.Enabled {
		venues := sc.Arbitrage.Venues
		if len(venues) == 0 {
			venues = book.Venues()
		}
		arb := strategy.NewArbitrage(strategy.ArbitrageConfig{
			MinAmountIn:         sc.Arbitrage.MinAmountIn,
			MinProfitUSD:        sc.Arbitrage.MinProfitUSD,
			Venues:              venues,
			MaxHops:             sc.Arbitrage.MaxHops,
			Intermediates:       sc.Arbitrage.Intermediates,
			FlashLoanThreshold:  sc.Arbitrage.FlashLoanThreshold,
			PriorityFeeLamports: sc.Arbitrage.PriorityFeeLamports,
			SlippageBps:         sc.Arbitrage.SlippageBps,
			ComputeUnitLimit:    sc.Arbitrage.ComputeUnitLimit,
			ComputeUnitPrice:    sc.Arbitrage.ComputeUnitPrice,
			SOLPriceUSD:         sc.SOLPriceUSD,
			TTL:                 sc.Arbitrage.TTL.Duration,
		}, book, a.logger, strategy.WithMintResolver(deps.Cache), strategy.WithPricer(pricer))
		if err := registry.Register(arb); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	if sc.Sandwich.Enabled {
		sw := strategy.NewSandwich(strategy.SandwichConfig{
			MinTargetSizeUSD:    sc.Sandwich.MinTargetSizeUSD,
			MinProfitUSD:        sc.Sandwich.MinProfitUSD,
			MaxFrontRunLamports: sc.Sandwich.MaxFrontRunLamports,
			SearchSteps:         sc.Sandwich.SearchSteps,
			PriorityFeeLamports: sc.Sandwich.PriorityFeeLamports,
			SlippageBps:         sc.Sandwich.SlippageBps,
			SOLPriceUSD:         sc.SOLPriceUSD,
			Competition:         sc.Sandwich.Competition,
			TTL:                 sc.Sandwich.TTL.Duration,
		}, book, nil, a.logger)
		if err := registry.Register(sw); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	if sc.Liquidation.Enabled {
		if deps.Positions == nil {
			a.logger.Warn("liquidation enabled but no position feed (redis disabled); skipping")
		} else {
			liq := strategy.NewLiquidation(strategy.LiquidationConfig{
				Enabled:             true,
				Protocols:           sc.Liquidation.Protocols,
				MinProfitUSD:        sc.Liquidation.MinProfitUSD,
				MaxRepayLamports:    sc.Liquidation.MaxRepayLamports,
				PriorityFeeLamports: sc.Liquidation.PriorityFeeLamports,
				SOLPriceUSD:         sc.SOLPriceUSD,
				TTL:                 sc.Liquidation.TTL.Duration,
			}, deps.Positions, nil, a.logger)
			if err := registry.Register(liq); err != nil {
				return nil, fmt.Errorf("app: %w", err)
			}
		}
	}
	return registry, nil
}

// addSinks attaches every configured consumer of execution records.
func (a *App) addSinks(p *executor.Publisher, deps *Dependencies, hub *ws.Hub) {
	if deps.Executions != nil {
		p.AddSink("postgres", deps.Executions)
	}
	if deps.Audit != nil {
		p.AddSink("audit", deps.Audit)
	}
	switch {
	case deps.SignalBus != nil:
		p.AddSink("signal_bus", redis.NewExecutionSink(deps.SignalBus))
	case hub != nil:
		p.AddSink("ws", hub)
	}
	if deps.Producer != nil {
		p.AddSink("kafka", deps.Producer)
	}
	if deps.Notifier.Enabled() {
		p.AddSink("notify", deps.Notifier)
	}
}

func (a *App) statusFunc(deps *Dependencies) ws.StatusFunc {
	return func() any {
		return map[string]any{
			"mode":        a.cfg.Mode,
			"kill_switch": deps.Risk.KillSwitchActive(),
			"healthy":     deps.Health.Snapshot().OverallHealthy,
		}
	}
}

// buildServer assembles the API. st is nil in server mode.
func (a *App) buildServer(deps *Dependencies, hub *ws.Hub, st *stages) *server.Server {
	stats := &handler.StatsHandler{}
	var names []string
	if st != nil {
		stats.Router = st.router
		stats.Listener = st.listener
		stats.Simulation = st.gate
		if st.executor != nil {
			stats.Executor = st.executor
		}
		names = st.router.Registry().List()
	}

	h := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Health),
		Status:  handler.NewStatusHandler(a.cfg.Mode, Version, names, a.startedAt, deps.Risk),
		Stats:   stats,
		Risk:    handler.NewRiskHandler(deps.Risk, deps.AuditStore(), a.logger),
		Fees:    handler.NewFeesHandler(deps.Estimator),
		Metrics: deps.Metrics.Handler(),
	}
	if store := deps.ExecutionStore(); store != nil {
		h.Executions = handler.NewExecutionHandler(store, a.logger)
	}

	return server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, h, hub, deps.RateLimiter, a.logger)
}

// Package engine runs the trading pipeline: the event source feeds the
// strategy router, execution results fan out through the publisher, and the
// maintenance loops run alongside. The kill switch only halts admission in
// the risk manager; detection and classification keep running.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mevbot/internal/domain"
	"github.com/alanyoungcy/mevbot/internal/health"
	"github.com/alanyoungcy/mevbot/internal/strategy"
)

// Source produces candidates. Run closes every subscription on exit.
type Source interface {
	Run(ctx context.Context) error
	Stop()
}

// Consumer drains a candidate stream.
type Consumer interface {
	ProcessOpportunities(ctx context.Context, stream strategy.CandidateStream) error
	Stop()
}

// AlertSource reports threshold warnings.
type AlertSource interface {
	CheckAlerts() []domain.RiskAlert
}

// AlertSink delivers warnings, for example to chat channels.
type AlertSink interface {
	RiskAlerts(ctx context.Context, alerts []domain.RiskAlert) error
}

// Loop is a named background task that runs until ctx is cancelled.
type Loop struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config holds engine timing.
type Config struct {
	AlertInterval time.Duration
}

// Engine owns the pipeline goroutines.
type Engine struct {
	cfg        Config
	source     Source
	stream     strategy.CandidateStream
	router     Consumer
	loops      []Loop
	aggregator *health.Aggregator
	alerts     AlertSource
	alertSink  AlertSink
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLoop adds a background task started by Run.
func WithLoop(name string, run func(ctx context.Context) error) Option {
	return func(e *Engine) { e.loops = append(e.loops, Loop{Name: name, Run: run}) }
}

// WithAlerts polls src every AlertInterval and forwards non-empty results
// to sink.
func WithAlerts(src AlertSource, sink AlertSink) Option {
	return func(e *Engine) {
		e.alerts = src
		e.alertSink = sink
	}
}

// New creates an Engine. stream must be subscribed to source before the
// source runs so no early candidate is missed. aggregator may be nil.
func New(cfg Config, source Source, stream strategy.CandidateStream, router Consumer, aggregator *health.Aggregator, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.AlertInterval <= 0 {
		cfg.AlertInterval = time.Minute
	}
	if aggregator == nil {
		aggregator = health.NewAggregator()
	}
	e := &Engine{
		cfg:        cfg,
		source:     source,
		stream:     stream,
		router:     router,
		aggregator: aggregator,
		logger:     logger.With(slog.String("component", "engine")),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run starts every component and blocks until ctx is cancelled, Stop is
// called or a component fails.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine: already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	e.running = true
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)

	e.logger.Info("engine starting", slog.Int("loops", len(e.loops)))

	g.Go(func() error {
		if err := e.source.Run(gctx); err != nil {
			return fmt.Errorf("source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := e.router.ProcessOpportunities(gctx, e.stream); err != nil {
			return fmt.Errorf("router: %w", err)
		}
		// The router drains its in-flight candidate before returning, so
		// the loops and the source can go now.
		cancel()
		return nil
	})
	for _, l := range e.loops {
		g.Go(func() error {
			if err := l.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("%s: %w", l.Name, err)
			}
			return nil
		})
	}
	if e.alerts != nil && e.alertSink != nil {
		g.Go(func() error { return e.watchAlerts(gctx) })
	}

	err := g.Wait()
	if err != nil {
		e.logger.Error("engine stopped with error", slog.String("error", err.Error()))
		return err
	}
	e.logger.Info("engine stopped")
	return nil
}

func (e *Engine) watchAlerts(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.AlertInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			alerts := e.alerts.CheckAlerts()
			if len(alerts) == 0 {
				continue
			}
			if err := e.alertSink.RiskAlerts(ctx, alerts); err != nil {
				e.logger.Warn("risk alert delivery failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Stop asks the router and the source to finish and returns without
// waiting. Run returns once the in-flight submission has an outcome.
func (e *Engine) Stop() {
	e.router.Stop()
	e.source.Stop()
}

// Health returns the aggregated component health.
func (e *Engine) Health() domain.EngineHealth {
	return e.aggregator.Snapshot()
}

// HealthCheck reports the engine as a single component.
func (e *Engine) HealthCheck() domain.ComponentHealth {
	snap := e.aggregator.Snapshot()
	h := domain.ComponentHealth{Healthy: snap.OverallHealthy}
	var unhealthy []string
	for _, name := range e.aggregator.Names() {
		c, ok := snap.Components[name]
		if !ok {
			continue
		}
		h.ErrorCount += c.ErrorCount
		if c.LastActive.After(h.LastActive) {
			h.LastActive = c.LastActive
		}
		if !c.Healthy {
			unhealthy = append(unhealthy, name)
		}
	}
	if len(unhealthy) > 0 {
		h.StatusMessage = fmt.Sprintf("unhealthy: %v", unhealthy)
	}
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		h.Healthy = false
		h.StatusMessage = "not running"
	}
	return h
}

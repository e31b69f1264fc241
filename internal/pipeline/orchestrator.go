// Package pipeline runs the background maintenance loops that sit beside
// the trading path: fee sampling, cache sweeps and cold-storage archival.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Janitor is a sweep loop that runs until ctx is cancelled.
type Janitor interface {
	Janitor(ctx context.Context) error
}

// Cleaner drops expired state on demand and returns how much it removed.
type Cleaner interface {
	Cleanup() int
}

// Orchestrator owns the maintenance goroutines. Any nil component is
// skipped.
type Orchestrator struct {
	feePoller   *FeePoller
	feeInterval time.Duration
	archiver    *Archiver
	archiveCron string
	janitor     Janitor
	cleaners    []Cleaner
	cleanEvery  time.Duration
	logger      *slog.Logger
}

// Config holds the loop intervals.
type Config struct {
	FeePollInterval time.Duration
	ArchiveCron     string
	CleanupInterval time.Duration
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config, feePoller *FeePoller, archiver *Archiver, janitor Janitor, logger *slog.Logger, cleaners ...Cleaner) *Orchestrator {
	if cfg.FeePollInterval <= 0 {
		cfg.FeePollInterval = 2 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Second
	}
	if cfg.ArchiveCron == "" {
		cfg.ArchiveCron = "0 3 * * *"
	}
	return &Orchestrator{
		feePoller:   feePoller,
		feeInterval: cfg.FeePollInterval,
		archiver:    archiver,
		archiveCron: cfg.ArchiveCron,
		janitor:     janitor,
		cleaners:    cleaners,
		cleanEvery:  cfg.CleanupInterval,
		logger:      logger.With(slog.String("component", "maintenance")),
	}
}

// Run starts every configured loop and blocks until ctx is cancelled or a
// loop fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if o.feePoller != nil {
		g.Go(func() error {
			return o.clean(ctx, "fee poller", o.feePoller.RunLoop(ctx, o.feeInterval))
		})
	}
	if o.archiver != nil {
		g.Go(func() error {
			return o.clean(ctx, "archiver", o.archiver.RunCron(ctx, o.archiveCron))
		})
	}
	if o.janitor != nil {
		g.Go(func() error {
			return o.clean(ctx, "cache janitor", o.janitor.Janitor(ctx))
		})
	}
	if len(o.cleaners) > 0 {
		g.Go(func() error {
			return o.clean(ctx, "cleanup", o.runCleaners(ctx))
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("maintenance stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("maintenance stopped")
	return nil
}

// clean maps a loop's exit into nil on shutdown.
func (o *Orchestrator) clean(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil || err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (o *Orchestrator) runCleaners(ctx context.Context) error {
	ticker := time.NewTicker(o.cleanEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := 0
			for _, c := range o.cleaners {
				removed += c.Cleanup()
			}
			if removed > 0 {
				o.logger.Debug("expired entries removed", slog.Int("count", removed))
			}
		}
	}
}

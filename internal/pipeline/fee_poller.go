package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// FeeRecorder accepts priority fee observations.
type FeeRecorder interface {
	Record(slot, fee uint64)
}

// FeePoller samples recent prioritization fees from the node and feeds them
// into the fee estimator.
type FeePoller struct {
	source   domain.FeeSource
	recorder FeeRecorder
	accounts []string
	lastSlot uint64
	logger   *slog.Logger
}

// NewFeePoller creates a FeePoller. accounts narrows the sample to fees paid
// by transactions that lock those accounts; empty means network-wide.
func NewFeePoller(source domain.FeeSource, recorder FeeRecorder, accounts []string, logger *slog.Logger) *FeePoller {
	return &FeePoller{
		source:   source,
		recorder: recorder,
		accounts: accounts,
		logger:   logger.With(slog.String("component", "fee_poller")),
	}
}

// Run performs one poll and records every slot newer than the last one seen.
// It returns the number of samples recorded.
func (p *FeePoller) Run(ctx context.Context) (int, error) {
	obs, err := p.source.RecentPrioritizationFees(ctx, p.accounts)
	if err != nil {
		return 0, fmt.Errorf("polling prioritization fees: %w", err)
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Slot < obs[j].Slot })

	recorded := 0
	for _, o := range obs {
		if o.Slot <= p.lastSlot {
			continue
		}
		p.recorder.Record(o.Slot, o.Fee)
		p.lastSlot = o.Slot
		recorded++
	}
	return recorded, nil
}

// RunLoop polls on a fixed interval until ctx is cancelled.
func (p *FeePoller) RunLoop(ctx context.Context, interval time.Duration) error {
	if n, err := p.Run(ctx); err != nil {
		p.logger.Warn("fee poll failed", slog.String("error", err.Error()))
	} else {
		p.logger.Debug("fee samples recorded", slog.Int("count", n))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("fee poller stopped")
			return ctx.Err()
		case <-ticker.C:
			n, err := p.Run(ctx)
			if err != nil {
				p.logger.Warn("fee poll failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				p.logger.Debug("fee samples recorded",
					slog.Int("count", n),
					slog.Uint64("last_slot", p.lastSlot))
			}
		}
	}
}

package executor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// drainTimeout bounds how long Run keeps delivering queued records after
// its context is cancelled.
const drainTimeout = 5 * time.Second

// Publisher fans execution records out to sinks on a background worker so
// the submission path never waits on storage or notification I/O.
type Publisher struct {
	sinks   []namedSink
	queue   chan domain.ExecutionRecord
	dropped atomic.Uint64
	logger  *slog.Logger
}

type namedSink struct {
	name string
	sink domain.ResultSink
}

// NewPublisher creates a Publisher with a queue of the given size.
func NewPublisher(size int, logger *slog.Logger) *Publisher {
	if size <= 0 {
		size = 256
	}
	return &Publisher{
		queue:  make(chan domain.ExecutionRecord, size),
		logger: logger.With(slog.String("component", "result_publisher")),
	}
}

// AddSink registers a sink. It must be called before Run.
func (p *Publisher) AddSink(name string, sink domain.ResultSink) {
	p.sinks = append(p.sinks, namedSink{name: name, sink: sink})
}

// Publish enqueues rec, dropping it when the queue is full.
func (p *Publisher) Publish(rec domain.ExecutionRecord) {
	select {
	case p.queue <- rec:
	default:
		p.dropped.Add(1)
		p.logger.Warn("result queue full, dropping record",
			slog.String("opportunity", rec.Opportunity.ID))
	}
}

// Dropped returns how many records were discarded.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run delivers queued records until ctx is cancelled, then drains what is
// left within drainTimeout.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("result publisher started", slog.Int("sinks", len(p.sinks)))
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case rec := <-p.queue:
			p.deliver(ctx, rec)
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-p.queue:
			p.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, rec domain.ExecutionRecord) {
	for _, s := range p.sinks {
		if err := s.sink.Handle(ctx, rec); err != nil {
			p.logger.Error("result sink failed",
				slog.String("sink", s.name),
				slog.String("opportunity", rec.Opportunity.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

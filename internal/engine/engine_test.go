package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
	"github.com/alanyoungcy/mevbot/internal/health"
	"github.com/alanyoungcy/mevbot/internal/listener"
	"github.com/alanyoungcy/mevbot/internal/strategy"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fakeSource publishes its candidates then idles until stopped.
type fakeSource struct {
	out        *listener.Broadcaster[domain.Candidate]
	candidates []domain.Candidate
	stop       chan struct{}
	once       sync.Once
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{
		out:  listener.NewBroadcaster[domain.Candidate](64),
		stop: make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		s.candidates = append(s.candidates, domain.Candidate{Signature: string(rune('a' + i))})
	}
	return s
}

func (s *fakeSource) Run(ctx context.Context) error {
	defer s.out.Close()
	for _, c := range s.candidates {
		s.out.Publish(c)
	}
	select {
	case <-ctx.Done():
	case <-s.stop:
	}
	return nil
}

func (s *fakeSource) Stop() { s.once.Do(func() { close(s.stop) }) }

type countingRouter struct {
	seen    atomic.Int64
	stopped atomic.Bool
}

func (r *countingRouter) ProcessOpportunities(ctx context.Context, stream strategy.CandidateStream) error {
	for {
		if _, err := stream.Recv(ctx); err != nil {
			return nil
		}
		r.seen.Add(1)
	}
}

func (r *countingRouter) Stop() { r.stopped.Store(true) }

func TestEngineRoutesCandidatesUntilStopped(t *testing.T) {
	src := newFakeSource(3)
	router := &countingRouter{}
	e := New(Config{}, src, src.out.Subscribe(), router, nil, discard())

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	require.Eventually(t, func() bool { return router.seen.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, e.HealthCheck().Healthy)

	e.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	assert.True(t, router.stopped.Load())
	assert.Equal(t, "not running", e.HealthCheck().StatusMessage)
}

// slowRouter holds its first candidate until released, then reports
// whether its context survived.
type slowRouter struct {
	started  chan struct{}
	release  chan struct{}
	finished chan error
}

func (r *slowRouter) ProcessOpportunities(ctx context.Context, stream strategy.CandidateStream) error {
	if _, err := stream.Recv(ctx); err != nil {
		return nil
	}
	close(r.started)
	<-r.release
	r.finished <- ctx.Err()
	for {
		if _, err := stream.Recv(ctx); err != nil {
			return nil
		}
	}
}

func (r *slowRouter) Stop() {}

func TestEngineStopWaitsForInFlightWork(t *testing.T) {
	src := newFakeSource(1)
	router := &slowRouter{started: make(chan struct{}), release: make(chan struct{}), finished: make(chan error, 1)}
	e := New(Config{}, src, src.out.Subscribe(), router, nil, discard(),
		WithLoop("idle", func(ctx context.Context) error { <-ctx.Done(); return nil }),
	)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	select {
	case <-router.started:
	case <-time.After(time.Second):
		t.Fatal("candidate never reached the router")
	}
	e.Stop()

	select {
	case <-done:
		t.Fatal("engine returned while work was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(router.release)
	assert.NoError(t, <-router.finished)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngineLoopFailureStopsEverything(t *testing.T) {
	src := newFakeSource(0)
	boom := errors.New("boom")
	e := New(Config{}, src, src.out.Subscribe(), &countingRouter{}, nil, discard(),
		WithLoop("publisher", func(ctx context.Context) error { return boom }),
	)

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "publisher")
}

func TestEngineRejectsSecondRun(t *testing.T) {
	src := newFakeSource(0)
	e := New(Config{}, src, src.out.Subscribe(), &countingRouter{}, nil, discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	require.Eventually(t, func() bool { return e.HealthCheck().StatusMessage != "not running" }, time.Second, 5*time.Millisecond)

	assert.Error(t, e.Run(ctx))
	cancel()
	require.NoError(t, <-done)
}

type staticAlerts struct{}

func (staticAlerts) CheckAlerts() []domain.RiskAlert {
	return []domain.RiskAlert{{Kind: "daily_loss", Message: "80% of limit"}}
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []domain.RiskAlert
}

func (s *recordingSink) RiskAlerts(_ context.Context, alerts []domain.RiskAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func TestEngineForwardsAlerts(t *testing.T) {
	src := newFakeSource(0)
	sink := &recordingSink{}
	e := New(Config{AlertInterval: 5 * time.Millisecond}, src, src.out.Subscribe(), &countingRouter{}, nil, discard(),
		WithAlerts(staticAlerts{}, sink),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestEngineHealthAggregates(t *testing.T) {
	agg := health.NewAggregator()
	agg.Register("listener", health.ReporterFunc(func() domain.ComponentHealth {
		return domain.ComponentHealth{Healthy: true, ErrorCount: 2}
	}))
	agg.Register("executor", health.ReporterFunc(func() domain.ComponentHealth {
		return domain.ComponentHealth{Healthy: false, ErrorCount: 1}
	}))
	src := newFakeSource(0)
	e := New(Config{}, src, src.out.Subscribe(), &countingRouter{}, agg, discard())

	snap := e.Health()
	assert.False(t, snap.OverallHealthy)
	assert.Len(t, snap.Components, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	require.Eventually(t, func() bool { return e.HealthCheck().StatusMessage != "not running" }, time.Second, 5*time.Millisecond)

	h := e.HealthCheck()
	assert.False(t, h.Healthy)
	assert.Equal(t, uint64(3), h.ErrorCount)
	assert.Contains(t, h.StatusMessage, "executor")
	cancel()
	require.NoError(t, <-done)
}

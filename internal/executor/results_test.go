package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

type collectSink struct {
	mu   sync.Mutex
	recs []domain.ExecutionRecord
	err  error
}

func (c *collectSink) Handle(_ context.Context, rec domain.ExecutionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return c.err
}

func (c *collectSink) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

func record(id string) domain.ExecutionRecord {
	return domain.ExecutionRecord{ID: id, Opportunity: domain.Opportunity{ID: id}}
}

func TestPublisherDeliversToEverySink(t *testing.T) {
	good := &collectSink{}
	failing := &collectSink{err: errors.New("down")}
	p := NewPublisher(8, discard())
	p.AddSink("failing", failing)
	p.AddSink("good", good)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Publish(record("a"))
	p.Publish(record("b"))

	require.Eventually(t, func() bool { return good.len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, failing.len())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPublisherDropsWhenFull(t *testing.T) {
	p := NewPublisher(1, discard())
	p.Publish(record("a"))
	p.Publish(record("b"))
	assert.Equal(t, uint64(1), p.Dropped())
}

func TestPublisherDrainsOnShutdown(t *testing.T) {
	sink := &collectSink{}
	p := NewPublisher(4, discard())
	p.AddSink("sink", sink)
	p.Publish(record("a"))
	p.Publish(record("b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Run(ctx)
	assert.Equal(t, 2, sink.len())
}

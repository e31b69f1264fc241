package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFeeSource struct {
	obs []domain.FeeObservation
	err error
}

func (f *fakeFeeSource) RecentPrioritizationFees(context.Context, []string) ([]domain.FeeObservation, error) {
	return append([]domain.FeeObservation(nil), f.obs...), f.err
}

type recorded struct{ slot, fee uint64 }

type fakeRecorder struct{ got []recorded }

func (r *fakeRecorder) Record(slot, fee uint64) { r.got = append(r.got, recorded{slot, fee}) }

func TestFeePollerRecordsOnlyNewSlotsInOrder(t *testing.T) {
	src := &fakeFeeSource{obs: []domain.FeeObservation{
		{Slot: 12, Fee: 300}, {Slot: 10, Fee: 100}, {Slot: 11, Fee: 200},
	}}
	rec := &fakeRecorder{}
	p := NewFeePoller(src, rec, nil, discard())

	n, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []recorded{{10, 100}, {11, 200}, {12, 300}}, rec.got)

	src.obs = append(src.obs, domain.FeeObservation{Slot: 13, Fee: 400})
	n, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, recorded{13, 400}, rec.got[3])
}

func TestFeePollerError(t *testing.T) {
	p := NewFeePoller(&fakeFeeSource{err: errors.New("rpc down")}, &fakeRecorder{}, nil, discard())
	_, err := p.Run(context.Background())
	assert.ErrorContains(t, err, "rpc down")
}

type fakeArchive struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeArchive) ArchiveExecutions(_ context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	return 2, f.err
}

func (f *fakeArchive) ArchiveAudit(_ context.Context, before time.Time) (int64, error) {
	return 1, nil
}

func TestArchiverUsesRetentionCutoff(t *testing.T) {
	blob := &fakeArchive{}
	a := NewArchiver(blob, 7, discard())
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	require.NoError(t, a.Run(context.Background()))
	require.Len(t, blob.cutoffs, 1)
	assert.Equal(t, now.Add(-7*24*time.Hour), blob.cutoffs[0])

	blob.err = errors.New("s3 down")
	assert.ErrorContains(t, a.Run(context.Background()), "s3 down")
}

type fakeLock struct {
	held     bool
	released int
}

func (l *fakeLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() { l.released++ }, nil
}

func TestArchiverLock(t *testing.T) {
	blob := &fakeArchive{}
	lock := &fakeLock{}
	a := NewArchiver(blob, 7, discard()).WithLock(lock, time.Minute)

	require.NoError(t, a.Run(context.Background()))
	assert.Len(t, blob.cutoffs, 1)
	assert.Equal(t, 1, lock.released)

	lock.held = true
	require.NoError(t, a.Run(context.Background()))
	assert.Len(t, blob.cutoffs, 1)
}

func TestCronNext(t *testing.T) {
	from := time.Date(2026, 10, 16, 12, 7, 30, 0, time.UTC)
	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 10, 16, 12, 15, 0, 0, time.UTC)},
		{"30 9-17 * * 1-5", time.Date(2026, 10, 16, 12, 30, 0, 0, time.UTC)},
		{"0 0 1 1,7 *", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := parseCron(tt.expr)
			require.NoError(t, err)
			got, ok := s.next(from)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCronRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"* * * *", "60 * * * *", "*/0 * * * *", "5-1 * * * *", "a * * * *"} {
		_, err := parseCron(expr)
		assert.Error(t, err, expr)
	}
}

type countCleaner struct{ calls chan struct{} }

func (c *countCleaner) Cleanup() int {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 1
}

func TestOrchestratorRunsCleanersAndStopsCleanly(t *testing.T) {
	cleaner := &countCleaner{calls: make(chan struct{}, 1)}
	o := NewOrchestrator(Config{CleanupInterval: time.Millisecond}, nil, nil, nil, discard(), cleaner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case <-cleaner.calls:
	case <-time.After(time.Second):
		t.Fatal("cleaner never ran")
	}
	cancel()
	assert.NoError(t, <-done)
}

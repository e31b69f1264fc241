package listener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastDeliversInOrder(t *testing.T) {
	b := NewBroadcaster[int](4)
	a := b.Subscribe()
	c := b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())

	for i := 1; i <= 3; i++ {
		assert.Equal(t, 2, b.Publish(i))
	}

	ctx := context.Background()
	for _, sub := range []*Subscription[int]{a, c} {
		for want := 1; want <= 3; want++ {
			got, err := sub.Recv(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestBroadcastLagged(t *testing.T) {
	b := NewBroadcaster[int](3)
	sub := b.Subscribe()

	for i := 0; i < 10; i++ {
		b.Publish(i)
	}

	_, err := sub.Recv(context.Background())
	missed, ok := IsLagged(err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), missed)

	// Resumes at the oldest retained message without duplicates.
	var got []int
	for i := 0; i < 3; i++ {
		v, err := sub.Recv(context.Background())
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{7, 8, 9}, got)
}

func TestBroadcastPublishNeverBlocks(t *testing.T) {
	b := NewBroadcaster[int](1)
	_ = b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10_000; i++ {
			b.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBroadcastClose(t *testing.T) {
	b := NewBroadcaster[string](2)
	sub := b.Subscribe()
	b.Publish("last")
	b.Close()
	assert.Equal(t, -1, b.Publish("dropped"))

	v, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", v)

	_, err = sub.Recv(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestBroadcastRecvWakesAndHonorsContext(t *testing.T) {
	b := NewBroadcaster[int](2)
	sub := b.Subscribe()

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Publish(42)
	}()
	v, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sub.Recv(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, b.Subscribers())
}

func TestSubscribeSeesOnlyLaterMessages(t *testing.T) {
	b := NewBroadcaster[int](8)
	b.Publish(1)
	sub := b.Subscribe()
	b.Publish(2)

	v, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Recv once the broadcaster is closed and the
// subscriber has drained every retained message.
var ErrClosed = errors.New("listener: broadcaster closed")

// LaggedError is returned by Recv when the subscriber fell more than the
// ring capacity behind. Missed messages are gone; the next Recv resumes at
// the oldest retained one.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("listener: subscriber lagged, %d messages missed", e.Missed)
}

// Broadcaster is a bounded single-producer, multi-subscriber ring. Publish
// never blocks; slow subscribers lose the oldest messages instead.
type Broadcaster[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     uint64 // sequence number of the next published message
	closed   bool
	notify   chan struct{}
	subs     int
	capacity uint64
}

// NewBroadcaster creates a Broadcaster retaining capacity messages.
func NewBroadcaster[T any](capacity int) *Broadcaster[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Broadcaster[T]{
		buf:      make([]T, capacity),
		notify:   make(chan struct{}),
		capacity: uint64(capacity),
	}
}

// Publish appends v to the ring and wakes waiting subscribers. It returns
// the number of live subscribers, or -1 if the broadcaster is closed.
func (b *Broadcaster[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return -1
	}
	b.buf[b.head%b.capacity] = v
	b.head++
	close(b.notify)
	b.notify = make(chan struct{})
	return b.subs
}

// Subscribe returns a Subscription that receives messages published after
// this call.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs++
	return &Subscription[T]{b: b, next: b.head}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

// Close stops accepting messages. Subscribers drain what is retained and
// then get ErrClosed.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Subscription is one reader of a Broadcaster. It is not safe for
// concurrent use.
type Subscription[T any] struct {
	b        *Broadcaster[T]
	next     uint64
	released bool
}

// Recv blocks until a message is available, the subscriber lagged, the
// broadcaster closed, or ctx is done.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		b := s.b
		b.mu.Lock()
		if b.head > b.capacity && s.next < b.head-b.capacity {
			oldest := b.head - b.capacity
			missed := oldest - s.next
			s.next = oldest
			b.mu.Unlock()
			return zero, &LaggedError{Missed: missed}
		}
		if s.next < b.head {
			v := b.buf[s.next%b.capacity]
			s.next++
			b.mu.Unlock()
			return v, nil
		}
		if b.closed {
			b.mu.Unlock()
			return zero, ErrClosed
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close releases the subscription.
func (s *Subscription[T]) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if !s.released {
		s.released = true
		s.b.subs--
	}
}

// Package aggregate implements the single-owner fold shared by both build
// passes: many producers send values over a bounded queue, one goroutine owns
// the accumulated state, and closing the queue is the end-of-stream sentinel.
package aggregate

import (
	"context"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// Aggregator folds values of type T into a single result of type R. fold and
// finish run only on the aggregator's own goroutine.
type Aggregator[T, R any] struct {
	in     chan T
	result chan R
	done   chan struct{}

	// mu is held shared by senders and exclusively by Close, so the queue is
	// never closed under an in-flight send.
	mu     sync.RWMutex
	closed bool
}

// Start launches the aggregator goroutine with a queue of the given capacity.
func Start[T, R any](capacity int, fold func(T), finish func() R) *Aggregator[T, R] {
	if capacity <= 0 {
		capacity = 1
	}
	a := &Aggregator[T, R]{
		in:     make(chan T, capacity),
		result: make(chan R, 1),
		done:   make(chan struct{}),
	}
	go a.run(fold, finish)
	return a
}

func (a *Aggregator[T, R]) run(fold func(T), finish func() R) {
	defer close(a.done)
	for v := range a.in {
		fold(v)
	}
	a.result <- finish()
	close(a.result)
}

// Send queues v, blocking while the queue is full. It is safe to call
// concurrently with Close; once the queue is closed it returns
// ErrChannelClosed.
func (a *Aggregator[T, R]) Send(ctx context.Context, v T) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return apperrors.ErrChannelClosed
	}
	select {
	case a.in <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends the end-of-stream sentinel. Calls after the first are no-ops.
// A Close racing a blocked Send waits for that Send to land or give up.
func (a *Aggregator[T, R]) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	close(a.in)
}

// Result waits for the fold to finish and returns its result. The result is
// handed out once; later calls fail with ErrChannelClosed.
func (a *Aggregator[T, R]) Result(ctx context.Context) (R, error) {
	var zero R
	select {
	case r, ok := <-a.result:
		if !ok {
			return zero, apperrors.ErrChannelClosed
		}
		return r, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Abandon closes the queue and waits for the aggregator goroutine to exit,
// discarding the result. Used when a pass fails after Start.
func (a *Aggregator[T, R]) Abandon() {
	a.Close()
	<-a.done
}

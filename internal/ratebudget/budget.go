// Package ratebudget enforces a sliding-window call budget against an
// external service: at most Limit calls in any trailing Window.
package ratebudget

import (
	"context"
	"errors"
	"restock-route-service/internal/platform/clock"
	"sync"
	"time"
)

type Budget struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu    sync.Mutex
	calls []time.Time // oldest first
}

func New(limit int, window time.Duration, clk clock.Clock) (*Budget, error) {
	if limit < 1 {
		return nil, errors.New("rate budget: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("rate budget: window must be positive")
	}
	if clk == nil {
		clk = clock.Real()
	}

	return &Budget{
		limit:  limit,
		window: window,
		clock:  clk,
		calls:  make([]time.Time, 0, limit),
	}, nil
}

// Acquire blocks until a call fits in the window, then records it.
// Check and record happen under one lock so concurrent callers never
// overshoot the limit.
func (b *Budget) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.clock.Now()
		b.prune(now)
		if len(b.calls) < b.limit {
			b.calls = append(b.calls, now)
			b.mu.Unlock()
			return nil
		}
		wait := b.calls[0].Add(b.window).Sub(now)
		b.mu.Unlock()

		if err := clock.Sleep(ctx, b.clock, wait); err != nil {
			return err
		}
	}
}

// Delay reports how long Acquire would currently have to wait.
func (b *Budget) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.prune(now)
	if len(b.calls) < b.limit {
		return 0
	}
	return b.calls[0].Add(b.window).Sub(now)
}

// InWindow is the number of calls recorded in the trailing window.
func (b *Budget) InWindow() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(b.clock.Now())
	return len(b.calls)
}

func (b *Budget) Limit() int            { return b.limit }
func (b *Budget) Window() time.Duration { return b.window }

// prune drops calls that left the window. Caller holds mu.
func (b *Budget) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.calls) && !b.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.calls = append(b.calls[:0], b.calls[i:]...)
	}
}

package jobs

import (
	"context"
	"sync"
	"time"
)

type debounceResult[R any] struct {
	value R
	err   error
}

// Debouncer coalesces bursts of calls into a single invocation of fn that runs
// once no new call has arrived for the quiet period. The invocation uses the
// argument of the latest call and every caller in the burst receives its result.
type Debouncer[T, R any] struct {
	wait time.Duration
	fn   func(context.Context, T) (R, error)

	mu      sync.Mutex
	timer   *time.Timer
	latest  T
	waiters []chan debounceResult[R]
}

// NewDebouncer builds a debouncer. A non-positive wait calls fn directly.
func NewDebouncer[T, R any](wait time.Duration, fn func(context.Context, T) (R, error)) *Debouncer[T, R] {
	return &Debouncer[T, R]{wait: wait, fn: fn}
}

// Call registers arg as the latest value and waits for the coalesced result.
// Returning early on ctx cancellation does not cancel the pending invocation.
func (d *Debouncer[T, R]) Call(ctx context.Context, arg T) (R, error) {
	if d.wait <= 0 {
		return d.fn(ctx, arg)
	}

	ch := make(chan debounceResult[R], 1)
	d.mu.Lock()
	d.latest = arg
	d.waiters = append(d.waiters, ch)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fire)
	d.mu.Unlock()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

func (d *Debouncer[T, R]) fire() {
	d.mu.Lock()
	arg := d.latest
	waiters := d.waiters
	d.waiters = nil
	d.timer = nil
	d.mu.Unlock()

	if len(waiters) == 0 {
		return
	}
	// Runs detached from the callers' contexts.
	value, err := d.fn(context.Background(), arg)
	for _, ch := range waiters {
		ch <- debounceResult[R]{value: value, err: err}
	}
}

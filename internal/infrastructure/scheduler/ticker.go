package scheduler

import (
	"context"
	"sync"
	"time"

	"RucFilter/internal/ports"
)

// Ticker runs a job at a fixed interval until stopped or its context ends.
type Ticker struct {
	interval  time.Duration
	immediate bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*Ticker)(nil)

// NewTicker builds a scheduler firing every interval; with immediate set the
// job also runs once on Start.
func NewTicker(interval time.Duration, immediate bool) *Ticker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Ticker{interval: interval, immediate: immediate}
}

// Start begins ticking. A second Start while running is a no-op.
func (t *Ticker) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		if t.immediate {
			job(time.Now())
		}
		for {
			select {
			case at := <-ticker.C:
				job(at)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine and waits for a running job to return.
func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

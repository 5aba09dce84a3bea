package engine

import (
	"context"
	"errors"
	"time"
)

// ErrRunning is returned by Start when the scheduler is already running.
var ErrRunning = errors.New("scheduler already running")

// Start runs one foreground refresh immediately, then a background refresh
// every interval until Stop is called or ctx ends. onSnapshot, if non-nil,
// receives every result from the scheduler goroutine, including ticks
// skipped because a write was in flight.
//
// An interval of zero or less means DefaultInterval.
func (e *Engine) Start(ctx context.Context, onSnapshot func(RefreshResult), interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	e.sched.Lock()
	defer e.sched.Unlock()
	if e.sched.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := e.clock.NewTicker(interval)
	e.sched.cancel, e.sched.done = cancel, done

	deliver := func(r RefreshResult) {
		if onSnapshot != nil && ctx.Err() == nil {
			onSnapshot(r)
		}
	}

	e.logger.Info("scheduler starting", "interval", interval)
	go func() {
		defer close(done)
		defer ticker.Stop()

		deliver(e.Refresh(ctx, true))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
			}
			if ctx.Err() != nil {
				return
			}
			if e.writing.Load() {
				e.logger.Debug("scheduled refresh skipped, write in flight")
				deliver(RefreshResult{Skipped: true, Snapshot: e.state.Snapshot()})
				continue
			}
			deliver(e.Refresh(ctx, false))
		}
	}()
	return nil
}

// Stop cancels the scheduler and waits for its goroutine to exit. No
// refresh fires and no callback runs after Stop returns. Stop is a no-op if
// the scheduler is not running.
func (e *Engine) Stop() {
	e.sched.Lock()
	cancel, done := e.sched.cancel, e.sched.done
	e.sched.cancel, e.sched.done = nil, nil
	e.sched.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.logger.Info("scheduler stopped")
}

// Running reports whether the scheduler is running.
func (e *Engine) Running() bool {
	e.sched.Lock()
	defer e.sched.Unlock()
	return e.sched.cancel != nil
}

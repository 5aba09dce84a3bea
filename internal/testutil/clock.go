package testutil

import (
	"sync"
	"time"

	"github.com/roach88/emsync/internal/clock"
)

// FakeClock is a manually advanced clock.Clock.
//
// Time only moves when Advance is called. Tickers fire synchronously from
// Advance: each tick is sent on the ticker's unbuffered channel, so Advance
// returns only after the consumer has received it. This lets a test step a
// scheduler one interval at a time with no sleeps.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

// NewFakeClock returns a clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTicker registers a ticker firing every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) clock.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &FakeTicker{
		c:      make(chan time.Time),
		period: d,
		next:   c.now.Add(d),
		done:   make(chan struct{}),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Tickers returns the number of tickers created so far.
func (c *FakeClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Advance moves time forward by d, firing every ticker whose deadline falls
// within the step. A stopped ticker is skipped. Advance must not be called
// from more than one goroutine at a time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	tickers := append([]*FakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for {
		var due *FakeTicker
		for _, t := range tickers {
			if t.stopped() || t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			break
		}
		at := due.next
		due.next = at.Add(due.period)

		c.mu.Lock()
		c.now = at
		c.mu.Unlock()

		select {
		case due.c <- at:
		case <-due.done:
		}
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// FakeTicker is a ticker driven by FakeClock.Advance.
type FakeTicker struct {
	c      chan time.Time
	period time.Duration
	next   time.Time

	once sync.Once
	done chan struct{}
}

func (t *FakeTicker) C() <-chan time.Time { return t.c }

// Stop turns the ticker off. A pending Advance blocked on this ticker is
// released.
func (t *FakeTicker) Stop() {
	t.once.Do(func() { close(t.done) })
}

func (t *FakeTicker) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

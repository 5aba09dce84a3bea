package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/emsync/internal/clock"
	"github.com/roach88/emsync/internal/ident"
	"github.com/roach88/emsync/internal/remote"
	"github.com/roach88/emsync/internal/state"
)

// DefaultInterval is the background refresh period.
const DefaultInterval = 5 * time.Minute

// Engine reconciles local writes with the remote store and keeps the local
// snapshot fresh.
//
// Thread-safety model:
//   - PerformWrite: safe from any goroutine; at most one write runs, the
//     rest are rejected with ErrCodeBusy
//   - Refresh/RefreshNow: safe from any goroutine
//   - Start/Stop: safe from any goroutine, but Stop must not be called from
//     the onSnapshot callback
type Engine struct {
	state  *state.Container
	remote remote.Remote
	clock  clock.Clock
	ids    ident.Generator
	logger *slog.Logger

	// offline is set when no store is configured; creates are numbered
	// locally.
	offline bool

	// writing is the at-most-one-write guard.
	writing atomic.Bool

	sched struct {
		sync.Mutex
		cancel func()
		done   chan struct{}
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for timestamps and the refresh ticker.
//
// Default: clock.System{}
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRequestIDs sets the generator for write correlation ids.
//
// Default: ident.UUIDv7Generator{}
func WithRequestIDs(g ident.Generator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine writing into st and talking to r.
func New(st *state.Container, r remote.Remote, opts ...Option) *Engine {
	e := &Engine{
		state:  st,
		remote: r,
		clock:  clock.System{},
		ids:    ident.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, ok := r.(remote.Offline); ok {
		e.offline = true
		st.SetOffline(true)
	}
	return e
}

// State returns the container the engine writes into.
func (e *Engine) State() *state.Container { return e.state }

// Writing reports whether a write is in flight.
func (e *Engine) Writing() bool { return e.writing.Load() }

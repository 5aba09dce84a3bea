// Package state holds the process-wide snapshot, session identity and sync
// status behind one lock.
//
// Every mutation of the snapshot goes through Container and is mirrored to
// the cache while the lock is held, so two callers can never interleave a
// merge or a cache write. The engine is the only writer in production; the
// CLI and projectors read.
package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/emsync/internal/cache"
	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/sanitize"
)

// Error sources recorded in Status.ErrorOp.
const (
	OpFetch = "fetch"
	OpWrite = "write"
)

// Status is the sync indicator.
type Status struct {
	// Syncing is true while a write is in flight.
	Syncing bool `json:"syncing"`
	// Refreshing is true while a foreground refresh is in flight.
	Refreshing bool `json:"refreshing"`
	// Offline is true when no remote store is configured.
	Offline bool `json:"offline"`

	LastError string `json:"lastError,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	// ErrorOp is OpFetch or OpWrite for the latest error.
	ErrorOp string `json:"errorOp,omitempty"`
	// WriteFailed is set from a failed write until a write succeeds or the
	// error is dismissed. A successful refresh clears only a fetch error and
	// shows the write error again.
	WriteFailed bool `json:"writeFailed,omitempty"`

	LastSynced time.Time `json:"lastSynced,omitzero"`
}

// HasError reports whether an error is showing.
func (s Status) HasError() bool { return s.LastError != "" }

// Container is the single shared snapshot and its cache mirror.
//
// Thread-safety: all methods are safe for concurrent use.
type Container struct {
	mu       sync.RWMutex
	snap     model.Snapshot
	identity model.Identity
	signedIn bool
	status   Status
	writeErr failure
	writeSeq uint64

	cache  *cache.Cache
	logger *slog.Logger
}

type failure struct {
	code, message string
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) {
		c.logger = l
	}
}

// New returns an empty container mirroring into c. c may be nil, in which
// case nothing is persisted.
func New(c *cache.Cache, opts ...Option) *Container {
	st := &Container{
		snap:   model.Empty(),
		cache:  c,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Init loads the cached snapshot and session. Call once at startup.
func (c *Container) Init(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cache == nil {
		return
	}
	c.snap = c.cache.Load(ctx)
	c.identity, c.signedIn = c.cache.LoadSession(ctx)
	c.logger.Debug("state initialized",
		"employees", len(c.snap.Employees),
		"signed_in", c.signedIn,
	)
}

// Teardown drops the in-memory snapshot, identity and status. The cache
// keeps its snapshot for the next start; the session is cleared.
func (c *Container) Teardown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearSessionLocked(ctx)
	c.snap = model.Empty()
	c.status = Status{Offline: c.status.Offline}
}

// Snapshot returns a copy of the current snapshot.
func (c *Container) Snapshot() model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

// Identity returns the signed-in user. ok is false when nobody is signed in.
func (c *Container) Identity() (model.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.signedIn
}

// Status returns the current sync status.
func (c *Container) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Login sets and persists the session identity. The identity is normalized
// the way the sanitizer normalizes users.
func (c *Container) Login(ctx context.Context, id model.Identity) model.Identity {
	id = sanitize.NormalizeIdentity(id)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.identity, c.signedIn = id, true
	if c.cache != nil {
		c.cache.SaveSession(ctx, id)
	}
	return id
}

// Logout clears the session identity.
func (c *Container) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearSessionLocked(ctx)
}

func (c *Container) clearSessionLocked(ctx context.Context) {
	c.identity, c.signedIn = model.Identity{}, false
	if c.cache != nil {
		c.cache.ClearSession(ctx)
	}
}

// DismissError clears the visible error.
func (c *Container) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearErrorLocked()
}

// SetOffline records whether a remote store is configured.
func (c *Container) SetOffline(offline bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Offline = offline
}

// SetRefreshing toggles the foreground refresh indicator.
func (c *Container) SetRefreshing(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Refreshing = on
}

// WriteSeq returns the number of writes started so far.
func (c *Container) WriteSeq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writeSeq
}

// BeginWrite applies an optimistic snapshot, marks a write in flight and
// clears any previous error.
func (c *Container) BeginWrite(ctx context.Context, optimistic model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeSeq++
	c.status.Syncing = true
	c.clearErrorLocked()
	c.applyLocked(ctx, optimistic)
}

// ConfirmWrite ends a successful write. If final is non-nil it replaces the
// optimistic snapshot.
func (c *Container) ConfirmWrite(ctx context.Context, final *model.Snapshot, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if final != nil {
		c.applyLocked(ctx, *final)
	}
	c.status.Syncing = false
	c.status.LastSynced = at
	c.clearErrorLocked()
}

// FailWrite ends a failed write. The optimistic snapshot stays until a
// refresh replaces it.
func (c *Container) FailWrite(code, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status.Syncing = false
	c.writeErr = failure{code: code, message: message}
	c.status.WriteFailed = true
	c.setErrorLocked(OpWrite, code, message)
}

// CommitRefresh installs a refreshed snapshot fetched after write number
// since had started. It refuses, returning false, when a write is in flight
// or another write started since: the fetched data may predate it.
func (c *Container) CommitRefresh(ctx context.Context, s model.Snapshot, since uint64, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Syncing || c.writeSeq != since {
		return false
	}
	c.applyLocked(ctx, s)
	c.status.LastSynced = at
	switch {
	case c.status.WriteFailed:
		c.setErrorLocked(OpWrite, c.writeErr.code, c.writeErr.message)
	case c.status.ErrorOp == OpFetch:
		c.setErrorLocked("", "", "")
	}
	return true
}

// FailRefresh records a failed refresh. Only the latest error is shown; a
// pending write failure stays flagged in Status.WriteFailed.
func (c *Container) FailRefresh(code, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErrorLocked(OpFetch, code, message)
}

func (c *Container) applyLocked(ctx context.Context, s model.Snapshot) {
	c.snap = s.Clone()
	if c.cache != nil {
		c.cache.Save(ctx, c.snap)
	}
}

func (c *Container) setErrorLocked(op, code, message string) {
	c.status.ErrorOp = op
	c.status.ErrorCode = code
	c.status.LastError = message
}

// clearErrorLocked clears the visible error and any pending write failure.
func (c *Container) clearErrorLocked() {
	c.status.ErrorOp = ""
	c.status.ErrorCode = ""
	c.status.LastError = ""
	c.status.WriteFailed = false
	c.writeErr = failure{}
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/sanitize"
)

// Cache persists the snapshot and session identity through a KV.
type Cache struct {
	kv     KV
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used to report persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New returns a Cache persisting through kv.
func New(kv KV, opts ...Option) *Cache {
	c := &Cache{kv: kv, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached snapshot merged onto the empty snapshot. A missing,
// unreadable or corrupt cache yields Empty.
func (c *Cache) Load(ctx context.Context) model.Snapshot {
	data, ok := c.get(ctx, SnapshotKey)
	if !ok {
		return model.Empty()
	}
	if !sanitize.IsPayload(data) {
		c.logger.Warn("cached snapshot unreadable, starting empty", "key", SnapshotKey)
		return model.Empty()
	}
	s, rep := sanitize.Run(data)
	for _, skip := range rep.Skips {
		c.logger.Debug("sanitize skip", "source", "cache", "skip", skip.String())
	}
	return s
}

// Save stores s. Upload payload columns are dropped first. The returned
// error is informational: failures are already logged, and the caller's
// in-memory state stays authoritative.
func (c *Cache) Save(ctx context.Context, s model.Snapshot) error {
	data, err := json.Marshal(s.WithoutTransient().Normalize())
	if err != nil {
		c.logger.Warn("cache save failed", "key", SnapshotKey, "error", err)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.set(ctx, SnapshotKey, data)
}

// LoadSession returns the stored session identity, normalized the same way
// the sanitizer normalizes users. ok is false when no usable session exists.
func (c *Cache) LoadSession(ctx context.Context) (model.Identity, bool) {
	data, ok := c.get(ctx, SessionKey)
	if !ok {
		return model.Identity{}, false
	}
	id, ok := sanitize.Identity(data)
	if !ok {
		c.logger.Warn("cached session unreadable, ignoring", "key", SessionKey)
	}
	return id, ok
}

// SaveSession stores the session identity.
func (c *Cache) SaveSession(ctx context.Context, id model.Identity) error {
	data, err := json.Marshal(sanitize.NormalizeIdentity(id))
	if err != nil {
		c.logger.Warn("cache save failed", "key", SessionKey, "error", err)
		return fmt.Errorf("encode session: %w", err)
	}
	return c.set(ctx, SessionKey, data)
}

// ClearSession removes the stored session identity.
func (c *Cache) ClearSession(ctx context.Context) error {
	err := c.guard("delete", SessionKey, func() error {
		return c.kv.Delete(ctx, SessionKey)
	})
	if err != nil {
		c.logger.Warn("cache clear failed", "key", SessionKey, "error", err)
	}
	return err
}

// Close releases the underlying KV.
func (c *Cache) Close() error {
	return c.guard("close", "", c.kv.Close)
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	var (
		data []byte
		ok   bool
	)
	err := c.guard("get", key, func() error {
		var err error
		data, ok, err = c.kv.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	return data, ok
}

func (c *Cache) set(ctx context.Context, key string, data []byte) error {
	err := c.guard("set", key, func() error {
		return c.kv.Set(ctx, key, data)
	})
	if err != nil {
		c.logger.Warn("cache save failed", "key", key, "bytes", len(data), "error", err)
	}
	return err
}

// guard runs fn, converting a panicking backend into an error.
func (c *Cache) guard(op, key string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cache %s %q: panic: %v", op, key, r)
		}
	}()
	return fn()
}

package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Well-known keys.
const (
	SnapshotKey = "ems_data"
	SessionKey  = "ems_user"
)

// KV is the durable key-value surface Cache persists through.
type KV interface {
	// Get returns the stored value. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names accepted by OpenKV.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options selects and configures a KV backend.
type Options struct {
	Driver string
	Path   string // sqlite database file
	Redis  RedisOptions
}

// OpenKV opens the backend named by o.Driver. An empty driver means sqlite.
func OpenKV(ctx context.Context, o Options) (KV, error) {
	switch o.Driver {
	case "", DriverSQLite:
		return OpenSQLite(o.Path)
	case DriverRedis:
		return OpenRedis(ctx, o.Redis)
	case DriverMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", o.Driver)
	}
}

// MemoryKV is a process-local KV.
//
// Thread-safety: MemoryKV is safe for concurrent use via internal mutex.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return slices.Clone(v), ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }

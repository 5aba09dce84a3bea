package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrInjected is returned by FlakyKV when a failure is switched on.
var ErrInjected = errors.New("injected persistence failure")

// FlakyKV is an in-memory key-value store whose operations can be made to
// fail or panic on demand. It satisfies cache.KV.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FlakyKV struct {
	mu        sync.Mutex
	data      map[string][]byte
	failGet   bool
	failSet   bool
	panicking bool
	sets      int
}

// NewFlakyKV returns a healthy, empty store.
func NewFlakyKV() *FlakyKV {
	return &FlakyKV{data: make(map[string][]byte)}
}

// FailGets makes Get return ErrInjected while on is true.
func (k *FlakyKV) FailGets(on bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failGet = on
}

// FailSets makes Set and Delete return ErrInjected while on is true, as a
// full disk or exhausted quota would.
func (k *FlakyKV) FailSets(on bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failSet = on
}

// Panic makes every operation panic while on is true.
func (k *FlakyKV) Panic(on bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.panicking = on
}

// Sets returns the number of successful Set calls.
func (k *FlakyKV) Sets() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sets
}

// Raw returns the stored bytes for key.
func (k *FlakyKV) Raw(key string) ([]byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	return slices.Clone(v), ok
}

func (k *FlakyKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.panicking {
		panic("flaky kv: get")
	}
	if k.failGet {
		return nil, false, ErrInjected
	}
	v, ok := k.data[key]
	return slices.Clone(v), ok, nil
}

func (k *FlakyKV) Set(_ context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.panicking {
		panic("flaky kv: set")
	}
	if k.failSet {
		return ErrInjected
	}
	k.data[key] = slices.Clone(value)
	k.sets++
	return nil
}

func (k *FlakyKV) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.panicking {
		panic("flaky kv: delete")
	}
	if k.failSet {
		return ErrInjected
	}
	delete(k.data, key)
	return nil
}

func (k *FlakyKV) Close() error { return nil }

// Package cache persists the last known-good snapshot and the session
// identity so emsync starts instantly and works offline.
//
// Cache sits on top of a plain key-value surface (KV) with three backends:
//
//   - SQLiteKV: a single-table SQLite database (default, file on disk)
//   - RedisKV: a shared Redis instance, keys namespaced by a prefix
//   - MemoryKV: process-local, used by tests and --cache memory
//
// Persistence is best-effort. Cache never panics and never fails a caller:
// read problems degrade to the empty snapshot, write problems are logged and
// returned for information only. The in-memory state held by the engine stays
// authoritative for the life of the process.
//
// Writes to the snapshot key are serialized by the engine, which funnels
// every mutation through one state container; Cache itself adds no
// transactional semantics.
package cache

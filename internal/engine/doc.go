// Package engine implements the emsync reconciliation engine and sync
// scheduler.
//
// ARCHITECTURE:
//
// All shared state lives in one state.Container. The engine is the only
// component that mutates it, through two paths:
//
//   - PerformWrite: optimistic apply, transmit, reconcile. An atomic guard
//     admits one write at a time; a second concurrent write is rejected with
//     ErrCodeBusy, never queued.
//   - Refresh: fetch, sanitize, install. A refresh never lands while a write
//     is in flight, and a refresh whose fetch overlapped the start of a
//     write is discarded, so background polling cannot clobber optimistic
//     state that the store has not yet confirmed.
//
// The scheduler (Start/Stop) drives Refresh from a clock.Ticker so tests can
// step intervals with a fake clock.
//
// Identity policy: the store assigns ids. A created row carries the pending
// id 0 until the canonical record comes back and replaces it.
//
// ERRORS:
//
// Public operations return result values carrying a *SyncError; nothing is
// thrown past the caller. Failures are also mirrored into the container's
// Status, which keeps only the latest error. A failed write triggers a
// corrective refresh so local state cannot drift from the store.
package engine

package engine

import (
	"context"

	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/remote"
)

// WriteResult is the outcome of PerformWrite.
type WriteResult struct {
	Action    model.Action
	RequestID string

	// Snapshot is the local state after the write settled: the reconciled
	// snapshot on success, the refreshed (or still optimistic) snapshot on
	// failure, the untouched current snapshot when rejected as busy.
	Snapshot model.Snapshot

	// Record is the canonical entity returned by the store for an upsert,
	// nil otherwise.
	Record model.Entity

	Err *SyncError
}

// OK reports whether the write was confirmed by the store.
func (r WriteResult) OK() bool { return r.Err == nil }

// PerformWrite applies optimistic locally, transmits (action, payload) and
// reconciles the store's answer.
//
// The steps are:
//  1. Guard: if a write is already in flight, return ErrCodeBusy without
//     touching any state.
//  2. Apply optimistic to memory and cache, so the change is visible before
//     the network call.
//  3. Transmit.
//  4. On failure: record the error, release the guard, then run a corrective
//     refresh to discard whatever the store did not confirm.
//  5. On success without a returned record: optimistic becomes final. With
//     no store configured, a created row is first numbered max + 1.
//  6. On success with a record (upserts): replace the optimistic row with the
//     canonical one and persist.
func (e *Engine) PerformWrite(ctx context.Context, action model.Action, payload any, optimistic model.Snapshot) WriteResult {
	res := WriteResult{Action: action}

	if !action.Valid() {
		res.Err = &SyncError{Code: ErrCodeInvalidAction, Message: "unsupported action", Action: action}
		res.Snapshot = e.state.Snapshot()
		return res
	}

	if !e.writing.CompareAndSwap(false, true) {
		e.logger.Debug("write rejected, sync busy", "action", action)
		res.Err = newBusyError(action)
		res.Snapshot = e.state.Snapshot()
		return res
	}
	released := false
	release := func() {
		if !released {
			released = true
			e.writing.Store(false)
		}
	}
	defer release()

	// Cache writes must land even if the caller gives up on the network call.
	sctx := context.WithoutCancel(ctx)

	res.RequestID = e.ids.Generate()
	e.state.BeginWrite(sctx, optimistic)

	hasPhoto, hasFile := uploadFlags(payload)
	e.logger.Info("write",
		"action", action,
		"request_id", res.RequestID,
		"has_photo", hasPhoto,
		"has_file", hasFile,
	)

	resp, err := e.remote.Write(ctx, remote.WriteRequest{
		Action:    action,
		Payload:   payload,
		RequestID: res.RequestID,
	})
	if err != nil {
		res.Err = fromRemote(err, action, res.RequestID)
		e.fail(ctx, &res, release)
		return res
	}

	if resp.Data == nil && action.IsUpsert() && e.offline {
		// Without a store nothing assigns the id, and a pending row left in
		// place would be replaced by the next create.
		resp.Data, _ = localRecord(e.state.Snapshot(), action.Kind(), payload)
	}

	if resp.Data == nil || !action.IsUpsert() {
		e.state.ConfirmWrite(sctx, nil, e.clock.Now())
		res.Snapshot = e.state.Snapshot()
		e.logger.Info("write confirmed", "action", action, "request_id", res.RequestID)
		return res
	}

	final, rec, err := reconcile(e.state.Snapshot(), action, payload, resp.Data)
	if err != nil {
		res.Err = newMalformedError(action, res.RequestID, err.Error(), err)
		e.fail(ctx, &res, release)
		return res
	}

	e.state.ConfirmWrite(sctx, &final, e.clock.Now())
	res.Snapshot = e.state.Snapshot()
	res.Record = rec
	e.logger.Info("write reconciled",
		"action", action,
		"request_id", res.RequestID,
		"id", rec.Key(),
	)
	return res
}

// fail records a failed write and pulls authoritative state. The refresh
// runs after the guard is released and survives cancellation of ctx, so a
// canceled write still converges.
func (e *Engine) fail(ctx context.Context, res *WriteResult, release func()) {
	e.logger.Warn("write failed",
		"action", res.Action,
		"request_id", res.RequestID,
		"code", res.Err.Code,
		"error", res.Err.Message,
	)
	e.state.FailWrite(string(res.Err.Code), res.Err.Message)
	release()

	r := e.Refresh(context.WithoutCancel(ctx), false)
	if r.Err != nil {
		e.logger.Warn("corrective refresh failed", "request_id", res.RequestID, "error", r.Err)
	}
	res.Snapshot = e.state.Snapshot()
}

// Uploads is implemented by payloads that can carry photo or document data.
type Uploads interface {
	HasUploads() (photo, file bool)
}

// uploadFlags reports whether a payload carries photo or document data.
// Only presence is logged, never content.
func uploadFlags(payload any) (photo, file bool) {
	switch p := payload.(type) {
	case Uploads:
		return p.HasUploads()
	case map[string]any:
		return nonEmpty(p[model.PhotoDataField]), nonEmpty(p[model.FileDataField])
	}
	return false, false
}

func nonEmpty(v any) bool {
	return v != nil && v != ""
}

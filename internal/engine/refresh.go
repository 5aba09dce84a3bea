package engine

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/remote"
	"github.com/roach88/emsync/internal/sanitize"
)

// RefreshResult is the outcome of one refresh.
type RefreshResult struct {
	// Snapshot is the local state after the refresh.
	Snapshot model.Snapshot

	// Updated is true when a fresh snapshot was installed.
	Updated bool

	// Skipped is true when the refresh was not applied because a write was
	// in flight or started while fetching.
	Skipped bool

	// Offline is true when no remote store is configured.
	Offline bool

	// Foreground is true when the refresh showed the indicator.
	Foreground bool

	SyncedAt time.Time
	Err      *SyncError
}

// RefreshNow fetches the full snapshot and installs it. show controls the
// foreground refresh indicator.
func (e *Engine) RefreshNow(ctx context.Context, show bool) RefreshResult {
	return e.Refresh(ctx, show)
}

// Refresh fetches, sanitizes and installs the remote snapshot.
//
// On failure the previous snapshot is kept and the error is recorded in the
// status, except for cancellation by the caller, which is not a sync error.
// A fetch that overlapped the start of a write is discarded rather than
// allowed to clobber the write's optimistic state.
func (e *Engine) Refresh(ctx context.Context, show bool) RefreshResult {
	res := RefreshResult{Foreground: show}

	if show {
		e.state.SetRefreshing(true)
		defer e.state.SetRefreshing(false)
	}

	since := e.state.WriteSeq()
	if e.writing.Load() {
		res.Skipped = true
		res.Snapshot = e.state.Snapshot()
		e.logger.Debug("refresh skipped, write in flight")
		return res
	}

	start := e.clock.Now()
	raw, err := e.remote.Fetch(ctx)
	switch {
	case errors.Is(err, remote.ErrOffline):
		e.state.SetOffline(true)
		res.Offline = true
		res.Snapshot = e.state.Snapshot()
		return res
	case err != nil && errors.Is(err, context.Canceled):
		res.Err = fromRemote(err, "", "")
		res.Snapshot = e.state.Snapshot()
		e.logger.Debug("refresh canceled")
		return res
	case err != nil:
		res.Err = fromRemote(err, "", "")
		return e.refreshFailed(res)
	case !sanitize.IsPayload(raw):
		res.Err = newMalformedError("", "", "snapshot is not a JSON object", nil)
		return e.refreshFailed(res)
	}

	s, rep := sanitize.Run(raw)
	for _, skip := range rep.Skips {
		e.logger.Debug("sanitize skip", "source", "remote", "skip", skip.String())
	}

	now := e.clock.Now()
	e.state.SetOffline(false)
	if !e.state.CommitRefresh(context.WithoutCancel(ctx), s, since, now) {
		res.Skipped = true
		res.Snapshot = e.state.Snapshot()
		e.logger.Debug("refresh discarded, write started during fetch")
		return res
	}

	res.Updated = true
	res.SyncedAt = now
	res.Snapshot = e.state.Snapshot()
	e.logger.Info("refresh complete",
		"employees", len(s.Employees),
		"skips", len(rep.Skips),
		"elapsed", now.Sub(start),
		"foreground", show,
	)
	return res
}

func (e *Engine) refreshFailed(res RefreshResult) RefreshResult {
	e.logger.Warn("refresh failed", "code", res.Err.Code, "error", res.Err.Message)
	e.state.FailRefresh(string(res.Err.Code), res.Err.Message)
	res.Snapshot = e.state.Snapshot()
	return res
}

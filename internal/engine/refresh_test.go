package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/remote"
	"github.com/roach88/emsync/internal/testutil"
)

func TestRefresh_InstallsSanitizedSnapshot(t *testing.T) {
	f := newFixture(t)
	f.remote.SetDocument(map[string]any{
		"users":              []any{map[string]any{"User_ID": "7", "User_Type": "admin"}},
		"posts":              []any{map[string]any{"Post_ID": 2.0, "Post_Name": "Clerk"}},
		"userPostSelections": map[string]any{"7": "[2]"},
	})

	r := f.eng.RefreshNow(t.Context(), true)

	require.Nil(t, r.Err)
	assert.True(t, r.Updated)
	assert.True(t, r.Foreground)
	assert.Equal(t, epoch, r.SyncedAt)
	assert.Equal(t, model.RoleAdmin, r.Snapshot.Users[0].UserType)
	assert.Equal(t, []model.ID{2}, r.Snapshot.PostSelections.Get(7))
	assert.Equal(t, r.Snapshot, f.state.Snapshot())
	assert.Len(t, f.cache.Load(t.Context()).Posts, 1)
	assert.False(t, f.state.Status().Refreshing, "indicator cleared when done")
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seed(t, posts(model.Post{PostID: 1}))
	f.remote.QueueFetch(testutil.FetchReply{Err: &remote.Error{Code: remote.CodeTransport, Op: "fetch", Message: "HTTP 502"}})

	r := f.eng.Refresh(t.Context(), false)

	require.NotNil(t, r.Err)
	assert.True(t, IsTransport(r.Err))
	assert.False(t, r.Updated)
	assert.Equal(t, []model.Post{{PostID: 1}}, r.Snapshot.Posts)

	st := f.state.Status()
	assert.Equal(t, "HTTP 502", st.LastError)
	assert.Equal(t, "fetch", st.ErrorOp)

	f.remote.SetDocument(map[string]any{})
	require.Nil(t, f.eng.Refresh(t.Context(), false).Err)
	assert.False(t, f.state.Status().HasError(), "fetch error cleared by the next good refresh")
}

func TestRefresh_UnusablePayload(t *testing.T) {
	f := newFixture(t)
	f.seed(t, posts(model.Post{PostID: 1}))
	f.remote.SetDocument("<html>login</html>")

	r := f.eng.Refresh(t.Context(), false)

	assert.True(t, IsMalformed(r.Err))
	assert.Len(t, r.Snapshot.Posts, 1)
	assert.Equal(t, string(ErrCodeMalformed), f.state.Status().ErrorCode)
}

func TestRefresh_TimeoutCode(t *testing.T) {
	f := newFixture(t)
	f.remote.QueueFetch(testutil.FetchReply{Err: context.DeadlineExceeded})

	r := f.eng.Refresh(t.Context(), false)
	assert.True(t, IsTimeout(r.Err))
}

func TestRefresh_CanceledIsSilent(t *testing.T) {
	f := newFixture(t)
	f.remote.SetDocument(map[string]any{})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	r := f.eng.Refresh(ctx, true)

	require.NotNil(t, r.Err)
	assert.True(t, errors.Is(r.Err, context.Canceled))
	assert.False(t, f.state.Status().HasError())
	assert.False(t, f.state.Status().Refreshing)
}

func TestRefresh_SkippedWhileWriting(t *testing.T) {
	f := newFixture(t)
	f.remote.SetDocument(map[string]any{})
	gate := make(chan struct{})
	f.remote.QueueWrite(testutil.WriteReply{Gate: gate})

	done := make(chan WriteResult)
	go func() {
		done <- f.eng.PerformWrite(context.Background(), model.ActionUpsertPost, map[string]any{"Post_Name": "X"}, posts(model.Post{PostName: "X"}))
	}()
	<-f.remote.Started()

	r := f.eng.Refresh(t.Context(), false)
	assert.True(t, r.Skipped)
	assert.Zero(t, f.remote.Fetches())
	assert.Len(t, r.Snapshot.Posts, 1, "optimistic row survives")

	close(gate)
	<-done
}

func TestRefresh_DiscardedWhenWriteStartsDuringFetch(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.remote.QueueFetch(testutil.FetchReply{Doc: map[string]any{}, Gate: gate})
	f.remote.QueueWrite(testutil.WriteReply{})

	done := make(chan RefreshResult)
	go func() { done <- f.eng.Refresh(context.Background(), false) }()
	<-f.remote.Fetching()

	w := f.eng.PerformWrite(t.Context(), model.ActionUpsertPost, map[string]any{"Post_Name": "X"}, posts(model.Post{PostName: "X"}))
	require.True(t, w.OK())

	close(gate)
	r := <-done
	assert.True(t, r.Skipped)
	assert.False(t, r.Updated)
	assert.Len(t, f.state.Snapshot().Posts, 1, "stale fetch must not clobber the write")
}

func TestRefresh_Offline(t *testing.T) {
	f := newFixture(t)
	f.remote.QueueFetch(testutil.FetchReply{Err: remote.ErrOffline})

	r := f.eng.Refresh(t.Context(), false)
	assert.True(t, r.Offline)
	assert.Nil(t, r.Err)
	assert.True(t, f.state.Status().Offline)

	f.remote.SetDocument(map[string]any{})
	f.eng.Refresh(t.Context(), false)
	assert.False(t, f.state.Status().Offline)
}

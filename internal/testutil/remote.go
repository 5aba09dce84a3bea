package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/emsync/internal/remote"
)

// ErrScriptExhausted is returned when a ScriptedRemote runs out of replies.
var ErrScriptExhausted = errors.New("scripted remote: no reply queued")

// FetchReply is one scripted Fetch outcome.
type FetchReply struct {
	Doc any
	Err error
	// Gate, when non-nil, holds the reply until it is closed or the
	// request context ends.
	Gate chan struct{}
}

// WriteReply is one scripted Write outcome.
type WriteReply struct {
	Resp remote.WriteResponse
	Err  error
	Gate chan struct{}
}

// ScriptedRemote is a remote.Remote that answers from queued replies and
// records every request.
//
// When the fetch queue is empty, Fetch repeats the last Doc set with
// SetDocument (or fails with ErrScriptExhausted if there is none).
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ScriptedRemote struct {
	mu      sync.Mutex
	fetches []FetchReply
	writes  []WriteReply
	doc     any
	hasDoc  bool

	fetchCount int
	requests   []remote.WriteRequest
	started    chan remote.WriteRequest
	fetching   chan struct{}
}

// NewScriptedRemote returns a remote with nothing queued.
func NewScriptedRemote() *ScriptedRemote {
	return &ScriptedRemote{
		started:  make(chan remote.WriteRequest, 64),
		fetching: make(chan struct{}, 64),
	}
}

// SetDocument sets the document returned when no fetch reply is queued.
func (r *ScriptedRemote) SetDocument(doc any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc, r.hasDoc = doc, true
}

// QueueFetch appends fetch replies.
func (r *ScriptedRemote) QueueFetch(replies ...FetchReply) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, replies...)
}

// QueueWrite appends write replies.
func (r *ScriptedRemote) QueueWrite(replies ...WriteReply) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, replies...)
}

// Started delivers each write request as soon as Write is entered, before
// any gate is waited on.
func (r *ScriptedRemote) Started() <-chan remote.WriteRequest { return r.started }

// Fetching receives a value each time Fetch is entered.
func (r *ScriptedRemote) Fetching() <-chan struct{} { return r.fetching }

// Requests returns the write requests received so far.
func (r *ScriptedRemote) Requests() []remote.WriteRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]remote.WriteRequest(nil), r.requests...)
}

// Fetches returns the number of Fetch calls so far.
func (r *ScriptedRemote) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetchCount
}

func (r *ScriptedRemote) Fetch(ctx context.Context) (any, error) {
	r.mu.Lock()
	r.fetchCount++
	var reply FetchReply
	switch {
	case len(r.fetches) > 0:
		reply = r.fetches[0]
		r.fetches = r.fetches[1:]
	case r.hasDoc:
		reply = FetchReply{Doc: r.doc}
	default:
		reply = FetchReply{Err: ErrScriptExhausted}
	}
	r.mu.Unlock()

	select {
	case r.fetching <- struct{}{}:
	default:
	}

	if err := wait(ctx, reply.Gate); err != nil {
		return nil, &remote.Error{Code: remote.CodeTransport, Op: "fetch", Message: err.Error(), Err: err}
	}
	return reply.Doc, reply.Err
}

func (r *ScriptedRemote) Write(ctx context.Context, req remote.WriteRequest) (remote.WriteResponse, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	reply := WriteReply{Err: ErrScriptExhausted}
	if len(r.writes) > 0 {
		reply = r.writes[0]
		r.writes = r.writes[1:]
	}
	r.mu.Unlock()

	select {
	case r.started <- req:
	default:
	}

	if err := wait(ctx, reply.Gate); err != nil {
		return remote.WriteResponse{}, &remote.Error{Code: remote.CodeTransport, Op: "write", Message: err.Error(), Err: err}
	}
	return reply.Resp, reply.Err
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return ctx.Err()
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

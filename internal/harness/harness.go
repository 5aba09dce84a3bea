package harness

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/roach88/emsync/internal/cache"
	"github.com/roach88/emsync/internal/engine"
	"github.com/roach88/emsync/internal/ident"
	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/mutation"
	"github.com/roach88/emsync/internal/remote"
	"github.com/roach88/emsync/internal/state"
	"github.com/roach88/emsync/internal/testutil"
)

// Epoch is the fixed time scenarios run at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is one scenario run: an engine over an in-memory cache and a
// scripted remote store.
type Harness struct {
	engine *engine.Engine
	state  *state.Container
	remote *testutil.ScriptedRemote
	doc    map[string]any
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory cache. Execution flow:
//  1. Serve the scenario's remote document and run an initial refresh
//  2. Execute the steps in order, checking each expect clause
//  3. Evaluate the assertions against the trace, snapshot and status
//
// A non-nil error means the scenario could not run at all; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := testutil.DiscardLogger()

	st := state.New(cache.New(cache.NewMemoryKV(), cache.WithLogger(logger)), state.WithLogger(logger))
	rem := testutil.NewScriptedRemote()
	eng := engine.New(st, rem,
		engine.WithClock(testutil.NewFakeClock(Epoch)),
		engine.WithRequestIDs(ident.NewFixedGenerator()),
		engine.WithLogger(logger),
	)
	defer eng.Stop()

	h := &Harness{
		engine: eng,
		state:  st,
		remote: rem,
		doc:    maps.Clone(scenario.Remote),
	}
	if h.doc == nil {
		h.doc = map[string]any{}
	}
	rem.SetDocument(h.doc)

	result := NewResult()
	if ev := h.refresh(ctx, result); ev.Case != CaseUpdated {
		return nil, fmt.Errorf("initial refresh: %s", ev.Case)
	}

	for i, step := range scenario.Steps {
		var completion TraceEvent
		if step.Refresh {
			completion = h.refresh(ctx, result)
		} else {
			completion = h.write(ctx, step, result)
		}
		if step.Expect != nil {
			if msg := checkExpect(i, step.Expect, completion); msg != "" {
				result.AddError(msg)
			}
		}
	}

	snapshot, err := st.Snapshot().Raw()
	if err != nil {
		return nil, fmt.Errorf("final state: %w", err)
	}
	result.State = snapshot
	result.Status = st.Status()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) refresh(ctx context.Context, result *Result) TraceEvent {
	r := h.engine.RefreshNow(ctx, true)
	ev := TraceEvent{Type: EventRefresh, Case: CaseUpdated}
	switch {
	case r.Err != nil:
		ev.Case = string(r.Err.Code)
	case r.Offline:
		ev.Case = CaseOffline
	case r.Skipped:
		ev.Case = CaseSkipped
	}
	return result.add(ev)
}

func (h *Harness) write(ctx context.Context, step Step, result *Result) TraceEvent {
	action := model.Action(step.Action)
	plan, err := mutation.ForAction(h.state.Snapshot(), action, step.Payload)
	if err != nil {
		return result.add(TraceEvent{
			Type:   EventCompletion,
			Action: step.Action,
			Case:   CasePlanError,
			Result: map[string]any{"error": err.Error()},
		})
	}

	reply := testutil.WriteReply{}
	if r := step.Reply; r != nil {
		reply.Resp.Data = r.Data
		if r.Error != nil {
			reply.Err = &remote.Error{
				Code:    remote.ErrorCode(r.Error.Code),
				Op:      "write",
				Message: r.Error.Message,
			}
		}
		// The store's state after the write is what the corrective refresh
		// of a failed write, or any later refresh, must see.
		if r.Remote != nil {
			maps.Copy(h.doc, r.Remote)
			h.remote.SetDocument(maps.Clone(h.doc))
		}
	}
	h.remote.QueueWrite(reply)

	result.add(TraceEvent{
		Type:   EventWrite,
		Action: step.Action,
		Args:   genericJSON(plan.Payload),
	})
	res := h.engine.PerformWrite(ctx, plan.Action, plan.Payload, plan.Next)

	ev := TraceEvent{
		Type:      EventCompletion,
		Action:    step.Action,
		RequestID: res.RequestID,
		Case:      CaseOK,
	}
	if res.Err != nil {
		ev.Case = string(res.Err.Code)
	}
	if res.Record != nil {
		ev.Result = genericJSON(res.Record)
	}
	return result.add(ev)
}

// checkExpect compares a completion against the step's expect clause and
// returns a failure message, or "" when it holds.
func checkExpect(index int, want *ExpectClause, got TraceEvent) string {
	if want.Case != got.Case {
		return fmt.Sprintf("steps[%d]: expected case %q, got %q (result %v)", index, want.Case, got.Case, got.Result)
	}
	if len(want.Result) > 0 && !matchArgs(got.Result, want.Result) {
		return fmt.Sprintf("steps[%d]: expected result %v, got %v", index, want.Result, got.Result)
	}
	return ""
}

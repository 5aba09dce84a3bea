package harness

import (
	"encoding/json"

	"github.com/roach88/emsync/internal/state"
)

// Trace event types.
const (
	EventRefresh    = "refresh"
	EventWrite      = "write"
	EventCompletion = "completion"
)

// Completion cases besides the sync error codes.
const (
	CaseOK        = "ok"
	CasePlanError = "PLAN_ERROR"
	CaseUpdated   = "updated"
	CaseSkipped   = "skipped"
	CaseOffline   = "offline"
)

// TraceEvent is one step of a scenario run.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Action    string `json:"action,omitempty"`
	Args      any    `json:"args,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Case      string `json:"case,omitempty"`
	Result    any    `json:"result,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// State is the final snapshot in document form, keyed by table name.
	State map[string]any `json:"state,omitempty"`

	Status state.Status `json:"status"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) TraceEvent {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
	return ev
}

// genericJSON converts v into plain maps, slices, strings, float64s and
// bools, the shape trace comparison and golden files work on.
func genericJSON(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

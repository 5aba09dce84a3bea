// Package mutation computes writes.
//
// A planner takes the current snapshot and the user's intent and returns a
// Plan: the action name, the payload to transmit and the optimistic snapshot
// to apply before the network call. Planners are pure; the engine performs
// the plan.
//
// New rows are sent with the pending id 0 and the store assigns the real
// id. A table holds at most one pending row at a time.
package mutation

// Package harness runs sync scenarios against the real engine.
//
// A scenario is a remote document plus an ordered list of steps. Each write
// step is planned from a loosely-typed payload, answered by a scripted
// remote store, and recorded in a trace. Assertions then check the trace,
// the final snapshot and the sync status.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	remote:                      # document every fetch returns
//	  users: [{User_ID: 7, User_Type: NORMAL}]
//	  userPostSelections: {"7": "[3]"}
//	steps:
//	  - action: upsertPost
//	    payload: {Post_Name: Driver}
//	    reply:                   # omitted: success without a record
//	      data: {Post_ID: 5, Post_Name: Driver}
//	      remote:                # tables the store holds after the write
//	        posts: [{Post_ID: 5, Post_Name: Driver}]
//	    expect:
//	      case: ok
//	      result: {Post_ID: 5}
//	  - action: deleteBranch
//	    payload: {Branch_ID: 9}
//	    reply:
//	      error: {code: SERVER_REJECTED, message: "branch in use"}
//	    expect: {case: SERVER_REJECTED}
//	  - refresh: true
//	assertions:
//	  - type: trace_count
//	    action: upsertPost
//	    count: 1
//	  - type: final_state
//	    table: posts
//	    where: {Post_ID: 5}
//	    expect: {Post_Name: Driver}
//	  - type: status
//	    expect: {errorCode: SERVER_REJECTED}
//
// # Assertion Types
//
//   - trace_contains: a write of the action was sent with matching args
//   - trace_order: writes of the actions were sent in this order
//   - trace_count: the action was sent exactly N times
//   - final_state: exactly one row of the table matches where, and it
//     holds the expected values
//   - table_count: the table has N rows matching where
//   - status: the sync status holds the expected values
//
// # Deterministic Testing
//
// Scenarios run with a fixed clock, "req-N" request ids and an in-memory
// cache, so traces are identical across runs and can be compared with
// golden files (see RunWithGolden).
package harness

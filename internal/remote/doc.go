// Package remote talks to the authoritative spreadsheet store.
//
// The store speaks a two-call protocol. Fetch returns the whole snapshot as a
// loosely-shaped JSON document; Write sends {action, payload} and gets back
// either {status: "error", message} or a success document that may carry the
// canonical record under "data".
//
// Three implementations are provided:
//
//   - Client: the HTTP web-hook endpoint
//   - Workbook: a local .xlsx file with one sheet per table, for offline
//     installations and demos
//   - Offline: no store at all; fetches yield ErrOffline, writes succeed
//
// Failures are reported as *Error carrying one of the transport codes.
package remote

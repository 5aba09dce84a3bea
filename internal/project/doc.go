// Package project derives role-scoped views of a snapshot.
//
// Every function is a pure function of its arguments: no caching, no I/O.
// Callers recompute whenever the snapshot or the identity changes, which is
// cheap at the sizes a spreadsheet-backed store reaches.
//
// Scoping rules:
//   - An administrator sees every row.
//   - Anyone else sees the employees of the offices they are custodian of,
//     and the posts listed in their post selection.
package project

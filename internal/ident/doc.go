// Package ident allocates entity keys and write correlation ids.
//
// emsync lets the remote assign entity ids. A new row carries the sentinel
// id 0 (Pending) in local state until the remote returns the canonical
// record, at which point the reconciler replaces the pending row. At most one
// pending row exists per table, which makes the match unambiguous.
package ident

// Package model defines the strongly-typed local model for emsync.
//
// The remote spreadsheet store is schema-less; everything it returns is
// translated into these types by the sanitize package before any other
// component sees it. From that point on the rest of the system works only
// with model types.
//
// # Identifiers
//
// Every entity carries a numeric identifier field named <Entity>_ID. The
// value 0 (PendingID) is reserved: it marks a record created locally whose
// authoritative identifier has not yet been assigned by the remote store.
//
// # Immutability
//
// A Snapshot is treated as an immutable value. Helpers in this package and in
// the mutation package always build new slices instead of editing rows in
// place, so a Snapshot handed to a reader can never change underneath it.
//
// # Loose columns
//
// Spreadsheet rows often carry columns this package does not know about.
// Those are kept in each record's Extra map and written back unchanged, so a
// round trip through the local cache never drops data the remote store owns.
package model

package ident

import (
	"github.com/roach88/emsync/internal/model"
)

// Key identifies an entity row that may not have been assigned an id yet.
//
// New rows are created with Pending and sent to the remote with the sentinel
// 0. The remote assigns the real id, which the reconciler writes back into
// the row. Key collapses to the integer convention only through Wire.
type Key struct {
	id model.ID
}

// Pending returns the key of a row still waiting for its authoritative id.
func Pending() Key { return Key{} }

// Assigned returns the key for an authoritative id. Non-positive ids are
// treated as pending.
func Assigned(id model.ID) Key {
	if id <= 0 {
		return Key{}
	}
	return Key{id: id}
}

// KeyOf reads a wire id.
func KeyOf(id model.ID) Key { return Assigned(id) }

// Allocate returns the key for a newly created entity. The remote assigns
// ids, so every new entity starts out pending.
func Allocate() Key { return Pending() }

// IsPending reports whether the key still waits for assignment.
func (k Key) IsPending() bool { return k.id == model.PendingID }

// ID returns the assigned id. ok is false for a pending key.
func (k Key) ID() (model.ID, bool) {
	return k.id, !k.IsPending()
}

// Wire returns the integer form sent to the remote and stored in rows.
func (k Key) Wire() model.ID { return k.id }

// Matches reports whether a row id refers to this key. A pending key matches
// only pending rows.
func (k Key) Matches(id model.ID) bool {
	return KeyOf(id) == k
}

func (k Key) String() string {
	if k.IsPending() {
		return "pending"
	}
	return k.id.String()
}

// IsPlaceholder reports whether id is the sentinel for an unassigned row.
func IsPlaceholder(id model.ID) bool {
	return KeyOf(id).IsPending()
}

package model

// Find returns the first row whose key is id.
func Find[T Entity](rows []T, id ID) (T, bool) {
	for _, r := range rows {
		if r.Key() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// Upsert returns a new table with row applied.
//
// A pending row (key PendingID) is appended, and any older pending row in the
// table is dropped first: only one write is ever in flight, so a leftover
// pending row can never be confirmed. A row whose key already exists replaces
// that row in place; any other row is appended.
func Upsert[T Entity](rows []T, row T) []T {
	out := make([]T, 0, len(rows)+1)
	replaced := false
	for _, r := range rows {
		switch {
		case row.Key().IsPending() && r.Key().IsPending():
			continue
		case !replaced && !row.Key().IsPending() && r.Key() == row.Key():
			out = append(out, row)
			replaced = true
		default:
			out = append(out, r)
		}
	}
	if !replaced {
		out = append(out, row)
	}
	return out
}

// Remove returns a new table without rows keyed id.
func Remove[T Entity](rows []T, id ID) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if r.Key() != id {
			out = append(out, r)
		}
	}
	return out
}

// Filter returns the rows for which keep returns true.
func Filter[T any](rows []T, keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// CountPending returns the number of rows still holding PendingID.
func CountPending[T Entity](rows []T) int {
	n := 0
	for _, r := range rows {
		if r.Key().IsPending() {
			n++
		}
	}
	return n
}

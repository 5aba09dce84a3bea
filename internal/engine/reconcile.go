package engine

import (
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/emsync/internal/ident"
	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/sanitize"
)

// reconcile substitutes the store's canonical record for the row the write
// was sent for.
//
// The sent row is identified by the id field of payload: an assigned id
// matches that row, the pending id 0 matches the table's pending row. Other
// rows already holding the canonical id are dropped, so the table ends with
// exactly one row for it and, for a create, no pending row.
func reconcile(s model.Snapshot, action model.Action, payload any, data map[string]any) (model.Snapshot, model.Entity, error) {
	var (
		rec model.Entity
		err error
	)
	switch action.Kind() {
	case model.KindUser:
		s.Users, rec, err = reconcileTable(s.Users, payload, data)
	case model.KindDepartment:
		s.Departments, rec, err = reconcileTable(s.Departments, payload, data)
	case model.KindOffice:
		s.Offices, rec, err = reconcileTable(s.Offices, payload, data)
	case model.KindBank:
		s.Banks, rec, err = reconcileTable(s.Banks, payload, data)
	case model.KindBranch:
		s.Branches, rec, err = reconcileTable(s.Branches, payload, data)
	case model.KindPost:
		s.Posts, rec, err = reconcileTable(s.Posts, payload, data)
	case model.KindPayscale:
		s.Payscales, rec, err = reconcileTable(s.Payscales, payload, data)
	case model.KindEmployee:
		s.Employees, rec, err = reconcileTable(s.Employees, payload, data)
	default:
		return s, nil, fmt.Errorf("action %s returns no record", action)
	}
	if err != nil {
		return s, nil, err
	}
	return s, rec, nil
}

func reconcileTable[T model.Entity](rows []T, payload any, data map[string]any) ([]T, model.Entity, error) {
	canonical, err := sanitize.Record[T](data)
	if err != nil {
		return rows, nil, fmt.Errorf("response record: %w", err)
	}
	if canonical.Key().IsPending() {
		return rows, nil, errors.New("response record has no id")
	}

	// A payload that cannot be read as a row was never applied optimistically
	// under any id, so the canonical row is simply merged in.
	sent := ident.Pending()
	if row, err := sanitize.Record[T](payload); err == nil {
		sent = ident.KeyOf(row.Key())
	}

	return reconcileRows(rows, sent, canonical), canonical, nil
}

func reconcileRows[T model.Entity](rows []T, sent ident.Key, canonical T) []T {
	out := make([]T, 0, len(rows)+1)
	placed := false
	for _, r := range rows {
		k := r.Key()
		switch {
		case !placed && sent.Matches(k):
			out = append(out, canonical)
			placed = true
		case k == canonical.Key():
			// duplicate, e.g. merged in by an earlier refresh
		case sent.IsPending() && ident.IsPlaceholder(k):
			// a second pending row can never be confirmed
		default:
			out = append(out, r)
		}
	}
	if !placed {
		out = append(out, canonical)
	}
	return out
}

// localRecord numbers the pending row of kind's table max + 1, as the
// workbook store does, and returns it in response form. ok is false unless
// payload is a create and the table holds its pending row.
func localRecord(s model.Snapshot, kind model.Kind, payload any) (map[string]any, bool) {
	field := kind.IDField()
	if field == "" {
		return nil, false
	}
	if id, ok := sanitize.IDOf(payload, field); ok && !id.IsPending() {
		return nil, false
	}

	raw, err := s.Raw()
	if err != nil {
		return nil, false
	}
	rows, _ := raw[kind.Table()].([]any)

	var (
		pending map[string]any
		maxID   model.ID
	)
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			continue
		}
		id, ok := sanitize.IDOf(row, field)
		switch {
		case !ok || id.IsPending():
			if pending == nil {
				pending = row
			}
		default:
			maxID = max(maxID, id)
		}
	}
	if pending == nil {
		return nil, false
	}

	rec := maps.Clone(pending)
	rec[field] = int64(maxID + 1)
	return rec, true
}

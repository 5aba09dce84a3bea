package mutation

import (
	"fmt"

	"github.com/roach88/emsync/internal/model"
)

// SetOfficeFinalized plans locking (finalized true) or reopening an office.
func SetOfficeFinalized(s model.Snapshot, office model.ID, finalized bool) (Plan, error) {
	o, ok := model.Find(s.Offices, office)
	if !ok || office.IsPending() {
		return Plan{}, fmt.Errorf("office %s: %w", office, ErrNotFound)
	}
	o.Finalized = model.No
	if finalized {
		o.Finalized = model.Yes
	}
	return Upsert(s, o)
}

// ToggleOfficeFinalized flips an office's finalized state.
func ToggleOfficeFinalized(s model.Snapshot, office model.ID) (Plan, error) {
	o, ok := model.Find(s.Offices, office)
	if !ok {
		return Plan{}, fmt.Errorf("office %s: %w", office, ErrNotFound)
	}
	return SetOfficeFinalized(s, office, !o.IsFinalized())
}

// FinalizeDepartment plans finalizing every open office of department.
//
// Plans chain: each one's Next builds on the previous, so performing them in
// order yields the same state as finalizing all at once. Only one write may
// be in flight, so callers perform them sequentially.
func FinalizeDepartment(s model.Snapshot, department model.ID) ([]Plan, error) {
	var plans []Plan
	cur := s
	for _, o := range s.Offices {
		if o.DepartmentID != department || o.IsFinalized() || o.OfficeID.IsPending() {
			continue
		}
		p, err := SetOfficeFinalized(cur, o.OfficeID, true)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
		cur = p.Next
	}
	return plans, nil
}

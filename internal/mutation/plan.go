package mutation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/emsync/internal/model"
)

var (
	// ErrNotFound is returned when the row to change does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInUse is returned when deleting a row other rows still reference.
	ErrInUse = errors.New("record is still referenced")

	// ErrNoIdentity is returned by planners that act for the signed-in user
	// when nobody is signed in.
	ErrNoIdentity = errors.New("no signed-in user")

	// ErrReasonRequired is returned when an employee is deactivated without
	// a recognized reason code.
	ErrReasonRequired = errors.New("deactivation reason required")
)

// Plan is one write ready to be performed.
type Plan struct {
	Action  model.Action
	Payload any
	// Next is the optimistic snapshot.
	Next model.Snapshot
}

// Upsert plans the creation or update of row. A row whose id is not in its
// table is treated as new and sent with the pending id.
func Upsert(s model.Snapshot, row model.Entity) (Plan, error) {
	next := s.Clone()
	var payload model.Entity
	switch r := row.(type) {
	case model.User:
		r.UserID = keyFor(next.Users, r.UserID)
		next.Users, payload = model.Upsert(next.Users, r), r
	case model.Department:
		r.DepartmentID = keyFor(next.Departments, r.DepartmentID)
		next.Departments, payload = model.Upsert(next.Departments, r), r
	case model.Office:
		r.OfficeID = keyFor(next.Offices, r.OfficeID)
		next.Offices, payload = model.Upsert(next.Offices, r), r
	case model.Bank:
		r.BankID = keyFor(next.Banks, r.BankID)
		next.Banks, payload = model.Upsert(next.Banks, r), r
	case model.BankBranch:
		r.BranchID = keyFor(next.Branches, r.BranchID)
		next.Branches, payload = model.Upsert(next.Branches, r), r
	case model.Post:
		r.PostID = keyFor(next.Posts, r.PostID)
		next.Posts, payload = model.Upsert(next.Posts, r), r
	case model.Payscale:
		r.PayID = keyFor(next.Payscales, r.PayID)
		next.Payscales, payload = model.Upsert(next.Payscales, r), r
	case model.Employee:
		return UpsertEmployee(s, EmployeePayload{Employee: r})
	default:
		return Plan{}, fmt.Errorf("upsert: unsupported record type %T", row)
	}

	action, _ := model.UpsertAction(kindOf(payload))
	return Plan{Action: action, Payload: payload, Next: next}, nil
}

// Delete plans the removal of the row keyed id from kind's table.
//
// Deleting an office with employees, a department with offices or a bank
// with branches is refused with ErrInUse.
func Delete(s model.Snapshot, kind model.Kind, id model.ID) (Plan, error) {
	action, ok := model.DeleteAction(kind)
	if !ok {
		return Plan{}, fmt.Errorf("delete: unsupported kind %q", kind)
	}
	if id.IsPending() {
		return Plan{}, fmt.Errorf("delete %s: %w", kind, ErrNotFound)
	}

	next := s.Clone()
	var found bool
	switch kind {
	case model.KindUser:
		found = has(next.Users, id)
		next.Users = model.Remove(next.Users, id)
		delete(next.PostSelections, id)
	case model.KindDepartment:
		found = has(next.Departments, id)
		if found && slices.ContainsFunc(next.Offices, func(o model.Office) bool { return o.DepartmentID == id }) {
			return Plan{}, fmt.Errorf("delete department %d: %w", id, ErrInUse)
		}
		next.Departments = model.Remove(next.Departments, id)
	case model.KindOffice:
		found = has(next.Offices, id)
		if found && slices.ContainsFunc(next.Employees, func(e model.Employee) bool { return e.OfficeID == id }) {
			return Plan{}, fmt.Errorf("delete office %d: %w", id, ErrInUse)
		}
		next.Offices = model.Remove(next.Offices, id)
	case model.KindBank:
		found = has(next.Banks, id)
		if found && slices.ContainsFunc(next.Branches, func(b model.BankBranch) bool { return b.BankID == id }) {
			return Plan{}, fmt.Errorf("delete bank %d: %w", id, ErrInUse)
		}
		next.Banks = model.Remove(next.Banks, id)
	case model.KindBranch:
		found = has(next.Branches, id)
		next.Branches = model.Remove(next.Branches, id)
	case model.KindPost:
		found = has(next.Posts, id)
		next.Posts = model.Remove(next.Posts, id)
	case model.KindPayscale:
		found = has(next.Payscales, id)
		next.Payscales = model.Remove(next.Payscales, id)
	case model.KindEmployee:
		found = has(next.Employees, id)
		next.Employees = model.Remove(next.Employees, id)
	}
	if !found {
		return Plan{}, fmt.Errorf("delete %s %d: %w", kind, id, ErrNotFound)
	}

	return Plan{
		Action:  action,
		Payload: map[string]any{kind.IDField(): id},
		Next:    next,
	}, nil
}

// keyFor returns id if rows has it, the pending id otherwise.
func keyFor[T model.Entity](rows []T, id model.ID) model.ID {
	if has(rows, id) {
		return id
	}
	return model.PendingID
}

func has[T model.Entity](rows []T, id model.ID) bool {
	if id.IsPending() {
		return false
	}
	_, ok := model.Find(rows, id)
	return ok
}

func kindOf(e model.Entity) model.Kind {
	switch e.(type) {
	case model.User:
		return model.KindUser
	case model.Department:
		return model.KindDepartment
	case model.Office:
		return model.KindOffice
	case model.Bank:
		return model.KindBank
	case model.BankBranch:
		return model.KindBranch
	case model.Post:
		return model.KindPost
	case model.Payscale:
		return model.KindPayscale
	case model.Employee:
		return model.KindEmployee
	}
	return ""
}

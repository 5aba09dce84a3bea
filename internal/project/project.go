package project

import (
	"github.com/roach88/emsync/internal/model"
)

// Employees returns the employees visible to id.
func Employees(s model.Snapshot, id model.Identity) []model.Employee {
	if id.IsAdmin() {
		return model.Filter(s.Employees, func(model.Employee) bool { return true })
	}
	offices := officeSet(CustodianOffices(s, id))
	return model.Filter(s.Employees, func(e model.Employee) bool {
		return offices[e.OfficeID]
	})
}

// Posts returns the posts visible to id: all of them for an administrator,
// otherwise those in the user's post selection.
func Posts(s model.Snapshot, id model.Identity) []model.Post {
	if id.IsAdmin() {
		return model.Filter(s.Posts, func(model.Post) bool { return true })
	}
	selected := s.PostSelections.Get(id.UserID)
	return model.Filter(s.Posts, func(p model.Post) bool {
		return !p.PostID.IsPending() && contains(selected, p.PostID)
	})
}

// CustodianOffices returns the offices id looks after. An administrator is
// treated as custodian of every office.
func CustodianOffices(s model.Snapshot, id model.Identity) []model.Office {
	if id.IsAdmin() {
		return model.Filter(s.Offices, func(model.Office) bool { return true })
	}
	return model.Filter(s.Offices, func(o model.Office) bool {
		return !id.UserID.IsPending() && o.UserID == id.UserID
	})
}

// OfficeEmployees returns the employees assigned to office.
func OfficeEmployees(s model.Snapshot, office model.ID) []model.Employee {
	return model.Filter(s.Employees, func(e model.Employee) bool {
		return e.OfficeID == office
	})
}

// AvailablePosts returns the posts id may assign to an employee. current is
// the employee's existing post; it stays available even when the user has
// since deselected it, so editing never silently changes the post.
func AvailablePosts(s model.Snapshot, id model.Identity, current model.ID) []model.Post {
	if id.IsAdmin() {
		return Posts(s, id)
	}
	selected := s.PostSelections.Get(id.UserID)
	return model.Filter(s.Posts, func(p model.Post) bool {
		if p.PostID.IsPending() {
			return false
		}
		return p.PostID == current || contains(selected, p.PostID)
	})
}

// BranchesOfBank returns the branches of bank.
func BranchesOfBank(s model.Snapshot, bank model.ID) []model.BankBranch {
	return model.Filter(s.Branches, func(b model.BankBranch) bool {
		return b.BankID == bank
	})
}

// OfficesOfDepartment returns the offices of department.
func OfficesOfDepartment(s model.Snapshot, department model.ID) []model.Office {
	return model.Filter(s.Offices, func(o model.Office) bool {
		return o.DepartmentID == department
	})
}

// UnfinalizedOffices returns the offices of department still open for edits.
func UnfinalizedOffices(s model.Snapshot, department model.ID) []model.Office {
	return model.Filter(OfficesOfDepartment(s, department), func(o model.Office) bool {
		return !o.IsFinalized()
	})
}

// IsLocked reports whether id may not edit e because e's office has been
// finalized. Administrators are never locked out.
func IsLocked(s model.Snapshot, id model.Identity, e model.Employee) bool {
	if id.IsAdmin() {
		return false
	}
	o, ok := model.Find(s.Offices, e.OfficeID)
	return ok && o.IsFinalized()
}

func officeSet(offices []model.Office) map[model.ID]bool {
	set := make(map[model.ID]bool, len(offices))
	for _, o := range offices {
		if !o.OfficeID.IsPending() {
			set[o.OfficeID] = true
		}
	}
	return set
}

func contains(ids []model.ID, id model.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

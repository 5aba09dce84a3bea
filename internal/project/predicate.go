package project

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/emsync/internal/model"
)

// Predicate filters employee rows.
//
// This is a sealed interface; only types in this package implement it.
//
// Predicate types:
//   - Search: name, EPIC or mobile contains the text
//   - PostIs: Post_ID equals the value
//   - ServiceIs: Service_Type equals the value
//   - ActiveIs: Active state equals the value
//   - And: all predicates must hold
type Predicate interface {
	match(e model.Employee) bool
}

// Search matches a case-insensitive substring of "name surname", the EPIC
// number or the mobile number. An empty Search matches everything.
type Search string

func (q Search) match(e model.Employee) bool {
	needle := foldText(string(q))
	if needle == "" {
		return true
	}
	full := foldText(string(e.EmployeeName) + " " + string(e.EmployeeSurname))
	return strings.Contains(full, needle) ||
		strings.Contains(foldText(string(e.EPIC)), needle) ||
		strings.Contains(string(e.Mobile), strings.TrimSpace(string(q)))
}

// PostIs matches employees holding the post. The pending id matches all.
type PostIs model.ID

func (p PostIs) match(e model.Employee) bool {
	return model.ID(p).IsPending() || e.PostID == model.ID(p)
}

// ServiceIs matches employees of a service type. Empty matches all.
type ServiceIs string

func (s ServiceIs) match(e model.Employee) bool {
	return s == "" || string(e.ServiceType) == string(s)
}

// ActiveIs matches employees by lifecycle state.
type ActiveIs bool

func (a ActiveIs) match(e model.Employee) bool {
	return e.IsActive() == bool(a)
}

// And matches when every predicate matches. An empty And matches all.
type And []Predicate

func (a And) match(e model.Employee) bool {
	for _, p := range a {
		if p != nil && !p.match(e) {
			return false
		}
	}
	return true
}

// Where returns the rows matching p. A nil p matches everything.
func Where(rows []model.Employee, p Predicate) []model.Employee {
	return model.Filter(rows, func(e model.Employee) bool {
		return p == nil || p.match(e)
	})
}

func foldText(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

package mutation

import (
	"fmt"
	"strings"

	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/sanitize"
)

// ForAction plans a write from a loosely-typed payload, as read from the
// command line or a scenario file. The payload is sanitized the way a
// remote row would be.
func ForAction(s model.Snapshot, action model.Action, payload map[string]any) (Plan, error) {
	if !action.Valid() {
		return Plan{}, fmt.Errorf("plan: unsupported action %q", action)
	}
	kind := action.Kind()

	switch {
	case action == model.ActionUpdateUserPostSelections:
		user, posts, ok := sanitize.Selection(payload)
		if !ok {
			return Plan{}, fmt.Errorf("plan %s: %w", action, ErrNoIdentity)
		}
		return SetPostSelection(s, user, posts)
	case action.IsDelete():
		id, ok := sanitize.IDOf(payload, kind.IDField())
		if !ok {
			return Plan{}, fmt.Errorf("plan %s: missing %s", action, kind.IDField())
		}
		return Delete(s, kind, id)
	}

	var (
		row model.Entity
		err error
	)
	switch kind {
	case model.KindUser:
		row, err = sanitize.Record[model.User](payload)
	case model.KindDepartment:
		row, err = sanitize.Record[model.Department](payload)
	case model.KindOffice:
		row, err = sanitize.Record[model.Office](payload)
	case model.KindBank:
		row, err = sanitize.Record[model.Bank](payload)
	case model.KindBranch:
		row, err = sanitize.Record[model.BankBranch](payload)
	case model.KindPost:
		row, err = sanitize.Record[model.Post](payload)
	case model.KindPayscale:
		row, err = sanitize.Record[model.Payscale](payload)
	case model.KindEmployee:
		e, err := sanitize.Record[model.Employee](payload)
		if err != nil {
			return Plan{}, fmt.Errorf("plan %s: %w", action, err)
		}
		return UpsertEmployee(s, employeePayload(e))
	}
	if err != nil {
		return Plan{}, fmt.Errorf("plan %s: %w", action, err)
	}
	return Upsert(s, row)
}

// employeePayload lifts attachment columns out of a decoded row.
func employeePayload(e model.Employee) EmployeePayload {
	p := EmployeePayload{Employee: e}
	for k, v := range e.Extra {
		s, _ := v.(string)
		switch {
		case !model.IsTransientField(k):
		case strings.EqualFold(k, model.PhotoDataField):
			p.PhotoData = s
		default:
			p.FileData = s
		}
	}
	p.Employee.Extra = withoutTransient(e.Extra)
	return p
}

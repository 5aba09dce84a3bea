package mutation

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/emsync/internal/model"
)

// EmployeePayload is an employee write with optional attachments. The
// attachments are sent with the write and never stored locally.
type EmployeePayload struct {
	model.Employee

	// PhotoData is an encoded photo, typically a data URL.
	PhotoData string
	// FileData is an encoded justification document for a deactivation.
	FileData string
}

// HasUploads reports which attachments the payload carries.
func (p EmployeePayload) HasUploads() (photo, file bool) {
	return p.PhotoData != "", p.FileData != ""
}

// MarshalJSON encodes the employee row with the attachment fields inlined.
func (p EmployeePayload) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(p.Employee)
	if err != nil {
		return nil, err
	}
	if p.PhotoData == "" && p.FileData == "" {
		return data, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if p.PhotoData != "" {
		m[model.PhotoDataField], _ = json.Marshal(p.PhotoData)
	}
	if p.FileData != "" {
		m[model.FileDataField], _ = json.Marshal(p.FileData)
	}
	return json.Marshal(m)
}

// UpsertEmployee plans an employee create or update.
//
// Active is normalized to Yes or No. An inactive employee needs one of
// model.DeactivationReasons; an active one has its reason cleared.
func UpsertEmployee(s model.Snapshot, p EmployeePayload) (Plan, error) {
	e := p.Employee
	switch e.Active {
	case model.No:
		if !slices.Contains(model.DeactivationReasons, string(e.DAReason)) {
			return Plan{}, fmt.Errorf("employee %s: %w", e.EmployeeID, ErrReasonRequired)
		}
	default:
		e.Active = model.Yes
		e.DAReason = ""
	}

	next := s.Clone()
	e.EmployeeID = keyFor(next.Employees, e.EmployeeID)

	// Attachments travel in the payload fields only.
	e.Extra = withoutTransient(e.Extra)
	next.Employees = model.Upsert(next.Employees, e)

	p.Employee = e
	return Plan{Action: model.ActionUpsertEmployee, Payload: p, Next: next}, nil
}

// SetActive plans activating or deactivating the employee keyed id.
func SetActive(s model.Snapshot, id model.ID, active bool, reason, doc string) (Plan, error) {
	e, ok := model.Find(s.Employees, id)
	if !ok || id.IsPending() {
		return Plan{}, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	if active {
		e.Active = model.Yes
	} else {
		e.Active = model.No
		e.DAReason = model.Text(reason)
		if doc != "" {
			e.DADoc = model.Text(doc)
		}
	}
	return UpsertEmployee(s, EmployeePayload{Employee: e})
}

func withoutTransient(f model.Fields) model.Fields {
	if len(f) == 0 {
		return f
	}
	out := make(model.Fields, len(f))
	for k, v := range f {
		if !model.IsTransientField(k) {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

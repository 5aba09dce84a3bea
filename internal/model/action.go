package model

import "fmt"

// Kind names an entity table.
type Kind string

const (
	KindUser       Kind = "user"
	KindDepartment Kind = "department"
	KindOffice     Kind = "office"
	KindBank       Kind = "bank"
	KindBranch     Kind = "branch"
	KindPost       Kind = "post"
	KindPayscale   Kind = "payscale"
	KindEmployee   Kind = "employee"
	// KindPostSelection is the user → posts relation. It has no id field.
	KindPostSelection Kind = "postSelection"
)

var kindIDFields = map[Kind]string{
	KindUser:       "User_ID",
	KindDepartment: "Department_ID",
	KindOffice:     "Office_ID",
	KindBank:       "Bank_ID",
	KindBranch:     "Branch_ID",
	KindPost:       "Post_ID",
	KindPayscale:   "Pay_ID",
	KindEmployee:   "Employee_ID",
}

var kindTables = map[Kind]string{
	KindUser:          TableUsers,
	KindDepartment:    TableDepartments,
	KindOffice:        TableOffices,
	KindBank:          TableBanks,
	KindBranch:        TableBranches,
	KindPost:          TablePosts,
	KindPayscale:      TablePayscales,
	KindEmployee:      TableEmployees,
	KindPostSelection: TablePostSelections,
}

// Table returns the snapshot table the kind lives in.
func (k Kind) Table() string {
	return kindTables[k]
}

// IDField returns the name of the kind's identifier column, or "" for
// relations without one.
func (k Kind) IDField() string {
	return kindIDFields[k]
}

// Action is a write operation understood by the remote store. The string
// value is sent verbatim as the request's action field.
type Action string

const (
	ActionUpsertUser               Action = "upsertUser"
	ActionDeleteUser               Action = "deleteUser"
	ActionUpsertDepartment         Action = "upsertDepartment"
	ActionDeleteDepartment         Action = "deleteDepartment"
	ActionUpsertOffice             Action = "upsertOffice"
	ActionDeleteOffice             Action = "deleteOffice"
	ActionUpsertBank               Action = "upsertBank"
	ActionDeleteBank               Action = "deleteBank"
	ActionUpsertBranch             Action = "upsertBranch"
	ActionDeleteBranch             Action = "deleteBranch"
	ActionUpsertPost               Action = "upsertPost"
	ActionDeletePost               Action = "deletePost"
	ActionUpsertPayscale           Action = "upsertPayscale"
	ActionDeletePayscale           Action = "deletePayscale"
	ActionUpsertEmployee           Action = "upsertEmployee"
	ActionDeleteEmployee           Action = "deleteEmployee"
	ActionUpdateUserPostSelections Action = "updateUserPostSelections"
)

type actionInfo struct {
	kind   Kind
	upsert bool
	delete bool
}

var actions = map[Action]actionInfo{
	ActionUpsertUser:               {kind: KindUser, upsert: true},
	ActionDeleteUser:               {kind: KindUser, delete: true},
	ActionUpsertDepartment:         {kind: KindDepartment, upsert: true},
	ActionDeleteDepartment:         {kind: KindDepartment, delete: true},
	ActionUpsertOffice:             {kind: KindOffice, upsert: true},
	ActionDeleteOffice:             {kind: KindOffice, delete: true},
	ActionUpsertBank:               {kind: KindBank, upsert: true},
	ActionDeleteBank:               {kind: KindBank, delete: true},
	ActionUpsertBranch:             {kind: KindBranch, upsert: true},
	ActionDeleteBranch:             {kind: KindBranch, delete: true},
	ActionUpsertPost:               {kind: KindPost, upsert: true},
	ActionDeletePost:               {kind: KindPost, delete: true},
	ActionUpsertPayscale:           {kind: KindPayscale, upsert: true},
	ActionDeletePayscale:           {kind: KindPayscale, delete: true},
	ActionUpsertEmployee:           {kind: KindEmployee, upsert: true},
	ActionDeleteEmployee:           {kind: KindEmployee, delete: true},
	ActionUpdateUserPostSelections: {kind: KindPostSelection},
}

// AllActions lists every supported action in declaration order.
var AllActions = []Action{
	ActionUpsertUser, ActionDeleteUser,
	ActionUpsertDepartment, ActionDeleteDepartment,
	ActionUpsertOffice, ActionDeleteOffice,
	ActionUpsertBank, ActionDeleteBank,
	ActionUpsertBranch, ActionDeleteBranch,
	ActionUpsertPost, ActionDeletePost,
	ActionUpsertPayscale, ActionDeletePayscale,
	ActionUpsertEmployee, ActionDeleteEmployee,
	ActionUpdateUserPostSelections,
}

// ParseAction validates s as an Action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Valid reports whether a is a supported action.
func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

// Kind returns the table the action writes to.
func (a Action) Kind() Kind {
	return actions[a].kind
}

// IsUpsert reports whether the remote store answers a with a canonical record.
func (a Action) IsUpsert() bool {
	return actions[a].upsert
}

// IsDelete reports whether a removes a record.
func (a Action) IsDelete() bool {
	return actions[a].delete
}

// UpsertAction returns the upsert action for kind.
func UpsertAction(kind Kind) (Action, bool) {
	for _, a := range AllActions {
		if info := actions[a]; info.kind == kind && info.upsert {
			return a, true
		}
	}
	return "", false
}

// DeleteAction returns the delete action for kind.
func DeleteAction(kind Kind) (Action, bool) {
	for _, a := range AllActions {
		if info := actions[a]; info.kind == kind && info.delete {
			return a, true
		}
	}
	return "", false
}

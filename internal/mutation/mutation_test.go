package mutation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emsync/internal/model"
)

func fixture() model.Snapshot {
	s := model.Empty()
	s.Departments = []model.Department{{DepartmentID: 1}, {DepartmentID: 2}}
	s.Offices = []model.Office{
		{OfficeID: 10, DepartmentID: 1, UserID: 7},
		{OfficeID: 11, DepartmentID: 1, UserID: 7, Finalized: model.Yes},
		{OfficeID: 12, DepartmentID: 1, UserID: 8},
		{OfficeID: 13, DepartmentID: 2},
	}
	s.Banks = []model.Bank{{BankID: 1}, {BankID: 2}}
	s.Branches = []model.BankBranch{{BranchID: 1, BankID: 1}}
	s.Posts = []model.Post{{PostID: 5, PostName: "Clerk"}}
	s.Employees = []model.Employee{{EmployeeID: 100, OfficeID: 10, Active: model.Yes}}
	s.PostSelections = model.PostSelections{7: {5}}
	return s
}

func TestUpsert_NewRowIsPending(t *testing.T) {
	s := fixture()

	p, err := Upsert(s, model.Post{PostID: 999, PostName: "Typist"})
	require.NoError(t, err)

	assert.Equal(t, model.ActionUpsertPost, p.Action)
	assert.Equal(t, model.Post{PostName: "Typist"}, p.Payload)
	assert.Equal(t, []model.Post{{PostID: 5, PostName: "Clerk"}, {PostName: "Typist"}}, p.Next.Posts)
	assert.Len(t, s.Posts, 1, "input snapshot untouched")
}

func TestUpsert_ExistingReplaced(t *testing.T) {
	p, err := Upsert(fixture(), model.Bank{BankID: 2, BankName: "PNB"})
	require.NoError(t, err)

	assert.Equal(t, model.ActionUpsertBank, p.Action)
	assert.Equal(t, []model.Bank{{BankID: 1}, {BankID: 2, BankName: "PNB"}}, p.Next.Banks)
}

func TestUpsert_SinglePendingRow(t *testing.T) {
	first, err := Upsert(fixture(), model.Payscale{PayName: "L1"})
	require.NoError(t, err)
	second, err := Upsert(first.Next, model.Payscale{PayName: "L2"})
	require.NoError(t, err)

	assert.Equal(t, 1, model.CountPending(second.Next.Payscales))
	assert.Equal(t, model.Text("L2"), second.Next.Payscales[0].PayName)
}

func TestUpsert_EveryKind(t *testing.T) {
	rows := []model.Entity{
		model.User{UserName: "u"},
		model.Department{},
		model.Office{},
		model.Bank{},
		model.BankBranch{},
		model.Post{},
		model.Payscale{},
		model.Employee{},
	}
	for _, row := range rows {
		p, err := Upsert(model.Empty(), row)
		require.NoError(t, err)
		assert.True(t, p.Action.IsUpsert(), "%T", row)
	}

	_, err := Upsert(model.Empty(), nil)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	p, err := Delete(fixture(), model.KindEmployee, 100)
	require.NoError(t, err)

	assert.Equal(t, model.ActionDeleteEmployee, p.Action)
	assert.Equal(t, map[string]any{"Employee_ID": model.ID(100)}, p.Payload)
	assert.Empty(t, p.Next.Employees)
}

func TestDelete_Guards(t *testing.T) {
	s := fixture()

	tests := []struct {
		name string
		kind model.Kind
		id   model.ID
		want error
	}{
		{"office with employees", model.KindOffice, 10, ErrInUse},
		{"department with offices", model.KindDepartment, 1, ErrInUse},
		{"bank with branches", model.KindBank, 1, ErrInUse},
		{"missing", model.KindPost, 77, ErrNotFound},
		{"pending", model.KindPost, model.PendingID, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Delete(s, tt.kind, tt.id)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Delete(s, model.KindOffice, 12)
	assert.NoError(t, err, "office without employees")
	_, err = Delete(s, model.KindBank, 2)
	assert.NoError(t, err)
	_, err = Delete(s, model.KindPostSelection, 1)
	assert.Error(t, err)
}

func TestDelete_UserDropsSelection(t *testing.T) {
	s := fixture()
	s.Users = []model.User{{UserID: 7}}

	p, err := Delete(s, model.KindUser, 7)
	require.NoError(t, err)
	assert.Nil(t, p.Next.PostSelections.Get(7))
}

func TestUpsertEmployee_Attachments(t *testing.T) {
	p, err := UpsertEmployee(fixture(), EmployeePayload{
		Employee:  model.Employee{EmployeeName: "Ravi", OfficeID: 10, Extra: model.Fields{"photoData": "stale", "Note": "n"}},
		PhotoData: "data:image/png;base64,AAAA",
	})
	require.NoError(t, err)

	stored := p.Next.Employees[1]
	assert.True(t, stored.EmployeeID.IsPending())
	assert.Equal(t, model.Fields{"Note": "n"}, stored.Extra)
	assert.Equal(t, model.Text(model.Yes), stored.Active)

	payload := p.Payload.(EmployeePayload)
	photo, file := payload.HasUploads()
	assert.True(t, photo)
	assert.False(t, file)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "data:image/png;base64,AAAA", m["photoData"])
	assert.Equal(t, "Ravi", m["Employee_Name"])
	assert.NotContains(t, m, "fileData")
}

func TestUpsertEmployee_Lifecycle(t *testing.T) {
	s := fixture()

	_, err := SetActive(s, 100, false, "", "")
	assert.ErrorIs(t, err, ErrReasonRequired)
	_, err = SetActive(s, 100, false, "Holiday", "")
	assert.ErrorIs(t, err, ErrReasonRequired)

	p, err := SetActive(s, 100, false, "Resign", "drive://doc")
	require.NoError(t, err)
	e := p.Next.Employees[0]
	assert.Equal(t, model.Text(model.No), e.Active)
	assert.Equal(t, model.Text("Resign"), e.DAReason)
	assert.Equal(t, model.Text("drive://doc"), e.DADoc)

	p, err = SetActive(p.Next, 100, true, "", "")
	require.NoError(t, err)
	assert.Empty(t, p.Next.Employees[0].DAReason, "reactivation clears the reason")
	assert.Equal(t, model.ID(100), p.Next.Employees[0].EmployeeID)

	_, err = SetActive(s, 404, true, "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTogglePostSelection(t *testing.T) {
	s := fixture()
	s.Posts = append(s.Posts, model.Post{PostID: 6})
	user := model.Identity{UserID: 7}

	p, err := TogglePostSelection(s, user, 6)
	require.NoError(t, err)
	assert.Equal(t, model.ActionUpdateUserPostSelections, p.Action)
	assert.Equal(t, SelectionPayload{UserID: 7, PostIDs: []model.ID{5, 6}}, p.Payload)
	assert.Equal(t, []model.ID{5, 6}, p.Next.PostSelections.Get(7))

	p, err = TogglePostSelection(p.Next, user, 5)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{6}, p.Next.PostSelections.Get(7))
	assert.Equal(t, []model.ID{5}, s.PostSelections.Get(7), "input untouched")

	_, err = TogglePostSelection(s, model.Identity{}, 5)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestSelectionPayload_JSON(t *testing.T) {
	data, err := json.Marshal(SelectionPayload{UserID: 7, PostIDs: []model.ID{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"User_ID":7,"Post_IDs":[]}`, string(data))
}

func TestOfficeFinalization(t *testing.T) {
	s := fixture()

	p, err := ToggleOfficeFinalized(s, 11)
	require.NoError(t, err)
	assert.Equal(t, model.ActionUpsertOffice, p.Action)
	assert.Equal(t, model.Text(model.No), p.Payload.(model.Office).Finalized)

	p, err = SetOfficeFinalized(s, 10, true)
	require.NoError(t, err)
	o, _ := model.Find(p.Next.Offices, 10)
	assert.True(t, o.IsFinalized())

	_, err = ToggleOfficeFinalized(s, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalizeDepartment(t *testing.T) {
	plans, err := FinalizeDepartment(fixture(), 1)
	require.NoError(t, err)
	require.Len(t, plans, 2, "office 11 is already finalized")

	assert.Equal(t, model.ID(10), plans[0].Payload.(model.Office).OfficeID)
	assert.Equal(t, model.ID(12), plans[1].Payload.(model.Office).OfficeID)

	last := plans[1].Next
	for _, o := range last.Offices {
		if o.DepartmentID == 1 {
			assert.True(t, o.IsFinalized(), "office %d", o.OfficeID)
		}
	}

	plans, err = FinalizeDepartment(fixture(), 9)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestForAction(t *testing.T) {
	s := fixture()

	p, err := ForAction(s, model.ActionUpsertPost, map[string]any{"Post_ID": "0", "Post_Name": "Typist"})
	require.NoError(t, err)
	assert.Len(t, p.Next.Posts, 2)

	p, err = ForAction(s, model.ActionDeleteBank, map[string]any{"Bank_ID": "2"})
	require.NoError(t, err)
	assert.Len(t, p.Next.Banks, 1)

	p, err = ForAction(s, model.ActionUpdateUserPostSelections, map[string]any{"User_ID": 7, "Post_IDs": "1,2"})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{1, 2}, p.Next.PostSelections.Get(7))

	p, err = ForAction(s, model.ActionUpsertEmployee, map[string]any{"Employee_Name": "Ravi", "photoData": "AAAA", "fileData": ""})
	require.NoError(t, err)
	payload := p.Payload.(EmployeePayload)
	assert.Equal(t, "AAAA", payload.PhotoData)
	assert.Nil(t, payload.Extra)

	_, err = ForAction(s, "nope", nil)
	assert.Error(t, err)
	_, err = ForAction(s, model.ActionDeletePost, map[string]any{})
	assert.Error(t, err)
}

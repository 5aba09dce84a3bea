package project

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/emsync/internal/model"
)

var (
	admin  = model.Identity{UserID: 1, UserType: model.RoleAdmin}
	normal = model.Identity{UserID: 7, UserType: model.RoleNormal}
)

func fixture() model.Snapshot {
	s := model.Empty()
	s.Offices = []model.Office{
		{OfficeID: 1, DepartmentID: 10, UserID: 7},
		{OfficeID: 2, DepartmentID: 10, UserID: 8},
		{OfficeID: 3, DepartmentID: 20, UserID: 7, Finalized: model.Yes},
	}
	s.Employees = []model.Employee{
		{EmployeeID: 100, OfficeID: 1, EmployeeName: "Asha", EmployeeSurname: "Rao", PostID: 5, ServiceType: "Regular", Mobile: "9876500001"},
		{EmployeeID: 101, OfficeID: 2, EmployeeName: "Bina", PostID: 6},
		{EmployeeID: 102, OfficeID: 3, EmployeeName: "Chetan", EPIC: "XYZ123", Active: model.No, DAReason: "Transfer"},
		{EmployeeID: 103, OfficeID: 1, EmployeeName: "Dev", PostID: 6, ServiceType: "Contract"},
	}
	s.Posts = []model.Post{{PostID: 5}, {PostID: 6}, {PostID: 9}}
	s.PostSelections = model.PostSelections{7: {5, 9}}
	s.Branches = []model.BankBranch{{BranchID: 1, BankID: 4}, {BranchID: 2, BankID: 5}, {BranchID: 3, BankID: 4}}
	return s
}

func ids[T model.Entity](rows []T) []model.ID {
	out := make([]model.ID, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Key())
	}
	return out
}

func TestEmployees_CustodianScope(t *testing.T) {
	s := fixture()

	assert.Equal(t, []model.ID{100, 102, 103}, ids(Employees(s, normal)), "offices 1 and 3 only")
	assert.Equal(t, []model.ID{100, 101, 102, 103}, ids(Employees(s, admin)))
	assert.Empty(t, Employees(s, model.Identity{UserID: 99}))
	assert.Empty(t, Employees(s, model.Identity{}), "pending user custodies nothing")
}

func TestEmployees_RecomputesOnChange(t *testing.T) {
	s := fixture()
	before := Employees(s, normal)

	s.Offices[1].UserID = 7
	after := Employees(s, normal)

	assert.Len(t, before, 3)
	assert.Len(t, after, 4)
}

func TestEmployees_ResultIsIndependent(t *testing.T) {
	s := fixture()
	out := Employees(s, admin)
	out[0].EmployeeName = "changed"
	assert.Equal(t, model.Text("Asha"), s.Employees[0].EmployeeName)
}

func TestPosts(t *testing.T) {
	s := fixture()

	assert.Equal(t, []model.ID{5, 9}, ids(Posts(s, normal)))
	assert.Equal(t, []model.ID{5, 6, 9}, ids(Posts(s, admin)))
	assert.Empty(t, Posts(s, model.Identity{UserID: 8}), "no selection entry means no posts")
}

func TestAvailablePosts_KeepsCurrent(t *testing.T) {
	s := fixture()

	assert.Equal(t, []model.ID{5, 6, 9}, ids(AvailablePosts(s, normal, 6)))
	assert.Equal(t, []model.ID{5, 9}, ids(AvailablePosts(s, normal, model.PendingID)))
}

func TestCustodianOffices(t *testing.T) {
	s := fixture()
	assert.Equal(t, []model.ID{1, 3}, ids(CustodianOffices(s, normal)))
	assert.Len(t, CustodianOffices(s, admin), 3)
}

func TestLookups(t *testing.T) {
	s := fixture()

	assert.Equal(t, []model.ID{100, 103}, ids(OfficeEmployees(s, 1)))
	assert.Equal(t, []model.ID{1, 3}, ids(BranchesOfBank(s, 4)))
	assert.Equal(t, []model.ID{1, 2}, ids(OfficesOfDepartment(s, 10)))
	assert.Empty(t, UnfinalizedOffices(s, 20))
	assert.Equal(t, []model.ID{1, 2}, ids(UnfinalizedOffices(s, 10)))
}

func TestIsLocked(t *testing.T) {
	s := fixture()

	assert.True(t, IsLocked(s, normal, s.Employees[2]))
	assert.False(t, IsLocked(s, admin, s.Employees[2]))
	assert.False(t, IsLocked(s, normal, s.Employees[0]))
	assert.False(t, IsLocked(s, normal, model.Employee{OfficeID: 42}), "unknown office is not locked")
}

func TestWhere(t *testing.T) {
	rows := fixture().Employees

	tests := []struct {
		name string
		p    Predicate
		want []model.ID
	}{
		{"nil", nil, []model.ID{100, 101, 102, 103}},
		{"full name", Search("asha rao"), []model.ID{100}},
		{"epic", Search("xyz"), []model.ID{102}},
		{"mobile", Search("98765"), []model.ID{100}},
		{"empty search", Search("  "), []model.ID{100, 101, 102, 103}},
		{"post", PostIs(6), []model.ID{101, 103}},
		{"any post", PostIs(model.PendingID), []model.ID{100, 101, 102, 103}},
		{"service", ServiceIs("Contract"), []model.ID{103}},
		{"inactive", ActiveIs(false), []model.ID{102}},
		{"and", And{PostIs(6), ServiceIs("Contract")}, []model.ID{103}},
		{"empty and", And{}, []model.ID{100, 101, 102, 103}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Where(rows, tt.p)))
		})
	}
}

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ID
	}{
		{"number", `7`, 7},
		{"fraction floors", `7.9`, 7},
		{"numeric string", `"42"`, 42},
		{"padded string", `" 12 "`, 12},
		{"empty string", `""`, PendingID},
		{"null", `null`, PendingID},
		{"negative", `-3`, PendingID},
		{"garbage", `"abc"`, PendingID},
		{"exponent", `1e3`, 1000},
		{"2^63 out of range", `9223372036854775808`, PendingID},
		{"2^63 string out of range", `"9223372036854775808"`, PendingID},
		{"large exponent", `1e19`, PendingID},
		{"max int64", `9223372036854775807`, 9223372036854775807},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestText_AcceptsScalars(t *testing.T) {
	var e Employee
	err := json.Unmarshal([]byte(`{"Employee_ID":1,"Mobile":9876543210,"PwD":false,"DOB":"1990-01-01"}`), &e)
	require.NoError(t, err)

	assert.Equal(t, Text("9876543210"), e.Mobile)
	assert.Equal(t, Text("false"), e.PwD)
	assert.Equal(t, Text("1990-01-01"), e.DOB)
}

func TestRecord_PreservesUnknownColumns(t *testing.T) {
	in := `{"Office_ID":3,"Office_Name":"North","Department_ID":1,"User_ID":7,"Block":"B-2","Floor":4}`

	var o Office
	require.NoError(t, json.Unmarshal([]byte(in), &o))
	assert.Equal(t, ID(3), o.OfficeID)
	assert.Equal(t, "B-2", o.Extra["Block"])
	assert.Equal(t, json.Number("4"), o.Extra["Floor"])

	out, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestRecord_CaseInsensitiveKnownColumns(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"user_id":5,"User_Name":"Asha"}`), &u))

	assert.Equal(t, ID(5), u.UserID)
	assert.Nil(t, u.Extra, "a differently-cased known column must not become an extra")
}

func TestSnapshot_DecodeMergesOverEmpty(t *testing.T) {
	s, err := Decode([]byte(`{"users":[{"User_ID":1}],"offices":null}`))
	require.NoError(t, err)

	assert.Len(t, s.Users, 1)
	assert.NotNil(t, s.Offices)
	assert.NotNil(t, s.Employees)
	assert.NotNil(t, s.PostSelections)
}

func TestSnapshot_DecodeInvalid(t *testing.T) {
	s, err := Decode([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, Empty(), s)
}

func TestSnapshot_PostSelectionsRoundTrip(t *testing.T) {
	s := Empty()
	s.PostSelections = PostSelections{7: {1, 2}}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"userPostSelections":{"7":[1,2]}`)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []ID{1, 2}, back.PostSelections.Get(7))
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	s := Empty()
	s.Posts = []Post{{PostID: 1}}
	s.PostSelections = PostSelections{7: {1}}

	c := s.Clone()
	c.Posts[0].PostName = "changed"
	c.PostSelections[7][0] = 99

	assert.Equal(t, Text(""), s.Posts[0].PostName)
	assert.Equal(t, ID(1), s.PostSelections[7][0])
}

func TestPostSelections_With(t *testing.T) {
	p := PostSelections{1: {3}}
	q := p.With(2, []ID{5, 5, 6})

	assert.Equal(t, []ID{5, 6}, q.Get(2))
	assert.True(t, q.Has(1, 3))
	assert.Nil(t, p.Get(2), "original must not change")
}

func TestUpsert(t *testing.T) {
	rows := []Post{{PostID: 1, PostName: "a"}, {PostID: 2, PostName: "b"}}

	t.Run("replaces existing", func(t *testing.T) {
		out := Upsert(rows, Post{PostID: 2, PostName: "B"})
		require.Len(t, out, 2)
		assert.Equal(t, Text("B"), out[1].PostName)
		assert.Equal(t, Text("b"), rows[1].PostName, "input must not change")
	})

	t.Run("appends unknown id", func(t *testing.T) {
		out := Upsert(rows, Post{PostID: 9})
		require.Len(t, out, 3)
		assert.Equal(t, ID(9), out[2].PostID)
	})

	t.Run("pending replaces older pending", func(t *testing.T) {
		withPending := Upsert(rows, Post{PostName: "first"})
		out := Upsert(withPending, Post{PostName: "second"})
		require.Len(t, out, 3)
		assert.Equal(t, 1, CountPending(out))
		assert.Equal(t, Text("second"), out[2].PostName)
	})
}

func TestRemove(t *testing.T) {
	rows := []Bank{{BankID: 1}, {BankID: 2}, {BankID: 1}}
	out := Remove(rows, 1)
	assert.Equal(t, []Bank{{BankID: 2}}, out)
}

func TestAction_Metadata(t *testing.T) {
	assert.Len(t, AllActions, 17)
	for _, a := range AllActions {
		assert.True(t, a.Valid(), a)
	}

	assert.Equal(t, KindEmployee, ActionUpsertEmployee.Kind())
	assert.True(t, ActionUpsertEmployee.IsUpsert())
	assert.True(t, ActionDeleteBranch.IsDelete())
	assert.False(t, ActionUpdateUserPostSelections.IsUpsert())
	assert.Equal(t, "Pay_ID", ActionUpsertPayscale.Kind().IDField())

	_, err := ParseAction("updatePostSelections")
	assert.Error(t, err)

	a, ok := UpsertAction(KindBranch)
	assert.True(t, ok)
	assert.Equal(t, ActionUpsertBranch, a)
}

func TestSnapshot_WithoutTransient(t *testing.T) {
	s := Empty()
	s.Employees = []Employee{
		{EmployeeID: 1, Extra: Fields{"photoData": "base64", "Note": "x"}},
		{EmployeeID: 2, Extra: Fields{"FileData": "base64"}},
		{EmployeeID: 3},
	}

	out := s.WithoutTransient()

	assert.Equal(t, Fields{"Note": "x"}, out.Employees[0].Extra)
	assert.Nil(t, out.Employees[1].Extra)
	assert.Contains(t, s.Employees[0].Extra, "photoData", "input must not change")
}

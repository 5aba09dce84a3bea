package remote

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/sanitize"
)

func openTestWorkbook(t *testing.T) *Workbook {
	t.Helper()
	w, err := OpenWorkbook(filepath.Join(t.TempDir(), "ems.xlsx"))
	require.NoError(t, err)
	return w
}

func fetchSnapshot(t *testing.T, w *Workbook) model.Snapshot {
	t.Helper()
	doc, err := w.Fetch(context.Background())
	require.NoError(t, err)
	return sanitize.Sanitize(doc)
}

func TestWorkbook_EmptyFetch(t *testing.T) {
	s := fetchSnapshot(t, openTestWorkbook(t))
	assert.Equal(t, model.Empty(), s)
}

func TestWorkbook_UpsertAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	w := openTestWorkbook(t)

	first, err := w.Write(ctx, WriteRequest{
		Action:  model.ActionUpsertPost,
		Payload: map[string]any{"Post_ID": 0, "Post_Name": "Clerk"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", first.Data["Post_ID"])

	second, err := w.Write(ctx, WriteRequest{
		Action:  model.ActionUpsertPost,
		Payload: model.Post{PostName: "Typist"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", second.Data["Post_ID"])

	_, err = w.Write(ctx, WriteRequest{
		Action:  model.ActionUpsertPost,
		Payload: map[string]any{"Post_ID": "1", "Post_Name": "Senior Clerk"},
	})
	require.NoError(t, err)

	s := fetchSnapshot(t, w)
	require.Len(t, s.Posts, 2)
	assert.Equal(t, model.Post{PostID: 1, PostName: "Senior Clerk"}, s.Posts[0])
	assert.Equal(t, model.ID(2), s.Posts[1].PostID)
}

func TestWorkbook_UploadsNotStored(t *testing.T) {
	ctx := context.Background()
	w := openTestWorkbook(t)

	resp, err := w.Write(ctx, WriteRequest{
		Action: model.ActionUpsertEmployee,
		Payload: map[string]any{
			"Employee_ID":   0,
			"Employee_Name": "Asha",
			"photoData":     "aGVsbG8=",
		},
	})
	require.NoError(t, err)
	assert.NotContains(t, resp.Data, "photoData")

	s := fetchSnapshot(t, w)
	require.Len(t, s.Employees, 1)
	assert.Nil(t, s.Employees[0].Extra)
}

func TestWorkbook_Delete(t *testing.T) {
	ctx := context.Background()
	w := openTestWorkbook(t)

	for _, name := range []string{"SBI", "PNB"} {
		_, err := w.Write(ctx, WriteRequest{Action: model.ActionUpsertBank, Payload: map[string]any{"Bank_Name": name}})
		require.NoError(t, err)
	}
	_, err := w.Write(ctx, WriteRequest{Action: model.ActionDeleteBank, Payload: map[string]any{"Bank_ID": 1}})
	require.NoError(t, err)

	s := fetchSnapshot(t, w)
	require.Len(t, s.Banks, 1)
	assert.Equal(t, model.Text("PNB"), s.Banks[0].BankName)

	_, err = w.Write(ctx, WriteRequest{Action: model.ActionDeleteBank, Payload: map[string]any{}})
	assert.Equal(t, CodeRejected, CodeOf(err))
}

func TestWorkbook_PostSelections(t *testing.T) {
	ctx := context.Background()
	w := openTestWorkbook(t)

	_, err := w.Write(ctx, WriteRequest{
		Action:  model.ActionUpdateUserPostSelections,
		Payload: map[string]any{"User_ID": 7, "Post_IDs": []any{1, 2, 2}},
	})
	require.NoError(t, err)
	_, err = w.Write(ctx, WriteRequest{
		Action:  model.ActionUpdateUserPostSelections,
		Payload: map[string]any{"User_ID": 7, "Post_IDs": []any{3}},
	})
	require.NoError(t, err)

	s := fetchSnapshot(t, w)
	assert.Equal(t, []model.ID{3}, s.PostSelections.Get(7))
}

func TestWorkbook_RejectsUnknownAction(t *testing.T) {
	_, err := openTestWorkbook(t).Write(context.Background(), WriteRequest{Action: "dropTables"})
	assert.Equal(t, CodeRejected, CodeOf(err))
}

func TestWorkbook_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ems.xlsx")

	w, err := OpenWorkbook(path)
	require.NoError(t, err)
	_, err = w.Write(ctx, WriteRequest{Action: model.ActionUpsertDepartment, Payload: map[string]any{"Department_Name": "Health"}})
	require.NoError(t, err)

	w2, err := OpenWorkbook(path)
	require.NoError(t, err)
	s := fetchSnapshot(t, w2)
	require.Len(t, s.Departments, 1)
	assert.Equal(t, model.ID(1), s.Departments[0].DepartmentID)
}

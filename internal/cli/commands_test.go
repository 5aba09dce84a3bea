package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emsync/internal/cache"
	"github.com/roach88/emsync/internal/ident"
	"github.com/roach88/emsync/internal/model"
	"github.com/roach88/emsync/internal/mutation"
	"github.com/roach88/emsync/internal/remote"
	"github.com/roach88/emsync/internal/testutil"
)

// lockedBuffer is a bytes.Buffer safe for the scheduler goroutine to write.
// ready is closed by the first write.
type lockedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	once  sync.Once
	ready chan struct{}
}

func newLockedBuffer() *lockedBuffer {
	return &lockedBuffer{ready: make(chan struct{})}
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.once.Do(func() { close(b.ready) })
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type cliFixture struct {
	t      *testing.T
	remote *testutil.ScriptedRemote
	kv     *cache.MemoryKV
	ids    *ident.FixedGenerator
	clock  *testutil.FakeClock
	stdout *lockedBuffer
	stderr *lockedBuffer
}

func newCLI(t *testing.T) *cliFixture {
	t.Helper()
	f := &cliFixture{
		t:      t,
		remote: testutil.NewScriptedRemote(),
		kv:     cache.NewMemoryKV(),
		ids:    ident.NewFixedGenerator(),
		clock:  testutil.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		stdout: newLockedBuffer(),
		stderr: newLockedBuffer(),
	}
	f.remote.SetDocument(document())
	return f
}

func (f *cliFixture) options() *RootOptions {
	return &RootOptions{
		Stdout:     f.stdout,
		Stderr:     f.stderr,
		Remote:     f.remote,
		KV:         f.kv,
		Clock:      f.clock,
		RequestIDs: f.ids,
	}
}

// run executes one command line and returns its exit code and stdout.
func (f *cliFixture) run(args ...string) (int, string) {
	f.t.Helper()
	f.stdout.Reset()
	code := execute(context.Background(), f.options(), args)
	return code, f.stdout.String()
}

// runJSON executes args with --format json and decodes the response.
func (f *cliFixture) runJSON(args ...string) (int, response) {
	f.t.Helper()
	code, out := f.run(append([]string{"--format", "json"}, args...)...)
	var resp response
	require.NoError(f.t, json.Unmarshal([]byte(out), &resp), out)
	return code, resp
}

// mustRun fails the test unless args exit successfully.
func (f *cliFixture) mustRun(args ...string) string {
	f.t.Helper()
	code, out := f.run(args...)
	require.Equal(f.t, ExitSuccess, code, "stdout: %s\nstderr: %s", out, f.stderr.String())
	return out
}

type response struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Error     *CLIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func document() map[string]any {
	return map[string]any{
		"users": []any{
			map[string]any{"User_ID": 1, "User_Name": "Root", "User_Type": "ADMIN"},
			map[string]any{"User_ID": "7", "User_Name": "Asha", "User_Type": "normal"},
		},
		"departments": []any{
			map[string]any{"Department_ID": 1, "Department_Name": "Revenue"},
		},
		"offices": []any{
			map[string]any{"Office_ID": 10, "Office_Name": "North", "Department_ID": 1, "User_ID": 7, "Finalized": "No"},
			map[string]any{"Office_ID": 11, "Office_Name": "South", "Department_ID": 1, "User_ID": 1, "Finalized": "No"},
		},
		"posts": []any{
			map[string]any{"Post_ID": 3, "Post_Name": "Clerk"},
			map[string]any{"Post_ID": 4, "Post_Name": "Typist"},
		},
		"employees": []any{
			map[string]any{"Employee_ID": 100, "Employee_Name": "Ravi", "Employee_Surname": "K", "Office_ID": 10, "Department_ID": 1, "Post_ID": 3, "Mobile": 9876543210, "Active": "Yes"},
			map[string]any{"Employee_ID": 101, "Employee_Name": "Meena", "Office_ID": 11, "Department_ID": 1, "Post_ID": 4, "Active": "Yes"},
			map[string]any{"Employee_ID": 102, "Employee_Name": "Gopal", "Office_ID": 10, "Department_ID": 1, "Post_ID": 4, "Active": "No", "DA_Reason": "Retired"},
		},
		"userPostSelections": map[string]any{"7": "[3]"},
	}
}

func TestPull(t *testing.T) {
	f := newCLI(t)

	out := f.mustRun("pull")
	assert.Contains(t, out, "3 employees, 2 offices, 2 posts")
	assert.Equal(t, 1, f.remote.Fetches())

	code, resp := f.runJSON("status")
	require.Equal(t, ExitSuccess, code)
	var status StatusResult
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.Equal(t, 3, status.Counts[model.TableEmployees])
	assert.Nil(t, status.User)
}

func TestPull_Failure(t *testing.T) {
	f := newCLI(t)
	f.remote.QueueFetch(testutil.FetchReply{Err: &remote.Error{Code: remote.CodeTransport, Op: "fetch", Message: "connection refused"}})

	code, resp := f.runJSON("pull")
	assert.Equal(t, ExitFailure, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TRANSPORT_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "connection refused")
}

func TestPull_Offline(t *testing.T) {
	f := newCLI(t)
	opts := f.options()
	opts.Remote = remote.Offline{}

	code := execute(context.Background(), opts, []string{"pull"})
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, f.stdout.String(), "offline")
}

func TestLogin(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")

	out := f.mustRun("login", "7")
	assert.Contains(t, out, "logged in as Asha (NORMAL)")

	code, resp := f.runJSON("status")
	require.Equal(t, ExitSuccess, code)
	var status StatusResult
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	require.NotNil(t, status.User)
	assert.Equal(t, model.ID(7), status.User.UserID)

	f.mustRun("logout")
	out = f.mustRun("status")
	assert.Contains(t, out, "not logged in")
}

func TestLogin_Errors(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")

	code, out := f.run("login", "99")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "unknown user 99")

	code, out = f.run("login", "abc")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "invalid user id")
}

func TestEmployees_RequiresLogin(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")

	code, out := f.run("employees")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "not logged in")
}

func TestEmployees_Scope(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")

	f.mustRun("login", "7")
	out := f.mustRun("employees")
	assert.Contains(t, out, "Ravi K")
	assert.Contains(t, out, "North")
	assert.NotContains(t, out, "Meena", "office 11 belongs to another custodian")
	assert.NotContains(t, out, "Gopal", "inactive employees are hidden by default")

	out = f.mustRun("employees", "--status", "inactive")
	assert.Contains(t, out, "Gopal")

	f.mustRun("login", "1")
	code, resp := f.runJSON("employees", "--status", "all")
	require.Equal(t, ExitSuccess, code)
	var rows []EmployeeRow
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	assert.Len(t, rows, 3)
}

func TestEmployees_Filters(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "1")

	code, resp := f.runJSON("employees", "--search", "MEEN")
	require.Equal(t, ExitSuccess, code)
	var rows []EmployeeRow
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, model.ID(101), rows[0].Employee.EmployeeID)

	code, resp = f.runJSON("employees", "--search", "98765")
	require.Equal(t, ExitSuccess, code)
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, model.ID(100), rows[0].Employee.EmployeeID)

	code, _ = f.run("employees", "--status", "maybe")
	assert.Equal(t, ExitCommandError, code)
	code, _ = f.run("employees", "--post", "x")
	assert.Equal(t, ExitCommandError, code)
}

func TestPosts(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "7")

	code, resp := f.runJSON("posts")
	require.Equal(t, ExitSuccess, code)
	var rows []PostRow
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, model.ID(3), rows[0].Post.PostID)
	assert.True(t, rows[0].Selected)

	out := f.mustRun("posts", "--all")
	assert.Contains(t, out, "Typist")
}

func TestSelectPost(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "7")
	f.remote.QueueWrite(testutil.WriteReply{})

	code, resp := f.runJSON("select-post", "4")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.JSONEq(t, `{"post":4,"selected":true}`, string(resp.Data))

	reqs := f.remote.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.ActionUpdateUserPostSelections, reqs[0].Action)
	assert.Equal(t, mutation.SelectionPayload{UserID: 7, PostIDs: []model.ID{3, 4}}, reqs[0].Payload)

	code, _ = f.run("select-post", "99")
	assert.Equal(t, ExitCommandError, code)
}

func TestWrite_AdminCreatesPost(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "1")
	f.remote.QueueWrite(testutil.WriteReply{Resp: remote.WriteResponse{
		Data: map[string]any{"Post_ID": json.Number("5"), "Post_Name": "Driver"},
	}})

	code, resp := f.runJSON("write", "upsertPost", "--payload", `{"Post_Name":"Driver"}`)
	require.Equal(t, ExitSuccess, code, f.stderr.String())
	assert.Equal(t, "req-1", resp.RequestID)

	out := f.mustRun("posts")
	assert.Contains(t, out, "Driver")

	code, resp = f.runJSON("write", "upsertPost", "--payload", `{"Post_Name":"Driver"}`)
	assert.Equal(t, ExitFailure, code, "script has no second reply")
	require.NotNil(t, resp.Error)
}

func TestWrite_Rejected(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "1")
	f.remote.QueueWrite(testutil.WriteReply{Err: &remote.Error{Code: remote.CodeRejected, Op: "write", Message: "bank in use"}})

	code, resp := f.runJSON("write", "upsertBank", "--payload", `{"Bank_Name":"State Bank"}`)
	assert.Equal(t, ExitFailure, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SERVER_REJECTED", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "bank in use")
	assert.Equal(t, 2, f.remote.Fetches(), "a failed write triggers a corrective refresh")

	code, resp = f.runJSON("status")
	require.Equal(t, ExitSuccess, code)
	var status StatusResult
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.Equal(t, 0, status.Counts[model.TableBanks], "the optimistic bank is gone")
}

func TestWrite_Permissions(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "7")

	tests := []struct {
		name    string
		args    []string
		message string
	}{
		{"admin action", []string{"write", "upsertPost", "-p", `{"Post_Name":"x"}`}, "requires an administrator"},
		{"other office", []string{"write", "upsertEmployee", "-p", `{"Employee_ID":101,"Office_ID":11,"Active":"Yes"}`}, "not assigned to you"},
		{"move into other office", []string{"write", "upsertEmployee", "-p", `{"Employee_ID":100,"Office_ID":11,"Active":"Yes"}`}, "not assigned to you"},
		{"other user's selection", []string{"write", "updateUserPostSelections", "-p", `{"User_ID":1,"Post_IDs":[3]}`}, "another user"},
		{"unknown action", []string{"write", "updateEverything", "-p", `{}`}, "invalid action"},
		{"missing payload", []string{"write", "upsertEmployee"}, "payload is required"},
		{"bad payload", []string{"write", "upsertEmployee", "-p", `[1]`}, "not a JSON object"},
		{"deactivate without reason", []string{"write", "upsertEmployee", "-p", `{"Employee_ID":100,"Office_ID":10,"Active":"No"}`}, "reason required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := f.run(tt.args...)
			assert.Equal(t, ExitCommandError, code)
			assert.Contains(t, out, tt.message)
		})
	}
	assert.Empty(t, f.remote.Requests())
}

func TestWrite_EmployeeFromFile(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "7")
	f.remote.QueueWrite(testutil.WriteReply{Resp: remote.WriteResponse{
		Data: map[string]any{"Employee_ID": json.Number("103"), "Employee_Name": "Latha", "Office_ID": json.Number("10")},
	}})

	path := filepath.Join(t.TempDir(), "employee.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Employee_Name":"Latha","Office_ID":10,"Post_ID":3,"photoData":"data:image/png;base64,AAAA"}`), 0o600))

	out := f.mustRun("write", "upsertEmployee", "--file", path)
	assert.Contains(t, out, "upsertEmployee: ok (id 103)")

	reqs := f.remote.Requests()
	require.Len(t, reqs, 1)
	payload, ok := reqs[0].Payload.(mutation.EmployeePayload)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAAA", payload.PhotoData)
	assert.True(t, payload.EmployeeID.IsPending())

	out = f.mustRun("employees")
	assert.Contains(t, out, "Latha")
}

func TestFinalize_LocksOffice(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "7")
	f.remote.QueueWrite(testutil.WriteReply{})

	f.mustRun("finalize", "10")

	code, resp := f.runJSON("employees")
	require.Equal(t, ExitSuccess, code)
	var rows []EmployeeRow
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.True(t, r.Locked, r.Employee.EmployeeID)
	}

	code, out := f.run("write", "upsertEmployee", "-p", `{"Employee_ID":100,"Office_ID":10,"Active":"Yes"}`)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "finalized")

	code, out = f.run("finalize", "10", "--reopen")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "requires an administrator")

	code, _ = f.run("finalize", "11")
	assert.Equal(t, ExitCommandError, code)
	assert.Len(t, f.remote.Requests(), 1)
}

func TestFinalize_Department(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")

	f.mustRun("login", "7")
	code, out := f.run("finalize", "1", "--department")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "requires an administrator")

	f.mustRun("login", "1")
	f.remote.QueueWrite(testutil.WriteReply{}, testutil.WriteReply{})

	code, resp := f.runJSON("finalize", "1", "--department")
	require.Equal(t, ExitSuccess, code, f.stderr.String())
	var res DepartmentResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, []model.ID{10, 11}, res.Finalized)

	reqs := f.remote.Requests()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, model.ActionUpsertOffice, r.Action)
	}
}

func TestFinalize_DepartmentStopsOnFailure(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "1")
	f.remote.QueueWrite(testutil.WriteReply{Err: &remote.Error{Code: remote.CodeRejected, Op: "write", Message: "sheet locked"}})

	code, _ := f.run("finalize", "1", "--department")
	assert.Equal(t, ExitFailure, code)
	assert.Len(t, f.remote.Requests(), 1)
}

func TestExport(t *testing.T) {
	f := newCLI(t)
	f.mustRun("pull")
	f.mustRun("login", "1")

	path := filepath.Join(t.TempDir(), "employees.xlsx")
	code, resp := f.runJSON("export", path)
	require.Equal(t, ExitSuccess, code, f.stderr.String())

	var res ExportResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, 3, res.Rows)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWatch(t *testing.T) {
	f := newCLI(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	go func() {
		done <- execute(ctx, f.options(), []string{"watch", "--interval", "1m"})
	}()

	select {
	case <-f.stdout.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("no refresh printed")
	}
	cancel()

	select {
	case code := <-done:
		assert.Equal(t, ExitSuccess, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Contains(t, f.stdout.String(), "3 employees")
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: rename_post
description: A post rename is confirmed by the store
remote:
  posts: [{Post_ID: 3, Post_Name: Clerk}]
steps:
  - action: upsertPost
    payload: {Post_ID: 3, Post_Name: Senior Clerk}
    expect: {case: ok}
assertions:
  - type: final_state
    table: posts
    where: {Post_ID: 3}
    expect: {Post_Name: Senior Clerk}
`

const failingScenario = `
name: wrong_count
description: Expects a write that never happens
remote:
  posts: []
steps:
  - refresh: true
assertions:
  - type: trace_count
    action: upsertPost
    count: 1
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	f := newCLI(t)

	out := f.mustRun("test", filepath.Join("..", "harness", "testdata", "scenarios"))
	assert.Contains(t, out, "✓ selection_and_rejected_delete")
	assert.Contains(t, out, "✓ employee_lifecycle")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTestCommand_GoldenUpdateThenCompare(t *testing.T) {
	f := newCLI(t)
	dir := t.TempDir()
	writeScenario(t, dir, "rename_post.yaml", passingScenario)

	out := f.mustRun("test", dir, "--update")
	assert.Contains(t, out, "✓ rename_post")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "rename_post.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "rename_post"`)

	f.mustRun("test", dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "rename_post.golden"), []byte(`{}`), 0o644))
	code, out := f.run("test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_Failure(t *testing.T) {
	f := newCLI(t)
	dir := t.TempDir()
	writeScenario(t, dir, "rename_post.yaml", passingScenario)
	writeScenario(t, dir, "wrong_count.yaml", failingScenario)

	code, out := f.run("test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_JSON(t *testing.T) {
	f := newCLI(t)
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_count.yaml", failingScenario)

	code, out := f.run("--format", "json", "test", dir)
	assert.Equal(t, ExitFailure, code)

	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output must be a single JSON document: %s", out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "TEST_FAILED", resp.Error.Code)

	var result TestResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTestCommand_Filter(t *testing.T) {
	f := newCLI(t)
	dir := t.TempDir()
	writeScenario(t, dir, "rename_post.yaml", passingScenario)
	writeScenario(t, dir, "wrong_count.yaml", failingScenario)

	out := f.mustRun("test", dir, "--filter", "rename*")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Errors(t *testing.T) {
	f := newCLI(t)

	code, _ := f.run("test", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, ExitCommandError, code)

	out := f.mustRun("test", t.TempDir())
	assert.Contains(t, out, "No scenarios found.")

	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: [unclosed")
	code, out = f.run("test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "failed to load scenario")
}

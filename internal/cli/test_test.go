package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyFixtures copies the harness scenarios and plans into a temp dir,
// keeping their relative layout, and returns the scenarios directory.
func copyFixtures(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, sub := range []string{"scenarios", "plans"} {
		src := filepath.Join("..", "harness", "testdata", sub)
		require.NoError(t, os.CopyFS(filepath.Join(root, sub), os.DirFS(src)))
	}
	return filepath.Join(root, "scenarios")
}

func decodeTestResult(t *testing.T, out string) (string, TestResult) {
	t.Helper()
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Status, resp.Data
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandWithoutGolden(t *testing.T) {
	dir := copyFixtures(t)

	out, err := execute(t, "test", dir, "--format", "json")
	require.NoError(t, err)

	status, result := decodeTestResult(t, out)
	assert.Equal(t, "ok", status)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Passed)
	for _, sr := range result.Scenarios {
		assert.Equal(t, "missing", sr.Golden, sr.Name)
	}
}

func TestTestCommandUpdateThenMatch(t *testing.T) {
	dir := copyFixtures(t)

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ audit_perform (golden updated)")
	assert.Contains(t, out, "✓ override_failure (golden updated)")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")

	// The written snapshots are the ones the harness golden tests pin.
	for _, name := range []string{"audit_perform", "override_failure"} {
		got, err := os.ReadFile(filepath.Join(dir, "golden", name+".golden"))
		require.NoError(t, err)
		want, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", name+".golden"))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), name)
	}

	out, err = execute(t, "test", dir, "--format", "json")
	require.NoError(t, err)
	_, result := decodeTestResult(t, out)
	for _, sr := range result.Scenarios {
		assert.Equal(t, "match", sr.Golden, sr.Name)
	}
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := copyFixtures(t)
	_, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)

	golden := filepath.Join(dir, "golden", "audit_perform.golden")
	require.NoError(t, os.WriteFile(golden, []byte(`{"kind":"invoked"}`), 0644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ audit_perform")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "✓ override_failure")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := copyFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`name: wrong
description: expects the wrong value
calls:
  - call: Return
    expect:
      value: 2
`), 0644))

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	status, result := decodeTestResult(t, out)
	assert.Equal(t, "error", status)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Total)

	var wrong *ScenarioResult
	for i := range result.Scenarios {
		if result.Scenarios[i].Name == "wrong" {
			wrong = &result.Scenarios[i]
		}
	}
	require.NotNil(t, wrong)
	assert.False(t, wrong.Pass)
	assert.Contains(t, wrong.Errors, "calls[0] Return: expected value 2, got 1")
}

func TestTestCommandExecutionFailureKeepsOrder(t *testing.T) {
	dir := copyFixtures(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_broken.yaml"), []byte(`name: b_broken
description: plans that do not compile
plans:
  - ../plans/broken
calls:
  - call: Perform
`), 0644))

	out, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, result := decodeTestResult(t, out)
	require.Len(t, result.Scenarios, 3)
	assert.Equal(t, "audit_perform", result.Scenarios[0].Name)
	assert.Equal(t, "b_broken", result.Scenarios[1].Name)
	assert.Equal(t, "override_failure", result.Scenarios[2].Name)

	assert.True(t, result.Scenarios[0].Pass)
	assert.False(t, result.Scenarios[1].Pass)
	require.Len(t, result.Scenarios[1].Errors, 1)
	assert.Contains(t, result.Scenarios[1].Errors[0], "execution failed")
	assert.True(t, result.Scenarios[2].Pass, "one scenario failing to run does not stop the others")
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 1, result.Failed)
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "typo.yaml"), []byte(`name: typo
description: misspelled key
calls:
  - call: Return
assertion: []
`), 0644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ typo.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := copyFixtures(t)

	out, err := execute(t, "test", dir, "--filter", "audit*", "--format", "json")
	require.NoError(t, err)
	_, result := decodeTestResult(t, out)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "audit_perform", result.Scenarios[0].Name)

	_, err = execute(t, "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("s", "golden", "audit_perform.golden"),
		goldenFilePath(filepath.Join("s", "audit_perform.yaml")))
}

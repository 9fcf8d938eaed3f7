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
name: broadcast
description: an untargeted order is announced on the topic
steps:
  - set: Medicine-Order/Active/o1
    value: {id: o1, userName: alice}
assertions:
  - type: notification_count
    action: NewMedicineOrderAction
    target: medicineOrder
    count: 1
`

const failingScenario = `
name: wrong
description: expects an order to vanish on creation
steps:
  - set: Medicine-Order/Active/o1
    value: {id: o1, userName: alice}
assertions:
  - type: absent
    path: Medicine-Order/Active/o1
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRoot(t, "text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRoot(t, "text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRoot(t, "text")), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRoot(t, "json")), t.TempDir())
	require.NoError(t, err)

	var response Response
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestHelpText(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRoot(t, "text")), "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "conformance")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestTestCommandPassAndFail(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"broadcast.yaml": passingScenario,
		"wrong.yaml":     failingScenario,
		"notes.txt":      "ignored",
	})

	out, err := execute(t, NewTestCommand(testRoot(t, "text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ broadcast")
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Assertion failed: absent")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")

	out, err = execute(t, NewTestCommand(testRoot(t, "text")), "--filter", "broad*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandJSONFailure(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"wrong.yaml": failingScenario})

	out, err := execute(t, NewTestCommand(testRoot(t, "json")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string         `json:"status"`
		Data   TestResult     `json:"data"`
		Error  *ResponseError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"broken.yaml": "name: [unclosed"})

	out, err := execute(t, NewTestCommand(testRoot(t, "text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"broadcast.yaml": passingScenario})
	golden := filepath.Join(dir, "golden", "broadcast.golden")

	_, err := execute(t, NewTestCommand(testRoot(t, "text")), "--update", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name": "broadcast"`)
	assert.Contains(t, string(data), `"target": "medicineOrder"`)

	// A fresh run reproduces the golden trace byte for byte.
	out, err := execute(t, NewTestCommand(testRoot(t, "text")), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ broadcast")

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, err = execute(t, NewTestCommand(testRoot(t, "text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: home_to_tests
description: Navigate from home to the tests list
flow:
  - invoke: navigate
    args:
      path: /tests
    expect:
      view: tests
      title: Placement tests | UEAH
assertions:
  - type: trace_contains
    action: navigate
    args:
      path: /tests
`

const failingScenario = `name: wrong_title
description: Expects a title the page does not have
flow:
  - invoke: navigate
    args:
      path: /tests
    expect:
      title: Something else
assertions:
  - type: trace_count
    action: navigate
    count: 1
`

func writeScenario(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newTestCmd(format string, args ...string) (*bytes.Buffer, func() error) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, run := newTestCmd("text")
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, run := newTestCmd("text", "/nonexistent/scenarios")
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	dir := t.TempDir()

	buf, run := newTestCmd("text", dir)
	require.NoError(t, run())
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	dir := t.TempDir()

	buf, run := newTestCmd("json", dir)
	require.NoError(t, run())

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandRunsScenarios(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeScenario(t, scenarios, "home.yaml", passingScenario)

	buf, run := newTestCmd("text", scenarios)
	require.NoError(t, run())
	assert.Contains(t, buf.String(), "✓ home_to_tests")
	assert.Contains(t, buf.String(), "1 passed, 0 failed, 1 total")
}

func TestTestCommandReportsFailures(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeScenario(t, scenarios, "home.yaml", passingScenario)
	writeScenario(t, scenarios, "wrong.yaml", failingScenario)
	writeScenario(t, scenarios, "broken.yml", "name: broken\n")

	buf, run := newTestCmd("json", scenarios)
	err := run()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 2, resp.Data.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "wrong_title")
	assert.False(t, byName["wrong_title"].Pass)
	assert.NotEmpty(t, byName["wrong_title"].Errors)

	require.Contains(t, byName, "broken.yml")
	assert.Contains(t, byName["broken.yml"].Errors[0], "failed to load scenario")
}

func TestTestCommandGoldenFiles(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	golden := filepath.Join(root, "golden")
	writeScenario(t, scenarios, "home.yaml", passingScenario)

	buf, run := newTestCmd("text", scenarios, "--update")
	require.NoError(t, run())
	assert.Contains(t, buf.String(), "✓ home_to_tests (golden updated)")

	data, err := os.ReadFile(filepath.Join(golden, "home_to_tests.golden"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"scenario_name":"home_to_tests","trace":[`), string(data))

	_, run = newTestCmd("text", scenarios)
	require.NoError(t, run())

	require.NoError(t, os.WriteFile(filepath.Join(golden, "home_to_tests.golden"), []byte(`{"scenario_name":"home_to_tests","trace":[]}`), 0o644))
	buf, run = newTestCmd("text", scenarios)
	err = run()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "trace does not match golden file")
}

func TestTestCommandRepositoryScenarios(t *testing.T) {
	buf, run := newTestCmd("text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, run(), buf.String())
	assert.Contains(t, buf.String(), "0 failed")
}

func TestTestHelpText(t *testing.T) {
	buf, run := newTestCmd("text", "--help")
	require.NoError(t, run())

	output := buf.String()
	assert.Contains(t, output, "scenarios")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "--golden")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "fav-toggle.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "fav-sync.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "browse.yaml"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "fav-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "fav-"), f)
	}

	_, err = findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0o644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

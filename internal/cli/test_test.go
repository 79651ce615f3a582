package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

// writeScenario writes a scenario using the shared harness fixture into
// dir/scenarios and returns its path.
func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	fixture, err := filepath.Abs("../harness/testdata/fixtures/basic.yaml")
	require.NoError(t, err)

	sdir := filepath.Join(dir, "scenarios")
	require.NoError(t, os.MkdirAll(sdir, 0o755))
	path := filepath.Join(sdir, name+".yaml")
	src := "name: " + name + "\ndescription: generated\nfixture: " + fixture + "\n" + body
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const passingSteps = `
steps:
  - dispatch: GET_SPECIES
    payload: { formula: H2O }
assertions:
  - type: trace_count
    op: GET_SPECIES
    count: 1
`

const failingSteps = `
steps:
  - dispatch: GET_SPECIES
assertions:
  - type: trace_count
    op: GET_SPECIES
    count: 7
`

func TestTestCommand_MissingArgs(t *testing.T) {
	_, _, err := execute(t, "", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommand_NonExistentPath(t *testing.T) {
	_, _, err := execute(t, "", "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to find scenarios")
}

func TestTestCommand_EmptyDirectory(t *testing.T) {
	_, _, err := execute(t, "", "test", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_RunsHarnessScenarios(t *testing.T) {
	out, _, err := execute(t, "", "test", scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ login_flow (golden matched)")
	assert.Contains(t, out, "✓ protected_alert (golden matched)")
	assert.Contains(t, out, "✓ latest_wins\n")
	assert.Contains(t, out, "Test Summary: 5 passed, 0 failed, 5 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, _, err := execute(t, "", "test", scenariosDir, "--filter", "login*")
	require.NoError(t, err)
	assert.Contains(t, out, "login_flow")
	assert.NotContains(t, out, "search_narrows")
	assert.Contains(t, out, "1 total")
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	_, _, err := execute(t, "", "test", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_UpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "water", passingSteps)

	out, _, err := execute(t, "", "test", path, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ water (golden updated)")
	assert.FileExists(t, filepath.Join(dir, "golden", "water.golden"))

	out, _, err = execute(t, "", "test", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ water (golden matched)")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "water", passingSteps)
	golden := filepath.Join(dir, "elsewhere")
	require.NoError(t, os.MkdirAll(golden, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(golden, "water.golden"), []byte("stale\n"), 0o644))

	out, _, err := execute(t, "", "test", path, "--golden-dir", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ water")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "wrong_count", failingSteps)

	out, _, err := execute(t, "", "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_count")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommand_FailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_count", failingSteps)
	writeScenario(t, dir, "water", passingSteps)

	out, _, err := execute(t, "", "--format", "json", "test", filepath.Join(dir, "scenarios"))
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string     `json:"code"`
			Message string     `json:"message"`
			Details TestResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
	assert.Equal(t, 2, resp.Error.Details.Total)
	assert.Equal(t, 1, resp.Error.Details.Passed)
}

func TestTestCommand_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\n"), 0o644))

	out, _, err := execute(t, "", "test", path)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFilterScenarioFiles(t *testing.T) {
	files := []string{"a/login_flow.yaml", "a/search_narrows.yaml", "b/login_retry.yml"}

	got, err := filterScenarioFiles(files, "")
	require.NoError(t, err)
	assert.Equal(t, files, got)

	got, err = filterScenarioFiles(files, "login*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/login_flow.yaml", "b/login_retry.yml"}, got)

	got, err = filterScenarioFiles(files, "nothing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		file, name, dir string
		expected        string
	}{
		{"/path/to/scenarios/login.yaml", "login_flow", "", "/path/to/golden/login_flow.golden"},
		{"scenarios/test.yml", "test", "", "golden/test.golden"},
		{"scenarios/test.yaml", "test", "/tmp/g", "/tmp/g/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.file, tc.name, tc.dir))
	}
}

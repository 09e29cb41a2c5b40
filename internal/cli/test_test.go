package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_AllPass(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeFile(t, scenarios, "out_of_order.yaml", outOfOrderScenario)
	writeFile(t, scenarios, "notes.txt", "ignored")

	out, err := execute(t, "test", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ out_of_order")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_UpdateThenCompareGolden(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeFile(t, scenarios, "out_of_order.yaml", outOfOrderScenario)

	out, err := execute(t, "test", "--update", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	goldenPath := filepath.Join(root, "golden", "out_of_order.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"out_of_order"`)

	_, err = execute(t, "test", scenarios)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"out_of_order","trace":[]}`), 0o644))
	out, err = execute(t, "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_Filter(t *testing.T) {
	scenarios := t.TempDir()
	writeFile(t, scenarios, "out_of_order.yaml", outOfOrderScenario)
	writeFile(t, scenarios, "failing.yaml", failingScenario)

	out, err := execute(t, "test", "--filter", "out_*", scenarios)
	require.NoError(t, err)
	assert.NotContains(t, out, "failing")
	assert.Contains(t, out, "1 total")
}

func TestTestCommand_FailureJSON(t *testing.T) {
	scenarios := t.TempDir()
	writeFile(t, scenarios, "failing.yaml", failingScenario)
	writeFile(t, scenarios, "broken.yaml", "name: broken\nbogus: true\n")

	out, err := execute(t, "--format", "json", "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Failed)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_Empty(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_HarnessTestdata(t *testing.T) {
	out, err := execute(t, "test", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 failed")
}

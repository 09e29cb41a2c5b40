package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ok.yaml", outOfOrderScenario)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "out_of_order, 5 steps")
}

func TestValidateCommand_Invalid(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "ok.yaml", outOfOrderScenario)
	bad := writeFile(t, dir, "bad.yaml", `
name: bad
description: negative sequence
steps:
  - schedule: {source: A, sequence: -4}
`)

	out, err := execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+bad)
}

func TestValidateCommand_JSON(t *testing.T) {
	bad := writeFile(t, t.TempDir(), "bad.yaml", "name: x\nsteps: 3\n")

	out, err := execute(t, "--format", "json", "validate", bad)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []FileValidation `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.False(t, resp.Data[0].Valid)
	assert.NotEmpty(t, resp.Data[0].Error)
}

func TestValidateCommand_RequiresArgs(t *testing.T) {
	_, err := execute(t, "validate")
	assert.Error(t, err)
}

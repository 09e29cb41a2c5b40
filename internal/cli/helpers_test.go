package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const outOfOrderScenario = `
name: out_of_order
description: A2 waits for A0 and A1.
steps:
  - schedule: {source: A, sequence: 2}
    expect: {outcome: buffered}
  - schedule: {source: A, sequence: 0}
    expect: {outcome: forwarded, pushed: [0]}
  - schedule: {source: A, sequence: 1}
    expect: {outcome: forwarded, pushed: [1, 2]}
  - confirm: {source: A, sequence: 0}
    expect: {released: 0}
  - confirm: {source: C, sequence: 0}
    expect: {error: UNKNOWN_SOURCE}
assertions:
  - type: push_order
    source: A
    sequences: [0, 1, 2]
`

const failingScenario = `
name: failing
description: The assertion is wrong on purpose.
steps:
  - schedule: {source: A, sequence: 0}
assertions:
  - type: push_count
    count: 5
`

// writeFile writes content into dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// journalFromRun runs the out-of-order scenario into a fresh database.
func journalFromRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	scenario := writeFile(t, dir, "scenario.yaml", outOfOrderScenario)
	db := filepath.Join(dir, "run.db")
	_, err := execute(t, "run", "--db", db, scenario)
	require.NoError(t, err)
	return db
}

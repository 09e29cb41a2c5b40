package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqgate/internal/ir"
	"github.com/roach88/seqgate/internal/store"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, "replay")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayDeterministic(t *testing.T) {
	db := journalFromRun(t)

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 5 calls across 2 sources (3 pushes)")
	assert.Contains(t, out, "✓ push order reproduced")
}

func TestReplayDeterministicJSON(t *testing.T) {
	db := journalFromRun(t)

	out, err := execute(t, "--format", "json", "replay", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   store.ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Deterministic)
	assert.Equal(t, []string{"A", "C"}, resp.Data.Sources)
}

func TestReplayDetectsDivergence(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tampered.db")
	st, err := store.Open(db)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = st.AppendEvent(ctx, store.Event{Kind: store.EventScheduled, Item: ir.Item{ID: "x", SourceID: "A", Sequence: 1}, Outcome: "buffered"})
	require.NoError(t, err)
	_, err = st.AppendEvent(ctx, store.Event{Kind: store.EventPushed, Item: ir.Item{ID: "x", SourceID: "A", Sequence: 1}, Stamp: 1})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "replay", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ push order diverged")
}

const boundedScenario = `
name: bounded
description: A1 finds the buffer full behind A2.
steps:
  - schedule: {source: A, sequence: 2}
    expect: {outcome: buffered}
  - schedule: {source: A, sequence: 1}
    expect: {error: BUFFER_FULL}
  - schedule: {source: A, sequence: 0}
    expect: {outcome: forwarded, pushed: [0]}
assertions:
  - type: push_order
    source: A
    sequences: [0]
`

func TestReplayUsesRecordedBufferLimit(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "bounded.yaml", boundedScenario)
	db := filepath.Join(dir, "run.db")

	_, err := execute(t, "run", "--db", db, "--max-pending", "1", scenario)
	require.NoError(t, err)

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 3 calls across 1 sources (1 pushes)")
	assert.Contains(t, out, "✓ push order reproduced")

	out, err = execute(t, "replay", "--db", db, "--max-pending", "0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "source A: journaled [0], replayed [0 1 2]")
}

func TestReplayRejectsNegativeMaxPending(t *testing.T) {
	db := journalFromRun(t)

	_, err := execute(t, "replay", "--db", db, "--max-pending", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

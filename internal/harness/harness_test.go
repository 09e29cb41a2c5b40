package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
	"github.com/roach88/seqgate/internal/metrics"
	"github.com/roach88/seqgate/internal/store"
)

func loadTestdata(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func requirePass(t *testing.T, result *Result) {
	t.Helper()
	require.True(t, result.Pass, "scenario failed:\n%s", strings.Join(result.Errors, "\n"))
}

func TestRun_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario := loadTestdata(t, name)
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			requirePass(t, result)
		})
	}
}

func TestRun_InOrder(t *testing.T) {
	result, err := Run(loadTestdata(t, "in_order"))
	require.NoError(t, err)
	requirePass(t, result)

	assert.Equal(t, []uint64{0, 1, 2}, result.Pushes["A"])
	snap, ok := result.Source("A")
	require.True(t, ok)
	assert.Empty(t, snap.Pending)
}

func TestRun_OutOfOrderReleasesInOneCall(t *testing.T) {
	result, err := Run(loadTestdata(t, "out_of_order_release"))
	require.NoError(t, err)
	requirePass(t, result)

	var pushedInStep2 []uint64
	for _, e := range result.Trace {
		if e.Step == 2 && e.Type == store.EventPushed {
			pushedInStep2 = append(pushedInStep2, e.Sequence)
		}
	}
	assert.Equal(t, []uint64{1, 2}, pushedInStep2)
}

func TestRun_UnknownSourceCreatesNoState(t *testing.T) {
	result, err := Run(loadTestdata(t, "unknown_source"))
	require.NoError(t, err)
	requirePass(t, result)

	_, ok := result.Source("C")
	assert.False(t, ok)
	assert.Empty(t, result.Sources)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong
description: every expectation here is wrong
steps:
  - schedule: {source: A, sequence: 1}
    expect: {outcome: forwarded}
  - schedule: {source: A, sequence: 0}
    expect: {pushed: [0]}
  - schedule: {source: A, sequence: 0}
  - confirm: {source: Z, sequence: 0}
    expect: {released: 1}
assertions:
  - type: push_order
    source: A
    sequences: [0]
  - type: next_expected
    source: Q
    value: 0
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "steps[0]: expected outcome forwarded, got buffered")
	assert.Contains(t, joined, "steps[1]: expected pushes [0], got [0 1]")
	assert.Contains(t, joined, "steps[2]: unexpected error DUPLICATE_OR_STALE_SEQUENCE")
	assert.Contains(t, joined, "steps[3]: unexpected error UNKNOWN_SOURCE")
	assert.Contains(t, joined, "assertions[0]")
	assert.Contains(t, joined, "source never scheduled")
}

func TestRun_InvalidItem(t *testing.T) {
	scenario := &Scenario{
		Name:        "invalid",
		Description: "empty source",
		Steps: []Step{
			{Schedule: &ItemRef{Source: ""}, Expect: &Expect{Error: string(dispatch.ErrCodeInvalidItem)}},
		},
		Assertions: []Assertion{{Type: AssertRejectedCount, Code: string(dispatch.ErrCodeInvalidItem), Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestRun_WithStoreAndObserver(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	result, err := Run(loadTestdata(t, "buffer_full"), WithStore(st), WithObserver(collector))
	require.NoError(t, err)
	requirePass(t, result)

	ledger, err := st.ReadLedger(t.Context(), "A")
	require.NoError(t, err)
	assert.Len(t, ledger, 4)

	rejected, err := st.ReadEvents(t.Context(), "A", store.EventRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, string(dispatch.ErrCodeBufferFull), rejected[0].Code)

	settings, err := st.LoadSettings(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, settings.MaxPending, "the scenario's buffer limit is recorded for replay")

	count, err := promtest.GatherAndCount(reg, "seqgate_dispatch_pushed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRun_WithIDGenerator(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	result, err := Run(loadTestdata(t, "out_of_order_release"),
		WithStore(st), WithIDGenerator(ir.NewSequentialGenerator("tx")))
	require.NoError(t, err)
	requirePass(t, result)

	scheduled, err := st.ReadEvents(t.Context(), "A", store.EventScheduled)
	require.NoError(t, err)
	require.Len(t, scheduled, 3)
	assert.Equal(t, "tx-1", scheduled[0].Item.ID)
	assert.Equal(t, "tx-3", scheduled[2].Item.ID)
}

func TestRun_AsyncDelivery(t *testing.T) {
	result, err := Run(loadTestdata(t, "out_of_order_release"),
		WithDispatchOptions(dispatch.WithAsyncDelivery()))
	require.NoError(t, err)
	requirePass(t, result)
	assert.Equal(t, []uint64{0, 1, 2}, result.Pushes["A"])
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestdata(t, "parallel_sources")

	first, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, first)

	for i := 0; i < 20; i++ {
		again, err := Run(scenario)
		require.NoError(t, err)
		requirePass(t, again)

		a, err := MarshalTrace(scenario.Name, first.Trace)
		require.NoError(t, err)
		b, err := MarshalTrace(scenario.Name, again.Trace)
		require.NoError(t, err)
		require.Equal(t, string(a), string(b), "run %d produced a different trace", i)
	}
}

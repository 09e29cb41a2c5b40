package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
)

func item(source string, seq uint64) ir.Item {
	return ir.Item{ID: "tx", SourceID: source, Sequence: seq}
}

func TestCollector_CountsDispatcherActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	ctx := context.Background()

	sink := dispatch.SinkFunc(func(_ context.Context, it ir.Item) error {
		if it.SourceID == "b" {
			return errors.New("down")
		}
		return nil
	})
	d := dispatch.New(sink, dispatch.WithObserver(c))

	_, err := d.Schedule(ctx, item("a", 2))
	require.NoError(t, err)
	_, err = d.Schedule(ctx, item("a", 1))
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.pending))

	_, err = d.Schedule(ctx, item("a", 0))
	require.NoError(t, err)
	_, err = d.Schedule(ctx, item("a", 0))
	require.Error(t, err)
	_, err = d.Schedule(ctx, item("b", 0))
	require.NoError(t, err)
	_, err = d.Confirm(ctx, item("a", 2))
	require.NoError(t, err)
	_, err = d.Confirm(ctx, item("nope", 0))
	require.Error(t, err)

	assert.Equal(t, 4.0, testutil.ToFloat64(c.scheduled))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.forwarded))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.buffered))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.pushed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pushFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.confirmed))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.released))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("DUPLICATE_OR_STALE_SEQUENCE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("UNKNOWN_SOURCE")))
}

func TestCollector_RegistersNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.Rejected(item("a", 0), &dispatch.DispatchError{Code: dispatch.ErrCodeBufferFull})

	expected := `
# HELP seqgate_dispatch_rejected_total Rejected Schedule and Confirm calls by error code
# TYPE seqgate_dispatch_rejected_total counter
seqgate_dispatch_rejected_total{code="BUFFER_FULL"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "seqgate_dispatch_rejected_total")
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

func TestCollector_NilRegisterer(t *testing.T) {
	c := New(nil)
	c.Confirmed(item("a", 0), 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.released))
}

func TestCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

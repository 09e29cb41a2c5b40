package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
)

func TestReplay_Deterministic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	d := dispatch.New(NewLedgerSink(s), dispatch.WithObserver(NewJournal(s, nil)))

	calls := []struct {
		confirm bool
		item    ir.Item
	}{
		{false, testItem("a", 2)},
		{false, testItem("a", 0)},
		{false, testItem("b", 1)},
		{true, testItem("a", 0)},
		{false, testItem("a", 1)},
		{false, testItem("a", 1)}, // stale
		{true, testItem("c", 0)},  // unknown source
		{false, testItem("b", 0)},
	}
	for _, c := range calls {
		if c.confirm {
			_, _ = d.Confirm(ctx, c.item)
		} else {
			_, _ = d.Schedule(ctx, c.item)
		}
	}

	result, err := s.Replay(ctx)
	require.NoError(t, err)
	assert.True(t, result.Deterministic, "mismatches: %v", result.Mismatches)
	assert.Equal(t, len(calls), result.Calls)
	assert.Equal(t, []string{"a", "b", "c"}, result.Sources)
	assert.Equal(t, 5, result.Pushes)
}

func TestReplay_ConcurrentSources(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	d := dispatch.New(NewLedgerSink(s), dispatch.WithObserver(NewJournal(s, nil)))

	var g errgroup.Group
	for _, src := range []string{"a", "b", "c", "d"} {
		g.Go(func() error {
			for _, seq := range []uint64{3, 1, 0, 2, 5, 4} {
				if _, err := d.Schedule(ctx, testItem(src, seq)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	result, err := s.Replay(ctx)
	require.NoError(t, err)
	assert.True(t, result.Deterministic, "mismatches: %v", result.Mismatches)
	assert.Equal(t, 24, result.Pushes)
}

func TestReplay_DetectsTamperedJournal(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AppendEvent(ctx, Event{Kind: EventScheduled, Item: testItem("a", 0), Outcome: "forwarded"})
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, Event{Kind: EventPushed, Item: testItem("a", 7), Stamp: 1})
	require.NoError(t, err)

	result, err := s.Replay(ctx)
	require.NoError(t, err)
	assert.False(t, result.Deterministic)
	require.Len(t, result.Mismatches, 1)
	assert.Contains(t, result.Mismatches[0], "source a")
}

func TestReplay_EmptyJournal(t *testing.T) {
	s := createTestStore(t)
	result, err := s.Replay(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Deterministic)
	assert.Zero(t, result.Calls)
}

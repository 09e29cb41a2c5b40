package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
)

// ReplayResult compares the journaled push order with a fresh run.
type ReplayResult struct {
	// Calls is the number of Schedule and Confirm calls replayed.
	Calls int `json:"calls"`

	// Sources lists every source that appears in the journal.
	Sources []string `json:"sources"`

	// Pushes counts pushes observed in the fresh run.
	Pushes int `json:"pushes"`

	// Mismatches describes every source whose push order differs.
	Mismatches []string `json:"mismatches,omitempty"`

	// Deterministic is true when every source matched.
	Deterministic bool `json:"deterministic"`
}

// Replay re-executes the journaled Schedule and Confirm calls against a fresh
// dispatcher and checks that every source is pushed in the journaled order.
//
// Calls are reconstructed from scheduled, confirmed and rejected rows. A
// rejected row with code UNKNOWN_SOURCE was a Confirm; every other rejected
// row was a Schedule. The fresh dispatcher uses inline delivery and an
// in-memory sink, so replay never touches the ledger.
//
// The fresh dispatcher starts from the settings recorded with SaveSettings;
// opts are applied after them and take precedence.
func (s *Store) Replay(ctx context.Context, opts ...dispatch.Option) (*ReplayResult, error) {
	settings, err := s.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	events, err := s.ReadEvents(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	sources, err := s.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	journaled := make(map[string][]uint64)
	var (
		mu     sync.Mutex
		actual = make(map[string][]uint64)
	)
	sink := dispatch.SinkFunc(func(_ context.Context, item ir.Item) error {
		mu.Lock()
		defer mu.Unlock()
		actual[item.SourceID] = append(actual[item.SourceID], item.Sequence)
		return nil
	})
	d := dispatch.New(sink, append(settings.DispatchOptions(), opts...)...)

	result := &ReplayResult{Sources: sources}
	for _, e := range events {
		switch e.Kind {
		case EventPushed, EventPushFailed:
			journaled[e.Item.SourceID] = append(journaled[e.Item.SourceID], e.Item.Sequence)
		case EventScheduled:
			result.Calls++
			_, _ = d.Schedule(ctx, e.Item)
		case EventConfirmed:
			result.Calls++
			_, _ = d.Confirm(ctx, e.Item)
		case EventRejected:
			result.Calls++
			if e.Code == string(dispatch.ErrCodeUnknownSource) {
				_, _ = d.Confirm(ctx, e.Item)
			} else {
				_, _ = d.Schedule(ctx, e.Item)
			}
		}
	}
	d.Wait()

	for _, src := range result.Sources {
		want, got := journaled[src], actual[src]
		result.Pushes += len(got)
		if !slices.Equal(want, got) {
			result.Mismatches = append(result.Mismatches,
				fmt.Sprintf("source %s: journaled %v, replayed %v", src, want, got))
		}
	}
	result.Deterministic = len(result.Mismatches) == 0
	return result, nil
}

package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/seqgate/internal/ir"
)

// RecordingSink records every pushed item in arrival order.
//
// It also checks the sink contract as it goes: a second push for the same
// (source, sequence) slot, or a push that overlaps another push for the same
// source, is recorded as a violation.
//
// Thread-safety: RecordingSink is safe for concurrent use.
type RecordingSink struct {
	mu         sync.Mutex
	items      []ir.Item
	seen       map[ir.SlotKey]bool
	active     map[string]bool
	failures   map[ir.SlotKey]error
	violations []string

	// OnPush, when set, runs inside Push before the item is recorded.
	// Tests use it to slow the sink down or to observe interleavings.
	OnPush func(item ir.Item)
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		seen:     make(map[ir.SlotKey]bool),
		active:   make(map[string]bool),
		failures: make(map[ir.SlotKey]error),
	}
}

// FailOn makes the push of (source, sequence) return err. The item is still
// recorded, matching a sink that received the item but reported an error.
func (s *RecordingSink) FailOn(source string, sequence uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[ir.SlotKey{SourceID: source, Sequence: sequence}] = err
}

// Push implements dispatch.Sink.
func (s *RecordingSink) Push(_ context.Context, item ir.Item) error {
	s.mu.Lock()
	if s.active[item.SourceID] {
		s.violations = append(s.violations, fmt.Sprintf("overlapping push for source %s at %d", item.SourceID, item.Sequence))
	}
	s.active[item.SourceID] = true
	hook := s.OnPush
	s.mu.Unlock()

	if hook != nil {
		hook(item)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, item.SourceID)

	key := item.Key()
	if s.seen[key] {
		s.violations = append(s.violations, fmt.Sprintf("duplicate push %s", item))
	}
	s.seen[key] = true
	s.items = append(s.items, item)
	return s.failures[key]
}

// Items returns every pushed item in arrival order.
func (s *RecordingSink) Items() []ir.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Sequences returns the pushed sequence numbers for one source, in arrival
// order. Never nil.
func (s *RecordingSink) Sequences(source string) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []uint64{}
	for _, it := range s.items {
		if it.SourceID == source {
			out = append(out, it.Sequence)
		}
	}
	return out
}

// Len returns the total number of pushes.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Violations returns contract violations observed so far.
func (s *RecordingSink) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

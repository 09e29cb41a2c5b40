package dispatch

import (
	"container/heap"
	"slices"
	"sync"

	"github.com/roach88/seqgate/internal/ir"
)

// sourceState is the ordering state for one source.
//
// Every field is guarded by mu. Invariants:
//   - every item in pending has Sequence > nextExpected
//   - buffered holds exactly the sequences present in pending
//   - nextExpected grows by exactly one per committed delivery
type sourceState struct {
	mu sync.Mutex

	id           string
	nextExpected uint64
	pending      pendingHeap
	buffered     map[uint64]struct{}

	// outbox holds committed deliveries not yet handed to the sink.
	outbox []Delivery
	// delivering is set while one goroutine owns draining the outbox.
	delivering bool
}

func newSourceState(id string) *sourceState {
	return &sourceState{
		id:       id,
		buffered: make(map[uint64]struct{}),
	}
}

// admit decides what to do with a newly scheduled item. Must hold mu.
//
// On success it returns the outcome and the number of items committed
// (the item itself plus any buffered successors). On rejection nothing
// changes.
func (s *sourceState) admit(item ir.Item, clock Clock, maxPending int) (Outcome, int, *DispatchError) {
	switch {
	case item.Sequence < s.nextExpected:
		return 0, 0, newStaleError(s.id, item.Sequence, s.nextExpected)
	case item.Sequence == s.nextExpected:
		s.commit(item, clock, false)
		return OutcomeForwarded, 1 + s.release(clock), nil
	}

	if _, dup := s.buffered[item.Sequence]; dup {
		return 0, 0, newDuplicateError(s.id, item.Sequence, s.nextExpected)
	}
	if maxPending > 0 && len(s.pending) >= maxPending {
		return 0, 0, newBufferFullError(s.id, item.Sequence, s.nextExpected, maxPending)
	}
	heap.Push(&s.pending, item)
	s.buffered[item.Sequence] = struct{}{}
	return OutcomeBuffered, 0, nil
}

// release is the contiguous-release loop. It drains pending while its
// minimum matches nextExpected, removing each item exactly once, and returns
// how many items it committed. Must hold mu.
func (s *sourceState) release(clock Clock) int {
	released := 0
	for len(s.pending) > 0 && s.pending[0].Sequence == s.nextExpected {
		item := heap.Pop(&s.pending).(ir.Item)
		delete(s.buffered, item.Sequence)
		s.commit(item, clock, true)
		released++
	}
	return released
}

// commit stamps the item, appends it to the outbox and advances the counter.
// Must hold mu.
func (s *sourceState) commit(item ir.Item, clock Clock, fromBuffer bool) {
	s.outbox = append(s.outbox, Delivery{Item: item, Stamp: clock.Next(), Released: fromBuffer})
	s.nextExpected++
}

// claimDelivery reports whether the caller became the outbox drainer.
// Must hold mu.
func (s *sourceState) claimDelivery() bool {
	if s.delivering || len(s.outbox) == 0 {
		return false
	}
	s.delivering = true
	return true
}

// takeOutbox hands the drainer the next batch, or releases the drainer role
// when the outbox is empty.
func (s *sourceState) takeOutbox() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.outbox) == 0 {
		s.delivering = false
		return nil
	}
	batch := s.outbox
	s.outbox = nil
	return batch
}

// snapshot copies the observable state. Must hold mu.
func (s *sourceState) snapshot() SourceSnapshot {
	pending := make([]uint64, 0, len(s.pending))
	for _, it := range s.pending {
		pending = append(pending, it.Sequence)
	}
	slices.Sort(pending)
	return SourceSnapshot{
		SourceID:     s.id,
		NextExpected: s.nextExpected,
		Pending:      pending,
		InFlight:     len(s.outbox),
	}
}

// SourceSnapshot is a point-in-time copy of one source's state.
type SourceSnapshot struct {
	SourceID     string   `json:"source_id"`
	NextExpected uint64   `json:"next_expected"`
	Pending      []uint64 `json:"pending"`
	// InFlight counts committed deliveries not yet handed to the sink.
	InFlight int `json:"in_flight"`
}

// pendingHeap is a min-heap of items ordered by Sequence.
type pendingHeap []ir.Item

func (h pendingHeap) Len() int           { return len(h) }
func (h pendingHeap) Less(i, j int) bool { return h[i].Sequence < h[j].Sequence }
func (h pendingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) {
	*h = append(*h, x.(ir.Item))
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = ir.Item{}
	*h = old[:n-1]
	return item
}

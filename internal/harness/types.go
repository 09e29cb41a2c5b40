package harness

import (
	"cmp"
	"slices"
	"sync"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
	"github.com/roach88/seqgate/internal/store"
)

// TraceEvent is one observer event recorded during a run.
type TraceEvent struct {
	Step     int             `json:"step"`
	Type     store.EventKind `json:"type"`
	ItemID   string          `json:"item_id,omitempty"`
	Source   string          `json:"source"`
	Sequence uint64          `json:"sequence"`
	Outcome  string          `json:"outcome,omitempty"`
	Code     string          `json:"code,omitempty"`
	Released int             `json:"released,omitempty"`
	Stamp    int64           `json:"stamp,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation, assertion and consistency check
	// held.
	Pass bool `json:"pass"`

	// Trace contains every observer event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Pushes maps each source to its pushed sequences in push order.
	Pushes map[string][]uint64 `json:"pushes"`

	// Sources holds the final state of every source.
	Sources []dispatch.SourceSnapshot `json:"sources"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Pushes: make(map[string][]uint64),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Source returns the final snapshot for id.
func (r *Result) Source(id string) (dispatch.SourceSnapshot, bool) {
	for _, s := range r.Sources {
		if s.SourceID == id {
			return s, true
		}
	}
	return dispatch.SourceSnapshot{}, false
}

// recorder is a dispatch.Observer that builds the trace.
type recorder struct {
	mu     sync.Mutex
	step   int
	events []TraceEvent
}

var _ dispatch.Observer = (*recorder)(nil)

func (r *recorder) add(e TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Step = r.step
	r.events = append(r.events, e)
}

// begin starts a step and returns the trace position where it starts.
func (r *recorder) begin(step int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.step = step
	return len(r.events)
}

// normalize makes the events recorded since start independent of goroutine
// scheduling. Ids, outcomes and stamps are cleared and events sorted.
func (r *recorder) normalize(start int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seg := r.events[start:]
	for i := range seg {
		seg[i].ItemID = ""
		seg[i].Outcome = ""
		seg[i].Stamp = 0
	}
	slices.SortStableFunc(seg, func(a, b TraceEvent) int {
		return cmp.Or(
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.Sequence, b.Sequence),
			cmp.Compare(kindRank(a.Type), kindRank(b.Type)),
			cmp.Compare(a.Code, b.Code),
		)
	})
}

func (r *recorder) trace() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func kindRank(k store.EventKind) int {
	switch k {
	case store.EventScheduled:
		return 0
	case store.EventRejected:
		return 1
	case store.EventConfirmed:
		return 2
	case store.EventPushed:
		return 3
	case store.EventPushFailed:
		return 4
	}
	return 5
}

func itemEvent(kind store.EventKind, item ir.Item) TraceEvent {
	return TraceEvent{Type: kind, ItemID: item.ID, Source: item.SourceID, Sequence: item.Sequence}
}

func (r *recorder) Scheduled(item ir.Item, outcome dispatch.Outcome) {
	e := itemEvent(store.EventScheduled, item)
	e.Outcome = outcome.String()
	r.add(e)
}

func (r *recorder) Rejected(item ir.Item, err *dispatch.DispatchError) {
	e := itemEvent(store.EventRejected, item)
	e.Code = string(err.Code)
	r.add(e)
}

func (r *recorder) Pushed(d dispatch.Delivery) {
	e := itemEvent(store.EventPushed, d.Item)
	e.Stamp = d.Stamp
	r.add(e)
}

func (r *recorder) PushFailed(d dispatch.Delivery, _ error) {
	e := itemEvent(store.EventPushFailed, d.Item)
	e.Stamp = d.Stamp
	r.add(e)
}

func (r *recorder) Confirmed(item ir.Item, released int) {
	e := itemEvent(store.EventConfirmed, item)
	e.Released = released
	r.add(e)
}

package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/seqgate/internal/ir"
)

// Dispatcher is the ordering gate. See the package documentation for the
// state machine and delivery model.
//
// A Dispatcher is safe for concurrent use. Create one with New.
type Dispatcher struct {
	sink       Sink
	sources    *registry
	clock      Clock
	logger     *slog.Logger
	observer   Observer
	shards     int
	maxPending int
	async      bool

	// gate orders call admission against Close. Calls hold it shared while
	// they check closed and join inflight; Close holds it exclusively to set
	// closed, so every admitted call is counted before Close waits.
	gate   sync.RWMutex
	closed bool
	// inflight counts admitted calls and background deliveries.
	inflight sync.WaitGroup
}

// New creates a Dispatcher that forwards to sink.
func New(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:     sink,
		clock:    NewLogicalClock(),
		logger:   discardLogger(),
		observer: NopObserver{},
		shards:   DefaultShards,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sources = newRegistry(d.shards)
	return d
}

// Schedule submits an item for ordered dispatch.
//
// If the item's sequence equals its source's next expected sequence it is
// committed for delivery together with any buffered successors that now
// continue the chain, and Schedule returns OutcomeForwarded. A sequence ahead
// of the counter is buffered (OutcomeBuffered). A sequence behind the counter
// or already buffered is rejected with ErrCodeDuplicateOrStale and changes
// nothing.
//
// With inline delivery (the default) the calling goroutine may push committed
// items to the sink before Schedule returns, including items committed by
// concurrent calls for the same source.
func (d *Dispatcher) Schedule(ctx context.Context, item ir.Item) (Outcome, error) {
	if !d.enter() {
		return 0, errClosed
	}
	defer d.inflight.Done()

	if err := item.Validate(); err != nil {
		de := newInvalidItemError(err)
		d.observer.Rejected(item, de)
		return 0, de
	}

	st := d.sources.getOrCreate(item.SourceID)

	st.mu.Lock()
	outcome, committed, rejection := st.admit(item, d.clock, d.maxPending)
	deliver := st.claimDelivery()
	pending := len(st.pending)
	st.mu.Unlock()

	if rejection != nil {
		d.logger.Debug("schedule rejected",
			"source", item.SourceID,
			"sequence", item.Sequence,
			"code", rejection.Code,
			"next_expected", rejection.NextExpected,
		)
		d.observer.Rejected(item, rejection)
		return 0, rejection
	}

	if outcome == OutcomeBuffered {
		d.logger.Debug("item buffered",
			"source", item.SourceID,
			"sequence", item.Sequence,
			"pending", pending,
		)
	} else if committed > 1 {
		d.logger.Debug("buffered successors released",
			"source", item.SourceID,
			"from", item.Sequence,
			"count", committed-1,
		)
	}
	d.observer.Scheduled(item, outcome)

	if deliver {
		d.deliver(ctx, st)
	}
	return outcome, nil
}

// Confirm reports that a previously forwarded item completed downstream.
//
// It runs the contiguous-release loop for the item's source to exhaustion and
// returns how many buffered items it committed. Calling Confirm again when
// nothing is releasable is a no-op. A source that was never scheduled yields
// ErrCodeUnknownSource and no state is created.
func (d *Dispatcher) Confirm(ctx context.Context, item ir.Item) (int, error) {
	if !d.enter() {
		return 0, errClosed
	}
	defer d.inflight.Done()

	st, ok := d.sources.get(item.SourceID)
	if !ok {
		de := newUnknownSourceError(item.SourceID, item.Sequence)
		d.logger.Debug("confirm rejected", "source", item.SourceID, "code", de.Code)
		d.observer.Rejected(item, de)
		return 0, de
	}

	st.mu.Lock()
	released := st.release(d.clock)
	deliver := st.claimDelivery()
	st.mu.Unlock()

	d.observer.Confirmed(item, released)

	if deliver {
		d.deliver(ctx, st)
	}
	return released, nil
}

// enter admits a call unless Close has started. An admitted call must call
// d.inflight.Done when it returns.
func (d *Dispatcher) enter() bool {
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.closed {
		return false
	}
	d.inflight.Add(1)
	return true
}

// deliver hands the source's outbox to the sink, inline or on a background
// goroutine. The caller must have claimed the drainer role and be an admitted
// call, so the background goroutine joins inflight before the call leaves it.
func (d *Dispatcher) deliver(ctx context.Context, st *sourceState) {
	if !d.async {
		d.drain(ctx, st)
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.drain(context.WithoutCancel(ctx), st)
	}()
}

// drain pushes batches until the outbox stays empty. Only the goroutine that
// claimed the drainer role runs drain for a given source, so pushes for that
// source never overlap and follow stamp order.
func (d *Dispatcher) drain(ctx context.Context, st *sourceState) {
	for batch := st.takeOutbox(); batch != nil; batch = st.takeOutbox() {
		for _, del := range batch {
			d.push(ctx, del)
		}
	}
}

func (d *Dispatcher) push(ctx context.Context, del Delivery) {
	if err := d.sink.Push(ctx, del.Item); err != nil {
		d.logger.Error("push failed",
			"source", del.Item.SourceID,
			"sequence", del.Item.Sequence,
			"item_id", del.Item.ID,
			"stamp", del.Stamp,
			"error", err,
		)
		d.observer.PushFailed(del, err)
		return
	}
	d.observer.Pushed(del)
}

// Source returns a snapshot of one source's state.
func (d *Dispatcher) Source(id string) (SourceSnapshot, bool) {
	st, ok := d.sources.get(id)
	if !ok {
		return SourceSnapshot{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot(), true
}

// Sources returns every source id seen by Schedule, sorted.
func (d *Dispatcher) Sources() []string {
	return d.sources.ids()
}

// Wait blocks until every background delivery started so far has finished.
// It returns immediately with inline delivery. Call it between batches of
// Schedule and Confirm calls, not concurrently with them; Close is safe to
// call at any time.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Close rejects further Schedule and Confirm calls with ErrCodeClosed, then
// waits for calls already admitted and for every delivery they committed.
// Buffered items stay buffered. Close must not be called from Sink.Push.
func (d *Dispatcher) Close() error {
	d.gate.Lock()
	d.closed = true
	d.gate.Unlock()

	d.inflight.Wait()
	return nil
}

// MaxPending returns the per-source buffer bound, 0 when unbounded.
func (d *Dispatcher) MaxPending() int {
	return d.maxPending
}

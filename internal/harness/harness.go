package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
	"github.com/roach88/seqgate/internal/store"
	"github.com/roach88/seqgate/internal/testutil"
)

// errInjected is returned by the sink for slots listed in fail_pushes.
var errInjected = errors.New("injected push failure")

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	store     *store.Store
	logger    *slog.Logger
	observers []dispatch.Observer
	dispatch  []dispatch.Option
	ids       ir.IDGenerator
	clock     dispatch.Clock
}

// WithStore journals the run to st instead of a private in-memory store.
// The store should be fresh: the ledger refuses slots pushed by earlier runs.
func WithStore(st *store.Store) RunOption {
	return func(c *runConfig) { c.store = st }
}

// WithLogger sets the logger passed to the dispatcher and journal.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// WithObserver adds an observer next to the trace recorder and journal.
func WithObserver(o dispatch.Observer) RunOption {
	return func(c *runConfig) { c.observers = append(c.observers, o) }
}

// WithIDGenerator sets the generator for items whose scenario entry has no id.
// The default yields item-1, item-2, ... so repeated runs journal identical ids.
func WithIDGenerator(g ir.IDGenerator) RunOption {
	return func(c *runConfig) { c.ids = g }
}

// WithClock stamps deliveries with c instead of a fresh deterministic clock.
// Only the scenario's dispatcher uses it; the replay check does not.
func WithClock(c dispatch.Clock) RunOption {
	return func(rc *runConfig) { rc.clock = c }
}

// WithDispatchOptions appends dispatcher options. They apply after the
// harness defaults, so they can override the clock or delivery mode.
func WithDispatchOptions(opts ...dispatch.Option) RunOption {
	return func(c *runConfig) { c.dispatch = append(c.dispatch, opts...) }
}

// harness holds the collaborators of one run.
type harness struct {
	d      *dispatch.Dispatcher
	sink   *testutil.RecordingSink
	rec    *recorder
	ids    ir.IDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open the store (fresh in-memory SQLite unless WithStore is given)
//  2. Build the dispatcher over a recording sink and the ledger
//  3. Execute steps, checking expect clauses
//  4. Check ledger, sink contract and journal replay (the buffer bound is
//     recorded in the store so replay applies it)
//  5. Evaluate assertions
//
// An error is returned only when the run itself could not be carried out;
// expectation and assertion failures are reported in the Result.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ids == nil {
		cfg.ids = ir.NewSequentialGenerator("item")
	}
	if cfg.clock == nil {
		cfg.clock = testutil.NewDeterministicClock()
	}

	st := cfg.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	rec := &recorder{}
	journal := store.NewJournal(st, cfg.logger)
	sink := testutil.NewRecordingSink()
	for _, ref := range scenario.Options.FailPushes {
		sink.FailOn(ref.Source, ref.Sequence, errInjected)
	}
	ledger := store.NewLedgerSink(st)

	dopts := []dispatch.Option{
		dispatch.WithLogger(cfg.logger),
		dispatch.WithClock(cfg.clock),
		dispatch.WithObserver(dispatch.Observers(append([]dispatch.Observer{rec, journal}, cfg.observers...)...)),
	}
	if scenario.Options.MaxPending > 0 {
		dopts = append(dopts, dispatch.WithMaxPending(scenario.Options.MaxPending))
	}
	dopts = append(dopts, cfg.dispatch...)

	h := &harness{
		d:      dispatch.New(teeSink(sink, ledger), dopts...),
		sink:   sink,
		rec:    rec,
		ids:    cfg.ids,
		logger: cfg.logger,
	}

	ctx := context.Background()
	if err := st.SaveSettings(ctx, store.Settings{MaxPending: h.d.MaxPending()}); err != nil {
		return nil, fmt.Errorf("failed to record settings: %w", err)
	}
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute steps[%d]: %w", i, err)
		}
	}
	if err := h.d.Close(); err != nil {
		return nil, fmt.Errorf("failed to close dispatcher: %w", err)
	}

	result.Trace = rec.trace()
	for _, id := range h.d.Sources() {
		snap, _ := h.d.Source(id)
		result.Sources = append(result.Sources, snap)
		result.Pushes[id] = sink.Sequences(id)
	}

	if err := h.checkConsistency(ctx, st, journal, result, cfg.dispatch); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// teeSink pushes to the recording sink and then to the ledger. The ledger
// records every item the recording sink received, including ones it reports
// as failed, so the ledger stays gapless.
func teeSink(rec *testutil.RecordingSink, ledger *store.LedgerSink) dispatch.Sink {
	return dispatch.SinkFunc(func(ctx context.Context, item ir.Item) error {
		recErr := rec.Push(ctx, item)
		if err := ledger.Push(ctx, item); err != nil {
			return err
		}
		return recErr
	})
}

func (h *harness) item(ref ItemRef) ir.Item {
	item := ref.Item()
	if item.ID == "" {
		item.ID = h.ids.Generate()
	}
	return item
}

// callResult is what one Schedule or Confirm call returned.
type callResult struct {
	outcome  dispatch.Outcome
	released int
	err      error
}

func (h *harness) call(ctx context.Context, step Step, item ir.Item) callResult {
	if step.Schedule != nil {
		outcome, err := h.d.Schedule(ctx, item)
		return callResult{outcome: outcome, err: err}
	}
	released, err := h.d.Confirm(ctx, item)
	return callResult{released: released, err: err}
}

func (h *harness) runStep(ctx context.Context, index int, step Step, result *Result) error {
	start := h.rec.begin(index)
	path := fmt.Sprintf("steps[%d]", index)

	if step.Parallel != nil {
		items := make([]ir.Item, len(step.Parallel))
		for i, inner := range step.Parallel {
			items[i] = h.item(callRef(inner))
		}
		results := make([]callResult, len(step.Parallel))

		var g errgroup.Group
		for i, inner := range step.Parallel {
			g.Go(func() error {
				results[i] = h.call(ctx, inner, items[i])
				return nil
			})
		}
		_ = g.Wait()
		h.d.Wait()

		for i, inner := range step.Parallel {
			if err := h.check(fmt.Sprintf("%s.parallel[%d]", path, i), inner, results[i], nil, result); err != nil {
				return err
			}
		}
		h.rec.normalize(start)
		return nil
	}

	item := h.item(callRef(step))
	before := len(h.sink.Sequences(item.SourceID))
	res := h.call(ctx, step, item)
	h.d.Wait()
	pushed := h.sink.Sequences(item.SourceID)[before:]

	h.logger.Debug("step executed", "step", index, "item", item.String(), "error", res.err)
	return h.check(path, step, res, pushed, result)
}

func callRef(step Step) ItemRef {
	if step.Schedule != nil {
		return *step.Schedule
	}
	return *step.Confirm
}

// check compares a call result against the step's expect clause. Errors that
// are not dispatch errors abort the run.
func (h *harness) check(path string, step Step, res callResult, pushed []uint64, result *Result) error {
	var code string
	if res.err != nil {
		var de *dispatch.DispatchError
		if !errors.As(res.err, &de) {
			return res.err
		}
		code = string(de.Code)
	}

	e := step.Expect
	if e == nil {
		if code != "" {
			result.AddError(fmt.Sprintf("%s: unexpected error %s", path, code))
		}
		return nil
	}

	if e.Error != code {
		switch {
		case e.Error == "":
			result.AddError(fmt.Sprintf("%s: unexpected error %s", path, code))
		case code == "":
			result.AddError(fmt.Sprintf("%s: expected error %s, call succeeded", path, e.Error))
		default:
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s", path, e.Error, code))
		}
	}
	if code != "" {
		return nil
	}

	if e.Outcome != "" && e.Outcome != res.outcome.String() {
		result.AddError(fmt.Sprintf("%s: expected outcome %s, got %s", path, e.Outcome, res.outcome))
	}
	if e.Released != nil && *e.Released != res.released {
		result.AddError(fmt.Sprintf("%s: expected %d released, got %d", path, *e.Released, res.released))
	}
	if e.Pushed != nil && !slices.Equal(e.Pushed, pushed) {
		result.AddError(fmt.Sprintf("%s: expected pushes %v, got %v", path, e.Pushed, pushed))
	}
	return nil
}

// checkConsistency cross-checks the recording sink, the ledger and the
// journal after a run.
func (h *harness) checkConsistency(ctx context.Context, st *store.Store, journal *store.Journal, result *Result, opts []dispatch.Option) error {
	for _, v := range h.sink.Violations() {
		result.AddError("sink contract violated: " + v)
	}

	if err := journal.Err(); err != nil {
		return fmt.Errorf("journal write failed: %w", err)
	}

	for id, pushed := range result.Pushes {
		items, err := st.ReadLedger(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
		ledger := make([]uint64, len(items))
		for i, it := range items {
			ledger[i] = it.Sequence
		}
		if !slices.Equal(ledger, pushed) {
			result.AddError(fmt.Sprintf("ledger for source %s holds %v, sink saw %v", id, ledger, pushed))
		}
	}

	replay, err := st.Replay(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to replay journal: %w", err)
	}
	for _, m := range replay.Mismatches {
		result.AddError("replay mismatch: " + m)
	}
	return nil
}

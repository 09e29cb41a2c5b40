package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/seqgate/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nPushes:\n")
		for _, event := range e.Trace {
			if event.Type == store.EventPushed || event.Type == store.EventPushFailed {
				fmt.Fprintf(&buf, "  [step %d] %s %s#%d\n", event.Step, event.Type, event.Source, event.Sequence)
			}
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertPushOrder:
		return assertPushOrder(result, a)
	case AssertPushCount:
		return assertPushCount(result, a)
	case AssertPending:
		return assertPending(result, a)
	case AssertNextExpected:
		return assertNextExpected(result, a)
	case AssertRejectedCount:
		return assertRejectedCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertPushOrder checks the exact push order of one source.
func assertPushOrder(result *Result, a Assertion) error {
	got := result.Pushes[a.Source]
	if slices.Equal(got, a.Sequences) || (len(got) == 0 && len(a.Sequences) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPushOrder,
		Expected: fmt.Sprintf("source %s pushed %v", a.Source, a.Sequences),
		Actual:   fmt.Sprintf("pushed %v", got),
		Trace:    result.Trace,
	}
}

// assertPushCount counts pushes for one source, or all sources when Source
// is empty. Failed pushes count; the sink received them.
func assertPushCount(result *Result, a Assertion) error {
	count := 0
	for src, seqs := range result.Pushes {
		if a.Source == "" || a.Source == src {
			count += len(seqs)
		}
	}
	if count == a.Count {
		return nil
	}
	scope := "all sources"
	if a.Source != "" {
		scope = "source " + a.Source
	}
	return &AssertionError{
		Type:     AssertPushCount,
		Expected: fmt.Sprintf("%d pushes for %s", a.Count, scope),
		Actual:   fmt.Sprintf("%d pushes", count),
		Trace:    result.Trace,
	}
}

// assertPending checks the buffered sequences left in one source.
func assertPending(result *Result, a Assertion) error {
	var got []uint64
	if snap, ok := result.Source(a.Source); ok {
		got = snap.Pending
	}
	want := slices.Clone(a.Sequences)
	slices.Sort(want)
	if slices.Equal(got, want) || (len(got) == 0 && len(want) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPending,
		Expected: fmt.Sprintf("source %s pending %v", a.Source, want),
		Actual:   fmt.Sprintf("pending %v", got),
	}
}

// assertNextExpected checks one source's counter.
func assertNextExpected(result *Result, a Assertion) error {
	snap, ok := result.Source(a.Source)
	if !ok {
		return &AssertionError{
			Type:     AssertNextExpected,
			Expected: fmt.Sprintf("source %s next expected %d", a.Source, a.Value),
			Actual:   "source never scheduled",
		}
	}
	if snap.NextExpected == a.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertNextExpected,
		Expected: fmt.Sprintf("source %s next expected %d", a.Source, a.Value),
		Actual:   fmt.Sprintf("next expected %d", snap.NextExpected),
	}
}

// assertRejectedCount counts rejected calls, optionally by code.
func assertRejectedCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Trace {
		if e.Type == store.EventRejected && (a.Code == "" || a.Code == e.Code) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	what := "rejections"
	if a.Code != "" {
		what = a.Code + " rejections"
	}
	return &AssertionError{
		Type:     AssertRejectedCount,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    result.Trace,
	}
}

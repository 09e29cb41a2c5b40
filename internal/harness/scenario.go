package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/seqgate/internal/dispatch"
	"github.com/roach88/seqgate/internal/ir"
)

// Scenario defines one ordered-dispatch scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Options configure the dispatcher and sink for this run.
	Options Options `yaml:"options,omitempty"`

	// Steps run in order. A parallel step runs its calls concurrently.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final pushes and dispatcher state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Options tune a scenario run.
type Options struct {
	// MaxPending bounds each source's reorder buffer. 0 means unbounded.
	MaxPending int `yaml:"max_pending,omitempty"`

	// FailPushes lists slots whose push the sink reports as failed.
	FailPushes []ItemRef `yaml:"fail_pushes,omitempty"`
}

// Step is exactly one of Schedule, Confirm or Parallel.
type Step struct {
	Schedule *ItemRef `yaml:"schedule,omitempty"`
	Confirm  *ItemRef `yaml:"confirm,omitempty"`

	// Parallel holds Schedule or Confirm calls issued concurrently.
	Parallel []Step `yaml:"parallel,omitempty"`

	// Expect checks the call's result. Without it the call must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ItemRef names an item in a scenario. An empty ID is generated.
type ItemRef struct {
	ID       string `yaml:"id,omitempty"`
	Source   string `yaml:"source"`
	Sequence uint64 `yaml:"sequence"`
}

// Item converts the reference to an ir.Item.
func (r ItemRef) Item() ir.Item {
	return ir.Item{ID: r.ID, SourceID: r.Source, Sequence: r.Sequence}
}

// Expect specifies the expected result of a call.
type Expect struct {
	// Outcome is "forwarded" or "buffered" (schedule only).
	Outcome string `yaml:"outcome,omitempty"`

	// Error is the expected dispatch error code.
	Error string `yaml:"error,omitempty"`

	// Released is the expected release count (confirm only).
	Released *int `yaml:"released,omitempty"`

	// Pushed lists the sequences of the call's source pushed while the call
	// ran. Not allowed inside parallel blocks.
	Pushed []uint64 `yaml:"pushed,omitempty"`
}

// Assertion validates the state after all steps ran.
type Assertion struct {
	// Type is one of push_order, push_count, pending, next_expected,
	// rejected_count.
	Type string `yaml:"type"`

	// Source selects a source. Optional for push_count.
	Source string `yaml:"source,omitempty"`

	// Sequences is the expected push order (push_order) or buffered set
	// (pending).
	Sequences []uint64 `yaml:"sequences,omitempty"`

	// Count is used by push_count and rejected_count.
	Count int `yaml:"count,omitempty"`

	// Value is the expected next sequence (next_expected).
	Value uint64 `yaml:"value,omitempty"`

	// Code filters rejected_count by error code.
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertPushOrder     = "push_order"
	AssertPushCount     = "push_count"
	AssertPending       = "pending"
	AssertNextExpected  = "next_expected"
	AssertRejectedCount = "rejected_count"
)

// Expected outcome names.
const (
	OutcomeForwarded = "forwarded"
	OutcomeBuffered  = "buffered"
)

// LoadScenario reads, schema-checks and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields, or violates the scenario schema.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks the rules the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Options.MaxPending < 0 {
		return errors.New("options.max_pending must be non-negative")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step, false); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(path string, step Step, nested bool) error {
	kinds := 0
	if step.Schedule != nil {
		kinds++
	}
	if step.Confirm != nil {
		kinds++
	}
	if step.Parallel != nil {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("%s: exactly one of schedule, confirm or parallel is required", path)
	}

	if step.Parallel != nil {
		if nested {
			return fmt.Errorf("%s: parallel blocks cannot nest", path)
		}
		if len(step.Parallel) == 0 {
			return fmt.Errorf("%s: parallel must list at least one call", path)
		}
		if step.Expect != nil {
			return fmt.Errorf("%s: expect belongs on the calls inside parallel", path)
		}
		for i, inner := range step.Parallel {
			if err := validateStep(fmt.Sprintf("%s.parallel[%d]", path, i), inner, true); err != nil {
				return err
			}
		}
		return nil
	}

	e := step.Expect
	if e == nil {
		return nil
	}
	if e.Outcome != "" && e.Error != "" {
		return fmt.Errorf("%s.expect: outcome and error are mutually exclusive", path)
	}
	switch e.Outcome {
	case "", OutcomeForwarded, OutcomeBuffered:
	default:
		return fmt.Errorf("%s.expect: unknown outcome %q", path, e.Outcome)
	}
	if step.Confirm != nil && e.Outcome != "" {
		return fmt.Errorf("%s.expect: outcome applies to schedule only", path)
	}
	if step.Schedule != nil && e.Released != nil {
		return fmt.Errorf("%s.expect: released applies to confirm only", path)
	}
	if e.Error != "" && !knownCode(e.Error) {
		return fmt.Errorf("%s.expect: unknown error code %q", path, e.Error)
	}
	if nested && e.Pushed != nil {
		return fmt.Errorf("%s.expect: pushed is not deterministic inside parallel", path)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPushOrder, AssertPending, AssertNextExpected:
		if a.Source == "" {
			return fmt.Errorf("assertions[%d]: source is required for %s", index, a.Type)
		}
	case AssertPushCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for push_count", index)
		}
	case AssertRejectedCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rejected_count", index)
		}
		if a.Code != "" && !knownCode(a.Code) {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func knownCode(code string) bool {
	switch dispatch.ErrorCode(code) {
	case dispatch.ErrCodeDuplicateOrStale,
		dispatch.ErrCodeUnknownSource,
		dispatch.ErrCodeBufferFull,
		dispatch.ErrCodeInvalidItem,
		dispatch.ErrCodeClosed:
		return true
	}
	return false
}

package harness

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error

	// cue.Context is not safe for concurrent use.
	schemaMu sync.Mutex
)

// scenarioSchema compiles the embedded schema once.
func scenarioSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile scenario schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Scenario"))
		if err := schemaValue.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Scenario: %w", err)
		}
	})
	return schemaCtx, schemaValue, schemaErr
}

// SchemaError lists every schema violation in a scenario document.
type SchemaError struct {
	Details []string
}

func (e *SchemaError) Error() string {
	if len(e.Details) == 1 {
		return "schema violation: " + e.Details[0]
	}
	return fmt.Sprintf("schema violations (%d): %s", len(e.Details), e.Details[0])
}

// ValidateSchema checks scenario YAML against the embedded CUE schema.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	ctx, schema, err := scenarioSchema()
	if err != nil {
		return err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	v := schema.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		se := &SchemaError{}
		for _, e := range cueerrors.Errors(err) {
			se.Details = append(se.Details, e.Error())
		}
		if len(se.Details) == 0 {
			se.Details = []string{err.Error()}
		}
		return se
	}
	return nil
}

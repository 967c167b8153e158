package harness

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// ValidateScenarioBytes checks scenario YAML against the embedded CUE
// schema. Returns all violations found, not just the first.
func ValidateScenarioBytes(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("scenario is empty")
	}

	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	if !def.Exists() {
		return fmt.Errorf("internal schema error: #Scenario not found")
	}

	val := ctx.Encode(raw)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %s", formatCUEErrors(err))
	}

	return nil
}

// formatCUEErrors flattens a CUE error list into one readable message.
func formatCUEErrors(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 1 {
		return errs[0].Error()
	}

	msg := fmt.Sprintf("%d violations:", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return msg
}

package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stagehand-dev/stagehand/internal/app"
)

// Scenario defines one declarative test run.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// RunToken is an optional fixed run token for deterministic entry IDs.
	// Defaults to "test-run-default".
	RunToken string `yaml:"run_token,omitempty"`

	// AllowFailures keeps entry failures out of the scenario errors, for
	// scenarios that assert on failure behavior itself.
	AllowFailures bool `yaml:"allow_failures,omitempty"`

	// App declares the scripted application the helpers drive.
	App app.Config `yaml:"app"`

	// Helpers declares composite helpers registered before the run.
	Helpers []CompositeHelper `yaml:"helpers,omitempty"`

	// Steps is the main flow: helper calls and wait barriers, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and run outcome after draining.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// CompositeHelper declares a custom helper composed of other helper
// calls. Composites register as async helpers; their inner calls run as
// children of the composite's queue entry.
type CompositeHelper struct {
	// Name is the helper's unique registration name.
	Name string `yaml:"name"`

	// Kind must be "async" when set. Present so scenario files state the
	// kind explicitly; sync helpers cannot be composed from async calls.
	Kind string `yaml:"kind,omitempty"`

	// Steps are the calls the composite makes, in order.
	Steps []CallStep `yaml:"steps"`
}

// CallStep invokes a helper with fixed arguments.
type CallStep struct {
	// Call is the helper name.
	Call string `yaml:"call"`

	// Args are the invocation arguments.
	Args []any `yaml:"args,omitempty"`
}

// Step is one flow step: either a helper call or a wait barrier.
// Exactly one of Call and Wait is set.
type Step struct {
	// Call is the helper name for call steps.
	Call string `yaml:"call,omitempty"`

	// Args are the call arguments.
	Args []any `yaml:"args,omitempty"`

	// Wait marks a barrier step; its expectations are checked once every
	// earlier entry is terminal. An empty wait is a bare ordering barrier.
	Wait *Expect `yaml:"wait,omitempty"`
}

// Expect is the set of application observations a wait barrier checks.
// Zero-valued fields are not checked.
type Expect struct {
	// CurrentPath is the expected route path.
	CurrentPath string `yaml:"current_path,omitempty"`

	// RouteName is the expected active route name.
	RouteName string `yaml:"route_name,omitempty"`

	// CurrentURL is the expected full URL.
	CurrentURL string `yaml:"current_url,omitempty"`

	// Value checks an input element's current value.
	Value *ValueExpect `yaml:"value,omitempty"`

	// Find checks how many elements match a selector.
	Find *FindExpect `yaml:"find,omitempty"`
}

// ValueExpect checks the value of the input matching Selector.
type ValueExpect struct {
	Selector string `yaml:"selector"`
	Equals   string `yaml:"equals"`
}

// FindExpect checks the number of elements matching Selector, optionally
// scoped to a container selector.
type FindExpect struct {
	Selector string `yaml:"selector"`
	Scope    string `yaml:"scope,omitempty"`
	Count    int    `yaml:"count"`
}

// Assertion validates the recorded trace or the run outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event for Helper with Args appears in the trace
	// - "trace_order": events for Helpers appear in order
	// - "trace_count": events for Helper appear exactly Count times
	// - "entry_state": the last entry for Helper ended in State
	// - "app_events": the application interaction log equals Events
	// - "failure_count": the run recorded exactly Count failures
	// - "failure_contains": some failure message contains Message
	Type string `yaml:"type"`

	// Helper is the helper name (trace_contains, trace_count, entry_state).
	Helper string `yaml:"helper,omitempty"`

	// Event filters by trace event type. Defaults per assertion type:
	// "enqueued" for trace_contains and trace_count, "started" for
	// trace_order.
	Event string `yaml:"event,omitempty"`

	// Args are the expected event arguments (trace_contains). Exact match.
	Args []any `yaml:"args,omitempty"`

	// Helpers is the expected helper order (trace_order). Subsequence
	// match: other events may interleave.
	Helpers []string `yaml:"helpers,omitempty"`

	// Count is the expected occurrence count (trace_count, failure_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected terminal state (entry_state): "fulfilled" or
	// "failed".
	State string `yaml:"state,omitempty"`

	// Events is the expected application interaction log (app_events).
	Events []string `yaml:"events,omitempty"`

	// Message is the expected failure substring (failure_contains).
	Message string `yaml:"message,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertEntryState      = "entry_state"
	AssertAppEvents       = "app_events"
	AssertFailureCount    = "failure_count"
	AssertFailureContains = "failure_contains"
)

// DefaultRunToken is used when a scenario omits run_token.
const DefaultRunToken = "test-run-default"

// LoadScenario reads and parses a scenario YAML file.
// Fails on unknown fields (typos), schema violations, and missing
// required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	// Schema validation first: CUE reports structural problems with
	// better positions than the strict decoder.
	if err := ValidateScenarioBytes(data); err != nil {
		return nil, err
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks constraints the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if err := s.App.Validate(); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool)
	for i, h := range s.Helpers {
		if h.Name == "" {
			return fmt.Errorf("helpers[%d]: name is required", i)
		}
		if h.Kind != "" && h.Kind != "async" {
			return fmt.Errorf("helpers[%d]: composite helpers must be async, got %q", i, h.Kind)
		}
		if names[h.Name] {
			return fmt.Errorf("helpers[%d]: duplicate helper name %q", i, h.Name)
		}
		names[h.Name] = true
		if len(h.Steps) == 0 {
			return fmt.Errorf("helpers[%d]: steps list is required and must be non-empty", i)
		}
		for j, cs := range h.Steps {
			if cs.Call == "" {
				return fmt.Errorf("helpers[%d].steps[%d]: call is required", i, j)
			}
			if err := validateArgs(cs.Args); err != nil {
				return fmt.Errorf("helpers[%d].steps[%d]: %w", i, j, err)
			}
		}
	}

	for i, step := range s.Steps {
		switch {
		case step.Call != "" && step.Wait != nil:
			return fmt.Errorf("steps[%d]: call and wait are mutually exclusive", i)
		case step.Call == "" && step.Wait == nil:
			return fmt.Errorf("steps[%d]: either call or wait is required", i)
		case step.Call != "":
			if err := validateArgs(step.Args); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		case step.Wait != nil:
			if len(step.Args) > 0 {
				return fmt.Errorf("steps[%d]: wait steps take no args", i)
			}
			if err := validateExpect(step.Wait); err != nil {
				return fmt.Errorf("steps[%d].wait: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateArgs rejects argument values the trace cannot canonically
// serialize: nulls, floats, and nested collections.
func validateArgs(args []any) error {
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
			return fmt.Errorf("args[%d]: null arguments are forbidden", i)
		case float64, float32:
			return fmt.Errorf("args[%d]: float arguments are forbidden, use int: %v", i, v)
		case string, int, int64, bool:
		case map[string]any:
			// Option maps (triggerEvent) may carry scalars only.
			for k, mv := range v {
				switch mv.(type) {
				case string, int, int64, bool:
				default:
					return fmt.Errorf("args[%d].%s: unsupported option value type %T", i, k, mv)
				}
			}
		default:
			return fmt.Errorf("args[%d]: unsupported argument type %T", i, arg)
		}
	}
	return nil
}

func validateExpect(e *Expect) error {
	if e.Value != nil && e.Value.Selector == "" {
		return fmt.Errorf("value.selector is required")
	}
	if e.Find != nil {
		if e.Find.Selector == "" {
			return fmt.Errorf("find.selector is required")
		}
		if e.Find.Count < 0 {
			return fmt.Errorf("find.count must be non-negative")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Helper == "" {
			return fmt.Errorf("assertions[%d]: helper is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Helpers) == 0 {
			return fmt.Errorf("assertions[%d]: helpers list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Helper == "" {
			return fmt.Errorf("assertions[%d]: helper is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertEntryState:
		if a.Helper == "" {
			return fmt.Errorf("assertions[%d]: helper is required for entry_state", index)
		}
		if a.State != "fulfilled" && a.State != "failed" {
			return fmt.Errorf("assertions[%d]: state must be \"fulfilled\" or \"failed\" for entry_state", index)
		}
	case AssertAppEvents:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for app_events", index)
		}
	case AssertFailureCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for failure_count", index)
		}
	case AssertFailureContains:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for failure_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

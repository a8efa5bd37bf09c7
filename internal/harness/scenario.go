package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aspect/internal/testservice"
)

// Scenario is one conformance test case.
type Scenario struct {
	// Name identifies the scenario and its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Plans are CUE plan directories, applied in order. Relative paths are
	// resolved against the scenario file's directory by LoadScenario.
	Plans []string `yaml:"plans"`

	// Setup sets the target's initial state before any call.
	Setup *TargetState `yaml:"setup,omitempty"`

	// Calls run sequentially against the proxy.
	Calls []CallStep `yaml:"calls"`

	Assertions []Assertion `yaml:"assertions"`
}

// TargetState describes the test service's observable state. Nil fields
// are not set (setup) or not checked (final_state).
type TargetState struct {
	Name        *string `yaml:"name,omitempty"`
	Description *string `yaml:"description,omitempty"`
	Executed    *bool   `yaml:"executed,omitempty"`
	Closed      *bool   `yaml:"closed,omitempty"`
}

// CallStep invokes one catalog member.
type CallStep struct {
	// Call is the catalog name, e.g. "Perform(int)" or "PerformAsync[string]".
	Call string `yaml:"call"`

	Args []any `yaml:"args,omitempty"`

	// Expect checks the call's outcome. Without it the call must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a call.
type Expect struct {
	// Value is compared with the call's result in trace form.
	Value any `yaml:"value,omitempty"`

	// Error is a substring of the expected failure message.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the target's final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is the pattern for trace_contains and trace_count.
	Event *EventPattern `yaml:"event,omitempty"`

	// Events are the patterns for trace_order.
	Events []EventPattern `yaml:"events,omitempty"`

	// Member names the member counted by call_count.
	Member string `yaml:"member,omitempty"`

	// Count is the expected number for trace_count and call_count.
	Count *int `yaml:"count,omitempty"`

	// State is the expected target state for final_state.
	State *TargetState `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertCallCount     = "call_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Plan paths are
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, dir := range scenario.Plans {
		if !filepath.IsAbs(dir) {
			scenario.Plans[i] = filepath.Join(base, dir)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required and must be non-empty")
	}

	for _, dir := range s.Plans {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("plans directory not found: %s", dir)
		}
		if !info.IsDir() {
			return fmt.Errorf("plans path is not a directory: %s", dir)
		}
	}

	if s.Setup != nil && s.Setup.Closed != nil {
		return fmt.Errorf("setup: closed cannot be set")
	}

	for i, step := range s.Calls {
		if err := validateCall(i, &step); err != nil {
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

func validateCall(index int, step *CallStep) error {
	if step.Call == "" {
		return fmt.Errorf("calls[%d]: call is required", index)
	}
	entry, ok := testservice.Lookup(step.Call)
	if !ok {
		return fmt.Errorf("calls[%d]: unknown member %q", index, step.Call)
	}
	if len(step.Args) != entry.Arity {
		return fmt.Errorf("calls[%d]: %s takes %d arguments, got %d", index, step.Call, entry.Arity, len(step.Args))
	}
	if step.Expect != nil && step.Expect.Value != nil && step.Expect.Error != "" {
		return fmt.Errorf("calls[%d].expect: value and error are exclusive", index)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == nil {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order needs at least 2 events", index)
		}
	case AssertTraceCount:
		if a.Event == nil {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for trace_count", index)
		}
	case AssertCallCount:
		if a.Member == "" {
			return fmt.Errorf("assertions[%d]: member is required for call_count", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for call_count", index)
		}
	case AssertFinalState:
		if a.State == nil {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q (valid: %s)", index, a.Type,
			strings.Join([]string{AssertTraceContains, AssertTraceOrder, AssertTraceCount, AssertCallCount, AssertFinalState}, ", "))
	}

	if a.Count != nil && *a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be >= 0", index)
	}
	return nil
}

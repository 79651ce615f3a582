package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

// Scenario is a scripted session against a seeded development backend.
// Steps dispatch intents through the real dispatcher; assertions check the
// resulting journal trace and the final store state.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file
	// and prefixes the generated flow tokens.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the devserver fixture file, relative to the scenario file.
	Fixture string `yaml:"fixture"`

	// Catalog optionally replaces the embedded route catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// FlowTokens are handed out to root dispatches in order. When empty,
	// tokens are numbered from the scenario name.
	FlowTokens []string `yaml:"flow_tokens,omitempty"`

	// MaxSteps overrides the dispatcher's follow-up chain limit.
	MaxSteps int `yaml:"max_steps,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one entry of a scenario: a dispatch, a parallel block of
// dispatches, or a change to the injected backend faults.
//
// After a dispatch or parallel block the harness waits for every task and
// follow-up to finish, unless Async is set. An async dispatch stays in
// flight while the next step runs, which is how a scenario races a slow
// request against a newer one.
type Step struct {
	Dispatch string         `yaml:"dispatch,omitempty"`
	Payload  map[string]any `yaml:"payload,omitempty"`
	Async    bool           `yaml:"async,omitempty"`

	Parallel []Step `yaml:"parallel,omitempty"`

	Fault       *FaultStep `yaml:"fault,omitempty"`
	ClearFaults bool       `yaml:"clear_faults,omitempty"`
}

// FaultStep makes the backend misbehave for matching requests.
// An empty Method matches any method; Query matches by substring.
type FaultStep struct {
	Method  string `yaml:"method,omitempty"`
	Path    string `yaml:"path"`
	Query   string `yaml:"query,omitempty"`
	Status  int    `yaml:"status,omitempty"`
	Message string `yaml:"message,omitempty"`
	Delay   string `yaml:"delay,omitempty"`

	delay time.Duration
}

// Assertion checks the trace, the final state, or the alert count.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op names the op (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Payload is a subset match on the intent payload (trace_contains).
	Payload map[string]any `yaml:"payload,omitempty"`

	// Status is the expected outcome status (trace_contains).
	Status string `yaml:"status,omitempty"`

	// Ops is the expected intent order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is an exact occurrence count (trace_count, alerts, state length).
	Count *int `yaml:"count,omitempty"`

	// Slice names the state slice (state).
	Slice string `yaml:"slice,omitempty"`

	// Expect is the expected slice value (state). Objects match as subsets;
	// lists match element-wise and must have the same length.
	Expect any `yaml:"expect,omitempty"`

	// Empty asserts the slice holds its zero value: no user, no error
	// message, an empty list or map (state).
	Empty bool `yaml:"empty,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertState         = "state"
	AssertAlerts        = "alerts"
)

// LoadScenario reads and validates a scenario file. The fixture and catalog
// paths are resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	s.Fixture = resolve(base, s.Fixture)
	s.Catalog = resolve(base, s.Catalog)

	if _, err := os.Stat(s.Fixture); err != nil {
		return nil, fmt.Errorf("invalid scenario: fixture file not found: %s", s.Fixture)
	}
	if s.Catalog != "" {
		if _, err := os.Stat(s.Catalog); err != nil {
			return nil, fmt.Errorf("invalid scenario: catalog file not found: %s", s.Catalog)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML. Unknown fields are
// rejected so a typo never silently disables an assertion.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	for i := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), &s.Steps[i], false); err != nil {
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

func validateStep(where string, st *Step, nested bool) error {
	kinds := 0
	if st.Dispatch != "" {
		kinds++
	}
	if len(st.Parallel) > 0 {
		kinds++
	}
	if st.Fault != nil {
		kinds++
	}
	if st.ClearFaults {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("%s: exactly one of dispatch, parallel, fault, clear_faults is required", where)
	}
	if nested && st.Dispatch == "" {
		return fmt.Errorf("%s: parallel blocks may only contain dispatches", where)
	}
	if st.Payload != nil && st.Dispatch == "" {
		return fmt.Errorf("%s: payload requires dispatch", where)
	}
	if st.Async && (st.Dispatch == "" || nested) {
		return fmt.Errorf("%s: async applies to top-level dispatches only", where)
	}

	switch {
	case st.Dispatch != "":
		// Unknown ops and mis-shaped payloads fail at load time.
		if _, err := ir.Encode(st.Dispatch, st.Payload); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	case len(st.Parallel) > 0:
		for i := range st.Parallel {
			if err := validateStep(fmt.Sprintf("%s.parallel[%d]", where, i), &st.Parallel[i], true); err != nil {
				return err
			}
		}
	case st.Fault != nil:
		if st.Fault.Path == "" {
			return fmt.Errorf("%s.fault: path is required", where)
		}
		if st.Fault.Status == 0 && st.Fault.Delay == "" {
			return fmt.Errorf("%s.fault: status or delay is required", where)
		}
		if st.Fault.Delay != "" {
			d, err := time.ParseDuration(st.Fault.Delay)
			if err != nil {
				return fmt.Errorf("%s.fault: invalid delay: %w", where, err)
			}
			st.Fault.delay = d
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
		if a.Status != "" && !ir.OutcomeStatus(a.Status).Valid() {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for trace_count", index)
		}
	case AssertState:
		if _, err := state.ParseSlice(a.Slice); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Expect == nil && a.Count == nil && !a.Empty {
			return fmt.Errorf("assertions[%d]: expect, count or empty is required for state", index)
		}
	case AssertAlerts:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for alerts", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

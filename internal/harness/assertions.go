package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/flame/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			if ev.Type == EventIntent {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", ev.Seq, ev.Op, ev.Payload)
			} else {
				fmt.Fprintf(&buf, "  [%d]   %s -> %s\n", ev.Seq, ev.Op, ev.Status)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages. An empty slice means every assertion held.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertState:
			err = assertState(result.State, a)
		case AssertAlerts:
			err = assertAlerts(result.Alerts, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceContains looks for an intent with the op and a payload that
// is a superset of the expected one. With a status, the intent's outcome
// must also match.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want := normalize(a.Payload)
	outcomes := outcomesByIntent(trace)

	for _, ev := range trace {
		if ev.Type != EventIntent || string(ev.Op) != a.Op {
			continue
		}
		if a.Payload != nil && !matchSubset(normalize(ev.Payload), want) {
			continue
		}
		if a.Status != "" && outcomes[ev.Seq] != ir.OutcomeStatus(a.Status) {
			continue
		}
		return nil
	}

	expected := fmt.Sprintf("%s with payload %v", a.Op, a.Payload)
	if a.Status != "" {
		expected += " and status " + a.Status
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first intent of each op appears in the
// given order. Other intents may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != EventIntent {
			continue
		}
		if _, seen := positions[string(ev.Op)]; !seen {
			positions[string(ev.Op)] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   "missing op: " + op,
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Ops); i++ {
		prev, cur := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[cur] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], cur, positions[cur]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == EventIntent && string(ev.Op) == a.Op {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d intents of %s", *a.Count, a.Op),
			Actual:   fmt.Sprintf("%d intents", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertState(st map[string]any, a Assertion) error {
	actual := st[a.Slice]

	if a.Empty && !isEmpty(actual) {
		return &AssertionError{
			Type:     AssertState,
			Expected: a.Slice + " empty",
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	if a.Count != nil {
		n, ok := length(actual)
		if !ok || n != *a.Count {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s with %d entries", a.Slice, *a.Count),
				Actual:   fmt.Sprintf("%v", actual),
			}
		}
	}
	if a.Expect != nil && !matchSubset(actual, normalize(a.Expect)) {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s matching %v", a.Slice, a.Expect),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

func assertAlerts(alerts int, a Assertion) error {
	if alerts != *a.Count {
		return &AssertionError{
			Type:     AssertAlerts,
			Expected: fmt.Sprintf("%d alerts", *a.Count),
			Actual:   fmt.Sprintf("%d alerts", alerts),
		}
	}
	return nil
}

func outcomesByIntent(trace []TraceEvent) map[int64]ir.OutcomeStatus {
	out := make(map[int64]ir.OutcomeStatus)
	for _, ev := range trace {
		if ev.Type == EventOutcome {
			out[ev.IntentSeq] = ev.Status
		}
	}
	return out
}

// normalize passes v through JSON so YAML ints, json.Number and float64
// all compare as float64.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// matchSubset reports whether actual contains expected. Objects match when
// every expected key matches; lists must have the same length and match
// element-wise; scalars must be equal.
func matchSubset(actual, expected any) bool {
	switch want := expected.(type) {
	case map[string]any:
		got, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, v := range want {
			if !matchSubset(got[k], v) {
				return false
			}
		}
		return true
	case []any:
		got, ok := actual.([]any)
		if !ok || len(got) != len(want) {
			return false
		}
		for i := range want {
			if !matchSubset(got[i], want[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(actual, expected)
	}
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	}
	n, ok := length(v)
	return ok && n == 0
}

func length(v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, true
	case []any:
		return len(val), true
	case map[string]any:
		return len(val), true
	}
	return 0, false
}

package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flame/internal/ir"
)

// TraceSnapshot is the golden form of one scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// accepts maps, slices and primitives. Zero-valued optional fields are
// left out.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"type":       ev.Type,
			"seq":        ev.Seq,
			"flow_token": ev.FlowToken,
			"op":         string(ev.Op),
		}
		switch ev.Type {
		case EventIntent:
			payload := ev.Payload
			if payload == nil {
				payload = map[string]any{}
			}
			m["payload"] = payload
			m["strategy"] = ev.Strategy
			if ev.ParentSeq != 0 {
				m["parent_seq"] = ev.ParentSeq
			}
		case EventOutcome:
			m["intent_seq"] = ev.IntentSeq
			m["status"] = string(ev.Status)
			m["http_status"] = ev.HTTPStatus
			if ev.Detail != "" {
				m["detail"] = ev.Detail
			}
		}
		trace[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snap := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return ir.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden runs scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against the golden file
// for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}

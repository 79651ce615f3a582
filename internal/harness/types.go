package harness

import "github.com/roach88/flame/internal/ir"

// Trace event types.
const (
	EventIntent  = "intent"
	EventOutcome = "outcome"
)

// TraceEvent is one journal record, flattened for assertions and golden
// comparison. Intent events carry the payload and strategy; outcome events
// carry the status. Both name the op. Parents and outcomes point at an
// intent by its seq, which unlike the content hash is readable in a golden
// file.
type TraceEvent struct {
	Type       string           `json:"type"`
	Seq        int64            `json:"seq"`
	FlowToken  string           `json:"flow_token"`
	Op         ir.Op            `json:"op"`
	Payload    map[string]any   `json:"payload,omitempty"`
	Strategy   string           `json:"strategy,omitempty"`
	ParentSeq  int64            `json:"parent_seq,omitempty"`
	IntentSeq  int64            `json:"intent_seq,omitempty"`
	Status     ir.OutcomeStatus `json:"status,omitempty"`
	HTTPStatus int              `json:"http_status,omitempty"`
	Detail     string           `json:"detail,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step dispatched and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds every journaled intent and outcome in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds refusal and assertion messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final store snapshot in its JSON form, keyed by slice.
	State map[string]any `json:"state,omitempty"`

	// Alerts counts authentication alerts raised by protected routes.
	Alerts int `json:"alerts"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// buildTrace merges intents and outcomes into one seq-ordered trace.
// Both inputs are already in seq order, as the journal returns them.
func buildTrace(intents []ir.IntentRecord, outcomes []ir.OutcomeRecord) []TraceEvent {
	byID := make(map[string]ir.IntentRecord, len(intents))
	for _, in := range intents {
		byID[in.ID] = in
	}

	trace := make([]TraceEvent, 0, len(intents)+len(outcomes))
	i, j := 0, 0
	for i < len(intents) || j < len(outcomes) {
		if j >= len(outcomes) || (i < len(intents) && intents[i].Seq < outcomes[j].Seq) {
			in := intents[i]
			ev := TraceEvent{
				Type:      EventIntent,
				Seq:       in.Seq,
				FlowToken: in.FlowToken,
				Op:        in.Op,
				Payload:   in.Payload,
				Strategy:  in.Strategy,
			}
			if p, ok := byID[in.ParentID]; ok {
				ev.ParentSeq = p.Seq
			}
			trace = append(trace, ev)
			i++
			continue
		}
		out := outcomes[j]
		in := byID[out.IntentID]
		trace = append(trace, TraceEvent{
			Type:       EventOutcome,
			Seq:        out.Seq,
			FlowToken:  in.FlowToken,
			Op:         in.Op,
			IntentSeq:  in.Seq,
			Status:     out.Status,
			HTTPStatus: out.HTTPStatus,
			Detail:     out.Detail,
		})
		j++
	}
	return trace
}

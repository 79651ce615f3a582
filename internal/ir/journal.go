package ir

// OutcomeStatus is how a dispatched intent ended.
type OutcomeStatus string

const (
	OutcomeOK         OutcomeStatus = "ok"
	OutcomeFailed     OutcomeStatus = "failed"
	OutcomeSuperseded OutcomeStatus = "superseded"
)

// Valid reports whether s is a known status.
func (s OutcomeStatus) Valid() bool {
	switch s {
	case OutcomeOK, OutcomeFailed, OutcomeSuperseded:
		return true
	}
	return false
}

// IntentRecord is one journaled dispatch.
//
// ParentID is empty for a root dispatch and names the intent whose handler
// dispatched this one otherwise. Payload has secrets redacted.
type IntentRecord struct {
	ID        string         `json:"id"`
	FlowToken string         `json:"flow_token"`
	Op        Op             `json:"op"`
	Payload   map[string]any `json:"payload"`
	Seq       int64          `json:"seq"`
	ParentID  string         `json:"parent_id,omitempty"`
	Strategy  string         `json:"strategy"`
	IRVersion string         `json:"ir_version"`
}

// OutcomeRecord is the single outcome of a journaled intent.
// HTTPStatus is the backend's error status for a failed call and 0 otherwise.
type OutcomeRecord struct {
	ID         string        `json:"id"`
	IntentID   string        `json:"intent_id"`
	Status     OutcomeStatus `json:"status"`
	HTTPStatus int           `json:"http_status"`
	Detail     string        `json:"detail,omitempty"`
	Seq        int64         `json:"seq"`
}

// redactedKeys are payload fields never written to the journal.
var redactedKeys = map[string]bool{
	"password": true,
}

// Redacted is the value that replaces a redacted payload field.
const Redacted = "[redacted]"

// Redact returns a copy of payload with secret fields replaced.
func Redact(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if redactedKeys[k] {
			out[k] = Redacted
			continue
		}
		out[k] = v
	}
	return out
}

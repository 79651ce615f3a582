package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/flame/internal/ir"
)

// marshalPayload stores a payload as canonical JSON so identical payloads
// are byte-identical in the journal.
func marshalPayload(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload keeps numbers as json.Number so a read-back payload can
// be canonicalized again without precision loss.
func unmarshalPayload(data string) (map[string]any, error) {
	out := map[string]any{}
	if data == "" || data == "{}" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return out, nil
}

package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for an algorithm migration.
const (
	DomainIntent  = "flame/intent/v1"
	DomainOutcome = "flame/outcome/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// IntentID computes the content-addressed ID of one dispatched intent.
// Two dispatches of the same payload in the same flow differ by seq.
func IntentID(flowToken string, op Op, payload map[string]any, seq int64) (string, error) {
	obj := map[string]any{
		"flow_token": flowToken,
		"op":         string(op),
		"payload":    payload,
		"seq":        seq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("IntentID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainIntent, canonical), nil
}

// OutcomeID computes the ID of the outcome recorded for an intent.
func OutcomeID(intentID, status string, seq int64) (string, error) {
	obj := map[string]any{
		"intent_id": intentID,
		"status":    status,
		"seq":       seq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("OutcomeID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOutcome, canonical), nil
}

// MustIntentID is like IntentID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustIntentID(flowToken string, op Op, payload map[string]any, seq int64) string {
	id, err := IntentID(flowToken, op, payload, seq)
	if err != nil {
		panic(err)
	}
	return id
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/flame/internal/ir"
)

// createTestStore creates a fresh on-disk journal in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestIntent creates an intent record with minimal required fields.
func createTestIntent(id, flowToken string, op ir.Op, seq int64) ir.IntentRecord {
	return ir.IntentRecord{
		ID:        id,
		FlowToken: flowToken,
		Op:        op,
		Payload:   map[string]any{},
		Seq:       seq,
		Strategy:  "every",
		IRVersion: ir.IRVersion,
	}
}

// createTestOutcome creates an ok outcome for intentID.
func createTestOutcome(id, intentID string, seq int64) ir.OutcomeRecord {
	return ir.OutcomeRecord{
		ID:         id,
		IntentID:   intentID,
		Status:     ir.OutcomeOK,
		HTTPStatus: 200,
		Seq:        seq,
	}
}

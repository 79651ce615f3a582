package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/flame/internal/ir"
)

// WriteIntent inserts an intent record.
// Uses ON CONFLICT(id) DO NOTHING: rewriting the same record is a no-op.
func (s *Store) WriteIntent(ctx context.Context, rec ir.IntentRecord) error {
	payload, err := marshalPayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("write intent: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intents
		(id, flow_token, op, payload, seq, parent_id, strategy, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.FlowToken,
		string(rec.Op),
		payload,
		rec.Seq,
		nullString(rec.ParentID),
		rec.Strategy,
		rec.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write intent: %w", err)
	}
	return nil
}

// WriteOutcome inserts an outcome record. Each intent has at most one
// outcome; a second write for the same intent is silently ignored.
// The intent must already be journaled (foreign key).
func (s *Store) WriteOutcome(ctx context.Context, rec ir.OutcomeRecord) error {
	if !rec.Status.Valid() {
		return fmt.Errorf("write outcome: invalid status %q", rec.Status)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(id, intent_id, status, http_status, detail, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.ID,
		rec.IntentID,
		string(rec.Status),
		rec.HTTPStatus,
		rec.Detail,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

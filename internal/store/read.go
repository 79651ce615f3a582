package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/flame/internal/ir"
)

// FlowSummary describes one flow in the journal.
type FlowSummary struct {
	FlowToken string `json:"flow_token"`
	RootOp    ir.Op  `json:"root_op"`
	Intents   int    `json:"intents"`
	FirstSeq  int64  `json:"first_seq"`
	LastSeq   int64  `json:"last_seq"`
}

const intentColumns = `id, flow_token, op, payload, seq, parent_id, strategy, ir_version`

// ReadFlow returns every intent and outcome of one flow.
// Returns empty slices (not nil) if the flow is unknown.
func (s *Store) ReadFlow(ctx context.Context, flowToken string) ([]ir.IntentRecord, []ir.OutcomeRecord, error) {
	intents, err := s.queryIntents(ctx, `
		SELECT `+intentColumns+`
		FROM intents
		WHERE flow_token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, flowToken)
	if err != nil {
		return nil, nil, err
	}

	outcomes, err := s.queryOutcomes(ctx, `
		SELECT o.id, o.intent_id, o.status, o.http_status, o.detail, o.seq
		FROM outcomes o
		JOIN intents i ON o.intent_id = i.id
		WHERE i.flow_token = ?
		ORDER BY o.seq ASC, o.id COLLATE BINARY ASC
	`, flowToken)
	if err != nil {
		return nil, nil, err
	}

	return intents, outcomes, nil
}

// ReadAllIntents returns every journaled intent.
func (s *Store) ReadAllIntents(ctx context.Context) ([]ir.IntentRecord, error) {
	return s.queryIntents(ctx, `
		SELECT `+intentColumns+`
		FROM intents
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadAllOutcomes returns every journaled outcome.
func (s *Store) ReadAllOutcomes(ctx context.Context) ([]ir.OutcomeRecord, error) {
	return s.queryOutcomes(ctx, `
		SELECT id, intent_id, status, http_status, detail, seq
		FROM outcomes
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadIntentsByOp returns every journaled intent of one op.
func (s *Store) ReadIntentsByOp(ctx context.Context, op ir.Op) ([]ir.IntentRecord, error) {
	return s.queryIntents(ctx, `
		SELECT `+intentColumns+`
		FROM intents
		WHERE op = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, string(op))
}

// ReadIntent retrieves one intent. Returns sql.ErrNoRows if not found.
func (s *Store) ReadIntent(ctx context.Context, id string) (ir.IntentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+intentColumns+` FROM intents WHERE id = ?`, id)
	return scanIntent(row)
}

// ReadOutcome retrieves the outcome of an intent.
// Returns sql.ErrNoRows if the intent has none yet.
func (s *Store) ReadOutcome(ctx context.Context, intentID string) (ir.OutcomeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, intent_id, status, http_status, detail, seq
		FROM outcomes
		WHERE intent_id = ?
	`, intentID)
	return scanOutcome(row)
}

// ListFlows summarizes every flow, oldest first.
func (s *Store) ListFlows(ctx context.Context) ([]FlowSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.flow_token, COUNT(*), MIN(i.seq), MAX(i.seq),
		       (SELECT r.op FROM intents r
		        WHERE r.flow_token = i.flow_token AND r.parent_id IS NULL
		        ORDER BY r.seq ASC, r.id COLLATE BINARY ASC LIMIT 1)
		FROM intents i
		GROUP BY i.flow_token
		ORDER BY MIN(i.seq) ASC, i.flow_token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query flows: %w", err)
	}
	defer rows.Close()

	flows := []FlowSummary{}
	for rows.Next() {
		var f FlowSummary
		var root sql.NullString
		if err := rows.Scan(&f.FlowToken, &f.Intents, &f.FirstSeq, &f.LastSeq, &root); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		f.RootOp = ir.Op(root.String)
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flows: %w", err)
	}
	return flows, nil
}

// MaxSeq returns the highest seq in the journal, or 0 when it is empty.
// A dispatcher resumes its clock from here so seq stays unique.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM intents
			UNION ALL
			SELECT seq FROM outcomes
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryIntents(ctx context.Context, query string, args ...any) ([]ir.IntentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query intents: %w", err)
	}
	defer rows.Close()

	out := []ir.IntentRecord{}
	for rows.Next() {
		rec, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intents: %w", err)
	}
	return out, nil
}

func (s *Store) queryOutcomes(ctx context.Context, query string, args ...any) ([]ir.OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := []ir.OutcomeRecord{}
	for rows.Next() {
		rec, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

func scanIntent(row scanner) (ir.IntentRecord, error) {
	var rec ir.IntentRecord
	var op, payload string
	var parent sql.NullString
	if err := row.Scan(&rec.ID, &rec.FlowToken, &op, &payload, &rec.Seq, &parent, &rec.Strategy, &rec.IRVersion); err != nil {
		if err == sql.ErrNoRows {
			return ir.IntentRecord{}, err
		}
		return ir.IntentRecord{}, fmt.Errorf("scan intent: %w", err)
	}
	rec.Op = ir.Op(op)
	rec.ParentID = parent.String

	p, err := unmarshalPayload(payload)
	if err != nil {
		return ir.IntentRecord{}, fmt.Errorf("scan intent %s: %w", rec.ID, err)
	}
	rec.Payload = p
	return rec, nil
}

func scanOutcome(row scanner) (ir.OutcomeRecord, error) {
	var rec ir.OutcomeRecord
	var status string
	if err := row.Scan(&rec.ID, &rec.IntentID, &status, &rec.HTTPStatus, &rec.Detail, &rec.Seq); err != nil {
		if err == sql.ErrNoRows {
			return ir.OutcomeRecord{}, err
		}
		return ir.OutcomeRecord{}, fmt.Errorf("scan outcome: %w", err)
	}
	rec.Status = ir.OutcomeStatus(status)
	return rec, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flame/internal/ir"
)

func TestWriteIntent_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestIntent("i1", "flow-a", ir.OpPostCollectionItems, 1)
	rec.Payload = map[string]any{
		"coll_id":  json.Number("3"),
		"conn_ids": []any{json.Number("1"), json.Number("2")},
		"kind":     "species",
	}
	require.NoError(t, s.WriteIntent(ctx, rec))

	got, err := s.ReadIntent(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestWriteIntent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := createTestIntent("i1", "flow-a", ir.OpGetUser, 1)
	require.NoError(t, s.WriteIntent(ctx, rec))
	require.NoError(t, s.WriteIntent(ctx, rec))

	all, err := s.ReadAllIntents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWriteOutcome_OnePerIntent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIntent(ctx, createTestIntent("i1", "flow-a", ir.OpGetUser, 1)))
	require.NoError(t, s.WriteOutcome(ctx, createTestOutcome("o1", "i1", 2)))

	second := createTestOutcome("o2", "i1", 3)
	second.Status = ir.OutcomeFailed
	require.NoError(t, s.WriteOutcome(ctx, second))

	got, err := s.ReadOutcome(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)
	assert.Equal(t, ir.OutcomeOK, got.Status)
}

func TestWriteOutcome_RequiresIntent(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteOutcome(context.Background(), createTestOutcome("o1", "missing", 1))
	assert.Error(t, err)
}

func TestWriteOutcome_RejectsUnknownStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteIntent(ctx, createTestIntent("i1", "flow-a", ir.OpGetUser, 1)))

	rec := createTestOutcome("o1", "i1", 2)
	rec.Status = "pending"
	assert.Error(t, s.WriteOutcome(ctx, rec))
}

func TestReadOutcome_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadOutcome(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadFlow_OrderedBySeqThenID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order; b and a share seq 2.
	require.NoError(t, s.WriteIntent(ctx, createTestIntent("c", "flow-a", ir.OpGetSpecies, 3)))
	require.NoError(t, s.WriteIntent(ctx, createTestIntent("b", "flow-a", ir.OpGetSpecies, 2)))
	require.NoError(t, s.WriteIntent(ctx, createTestIntent("a", "flow-a", ir.OpGetSpecies, 2)))
	require.NoError(t, s.WriteIntent(ctx, createTestIntent("z", "flow-b", ir.OpGetUser, 1)))
	require.NoError(t, s.WriteOutcome(ctx, createTestOutcome("oc", "c", 5)))
	require.NoError(t, s.WriteOutcome(ctx, createTestOutcome("oa", "a", 4)))

	intents, outcomes, err := s.ReadFlow(ctx, "flow-a")
	require.NoError(t, err)

	var ids []string
	for _, rec := range intents {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "oa", outcomes[0].ID)
	assert.Equal(t, "oc", outcomes[1].ID)
}

func TestReadFlow_UnknownFlowIsEmpty(t *testing.T) {
	s := createTestStore(t)

	intents, outcomes, err := s.ReadFlow(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, intents)
	assert.NotNil(t, outcomes)
	assert.Empty(t, intents)
	assert.Empty(t, outcomes)
}

func TestReadIntentsByOp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteIntent(ctx, createTestIntent("a", "flow-a", ir.OpGetSpecies, 1)))
	require.NoError(t, s.WriteIntent(ctx, createTestIntent("b", "flow-b", ir.OpGetUser, 2)))
	require.NoError(t, s.WriteIntent(ctx, createTestIntent("c", "flow-c", ir.OpGetSpecies, 3)))

	got, err := s.ReadIntentsByOp(ctx, ir.OpGetSpecies)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestListFlows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := createTestIntent("r1", "flow-a", ir.OpDeleteItem, 1)
	follow := createTestIntent("f1", "flow-a", ir.OpGetSpecies, 3)
	follow.ParentID = "r1"
	require.NoError(t, s.WriteIntent(ctx, root))
	require.NoError(t, s.WriteIntent(ctx, follow))
	require.NoError(t, s.WriteIntent(ctx, createTestIntent("r2", "flow-b", ir.OpGetUser, 2)))

	flows, err := s.ListFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 2)

	assert.Equal(t, FlowSummary{FlowToken: "flow-a", RootOp: ir.OpDeleteItem, Intents: 2, FirstSeq: 1, LastSeq: 3}, flows[0])
	assert.Equal(t, FlowSummary{FlowToken: "flow-b", RootOp: ir.OpGetUser, Intents: 1, FirstSeq: 2, LastSeq: 2}, flows[1])

	got, err := s.ReadIntent(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ParentID)
}

func TestMaxSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.WriteIntent(ctx, createTestIntent("a", "flow-a", ir.OpGetUser, 4)))
	require.NoError(t, s.WriteOutcome(ctx, createTestOutcome("oa", "a", 9)))

	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)
}

func TestMarshalPayload_Canonical(t *testing.T) {
	a, err := marshalPayload(map[string]any{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","b":"2"}`, a)

	empty, err := marshalPayload(nil)
	require.NoError(t, err)
	assert.Equal(t, `{}`, empty)

	_, err = marshalPayload(map[string]any{"x": 1.5})
	assert.Error(t, err)
}

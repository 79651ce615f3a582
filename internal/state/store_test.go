package state

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flame/internal/ir"
)

func TestStore_New(t *testing.T) {
	s := New()
	snap := s.Snapshot()

	assert.Nil(t, snap.User)
	assert.Equal(t, "", snap.Error)
	assert.NotNil(t, snap.Species)
	assert.NotNil(t, snap.SpeciesDetails)
	assert.False(t, snap.ReactionMode)
	assert.Equal(t, uint64(0), s.Version())
	assert.Len(t, AllSlices(), 10)
}

func TestStore_SummariesReplacedWholesale(t *testing.T) {
	s := New()
	s.SetSummaries(ir.KindSpecies, []ir.Connectivity{{ID: 1, Formula: "H2O"}, {ID: 2, Formula: "CH4"}})
	s.SetSummaries(ir.KindSpecies, []ir.Connectivity{{ID: 3, Formula: "O2"}})

	snap := s.Snapshot()
	assert.Equal(t, []ir.Connectivity{{ID: 3, Formula: "O2"}}, snap.Species)
	assert.Empty(t, snap.Reactions)

	s.SetSummaries(ir.KindReaction, []ir.Connectivity{{ID: 9, Formula: "C2H6"}})
	assert.Len(t, s.Snapshot().Summaries(ir.KindReaction), 1)
}

func TestStore_DetailMergeIsIdempotent(t *testing.T) {
	s := New()
	s.AddDetails(ir.KindSpecies, ir.DetailCache{1: {{ID: 10, ConnID: 1}}})
	s.AddDetails(ir.KindSpecies, ir.DetailCache{2: {{ID: 20, ConnID: 2}}})
	before := s.Snapshot().SpeciesDetails

	s.AddDetails(ir.KindSpecies, ir.DetailCache{2: {{ID: 20, ConnID: 2}}})
	after := s.Snapshot().SpeciesDetails

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("detail merge changed cache (-before +after):\n%s", diff)
	}
	assert.Len(t, after, 2)
	assert.Empty(t, s.Snapshot().ReactionDetails)
}

func TestStore_DetailMergeOverwritesOnlyItsKey(t *testing.T) {
	s := New()
	s.AddDetails(ir.KindReaction, ir.DetailCache{1: {{ID: 10}}, 2: {{ID: 20}}})
	s.AddDetails(ir.KindReaction, ir.DetailCache{2: {{ID: 21}, {ID: 22}}})

	got := s.Snapshot().ReactionDetails
	want := ir.DetailCache{1: {{ID: 10}}, 2: {{ID: 21}, {ID: 22}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reaction details mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SnapshotIsStable(t *testing.T) {
	s := New()
	s.SetSummaries(ir.KindSpecies, []ir.Connectivity{{ID: 1}})
	s.AddDetails(ir.KindSpecies, ir.DetailCache{1: {{ID: 10}}})
	old := s.Snapshot()

	s.SetSummaries(ir.KindSpecies, []ir.Connectivity{{ID: 2}})
	s.AddDetails(ir.KindSpecies, ir.DetailCache{3: {{ID: 30}}})

	assert.Equal(t, int64(1), old.Species[0].ID)
	assert.Len(t, old.SpeciesDetails, 1)
}

func TestStore_Submissions(t *testing.T) {
	s := New()

	i0 := s.AppendSubmission(ir.Submission{Smiles: "CC", Status: ir.StatusSubmitted})
	i1 := s.AppendSubmission(ir.Submission{Smiles: "CC>>C.C", IsReaction: true, Status: ir.StatusSubmitted})
	assert.Equal(t, 0, i0)
	assert.Equal(t, 1, i1)

	require.NoError(t, s.UpdateSubmission(i1, ir.SubmissionUpdate{Status: ir.StatusError, Message: "bad smiles"}))
	require.NoError(t, s.UpdateSubmission(i0, ir.SubmissionUpdate{Status: ir.StatusComplete}))

	err := s.UpdateSubmission(i0, ir.SubmissionUpdate{Status: ir.StatusSubmitted})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	err = s.UpdateSubmission(i1, ir.SubmissionUpdate{Status: ir.StatusComplete})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Error(t, s.UpdateSubmission(5, ir.SubmissionUpdate{Status: ir.StatusComplete}))

	subs := s.Snapshot().Submissions
	assert.Equal(t, ir.StatusComplete, subs[0].Status)
	assert.Equal(t, ir.StatusError, subs[1].Status)
	assert.Equal(t, "bad smiles", subs[1].Message)
}

func TestStore_ConcurrentAppendsGetDistinctIndexes(t *testing.T) {
	s := New()
	const n = 50

	var wg sync.WaitGroup
	seen := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = s.AppendSubmission(ir.Submission{Status: ir.StatusSubmitted})
		}(i)
	}
	wg.Wait()

	unique := map[int]bool{}
	for _, idx := range seen {
		unique[idx] = true
	}
	assert.Len(t, unique, n)
	assert.Len(t, s.Snapshot().Submissions, n)
}

func TestStore_ErrorMessages(t *testing.T) {
	s := New()

	s.SetLoginError()
	assert.Equal(t, LoginErrorMessage, s.Snapshot().Error)
	s.SetRegistrationError()
	assert.Equal(t, RegistrationErrorMessage, s.Snapshot().Error)
	s.SetRetypeError()
	assert.Equal(t, RetypeErrorMessage, s.Snapshot().Error)
	s.SetCodelessError()
	assert.Equal(t, CodelessErrorMessage, s.Snapshot().Error)
	s.ClearError()
	assert.Equal(t, "", s.Snapshot().Error)
}

func TestStore_ReactionModeKeepsOtherSlices(t *testing.T) {
	s := New()
	s.SetSummaries(ir.KindSpecies, []ir.Connectivity{{ID: 1}})
	s.SetReactionMode(true)

	snap := s.Snapshot()
	assert.True(t, snap.ReactionMode)
	assert.Equal(t, ir.KindReaction, snap.Kind())
	assert.Len(t, snap.Species, 1)
}

func TestStore_UserAndStaging(t *testing.T) {
	s := New()
	s.SetUser(ir.User{ID: 1, Email: "a@b.c"})
	require.NotNil(t, s.Snapshot().User)
	s.UnsetUser()
	assert.Nil(t, s.Snapshot().User)

	s.StageSpecies("C")
	s.StageSpecies("CC")
	assert.Equal(t, []string{"C", "CC"}, s.Snapshot().StagedSpecies)
	s.ClearStagedSpecies()
	assert.Empty(t, s.Snapshot().StagedSpecies)

	s.SetCollections([]ir.Collection{{ID: 1, Name: "My Data"}})
	assert.Equal(t, "My Data", s.Snapshot().Collections[0].Name)
}

func TestStore_SubscribeFiltersSlices(t *testing.T) {
	s := New()

	var species, all []Slice
	unsub := s.Subscribe(func(changed Slice, _ Snapshot) {
		species = append(species, changed)
	}, SliceSpecies)
	s.Subscribe(func(changed Slice, _ Snapshot) {
		all = append(all, changed)
	})

	s.SetSummaries(ir.KindSpecies, nil)
	s.SetSummaries(ir.KindReaction, nil)
	s.SetReactionMode(true)
	s.SetReactionMode(true)

	assert.Equal(t, []Slice{SliceSpecies}, species)
	assert.Equal(t, []Slice{SliceSpecies, SliceReactions, SliceReactionMode}, all)

	unsub()
	unsub()
	s.SetSummaries(ir.KindSpecies, nil)
	assert.Len(t, species, 1)
}

func TestStore_ListenerSeesCommittedValue(t *testing.T) {
	s := New()

	var got []ir.Connectivity
	s.Subscribe(func(_ Slice, snap Snapshot) {
		got = snap.Species
	}, SliceSpecies)

	s.SetSummaries(ir.KindSpecies, []ir.Connectivity{{ID: 7}})
	assert.Equal(t, int64(7), got[0].ID)
}

func TestStore_ListenerMayReenter(t *testing.T) {
	s := New()

	s.Subscribe(func(_ Slice, snap Snapshot) {
		if len(snap.Species) > 0 {
			s.SetError("reentered")
		}
	}, SliceSpecies)

	s.SetSummaries(ir.KindSpecies, []ir.Connectivity{{ID: 1}})
	assert.Equal(t, "reentered", s.Snapshot().Error)
}

func TestParseSlice(t *testing.T) {
	sl, err := ParseSlice("species_details")
	require.NoError(t, err)
	assert.Equal(t, SliceSpeciesDetails, sl)

	_, err = ParseSlice("nope")
	assert.Error(t, err)

	assert.Equal(t, SliceReactions, SummariesSlice(ir.KindReaction))
	assert.Equal(t, SliceSpeciesDetails, DetailsSlice(ir.KindSpecies))
}

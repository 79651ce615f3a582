package view

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flame/internal/chem"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

func newPlainText(t *testing.T, r chem.Renderer) *Text {
	t.Helper()
	// A bytes.Buffer is not a terminal, so the renderer emits no escapes.
	return NewText(&bytes.Buffer{}, r)
}

func TestText_SummariesGroupByAdjacentFormula(t *testing.T) {
	txt := newPlainText(t, nil)

	got := txt.Summaries(ir.KindSpecies, []ir.Connectivity{
		{ID: 1, Formula: "H2O", ConnSmiles: "O"},
		{ID: 3, Formula: "H2O", ConnSmiles: "[OH2]"},
		{ID: 2, Formula: "CH4", ConnSmiles: "C"},
		{ID: 4, Formula: "H2O", ConnSmiles: "[H]O[H]"},
	})

	want := "Species (4)\n" +
		"H₂O\n" +
		"  #1     O\n" +
		"  #3     [OH2]\n" +
		"CH₄\n" +
		"  #2     C\n" +
		"H₂O\n" +
		"  #4     [H]O[H]\n"
	assert.Equal(t, want, got)
}

func TestText_SummariesEmpty(t *testing.T) {
	txt := newPlainText(t, nil)
	assert.Equal(t, "Reactions (0)\n  no results\n", txt.Summaries(ir.KindReaction, nil))
}

func TestText_ReactionSummariesArePrettyPrinted(t *testing.T) {
	txt := newPlainText(t, nil)
	got := txt.Summaries(ir.KindReaction, []ir.Connectivity{{ID: 5, Formula: "CH5O", ConnSmiles: "C.[OH]>>CO"}})
	assert.Contains(t, got, "#5     C + [OH] >> CO")
}

func TestText_Details(t *testing.T) {
	txt := newPlainText(t, nil)

	got := txt.Details(ir.KindSpecies, 1, []ir.Detail{
		{ID: 10, ConnID: 1, Smiles: "O", SpinMult: 1, Formula: "H2O", Geometry: "3\nwater\nO 0 0 0\nH 0 0 0.96\nH 0.93 0 -0.24\n"},
		{ID: 11, ConnID: 1, Smiles: "[OH2]", SpinMult: 3},
		{ID: 12, ConnID: 1, Smiles: "O", SpinMult: 1, Geometry: "2\nshort\nO 0 0 0\n"},
	})

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Species 1", lines[0])
	assert.Equal(t, "H₂O", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "  ID  SMILES  SPIN  GEOMETRY"), lines[2])
	assert.Contains(t, lines[3], "3 atoms, OH2")
	assert.Contains(t, lines[4], "none")
	assert.Contains(t, lines[5], "invalid (xyz line")
}

func TestText_DetailsWithoutRecords(t *testing.T) {
	txt := newPlainText(t, nil)
	assert.Equal(t, "Reaction 7\n  no records\n", txt.Details(ir.KindReaction, 7, nil))
}

func TestText_DetailCacheOrdersByConnID(t *testing.T) {
	txt := newPlainText(t, nil)
	got := txt.DetailCache(ir.KindSpecies, ir.DetailCache{
		9: {{ID: 90, ConnID: 9, Smiles: "C"}},
		2: {{ID: 20, ConnID: 2, Smiles: "O"}},
	})
	assert.Less(t, strings.Index(got, "Species 2"), strings.Index(got, "Species 9"))
}

func TestText_Submissions(t *testing.T) {
	txt := newPlainText(t, nil)

	got := txt.Submissions([]ir.Submission{
		{Smiles: "CCO", Status: ir.StatusComplete},
		{Smiles: "C(C", Status: ir.StatusError, Message: "Invalid SMILES string: C(C"},
		{Smiles: "C.O>>CO", IsReaction: true, Status: ir.StatusSubmitted},
	})

	want := "Submissions\n" +
		"  #  SMILES       KIND      STATUS     MESSAGE\n" +
		"  1  CCO          species   Complete\n" +
		"  2  C(C          species   Error      Invalid SMILES string: C(C\n" +
		"  3  C + O >> CO  reaction  Submitted\n"
	assert.Equal(t, want, got)
}

func TestText_SubmissionsEmpty(t *testing.T) {
	txt := newPlainText(t, nil)
	assert.Equal(t, "Submissions\n  nothing submitted\n", txt.Submissions(nil))
}

func TestText_Collections(t *testing.T) {
	txt := newPlainText(t, nil)

	got := txt.Collections([]ir.Collection{{
		ID:        1,
		Name:      "My Data",
		Species:   []ir.Connectivity{{ID: 1, Formula: "H2O", ConnSmiles: "O"}},
		Reactions: []ir.Connectivity{{ID: 5, Formula: "CH5O", ConnSmiles: "C.[OH]>>CO"}},
	}})

	assert.Contains(t, got, "Collections (1)\n")
	assert.Contains(t, got, "My Data #1, 1 species, 1 reactions\n")
	assert.Contains(t, got, "species  #1     H₂O O\n")
	assert.Contains(t, got, "reaction #5     CH₅O C + [OH] >> CO\n")
}

func TestText_StagedUsesRenderer(t *testing.T) {
	r := chem.NewCatalogRenderer()
	r.Learn([]ir.Connectivity{{ConnSmiles: "O", Formula: "H2O", SVGString: "<svg/>"}})
	txt := newPlainText(t, r)

	got := txt.Staged([]string{"O", "CC(", "CCC"})

	assert.Equal(t, "Staged Species (3)\n  O H₂O\n  CC(\n  CCC\n", got)
}

func TestText_User(t *testing.T) {
	txt := newPlainText(t, nil)

	assert.Equal(t, "Not logged in\n", txt.User(nil))
	assert.Equal(t, "Logged in as ada@example.com\n", txt.User(&ir.User{ID: 1, Email: "ada@example.com"}))
	assert.Equal(t, "Logged in as root@example.com (admin)\n", txt.User(&ir.User{ID: 2, Email: "root@example.com", Admin: true}))
}

func TestText_Error(t *testing.T) {
	txt := newPlainText(t, nil)
	assert.Empty(t, txt.Error(""))
	assert.Equal(t, state.LoginErrorMessage+"\n", txt.Error(state.LoginErrorMessage))
}

func TestText_SliceCoversEverySlice(t *testing.T) {
	txt := newPlainText(t, nil)
	snap := state.Snapshot{ReactionMode: true}

	for _, sl := range state.AllSlices() {
		if sl == state.SliceError || sl == state.SliceSpeciesDetails || sl == state.SliceReactionDetails {
			// Empty error and empty caches render nothing.
			assert.Empty(t, txt.Slice(sl, snap), sl)
			continue
		}
		assert.NotEmpty(t, txt.Slice(sl, snap), sl)
	}
	assert.Equal(t, "Browsing reactions\n", txt.Slice(state.SliceReactionMode, snap))
}

type renderCall struct {
	changed state.Slice
	snap    state.Snapshot
}

type recorder struct {
	mu    sync.Mutex
	calls []renderCall
}

func (r *recorder) render(changed state.Slice, snap state.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, renderCall{changed, snap})
}

func (r *recorder) snapshot() []renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderCall(nil), r.calls...)
}

func TestBind_InitialRenderAndUpdates(t *testing.T) {
	st := state.New()
	st.SetError("stale")
	rec := &recorder{}

	unbind := Bind(st, rec.render, state.SliceUser)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, state.Slice(""), calls[0].changed)
	assert.Equal(t, "stale", calls[0].snap.Error)

	st.SetError("ignored") // not a bound slice
	st.SetUser(ir.User{ID: 1, Email: "ada@example.com"})

	calls = rec.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, state.SliceUser, calls[1].changed)
	require.NotNil(t, calls[1].snap.User)
	assert.Equal(t, "ada@example.com", calls[1].snap.User.Email)

	unbind()
	st.UnsetUser()
	assert.Len(t, rec.snapshot(), 2)
}

func TestBind_AllSlicesWhenNoneNamed(t *testing.T) {
	st := state.New()
	rec := &recorder{}
	unbind := Bind(st, rec.render)
	defer unbind()

	st.SetReactionMode(true)
	st.StageSpecies("O")

	calls := rec.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, state.SliceReactionMode, calls[1].changed)
	assert.Equal(t, state.SliceStagedSpecies, calls[2].changed)
}

func TestBind_ConcurrentUpdatesNeverRenderOlderState(t *testing.T) {
	st := state.New()
	var mu sync.Mutex
	var lens []int
	unbind := Bind(st, func(_ state.Slice, snap state.Snapshot) {
		mu.Lock()
		lens = append(lens, len(snap.StagedSpecies))
		mu.Unlock()
	}, state.SliceStagedSpecies)
	defer unbind()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.StageSpecies("C")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(lens); i++ {
		assert.GreaterOrEqual(t, lens[i], lens[i-1])
	}
	assert.Equal(t, 20, lens[len(lens)-1])
}

// Package state holds the client's session state as independent named
// slices.
//
// A Store is an explicit, injected container: there is no package-level
// instance. Each slice has its own update rule (replace, merge or append),
// and every mutation goes through the store's lock. Slices are
// copy-on-write, so a Snapshot stays valid after later updates.
package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/flame/internal/ir"
)

// Slice names one independently updated piece of state.
type Slice string

const (
	SliceUser            Slice = "user"
	SliceError           Slice = "error"
	SliceSpecies         Slice = "species"
	SliceSpeciesDetails  Slice = "species_details"
	SliceReactions       Slice = "reactions"
	SliceReactionDetails Slice = "reaction_details"
	SliceReactionMode    Slice = "reaction_mode"
	SliceSubmissions     Slice = "submissions"
	SliceCollections     Slice = "collections"
	SliceStagedSpecies   Slice = "staged_species"
)

// AllSlices lists every slice in lexical order.
func AllSlices() []Slice {
	s := []Slice{
		SliceUser, SliceError, SliceSpecies, SliceSpeciesDetails, SliceReactions,
		SliceReactionDetails, SliceReactionMode, SliceSubmissions, SliceCollections,
		SliceStagedSpecies,
	}
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}

// ParseSlice validates a slice name.
func ParseSlice(name string) (Slice, error) {
	for _, s := range AllSlices() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown slice %q", name)
}

// SummariesSlice returns the listing slice for kind.
func SummariesSlice(kind ir.Kind) Slice {
	if kind == ir.KindReaction {
		return SliceReactions
	}
	return SliceSpecies
}

// DetailsSlice returns the detail-cache slice for kind.
func DetailsSlice(kind ir.Kind) Slice {
	if kind == ir.KindReaction {
		return SliceReactionDetails
	}
	return SliceSpeciesDetails
}

// Snapshot is a point-in-time view of every slice. Treat it as read-only:
// its slices and maps are shared with the store.
type Snapshot struct {
	User            *ir.User          `json:"user"`
	Error           string            `json:"error"`
	Species         []ir.Connectivity `json:"species"`
	SpeciesDetails  ir.DetailCache    `json:"species_details"`
	Reactions       []ir.Connectivity `json:"reactions"`
	ReactionDetails ir.DetailCache    `json:"reaction_details"`
	ReactionMode    bool              `json:"reaction_mode"`
	Submissions     []ir.Submission   `json:"submissions"`
	Collections     []ir.Collection   `json:"collections"`
	StagedSpecies   []string          `json:"staged_species"`
}

// Summaries returns the listing for kind.
func (s Snapshot) Summaries(kind ir.Kind) []ir.Connectivity {
	if kind == ir.KindReaction {
		return s.Reactions
	}
	return s.Species
}

// Details returns the detail cache for kind.
func (s Snapshot) Details(kind ir.Kind) ir.DetailCache {
	if kind == ir.KindReaction {
		return s.ReactionDetails
	}
	return s.SpeciesDetails
}

// Kind returns the kind selected by the reaction-mode flag.
func (s Snapshot) Kind() ir.Kind {
	return ir.KindFor(s.ReactionMode)
}

// Listener is called after a slice changes, outside the store lock, with
// a snapshot taken at call time.
type Listener func(changed Slice, snap Snapshot)

type subscription struct {
	fn     Listener
	slices map[Slice]bool // nil means every slice
}

// Store is the session state container.
//
// Thread-safety: all methods are safe for concurrent use. Listeners run
// synchronously on the goroutine that made the change and may call back
// into the store.
type Store struct {
	mu      sync.RWMutex
	snap    Snapshot
	version uint64

	subMu  sync.Mutex
	subs   map[int]*subscription
	nextID int
}

// New creates a Store with every slice at its initial value.
func New() *Store {
	return &Store{
		snap: Snapshot{
			Species:         []ir.Connectivity{},
			SpeciesDetails:  ir.DetailCache{},
			Reactions:       []ir.Connectivity{},
			ReactionDetails: ir.DetailCache{},
			Submissions:     []ir.Submission{},
			Collections:     []ir.Collection{},
			StagedSpecies:   []string{},
		},
		subs: make(map[int]*subscription),
	}
}

// Snapshot returns the current value of every slice.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Version counts applied mutations.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers fn for changes to the named slices (every slice when
// none are named). The returned func unsubscribes; it is idempotent.
func (s *Store) Subscribe(fn Listener, slices ...Slice) func() {
	sub := &subscription{fn: fn}
	if len(slices) > 0 {
		sub.slices = make(map[Slice]bool, len(slices))
		for _, sl := range slices {
			sub.slices[sl] = true
		}
	}

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// update applies fn under the write lock and then notifies listeners of
// changed. fn reports whether anything actually changed.
func (s *Store) update(changed Slice, fn func(*Snapshot) bool) {
	s.mu.Lock()
	if !fn(&s.snap) {
		s.mu.Unlock()
		return
	}
	s.version++
	s.mu.Unlock()

	s.notify(changed)
}

func (s *Store) notify(changed Slice) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id, sub := range s.subs {
		if sub.slices == nil || sub.slices[changed] {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id].fn)
	}
	s.subMu.Unlock()

	if len(fns) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range fns {
		fn(changed, snap)
	}
}

// SetUser replaces the user slot.
func (s *Store) SetUser(u ir.User) {
	s.update(SliceUser, func(snap *Snapshot) bool {
		snap.User = replaceUser(u)
		return true
	})
}

// UnsetUser clears the user slot.
func (s *Store) UnsetUser() {
	s.update(SliceUser, func(snap *Snapshot) bool {
		if snap.User == nil {
			return false
		}
		snap.User = nil
		return true
	})
}

// SetError replaces the error message.
func (s *Store) SetError(msg string) {
	s.update(SliceError, func(snap *Snapshot) bool {
		if snap.Error == msg {
			return false
		}
		snap.Error = msg
		return true
	})
}

// ClearError empties the error message.
func (s *Store) ClearError() { s.SetError("") }

// SetLoginError records rejected credentials.
func (s *Store) SetLoginError() { s.SetError(LoginErrorMessage) }

// SetRegistrationError records an already-registered email.
func (s *Store) SetRegistrationError() { s.SetError(RegistrationErrorMessage) }

// SetRetypeError records a password confirmation mismatch.
func (s *Store) SetRetypeError() { s.SetError(RetypeErrorMessage) }

// SetCodelessError records a failure the backend did not explain.
func (s *Store) SetCodelessError() { s.SetError(CodelessErrorMessage) }

// SetSummaries replaces the listing for kind wholesale.
func (s *Store) SetSummaries(kind ir.Kind, items []ir.Connectivity) {
	s.update(SummariesSlice(kind), func(snap *Snapshot) bool {
		if kind == ir.KindReaction {
			snap.Reactions = replaceSummaries(items)
		} else {
			snap.Species = replaceSummaries(items)
		}
		return true
	})
}

// AddDetails merges entries into the detail cache for kind.
func (s *Store) AddDetails(kind ir.Kind, add ir.DetailCache) {
	s.update(DetailsSlice(kind), func(snap *Snapshot) bool {
		if kind == ir.KindReaction {
			snap.ReactionDetails = mergeDetails(snap.ReactionDetails, add)
		} else {
			snap.SpeciesDetails = mergeDetails(snap.SpeciesDetails, add)
		}
		return true
	})
}

// SetReactionMode flips between species and reaction browsing. Other
// slices are left untouched.
func (s *Store) SetReactionMode(enabled bool) {
	s.update(SliceReactionMode, func(snap *Snapshot) bool {
		if snap.ReactionMode == enabled {
			return false
		}
		snap.ReactionMode = enabled
		return true
	})
}

// AppendSubmission adds a record and returns its position. The position
// is assigned under the lock, so concurrent appends never share an index.
func (s *Store) AppendSubmission(sub ir.Submission) int {
	var index int
	s.update(SliceSubmissions, func(snap *Snapshot) bool {
		index = len(snap.Submissions)
		snap.Submissions = appendSubmission(snap.Submissions, sub)
		return true
	})
	return index
}

// UpdateSubmission updates the record at index in place. Updates that
// break the Submitted -> {Complete, Error} rule are rejected.
func (s *Store) UpdateSubmission(index int, upd ir.SubmissionUpdate) error {
	var err error
	s.update(SliceSubmissions, func(snap *Snapshot) bool {
		var next []ir.Submission
		next, err = updateSubmission(snap.Submissions, index, upd)
		if err != nil {
			return false
		}
		snap.Submissions = next
		return true
	})
	return err
}

// SetCollections replaces the collection list wholesale.
func (s *Store) SetCollections(items []ir.Collection) {
	s.update(SliceCollections, func(snap *Snapshot) bool {
		snap.Collections = replaceCollections(items)
		return true
	})
}

// StageSpecies appends to the staged species list.
func (s *Store) StageSpecies(smiles string) {
	s.update(SliceStagedSpecies, func(snap *Snapshot) bool {
		snap.StagedSpecies = appendStaged(snap.StagedSpecies, smiles)
		return true
	})
}

// ClearStagedSpecies empties the staged species list.
func (s *Store) ClearStagedSpecies() {
	s.update(SliceStagedSpecies, func(snap *Snapshot) bool {
		if len(snap.StagedSpecies) == 0 {
			return false
		}
		snap.StagedSpecies = []string{}
		return true
	})
}

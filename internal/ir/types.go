package ir

import "fmt"

// Kind selects the endpoint family and state slices an intent addresses.
type Kind string

const (
	KindSpecies  Kind = "species"
	KindReaction Kind = "reaction"
)

// KindFor maps the reaction-mode flag to a Kind.
func KindFor(reactionMode bool) Kind {
	if reactionMode {
		return KindReaction
	}
	return KindSpecies
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindSpecies || k == KindReaction
}

// ParseKind accepts "species" or "reaction".
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q: must be species or reaction", s)
	}
	return k, nil
}

// User is the authenticated account returned by the session endpoint.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Admin bool   `json:"admin,omitempty"`
}

// Credentials is the login and registration payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Connectivity is one summary row of a species or reaction listing.
//
// The ID is the connectivity ID: stable across stereoisomers and used as
// the key of the detail cache.
type Connectivity struct {
	ID            int64    `json:"id"`
	Formula       string   `json:"formula"`
	SVGString     string   `json:"svg_string,omitempty"`
	ConnSmiles    string   `json:"conn_smiles,omitempty"`
	ConnInchi     string   `json:"conn_inchi,omitempty"`
	ConnInchiHash string   `json:"conn_inchi_hash,omitempty"`
	ConnAmchi     string   `json:"conn_amchi,omitempty"`
	ConnAmchiHash string   `json:"conn_amchi_hash,omitempty"`
	RSVGStrings   []string `json:"r_svg_strings,omitempty"`
	PSVGStrings   []string `json:"p_svg_strings,omitempty"`
}

// Detail is one stereoisomer (or transition state) record belonging to a
// connectivity ID.
type Detail struct {
	ID         int64  `json:"id"`
	ConnID     int64  `json:"conn_id"`
	Geometry   string `json:"geometry"`
	Smiles     string `json:"smiles,omitempty"`
	Inchi      string `json:"inchi,omitempty"`
	Amchi      string `json:"amchi,omitempty"`
	AmchiKey   string `json:"amchi_key,omitempty"`
	EstateID   int64  `json:"estate_id,omitempty"`
	SpinMult   int64  `json:"spin_mult,omitempty"`
	Formula    string `json:"formula,omitempty"`
	SVGString  string `json:"svg_string,omitempty"`
	ConnSmiles string `json:"conn_smiles,omitempty"`
}

// DetailCache maps connectivity IDs to their detail records.
type DetailCache map[int64][]Detail

// Collection is a user-curated grouping of species and reaction summaries.
type Collection struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Species   []Connectivity `json:"species"`
	Reactions []Connectivity `json:"reactions"`
}

// SubmissionStatus tracks one submission through its lifecycle.
type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "Submitted"
	StatusComplete  SubmissionStatus = "Complete"
	StatusError     SubmissionStatus = "Error"
)

// CanTransition reports whether a submission may move from s to next.
// Submitted moves to Complete or Error exactly once; terminal states never move.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	return s == StatusSubmitted && (next == StatusComplete || next == StatusError)
}

// Submission records one user submission in the session's status table.
type Submission struct {
	Smiles     string           `json:"smiles"`
	IsReaction bool             `json:"is_reaction"`
	Status     SubmissionStatus `json:"status"`
	Message    string           `json:"message,omitempty"`
}

// Kind returns the endpoint family the submission was posted to.
func (s Submission) Kind() Kind {
	return KindFor(s.IsReaction)
}

// SubmissionUpdate is a positional in-place update of a submission.
type SubmissionUpdate struct {
	Status  SubmissionStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

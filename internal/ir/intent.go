package ir

import (
	"net/url"
	"strings"
)

// Op names an intent. Values match the wire action types of the catalog
// frontend so journals and scenarios read the same in both worlds.
type Op string

const (
	OpGetUser               Op = "GET_USER"
	OpLoginUser             Op = "LOGIN_USER"
	OpLogoutUser            Op = "LOGOUT_USER"
	OpRegisterUser          Op = "REGISTER_USER"
	OpGetSpecies            Op = "GET_SPECIES"
	OpGetReactions          Op = "GET_REACTIONS"
	OpGetDetails            Op = "GET_DETAILS"
	OpDeleteItem            Op = "DELETE_ITEM"
	OpUpdateItemGeometry    Op = "UPDATE_ITEM_GEOMETRY"
	OpPostSubmission        Op = "POST_SUBMISSION"
	OpGetCollections        Op = "GET_COLLECTIONS"
	OpPostNewCollection     Op = "POST_NEW_COLLECTION"
	OpPostCollectionItems   Op = "POST_COLLECTION_ITEMS"
	OpDeleteCollectionItems Op = "DELETE_COLLECTION_ITEMS"
	OpDeleteCollection      Op = "DELETE_COLLECTION"
	OpSetRetypeError        Op = "SET_RETYPE_ERROR"
	OpSetReactionMode       Op = "SET_REACTION_MODE"
	OpStageSpecies          Op = "STAGE_SPECIES"
	OpClearStagedSpecies    Op = "CLEAR_STAGED_SPECIES"
	OpPostStagedSpecies     Op = "POST_STAGED_SPECIES"
)

// Local reports whether the op only touches state and never reaches the
// backend.
func (o Op) Local() bool {
	switch o {
	case OpSetRetypeError, OpSetReactionMode, OpStageSpecies, OpClearStagedSpecies:
		return true
	}
	return false
}

// Intent is a tagged union over every dispatchable operation.
// Each variant carries its own payload type.
type Intent interface {
	Op() Op
	intentMarker()
}

// Kinded is implemented by intents whose endpoint family follows the
// reaction-mode flag unless a Kind was set explicitly.
type Kinded interface {
	Intent
	TargetKind() Kind
	withKind(k Kind) Intent
}

// ResolveKind fills in an unset Kind from the reaction-mode flag.
// Intents that are not Kinded, or already carry a Kind, are returned as is.
func ResolveKind(in Intent, reactionMode bool) Intent {
	k, ok := in.(Kinded)
	if !ok || k.TargetKind() != "" {
		return in
	}
	return k.withKind(KindFor(reactionMode))
}

// Query filters a summary listing by formula.
type Query struct {
	Formula string `json:"formula,omitempty"`
	Partial bool   `json:"partial,omitempty"`
}

// Encode renders the query string. The partial flag is a bare key with no
// value, and only accompanies a formula.
func (q Query) Encode() string {
	f := strings.TrimSpace(q.Formula)
	if f == "" {
		return ""
	}
	s := "formula=" + url.QueryEscape(f)
	if q.Partial {
		s += "&partial"
	}
	return s
}

// User intents.

type GetUser struct{}

type LoginUser struct {
	Credentials
}

type LogoutUser struct{}

type RegisterUser struct {
	Credentials
}

// Listing and detail intents.

type GetSpecies struct {
	Query
}

type GetReactions struct {
	Query
}

// GetDetails fetches the stereoisomer records for one connectivity ID.
type GetDetails struct {
	ConnID int64 `json:"conn_id"`
	Kind   Kind  `json:"kind,omitempty"`
}

// DeleteItem removes a connectivity and refreshes the unfiltered listing.
type DeleteItem struct {
	ConnID int64 `json:"conn_id"`
	Kind   Kind  `json:"kind,omitempty"`
}

// UpdateItemGeometry replaces the XYZ block of one species, or of one
// reaction's transition state.
type UpdateItemGeometry struct {
	ID       int64  `json:"id"`
	ConnID   int64  `json:"conn_id"`
	Geometry string `json:"geometry"`
	Kind     Kind   `json:"kind,omitempty"`
}

// PostSubmission submits a new species or reaction as SMILES.
type PostSubmission struct {
	Smiles     string `json:"smiles"`
	IsReaction bool   `json:"is_reaction,omitempty"`
}

// Collection intents.

type GetCollections struct{}

type PostNewCollection struct {
	Name string `json:"name"`
}

type PostCollectionItems struct {
	CollID  int64   `json:"coll_id"`
	ConnIDs []int64 `json:"conn_ids"`
	Kind    Kind    `json:"kind,omitempty"`
}

type DeleteCollectionItems struct {
	CollID  int64   `json:"coll_id"`
	ConnIDs []int64 `json:"conn_ids"`
	Kind    Kind    `json:"kind,omitempty"`
}

type DeleteCollection struct {
	CollID int64 `json:"coll_id"`
}

// Local intents.

type SetRetypeError struct{}

type SetReactionMode struct {
	Enabled bool `json:"enabled"`
}

type StageSpecies struct {
	Smiles string `json:"smiles"`
}

type ClearStagedSpecies struct{}

// PostStagedSpecies batch-submits the staged species list.
type PostStagedSpecies struct{}

func (GetUser) Op() Op               { return OpGetUser }
func (LoginUser) Op() Op             { return OpLoginUser }
func (LogoutUser) Op() Op            { return OpLogoutUser }
func (RegisterUser) Op() Op          { return OpRegisterUser }
func (GetSpecies) Op() Op            { return OpGetSpecies }
func (GetReactions) Op() Op          { return OpGetReactions }
func (GetDetails) Op() Op            { return OpGetDetails }
func (DeleteItem) Op() Op            { return OpDeleteItem }
func (UpdateItemGeometry) Op() Op    { return OpUpdateItemGeometry }
func (PostSubmission) Op() Op        { return OpPostSubmission }
func (GetCollections) Op() Op        { return OpGetCollections }
func (PostNewCollection) Op() Op     { return OpPostNewCollection }
func (PostCollectionItems) Op() Op   { return OpPostCollectionItems }
func (DeleteCollectionItems) Op() Op { return OpDeleteCollectionItems }
func (DeleteCollection) Op() Op      { return OpDeleteCollection }
func (SetRetypeError) Op() Op        { return OpSetRetypeError }
func (SetReactionMode) Op() Op       { return OpSetReactionMode }
func (StageSpecies) Op() Op          { return OpStageSpecies }
func (ClearStagedSpecies) Op() Op    { return OpClearStagedSpecies }
func (PostStagedSpecies) Op() Op     { return OpPostStagedSpecies }

func (GetUser) intentMarker()               {}
func (LoginUser) intentMarker()             {}
func (LogoutUser) intentMarker()            {}
func (RegisterUser) intentMarker()          {}
func (GetSpecies) intentMarker()            {}
func (GetReactions) intentMarker()          {}
func (GetDetails) intentMarker()            {}
func (DeleteItem) intentMarker()            {}
func (UpdateItemGeometry) intentMarker()    {}
func (PostSubmission) intentMarker()        {}
func (GetCollections) intentMarker()        {}
func (PostNewCollection) intentMarker()     {}
func (PostCollectionItems) intentMarker()   {}
func (DeleteCollectionItems) intentMarker() {}
func (DeleteCollection) intentMarker()      {}
func (SetRetypeError) intentMarker()        {}
func (SetReactionMode) intentMarker()       {}
func (StageSpecies) intentMarker()          {}
func (ClearStagedSpecies) intentMarker()    {}
func (PostStagedSpecies) intentMarker()     {}

func (i GetDetails) TargetKind() Kind            { return i.Kind }
func (i DeleteItem) TargetKind() Kind            { return i.Kind }
func (i UpdateItemGeometry) TargetKind() Kind    { return i.Kind }
func (i PostCollectionItems) TargetKind() Kind   { return i.Kind }
func (i DeleteCollectionItems) TargetKind() Kind { return i.Kind }

func (i GetDetails) withKind(k Kind) Intent            { i.Kind = k; return i }
func (i DeleteItem) withKind(k Kind) Intent            { i.Kind = k; return i }
func (i UpdateItemGeometry) withKind(k Kind) Intent    { i.Kind = k; return i }
func (i PostCollectionItems) withKind(k Kind) Intent   { i.Kind = k; return i }
func (i DeleteCollectionItems) withKind(k Kind) Intent { i.Kind = k; return i }

// ListIntent returns the summary fetch for kind with the given query.
func ListIntent(kind Kind, q Query) Intent {
	if kind == KindReaction {
		return GetReactions{Query: q}
	}
	return GetSpecies{Query: q}
}

package state

import (
	"errors"
	"fmt"

	"github.com/roach88/flame/internal/ir"
)

// Messages held by the error slice.
const (
	LoginErrorMessage        = "Your credentials were not accepted. Please try again."
	RegistrationErrorMessage = "This email is already registered. Please log in instead."
	RetypeErrorMessage       = "The re-typed password does not match. Please try again."
	CodelessErrorMessage     = "Something isn't right on the server..."
)

// ErrInvalidTransition is returned when a submission update would move a
// record backwards or out of a terminal status.
var ErrInvalidTransition = errors.New("invalid submission status transition")

// The reducers below are pure: they never mutate their inputs, so a
// snapshot handed out earlier stays valid after later updates.

func replaceSummaries(items []ir.Connectivity) []ir.Connectivity {
	out := make([]ir.Connectivity, len(items))
	copy(out, items)
	return out
}

func replaceCollections(items []ir.Collection) []ir.Collection {
	out := make([]ir.Collection, len(items))
	copy(out, items)
	return out
}

func replaceUser(u ir.User) *ir.User {
	return &u
}

// mergeDetails folds add into cur. Keys in add overwrite; all other keys
// are kept. Nothing is ever evicted.
func mergeDetails(cur, add ir.DetailCache) ir.DetailCache {
	out := make(ir.DetailCache, len(cur)+len(add))
	for k, v := range cur {
		out[k] = v
	}
	for k, v := range add {
		records := make([]ir.Detail, len(v))
		copy(records, v)
		out[k] = records
	}
	return out
}

func appendSubmission(cur []ir.Submission, s ir.Submission) []ir.Submission {
	out := make([]ir.Submission, len(cur), len(cur)+1)
	copy(out, cur)
	return append(out, s)
}

// updateSubmission applies a positional update. The status must follow
// Submitted -> {Complete, Error}; the message is replaced along with it.
func updateSubmission(cur []ir.Submission, index int, upd ir.SubmissionUpdate) ([]ir.Submission, error) {
	if index < 0 || index >= len(cur) {
		return nil, fmt.Errorf("submission %d: index out of range (have %d)", index, len(cur))
	}
	if !cur[index].Status.CanTransition(upd.Status) {
		return nil, fmt.Errorf("submission %d: %s -> %s: %w", index, cur[index].Status, upd.Status, ErrInvalidTransition)
	}
	out := make([]ir.Submission, len(cur))
	copy(out, cur)
	out[index].Status = upd.Status
	out[index].Message = upd.Message
	return out, nil
}

func appendStaged(cur []string, smiles string) []string {
	out := make([]string, len(cur), len(cur)+1)
	copy(out, cur)
	return append(out, smiles)
}

// Package chem holds the small amount of chemistry-aware text handling the
// client needs: SMILES normalization for submission, formula display and
// search matching, XYZ geometry parsing, and the rendering collaborator
// interface.
//
// Nothing here parses chemistry. SMILES layout and 3D rendering belong to
// external toolkits consumed through Renderer.
package chem

import (
	"regexp"
	"strings"
)

var (
	plusSeparator = regexp.MustCompile(`\s+\+\s+`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// NormalizeSubmission rewrites user-typed SMILES into the form the backend
// accepts: "A + B" becomes "A.B", then all remaining whitespace is removed.
//
//	NormalizeSubmission("CC + [OH]") // "CC.[OH]"
func NormalizeSubmission(smiles string) string {
	s := plusSeparator.ReplaceAllString(smiles, ".")
	return whitespace.ReplaceAllString(s, "")
}

// SplitComponents is the display-side counterpart of NormalizeSubmission:
// it only performs the "A + B" to "A.B" rewrite, leaving other whitespace
// for the renderer to reject.
func SplitComponents(smiles string) string {
	return plusSeparator.ReplaceAllString(smiles, ".")
}

// PrettyReactionSmiles spaces out component and reaction separators for
// display: "CC.O>>CCO" becomes "CC + O >> CCO".
func PrettyReactionSmiles(smiles string) string {
	s := strings.ReplaceAll(smiles, ".", " + ")
	return strings.Replace(s, ">>", " >> ", 1)
}

// IsReactionSmiles reports whether s contains a reaction arrow.
func IsReactionSmiles(s string) bool {
	return strings.Contains(s, ">>")
}

// PlausibleSmiles performs a cheap lexical check: allowed characters only,
// balanced brackets and parentheses, no whitespace. It is not a parser; it
// only lets callers skip rendering input that cannot possibly be valid.
func PlausibleSmiles(s string) bool {
	if s == "" {
		return false
	}
	var paren, bracket int
	for _, r := range s {
		switch {
		case r == '(':
			paren++
		case r == ')':
			paren--
		case r == '[':
			if bracket > 0 {
				return false
			}
			bracket++
		case r == ']':
			bracket--
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case strings.ContainsRune(".=#$:/\\@+-%*>~", r):
		default:
			return false
		}
		if paren < 0 || bracket < 0 {
			return false
		}
	}
	return paren == 0 && bracket == 0
}

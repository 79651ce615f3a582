package chem

import (
	"strings"

	"github.com/roach88/flame/internal/ir"
)

var subscripts = strings.NewReplacer(
	"0", "₀", "1", "₁", "2", "₂", "3", "₃", "4", "₄",
	"5", "₅", "6", "₆", "7", "₇", "8", "₈", "9", "₉",
)

// FormatFormula renders element counts as Unicode subscripts: "CH4O" becomes "CH₄O".
func FormatFormula(formula string) string {
	return subscripts.Replace(formula)
}

// MatchesFormula applies the backend's search rule: exact match, or
// substring match when partial is set. An empty query matches everything.
func MatchesFormula(formula string, q ir.Query) bool {
	f := strings.TrimSpace(q.Formula)
	if f == "" {
		return true
	}
	if q.Partial {
		return strings.Contains(formula, f)
	}
	return formula == f
}

// FormulaGroup is a run of adjacent summaries sharing one formula.
type FormulaGroup struct {
	Formula string
	Items   []ir.Connectivity
}

// GroupByFormula splits a listing into runs of equal formula. Grouping is by
// adjacency only: the backend sorts by formula, and an unsorted listing
// yields one group per run.
func GroupByFormula(items []ir.Connectivity) []FormulaGroup {
	var groups []FormulaGroup
	for _, item := range items {
		n := len(groups)
		if n > 0 && groups[n-1].Formula == item.Formula {
			groups[n-1].Items = append(groups[n-1].Items, item)
			continue
		}
		groups = append(groups, FormulaGroup{Formula: item.Formula, Items: []ir.Connectivity{item}})
	}
	return groups
}

package devserver

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// organic lists the bracket-free SMILES atoms, two-letter symbols first so
// "Cl" is not read as C followed by l.
var organic = []string{"Cl", "Br", "B", "C", "N", "O", "P", "S", "F", "I", "b", "c", "n", "o", "p", "s"}

// heavyAtomFormula counts the atoms written in smiles and renders them in
// Hill order. Implicit hydrogens are not counted, so "CCO" gives "C2O";
// fixtures that need exact formulas set them explicitly. For reaction
// SMILES only the reactant side is counted.
func heavyAtomFormula(smiles string) string {
	if i := strings.Index(smiles, ">>"); i >= 0 {
		smiles = smiles[:i]
	}

	counts := map[string]int{}
	for i := 0; i < len(smiles); {
		if smiles[i] == '[' {
			end := strings.IndexByte(smiles[i:], ']')
			if end < 0 {
				break
			}
			countBracketAtom(smiles[i+1:i+end], counts)
			i += end + 1
			continue
		}
		matched := false
		for _, sym := range organic {
			if strings.HasPrefix(smiles[i:], sym) {
				counts[capitalize(sym)]++
				i += len(sym)
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return hill(counts)
}

// countBracketAtom reads "[13CH3+]"-style atoms: isotope, symbol, then an
// optional explicit hydrogen count.
func countBracketAtom(atom string, counts map[string]int) {
	atom = strings.TrimLeftFunc(atom, unicode.IsDigit)
	if atom == "" {
		return
	}
	n := 1
	if len(atom) > 1 && unicode.IsLower(rune(atom[1])) && atom[1] != 'h' {
		n = 2
	}
	sym := capitalize(atom[:n])
	counts[sym]++

	rest := atom[n:]
	if sym != "H" {
		if h := strings.IndexByte(rest, 'H'); h >= 0 {
			digits := rest[h+1:]
			end := 0
			for end < len(digits) && unicode.IsDigit(rune(digits[end])) {
				end++
			}
			k := 1
			if end > 0 {
				k, _ = strconv.Atoi(digits[:end])
			}
			counts["H"] += k
		}
	}
}

func capitalize(sym string) string {
	return strings.ToUpper(sym[:1]) + sym[1:]
}

// hill renders counts with C first, H second, then alphabetically; without
// carbon every element is alphabetical.
func hill(counts map[string]int) string {
	var keys []string
	for k := range counts {
		if _, ok := counts["C"]; ok && (k == "C" || k == "H") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, ok := counts["C"]; ok {
		head := []string{"C"}
		if _, ok := counts["H"]; ok {
			head = append(head, "H")
		}
		keys = append(head, keys...)
	}

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		if counts[k] > 1 {
			b.WriteString(strconv.Itoa(counts[k]))
		}
	}
	return b.String()
}

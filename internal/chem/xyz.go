package chem

import (
	"fmt"
	"strconv"
	"strings"
)

// Atom is one line of an XYZ block. Coordinates are in angstrom.
type Atom struct {
	Symbol  string
	X, Y, Z float64
}

// Geometry is a parsed XYZ coordinate block.
type Geometry struct {
	Comment string
	Atoms   []Atom
}

// XYZError reports a malformed XYZ block with its 1-based line number.
type XYZError struct {
	Line    int
	Message string
}

func (e *XYZError) Error() string {
	return fmt.Sprintf("xyz line %d: %s", e.Line, e.Message)
}

// ParseXYZ parses the standard XYZ format: an atom count, a comment line,
// then one "Symbol x y z" line per atom. Trailing blank lines are ignored;
// the atom count must match the atom lines exactly.
func ParseXYZ(src string) (Geometry, error) {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return Geometry{}, &XYZError{Line: 1, Message: "empty geometry"}
	}

	count, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || count < 1 {
		return Geometry{}, &XYZError{Line: 1, Message: fmt.Sprintf("invalid atom count %q", strings.TrimSpace(lines[0]))}
	}
	if len(lines) != count+2 {
		return Geometry{}, &XYZError{
			Line:    len(lines),
			Message: fmt.Sprintf("expected %d atom lines, found %d", count, max(len(lines)-2, 0)),
		}
	}

	g := Geometry{Comment: strings.TrimSpace(lines[1]), Atoms: make([]Atom, 0, count)}
	for i, line := range lines[2:] {
		lineNo := i + 3
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return Geometry{}, &XYZError{Line: lineNo, Message: "expected symbol and three coordinates"}
		}
		var coords [3]float64
		for j, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Geometry{}, &XYZError{Line: lineNo, Message: fmt.Sprintf("invalid coordinate %q", f)}
			}
			coords[j] = v
		}
		g.Atoms = append(g.Atoms, Atom{Symbol: fields[0], X: coords[0], Y: coords[1], Z: coords[2]})
	}
	return g, nil
}

// Composition counts atoms per element symbol, in order of first appearance.
func (g Geometry) Composition() string {
	counts := map[string]int{}
	var order []string
	for _, a := range g.Atoms {
		if counts[a.Symbol] == 0 {
			order = append(order, a.Symbol)
		}
		counts[a.Symbol]++
	}
	var b strings.Builder
	for _, sym := range order {
		b.WriteString(sym)
		if n := counts[sym]; n > 1 {
			b.WriteString(strconv.Itoa(n))
		}
	}
	return b.String()
}

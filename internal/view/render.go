package view

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/flame/internal/chem"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

// Styles are the lipgloss styles used by Text.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Formula lipgloss.Style
	Muted   lipgloss.Style
	OK      lipgloss.Style
	Error   lipgloss.Style
	Pending lipgloss.Style
}

// NewStyles builds styles bound to r. A renderer for a non-terminal writer
// drops all color, so output to files and pipes stays plain text.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3")),
		Header:  r.NewStyle().Bold(true),
		Formula: r.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		Muted:   r.NewStyle().Faint(true),
		OK:      r.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("#e53935")),
		Pending: r.NewStyle().Foreground(lipgloss.Color("#FFC107")),
	}
}

// Text renders state slices as terminal text.
type Text struct {
	styles   Styles
	title    cases.Caser
	renderer chem.Renderer
}

// NewText creates a Text styled for w. renderer, when non-nil, supplies
// formulas for staged species previews.
func NewText(w io.Writer, renderer chem.Renderer) *Text {
	return &Text{
		styles:   NewStyles(lipgloss.NewRenderer(w)),
		title:    cases.Title(language.English),
		renderer: renderer,
	}
}

func (t *Text) heading(s string) string {
	return t.styles.Title.Render(t.title.String(s))
}

func plural(kind ir.Kind) string {
	if kind == ir.KindReaction {
		return "reactions"
	}
	return "species"
}

func (t *Text) displaySmiles(kind ir.Kind, smiles string) string {
	if kind == ir.KindReaction || chem.IsReactionSmiles(smiles) {
		return chem.PrettyReactionSmiles(smiles)
	}
	return smiles
}

// Summaries renders a listing grouped by formula. A formula header is
// printed whenever the formula differs from the previous item's.
func (t *Text) Summaries(kind ir.Kind, items []ir.Connectivity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)\n", t.heading(plural(kind)), len(items))
	if len(items) == 0 {
		b.WriteString(t.styles.Muted.Render("  no results") + "\n")
		return b.String()
	}
	for _, g := range chem.GroupByFormula(items) {
		b.WriteString(t.styles.Formula.Render(chem.FormatFormula(g.Formula)) + "\n")
		for _, item := range g.Items {
			fmt.Fprintf(&b, "  %-6s %s\n", "#"+strconv.FormatInt(item.ID, 10), t.displaySmiles(kind, item.ConnSmiles))
		}
	}
	return b.String()
}

// Details renders the records of one connectivity with a geometry summary
// per record: atom count and composition, or why the geometry is unusable.
func (t *Text) Details(kind ir.Kind, connID int64, records []ir.Detail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", t.heading(string(kind)), connID)
	if len(records) == 0 {
		b.WriteString(t.styles.Muted.Render("  no records") + "\n")
		return b.String()
	}
	if f := records[0].Formula; f != "" {
		b.WriteString(t.styles.Formula.Render(chem.FormatFormula(f)) + "\n")
	}

	tbl := newTable("ID", "SMILES", "SPIN", "GEOMETRY")
	for _, r := range records {
		tbl.addRow(strconv.FormatInt(r.ID, 10), t.displaySmiles(kind, r.Smiles), strconv.FormatInt(r.SpinMult, 10), geometrySummary(r.Geometry))
	}
	b.WriteString(tbl.render(t.styles))
	return b.String()
}

func geometrySummary(src string) string {
	if strings.TrimSpace(src) == "" {
		return "none"
	}
	g, err := chem.ParseXYZ(src)
	if err != nil {
		return "invalid (" + err.Error() + ")"
	}
	return fmt.Sprintf("%d atoms, %s", len(g.Atoms), g.Composition())
}

// DetailCache renders every cached connectivity in ID order.
func (t *Text) DetailCache(kind ir.Kind, cache ir.DetailCache) string {
	ids := make([]int64, 0, len(cache))
	for id := range cache {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = t.Details(kind, id, cache[id])
	}
	return strings.Join(parts, "\n")
}

// Collections renders each collection with its members.
func (t *Text) Collections(colls []ir.Collection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)\n", t.heading("collections"), len(colls))
	for _, c := range colls {
		fmt.Fprintf(&b, "%s %s\n", t.styles.Header.Render(c.Name),
			t.styles.Muted.Render(fmt.Sprintf("#%d, %d species, %d reactions", c.ID, len(c.Species), len(c.Reactions))))
		for _, s := range c.Species {
			fmt.Fprintf(&b, "  species  #%-5d %s %s\n", s.ID, chem.FormatFormula(s.Formula), s.ConnSmiles)
		}
		for _, r := range c.Reactions {
			fmt.Fprintf(&b, "  reaction #%-5d %s %s\n", r.ID, chem.FormatFormula(r.Formula), chem.PrettyReactionSmiles(r.ConnSmiles))
		}
	}
	return b.String()
}

// Submissions renders the session's submission status table.
func (t *Text) Submissions(subs []ir.Submission) string {
	var b strings.Builder
	b.WriteString(t.heading("submissions") + "\n")
	if len(subs) == 0 {
		b.WriteString(t.styles.Muted.Render("  nothing submitted") + "\n")
		return b.String()
	}

	tbl := newTable("#", "SMILES", "KIND", "STATUS", "MESSAGE")
	for i, s := range subs {
		tbl.addRow(strconv.Itoa(i+1), t.displaySmiles(s.Kind(), s.Smiles), string(s.Kind()), t.status(s.Status), s.Message)
	}
	b.WriteString(tbl.render(t.styles))
	return b.String()
}

func (t *Text) status(s ir.SubmissionStatus) string {
	switch s {
	case ir.StatusComplete:
		return t.styles.OK.Render(string(s))
	case ir.StatusError:
		return t.styles.Error.Render(string(s))
	}
	return t.styles.Pending.Render(string(s))
}

// Staged renders the staged species list. Known species show their formula.
func (t *Text) Staged(smiles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)\n", t.heading("staged species"), len(smiles))
	for _, s := range smiles {
		line := "  " + s
		if r, ok := chem.TryRender(t.renderer, s); ok && r.Formula != "" {
			line += " " + t.styles.Formula.Render(chem.FormatFormula(r.Formula))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// User renders the session identity.
func (t *Text) User(u *ir.User) string {
	if u == nil {
		return t.styles.Muted.Render("Not logged in") + "\n"
	}
	s := "Logged in as " + t.styles.Header.Render(u.Email)
	if u.Admin {
		s += " " + t.styles.Pending.Render("(admin)")
	}
	return s + "\n"
}

// Error renders the error slice; an empty message renders nothing.
func (t *Text) Error(msg string) string {
	if msg == "" {
		return ""
	}
	return t.styles.Error.Render(msg) + "\n"
}

// Slice renders one named slice of snap.
func (t *Text) Slice(sl state.Slice, snap state.Snapshot) string {
	switch sl {
	case state.SliceUser:
		return t.User(snap.User)
	case state.SliceError:
		return t.Error(snap.Error)
	case state.SliceSpecies:
		return t.Summaries(ir.KindSpecies, snap.Species)
	case state.SliceReactions:
		return t.Summaries(ir.KindReaction, snap.Reactions)
	case state.SliceSpeciesDetails:
		return t.DetailCache(ir.KindSpecies, snap.SpeciesDetails)
	case state.SliceReactionDetails:
		return t.DetailCache(ir.KindReaction, snap.ReactionDetails)
	case state.SliceReactionMode:
		return "Browsing " + t.styles.Header.Render(plural(snap.Kind())) + "\n"
	case state.SliceSubmissions:
		return t.Submissions(snap.Submissions)
	case state.SliceCollections:
		return t.Collections(snap.Collections)
	case state.SliceStagedSpecies:
		return t.Staged(snap.StagedSpecies)
	}
	return ""
}

// table is a fixed-column text table sized to its widest cells.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (tb *table) addRow(cells ...string) {
	tb.rows = append(tb.rows, cells)
}

func (tb *table) render(styles Styles) string {
	widths := make([]int, len(tb.headers))
	for i, h := range tb.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range tb.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var b strings.Builder
	line := func(cells []string, style *lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if style != nil {
				cell = style.Render(cell)
			}
			if i < len(cells)-1 {
				cell += strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			}
			parts[i] = cell
		}
		b.WriteString("  " + strings.TrimRight(strings.Join(parts, "  "), " ") + "\n")
	}
	line(tb.headers, &styles.Header)
	for _, row := range tb.rows {
		line(row, nil)
	}
	return b.String()
}

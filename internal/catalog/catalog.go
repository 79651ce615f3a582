// Package catalog maps intent ops to backend routes.
//
// Routes are declared in CUE and validated against an embedded schema, so a
// deployment targeting a backend variant can ship its own route file
// instead of patching the client. The default catalog describes the
// flame-data API.
package catalog

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/roach88/flame/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE []byte

// Strategy is how concurrent dispatches of one op relate.
type Strategy string

const (
	// StrategyLatest cancels any in-flight dispatch of the same op.
	StrategyLatest Strategy = "latest"
	// StrategyEvery runs each dispatch independently.
	StrategyEvery Strategy = "every"
)

// Route is the backend endpoint serving one op.
type Route struct {
	Op     ir.Op
	Method string

	// Path is the template used for every kind; KindPaths overrides it
	// per kind when the backend names the families differently.
	Path      string
	KindPaths map[ir.Kind]string

	Strategy  Strategy
	Protected bool
}

// Template returns the path template for kind.
func (r Route) Template(kind ir.Kind) string {
	if p, ok := r.KindPaths[kind]; ok {
		return p
	}
	return r.Path
}

// Resolve expands the template for kind. {kind} becomes the kind name and
// every other {name} is looked up in params and path-escaped. A placeholder
// with no value is an error.
func (r Route) Resolve(kind ir.Kind, params map[string]string) (string, error) {
	tmpl := r.Template(kind)
	if tmpl == "" {
		return "", fmt.Errorf("route %s: no path for kind %q", r.Op, kind)
	}

	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("route %s: unterminated placeholder in %q", r.Op, tmpl)
		}
		name := rest[open+1 : open+end]
		b.WriteString(rest[:open])

		switch {
		case name == "kind":
			if !kind.Valid() {
				return "", fmt.Errorf("route %s: placeholder {kind} needs species or reaction", r.Op)
			}
			b.WriteString(string(kind))
		case params[name] != "":
			b.WriteString(url.PathEscape(params[name]))
		default:
			return "", fmt.Errorf("route %s: no value for placeholder {%s}", r.Op, name)
		}
		rest = rest[open+end+1:]
	}
	return b.String(), nil
}

// Catalog is an immutable set of routes keyed by op.
type Catalog struct {
	name   string
	routes map[ir.Op]Route
}

// Name identifies where the catalog came from (file name or "default").
func (c *Catalog) Name() string {
	return c.name
}

// Route returns the route for op.
func (c *Catalog) Route(op ir.Op) (Route, bool) {
	r, ok := c.routes[op]
	return r, ok
}

// Routes returns every route ordered by op.
func (c *Catalog) Routes() []Route {
	out := make([]Route, 0, len(c.routes))
	for _, r := range c.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// Default returns the embedded flame-data catalog.
// Panics if the embedded catalog does not compile, which is a build defect.
func Default() *Catalog {
	c, err := Compile(defaultCUE, "default.cue")
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default does not compile: %v", err))
	}
	c.name = "default"
	return c
}

// Load compiles a catalog file. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Compile(src, path)
}

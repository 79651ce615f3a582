package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/flame/internal/ir"
)

// CompileError is a catalog defect with its source position, when known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses CUE source into a Catalog.
//
// The source is unified with the embedded schema, so unknown methods,
// relative paths and misspelled strategies fail here with positions.
// Every remote op must have exactly one route and every route must name a
// known op.
func Compile(src []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	routesVal := unified.LookupPath(cue.ParsePath("routes"))
	if !routesVal.Exists() {
		return nil, &CompileError{Field: "routes", Message: "routes is required", Pos: v.Pos()}
	}

	iter, err := routesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	known := make(map[ir.Op]bool)
	for _, op := range ir.Ops() {
		known[op] = true
	}

	c := &Catalog{name: filename, routes: make(map[ir.Op]Route)}
	for iter.Next() {
		label := iter.Label()
		op := ir.Op(label)
		if !known[op] {
			return nil, &CompileError{
				Field:   "routes." + label,
				Message: "unknown op",
				Pos:     iter.Value().Pos(),
			}
		}
		if op.Local() {
			return nil, &CompileError{
				Field:   "routes." + label,
				Message: "op is handled locally and cannot have a route",
				Pos:     iter.Value().Pos(),
			}
		}
		r, err := compileRoute(op, iter.Value())
		if err != nil {
			return nil, err
		}
		c.routes[op] = r
	}

	for _, op := range ir.Ops() {
		if op.Local() {
			continue
		}
		if _, ok := c.routes[op]; !ok {
			return nil, &CompileError{
				Field:   "routes." + string(op),
				Message: "no route declared",
				Pos:     routesVal.Pos(),
			}
		}
	}

	return c, nil
}

// compileRoute reads one #Route value.
func compileRoute(op ir.Op, v cue.Value) (Route, error) {
	field := "routes." + string(op)
	r := Route{Op: op}

	method, err := stringField(v, "method")
	if err != nil {
		return r, err
	}
	r.Method = method

	strategy, err := stringField(v, "strategy")
	if err != nil {
		return r, err
	}
	r.Strategy = Strategy(strategy)

	protected, _ := v.LookupPath(cue.ParsePath("protected")).Default()
	r.Protected, err = protected.Bool()
	if err != nil {
		return r, formatCUEError(err)
	}

	pathVal := v.LookupPath(cue.ParsePath("path"))
	if p, err := pathVal.String(); err == nil {
		r.Path = p
		return r, nil
	}

	species, err := stringField(pathVal, "species")
	if err != nil {
		return r, err
	}
	reaction, err := stringField(pathVal, "reaction")
	if err != nil {
		return r, err
	}
	if species == "" || reaction == "" {
		return r, &CompileError{Field: field + ".path", Message: "per-kind path needs species and reaction", Pos: pathVal.Pos()}
	}
	r.KindPaths = map[ir.Kind]string{
		ir.KindSpecies:  species,
		ir.KindReaction: reaction,
	}
	return r, nil
}

// stringField reads a concrete string, resolving defaults first.
func stringField(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	f, _ = f.Default()
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError turns a CUE error into a *CompileError, using the first
// position found across the error list. Disjunction failures often carry
// no position at all; those still come back as a CompileError.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "cue", Message: err.Error()}
	}

	for _, e := range errs {
		if positions := errors.Positions(e); len(positions) > 0 {
			return &CompileError{
				Field:   "cue",
				Message: e.Error(),
				Pos:     positions[0],
			}
		}
	}

	return &CompileError{Field: "cue", Message: errs[0].Error()}
}

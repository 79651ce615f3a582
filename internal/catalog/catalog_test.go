package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flame/internal/ir"
)

func TestDefault_CoversEveryRemoteOp(t *testing.T) {
	c := Default()
	assert.Equal(t, "default", c.Name())

	for _, op := range ir.Ops() {
		_, ok := c.Route(op)
		assert.Equal(t, !op.Local(), ok, "op %s", op)
	}
}

func TestDefault_Strategies(t *testing.T) {
	c := Default()

	latest := []ir.Op{
		ir.OpGetUser, ir.OpLoginUser, ir.OpLogoutUser, ir.OpRegisterUser,
		ir.OpGetSpecies, ir.OpGetReactions, ir.OpGetCollections,
	}
	for _, op := range latest {
		r, _ := c.Route(op)
		assert.Equal(t, StrategyLatest, r.Strategy, "op %s", op)
	}

	every := []ir.Op{
		ir.OpGetDetails, ir.OpDeleteItem, ir.OpUpdateItemGeometry, ir.OpPostSubmission,
		ir.OpPostNewCollection, ir.OpPostCollectionItems, ir.OpDeleteCollectionItems,
		ir.OpDeleteCollection, ir.OpPostStagedSpecies,
	}
	for _, op := range every {
		r, _ := c.Route(op)
		assert.Equal(t, StrategyEvery, r.Strategy, "op %s", op)
	}
}

func TestDefault_ProtectedRoutes(t *testing.T) {
	c := Default()

	r, _ := c.Route(ir.OpDeleteItem)
	assert.True(t, r.Protected)
	r, _ = c.Route(ir.OpGetCollections)
	assert.True(t, r.Protected)
	r, _ = c.Route(ir.OpGetSpecies)
	assert.False(t, r.Protected)
	r, _ = c.Route(ir.OpLoginUser)
	assert.False(t, r.Protected)
}

func TestRoute_Resolve(t *testing.T) {
	c := Default()

	tests := []struct {
		op     ir.Op
		kind   ir.Kind
		params map[string]string
		want   string
	}{
		{ir.OpGetUser, "", nil, "/api/@me"},
		{ir.OpGetDetails, ir.KindReaction, map[string]string{"id": "12"}, "/api/reaction/connectivity/12"},
		{ir.OpUpdateItemGeometry, ir.KindSpecies, map[string]string{"id": "3"}, "/api/species/3"},
		{ir.OpUpdateItemGeometry, ir.KindReaction, map[string]string{"id": "3"}, "/api/reaction/ts/3"},
		{ir.OpPostCollectionItems, ir.KindSpecies, map[string]string{"coll_id": "9"}, "/api/collection/species/9"},
		{ir.OpDeleteCollection, "", map[string]string{"coll_id": "9"}, "/api/collection/9"},
	}
	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+string(tt.kind), func(t *testing.T) {
			r, ok := c.Route(tt.op)
			require.True(t, ok)
			got, err := r.Resolve(tt.kind, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoute_ResolveErrors(t *testing.T) {
	r := Route{Op: ir.OpGetDetails, Path: "/api/{kind}/connectivity/{id}"}

	_, err := r.Resolve("", map[string]string{"id": "1"})
	assert.ErrorContains(t, err, "{kind}")

	_, err = r.Resolve(ir.KindSpecies, nil)
	assert.ErrorContains(t, err, "{id}")

	bad := Route{Op: ir.OpGetDetails, Path: "/api/{kind"}
	_, err = bad.Resolve(ir.KindSpecies, nil)
	assert.ErrorContains(t, err, "unterminated")
}

func TestRoute_ResolveEscapes(t *testing.T) {
	r := Route{Op: ir.OpGetDetails, Path: "/api/x/{id}"}
	got, err := r.Resolve(ir.KindSpecies, map[string]string{"id": "a/b"})
	require.NoError(t, err)
	assert.Equal(t, "/api/x/a%2Fb", got)
}

func TestCompile_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "bad method",
			src:  `routes: GET_USER: {method: "PATCH", path: "/api/@me"}`,
			want: "cue",
		},
		{
			name: "relative path",
			src:  `routes: GET_USER: {method: "GET", path: "api/@me"}`,
			want: "cue",
		},
		{
			name: "bad strategy",
			src:  `routes: GET_USER: {method: "GET", path: "/api/@me", strategy: "sometimes"}`,
			want: "cue",
		},
		{
			name: "unknown op",
			src:  `routes: FLY_AWAY: {method: "GET", path: "/x"}`,
			want: "routes.FLY_AWAY",
		},
		{
			name: "local op",
			src:  `routes: SET_REACTION_MODE: {method: "GET", path: "/x"}`,
			want: "routes.SET_REACTION_MODE",
		},
		{
			name: "syntax",
			src:  `routes: {`,
			want: "cue",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]byte(tt.src), "variant.cue")
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.want, ce.Field)
		})
	}
}

func TestCompile_DisjunctionViolationIsCompileError(t *testing.T) {
	_, err := Compile([]byte(`routes: GET_USER: {method: "GET", path: "api/@me"}`), "variant.cue")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.NotEmpty(t, ce.Message)
	assert.True(t, strings.HasPrefix(ce.Error(), "cue: ") || ce.Pos.IsValid(), ce.Error())
}

func TestFormatCUEError(t *testing.T) {
	assert.NoError(t, formatCUEError(nil))

	var ce *CompileError
	require.ErrorAs(t, formatCUEError(cueerrors.Newf(token.NoPos, "no position")), &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.Contains(t, ce.Message, "no position")
	assert.False(t, ce.Pos.IsValid())
	assert.True(t, strings.HasPrefix(ce.Error(), "cue: "))

	require.ErrorAs(t, formatCUEError(errors.New("plain")), &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.Contains(t, ce.Message, "plain")
}

func TestCompile_MissingRoute(t *testing.T) {
	src := strings.Replace(string(defaultCUE), `DELETE_COLLECTION: {method: "DELETE", path: "/api/collection/{coll_id}", protected: true}`, "", 1)

	_, err := Compile([]byte(src), "partial.cue")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "routes.DELETE_COLLECTION", ce.Field)
	assert.Equal(t, "no route declared", ce.Message)
}

func TestLoad_VariantFile(t *testing.T) {
	src := strings.Replace(string(defaultCUE), `"/api/@me"`, `"/api/v2/me"`, 1)
	path := filepath.Join(t.TempDir(), "variant.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, c.Name())

	r, _ := c.Route(ir.OpGetUser)
	assert.Equal(t, "/api/v2/me", r.Path)
	assert.Len(t, c.Routes(), 16)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "default", c.Name())

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

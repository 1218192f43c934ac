package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/astsync/internal/ast"
	. "github.com/phobologic/astsync/internal/ast/asttest"
	"github.com/phobologic/astsync/internal/resolve"
)

// program has A.f in Core, called from Plugins directly, through a local
// alias and internally from Core; print is mocked.
func program() T {
	return App(
		Component("Core", File("core.lua",
			ID(FuncDecl("A.f", []string{"x"},
				CallStat(Chain(ID(Mocked(Var("print")), "print"), ID(Call(Var("x")), "printCall"))),
			), "f"),
			ID(LocalFunc("helper", nil,
				CallStat(Chain(Var("A"), Ref(Member("f"), "f"), ID(Call(), "internalCall"))),
			), "helper"),
		)),
		Component("Plugins", File("plugins.lua",
			CallStat(Chain(Var("A"), ID(Ref(Member("f"), "f"), "member"), ID(Call(Num(1)), "externalCall"))),
			Local([]string{"g"}, Chain(Var("A"), Ref(Member("f"), "f"))),
			ID(Local([]string{"h"}, ID(FuncExpr("h", nil), "h")), "hStat"),
			ID(Local([]string{"anon"}, At(ID(FuncExpr("", nil), "anon"), 9)), "anonStat"),
		)),
	)
}

func TestCallSiteAt(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, program())
	r := resolve.NewResolver(tree)

	cs, ok := r.CallSiteAt(ids["externalCall"])
	require.True(t, ok)
	assert.Equal(t, "A.f", cs.Name)
	assert.Equal(t, ids["member"], cs.Feature)
	assert.False(t, cs.Mocked())

	d, ok := r.Resolve(cs)
	require.True(t, ok)
	assert.Equal(t, ids["f"], d.Root)
	assert.Equal(t, "A.f", d.Name)
	assert.True(t, r.IsExternal(cs))
	assert.False(t, r.IsInternal(cs))

	_, ok = r.CallSiteAt(ids["member"])
	assert.False(t, ok, "a member is not a call")
}

func TestCallSiteInternalAndMocked(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, program())
	r := resolve.NewResolver(tree)

	internal, ok := r.CallSiteAt(ids["internalCall"])
	require.True(t, ok)
	assert.True(t, r.IsInternal(internal))
	assert.False(t, r.IsExternal(internal))

	mocked, ok := r.CallSiteAt(ids["printCall"])
	require.True(t, ok)
	assert.True(t, mocked.Mocked())
	assert.Equal(t, "print", mocked.Name)
	assert.False(t, r.IsInternal(mocked))
	assert.False(t, r.IsExternal(mocked))
}

func TestCallSiteParenthesised(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, Block(
		ID(LocalFunc("f", nil), "f"),
		CallStat(Chain(Paren(Ref(Var("f"), "f")), ID(Call(), "call"))),
	))
	cs, ok := resolve.NewResolver(tree).CallSiteAt(ids["call"])
	require.True(t, ok)
	assert.Equal(t, ast.NoNode, cs.Feature)
	assert.Empty(t, cs.Name)
	assert.True(t, cs.Mocked())
}

func TestResolveThroughLocals(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, Block(
		ID(FuncDecl("A.f", nil), "f"),
		Local([]string{"g"}, Chain(Var("A"), Ref(Member("f"), "f"))),
		ID(Local([]string{"h"}, ID(FuncExpr("h", nil), "h")), "hStat"),
		ID(Local([]string{"n"}, Num(1)), "nStat"),
	))
	// Point uses at the local names declared above.
	stats := tree.Slot(tree.Root(), ast.SlotStats)
	g := tree.Child(stats[1], ast.SlotTargets)
	h := tree.Child(ids["hStat"], ast.SlotTargets)
	n := tree.Child(ids["nStat"], ast.SlotTargets)

	useOf := func(target ast.NodeID) ast.NodeID {
		v := tree.NewChild(tree.Root(), ast.SlotStats, ast.Node{Kind: ast.KindCallStat})
		head := tree.NewChild(v, ast.SlotExpr, ast.Node{Kind: ast.KindVar, Name: "x", Ref: ast.Resolved(target)})
		return tree.NewChild(head, ast.SlotSuffix, ast.Node{Kind: ast.KindCall})
	}
	gCall, hCall, nCall := useOf(g), useOf(h), useOf(n)

	r := resolve.NewResolver(tree)
	tests := []struct {
		name string
		call ast.NodeID
		want ast.NodeID
	}{
		{"alias of member", gCall, ids["f"]},
		{"bound function expression", hCall, ids["h"]},
		{"non-function value", nCall, ast.NoNode},
	}
	for _, tt := range tests {
		cs, ok := r.CallSiteAt(tt.call)
		require.True(t, ok, tt.name)
		d, ok := r.Resolve(cs)
		if tt.want == ast.NoNode {
			assert.False(t, ok, tt.name)
			continue
		}
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.want, d.Root, tt.name)
	}
}

func TestResolveCycleFails(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, Block(
		CallStat(Chain(ID(Ref(Var("a"), "b"), "a"), ID(Call(), "call"))),
		Return(ID(Ref(Var("b"), "a"), "b")),
	))
	run := func() (err error) {
		defer ast.Guard(&err)
		resolve.NewResolver(tree).CallSiteAt(ids["call"])
		return nil
	}
	assert.ErrorIs(t, run(), resolve.ErrResolutionDepth)
}

func TestDeclarationMissingBody(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, Block(ID(T{Kind: ast.KindFunctionDecl, Name: "f"}, "f")))
	run := func() (err error) {
		defer ast.Guard(&err)
		resolve.NewResolver(tree).Declaration(ids["f"])
		return nil
	}
	assert.ErrorIs(t, run(), resolve.ErrMissingBody)
}

func TestDeclarations(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, program())
	r := resolve.NewResolver(tree)

	var names []string
	for _, d := range r.Declarations() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"A.f", "helper", "h", "function@9"}, names)

	f, ok := r.Declaration(ids["f"])
	require.True(t, ok)
	assert.Equal(t, ids["f"], f.ContainingStat)
	assert.Len(t, f.Params, 1)
	assert.Equal(t, ast.KindBlock, tree.Kind(f.Block))
	assert.Equal(t, "Core", tree.Node(f.Component).Name)

	h, ok := r.Declaration(ids["h"])
	require.True(t, ok)
	assert.Equal(t, ids["hStat"], h.ContainingStat)

	_, ok = r.Declaration(ids["hStat"])
	assert.False(t, ok)
}

func TestIndex(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, program())
	r := resolve.NewResolver(tree)
	idx := r.BuildIndex()

	callers := idx.Callers(ids["f"])
	require.Len(t, callers, 2)
	assert.Equal(t, ids["internalCall"], callers[0].Node)
	assert.Equal(t, ids["externalCall"], callers[1].Node)

	var unused []string
	for _, d := range idx.Unused() {
		unused = append(unused, d.Name)
	}
	assert.Equal(t, []string{"helper", "h", "function@9"}, unused)
	assert.Len(t, idx.Declarations(), 4)

	ext := r.ExternalCalls()
	require.Len(t, ext, 1)
	assert.Equal(t, ids["externalCall"], ext[0].Node)
	assert.Len(t, r.CallSites(), 3)
}

func TestChainHelpers(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, Block(
		ID(Local([]string{"a", "b"}, ID(Chain(Var("x"), Member("y"), ID(Member("z"), "z")), "chain")), "stat"),
		Return(ID(Chain(Var("f"), Call(), Member("g")), "impure")),
	))

	assert.Equal(t, ids["z"], resolve.ChainTail(tree, ids["chain"]))
	assert.Equal(t, ast.NoNode, resolve.ChainTail(tree, ids["impure"]))

	names := tree.Slot(ids["stat"], ast.SlotTargets)
	assert.Equal(t, ids["chain"], resolve.AssignedValue(tree, names[0]))
	assert.Equal(t, ast.NoNode, resolve.AssignedValue(tree, names[1]))

	assert.Equal(t, ids["stat"], resolve.ContainingStat(tree, ids["z"]))
	assert.Equal(t, ids["stat"], resolve.ContainingStat(tree, ids["stat"]))
}

package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/astsync/internal/ast"
	. "github.com/phobologic/astsync/internal/ast/asttest"
	"github.com/phobologic/astsync/internal/classify"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node T
		want classify.NodeKind
	}{
		{"nil", Nil(), classify.NodeKind{Category: classify.Terminal, Variant: "nil"}},
		{"varargs", VarArgs(), classify.NodeKind{Category: classify.Terminal, Variant: "varargs"}},
		{"not", Unary("not", True()), classify.NodeKind{Category: classify.Unary, Variant: "not"}},
		{"concat", Binary("..", Str("a"), Str("b")), classify.NodeKind{Category: classify.Binary, Variant: ".."}},
		{"number", Num(3), classify.NodeKind{Category: classify.NumberLiteral, Variant: "number"}},
		{"string", Str("x"), classify.NodeKind{Category: classify.StringLiteral, Variant: "string"}},
		{"function expr", FuncExpr("", nil), classify.NodeKind{Category: classify.FunctionExpr, Variant: "function_expr"}},
		{"table", Table(), classify.NodeKind{Category: classify.TableConstructor, Variant: "table"}},
		{"field", PosField(Nil()), classify.NodeKind{Category: classify.TableField, Variant: "field"}},
		{"var", Var("a"), classify.NodeKind{Category: classify.Feature, Variant: "var"}},
		{"call stat", CallStat(Chain(Var("f"), Call())), classify.NodeKind{Category: classify.Feature, Variant: "call_stat"}},
		{"goto", Goto("l"), classify.NodeKind{Category: classify.Goto, Variant: "goto"}},
		{"assignment", Assign([]T{Var("a")}, Num(1)), classify.NodeKind{Category: classify.Assignment, Variant: "assignment"}},
		{"local", Local([]string{"a"}), classify.NodeKind{Category: classify.LocalAssignment, Variant: "local_assignment"}},
		{"while", While(True()), classify.NodeKind{Category: classify.ControlFlow, Variant: "while"}},
		{"elseif", ElseIf(True()), classify.NodeKind{Category: classify.ControlFlow, Variant: "elseif"}},
		{"func body", Body(nil), classify.NodeKind{Category: classify.FunctionBody, Variant: "func_body"}},
		{"return", Return(), classify.NodeKind{Category: classify.Return, Variant: "return"}},
		{"label", Label("l"), classify.NodeKind{Category: classify.Referenceable, Variant: "label"}},
		{"local function", LocalFunc("f", nil), classify.NodeKind{Category: classify.Referenceable, Variant: "local_function_decl"}},
		{"break", Break(), classify.NodeKind{Category: classify.StructuralContainer, Variant: "break"}},
		{"do", Do(), classify.NodeKind{Category: classify.StructuralContainer, Variant: "do"}},
		{"component", Component("Core"), classify.NodeKind{Category: classify.NamedContainer, Variant: "component"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tree, ids := Build(t, ID(tt.node, "n"))
			assert.Equal(t, tt.want, classify.Classify(tree, ids["n"]))
		})
	}
}

func TestClassifyOperatorsDistinguish(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, Block(
		Return(ID(Binary("+", Num(1), Num(2)), "plus")),
		Return(ID(Binary("-", Num(1), Num(2)), "minus")),
		Return(ID(Unary("-", Num(1)), "neg")),
	))
	plus := classify.Classify(tree, ids["plus"])
	minus := classify.Classify(tree, ids["minus"])
	neg := classify.Classify(tree, ids["neg"])

	assert.NotEqual(t, plus, minus)
	assert.NotEqual(t, minus, neg)
	assert.Equal(t, "binary/+", plus.String())
}

func TestClassifyUnknownOperator(t *testing.T) {
	t.Parallel()

	tree, ids := Build(t, ID(Binary("<=>", Num(1), Num(2)), "n"))
	run := func() (err error) {
		defer ast.Guard(&err)
		classify.Classify(tree, ids["n"])
		return nil
	}
	err := run()
	require.Error(t, err)
	assert.ErrorIs(t, err, classify.ErrUnclassifiable)
}

func TestClassifyUnknownKind(t *testing.T) {
	t.Parallel()

	tree := ast.NewTree()
	id := tree.Add(ast.Node{Kind: ast.Kind(250)})
	run := func() (err error) {
		defer ast.Guard(&err)
		classify.Classify(tree, id)
		return nil
	}
	assert.ErrorIs(t, run(), classify.ErrUnclassifiable)
}

func TestIsAssignmentLike(t *testing.T) {
	t.Parallel()

	assert.True(t, classify.NodeKind{Category: classify.Assignment}.IsAssignmentLike())
	assert.True(t, classify.NodeKind{Category: classify.LocalAssignment}.IsAssignmentLike())
	assert.False(t, classify.NodeKind{Category: classify.Return}.IsAssignmentLike())
}

// Package asttest provides terse constructors for building syntax trees in tests.
package asttest

import (
	"strconv"
	"testing"

	"github.com/phobologic/astsync/internal/ast"
)

type T = ast.Template

func kids(slot ast.Slot, nodes ...T) []ast.SlotTemplate {
	out := make([]ast.SlotTemplate, len(nodes))
	for i, n := range nodes {
		out[i] = ast.SlotTemplate{Slot: slot, Node: n}
	}
	return out
}

func with(t T, slot ast.Slot, nodes ...T) T {
	t.Kids = append(t.Kids, kids(slot, nodes...)...)
	return t
}

// Build materialises tpl and fails the test on error.
func Build(tb testing.TB, tpl T) (*ast.Tree, map[string]ast.NodeID) {
	tb.Helper()
	tree, ids, err := ast.Build(tpl)
	if err != nil {
		tb.Fatalf("building tree: %v", err)
	}
	return tree, ids
}

// ID labels t.
func ID(t T, id string) T {
	t.ID = id
	return t
}

// Ref makes t refer to the node labelled to.
func Ref(t T, to string) T {
	t.RefTo = to
	return t
}

// Mocked marks t as an unresolved reference.
func Mocked(t T) T {
	t.RefTo = ast.UnresolvedRef
	return t
}

// At sets the source line of t.
func At(t T, line int) T {
	t.Line = line
	return t
}

func App(components ...T) T {
	return with(T{Kind: ast.KindApplication}, ast.SlotMembers, components...)
}

func Component(name string, chunks ...T) T {
	return with(T{Kind: ast.KindComponent, Name: name}, ast.SlotMembers, chunks...)
}

// File is a named chunk whose body holds stats.
func File(name string, stats ...T) T {
	return with(T{Kind: ast.KindNamedChunk, Name: name}, ast.SlotBody, Block(stats...))
}

func Chunk(stats ...T) T {
	return with(T{Kind: ast.KindChunk}, ast.SlotBody, Block(stats...))
}

func Block(stats ...T) T {
	return with(T{Kind: ast.KindBlock}, ast.SlotStats, stats...)
}

func Local(names []string, values ...T) T {
	t := T{Kind: ast.KindLocalAssignment}
	for _, n := range names {
		t = with(t, ast.SlotTargets, LocalName(n))
	}
	return with(t, ast.SlotValues, values...)
}

func LocalName(name string) T {
	return T{Kind: ast.KindLocalName, Name: name}
}

func Assign(targets []T, values ...T) T {
	t := with(T{Kind: ast.KindAssignment}, ast.SlotTargets, targets...)
	return with(t, ast.SlotValues, values...)
}

func CallStat(chain T) T {
	return with(T{Kind: ast.KindCallStat}, ast.SlotExpr, chain)
}

func Do(stats ...T) T {
	return with(T{Kind: ast.KindDo}, ast.SlotBody, Block(stats...))
}

func While(cond T, stats ...T) T {
	t := with(T{Kind: ast.KindWhile}, ast.SlotCond, cond)
	return with(t, ast.SlotBody, Block(stats...))
}

func Repeat(cond T, stats ...T) T {
	t := with(T{Kind: ast.KindRepeat}, ast.SlotBody, Block(stats...))
	return with(t, ast.SlotCond, cond)
}

// If builds an if statement. Else may be nil for an absent else branch.
func If(cond T, then []T, elseIfs []T, els []T) T {
	t := with(T{Kind: ast.KindIf}, ast.SlotCond, cond)
	t = with(t, ast.SlotThen, Block(then...))
	t = with(t, ast.SlotElseIf, elseIfs...)
	if els != nil {
		t = with(t, ast.SlotElse, Block(els...))
	}
	return t
}

func ElseIf(cond T, stats ...T) T {
	t := with(T{Kind: ast.KindElseIf}, ast.SlotCond, cond)
	return with(t, ast.SlotThen, Block(stats...))
}

// NumFor builds a numeric for loop. Step may be nil.
func NumFor(v string, from, to T, step *T, stats ...T) T {
	t := with(T{Kind: ast.KindNumericFor}, ast.SlotLoopVar, LocalName(v))
	t = with(t, ast.SlotFrom, from)
	t = with(t, ast.SlotTo, to)
	if step != nil {
		t = with(t, ast.SlotStep, *step)
	}
	return with(t, ast.SlotBody, Block(stats...))
}

func GenFor(names []string, exprs []T, stats ...T) T {
	t := T{Kind: ast.KindGenericFor}
	for _, n := range names {
		t = with(t, ast.SlotNames, LocalName(n))
	}
	t = with(t, ast.SlotValues, exprs...)
	return with(t, ast.SlotBody, Block(stats...))
}

// Body builds a function body. A trailing "..." parameter becomes varargs.
func Body(params []string, stats ...T) T {
	t := T{Kind: ast.KindFuncBody}
	for _, p := range params {
		if p == "..." {
			t = with(t, ast.SlotParams, VarArgs())
			continue
		}
		t = with(t, ast.SlotParams, T{Kind: ast.KindParam, Name: p})
	}
	return with(t, ast.SlotBody, Block(stats...))
}

func FuncDecl(name string, params []string, stats ...T) T {
	return with(T{Kind: ast.KindFunctionDecl, Name: name}, ast.SlotFuncBody, Body(params, stats...))
}

func LocalFunc(name string, params []string, stats ...T) T {
	return with(T{Kind: ast.KindLocalFunctionDecl, Name: name}, ast.SlotFuncBody, Body(params, stats...))
}

// FuncExpr builds an anonymous function; name records the binding, if any.
func FuncExpr(name string, params []string, stats ...T) T {
	return with(T{Kind: ast.KindFunctionExpr, Name: name}, ast.SlotFuncBody, Body(params, stats...))
}

func Return(values ...T) T {
	return with(T{Kind: ast.KindReturn}, ast.SlotValues, values...)
}

func Break() T { return T{Kind: ast.KindBreak} }

func Goto(label string) T { return T{Kind: ast.KindGoto, Name: label} }

func Label(name string) T { return T{Kind: ast.KindLabel, Name: name} }

func Nil() T     { return T{Kind: ast.KindNil} }
func True() T    { return T{Kind: ast.KindTrue} }
func False() T   { return T{Kind: ast.KindFalse} }
func VarArgs() T { return T{Kind: ast.KindVarArgs} }

func Num(v int64) T {
	return T{Kind: ast.KindNumber, Number: ast.IntNumber(v), Text: strconv.FormatInt(v, 10)}
}

func Float(v float64) T {
	return T{Kind: ast.KindNumber, Number: ast.FloatNumber(v), Text: strconv.FormatFloat(v, 'g', -1, 64)}
}

// NumText is a number literal with an explicit source spelling.
func NumText(text string, v ast.Number) T {
	return T{Kind: ast.KindNumber, Number: v, Text: text}
}

func Str(s string) T { return T{Kind: ast.KindString, Text: s} }

func Table(fields ...T) T {
	return with(T{Kind: ast.KindTable}, ast.SlotFields, fields...)
}

func PosField(v T) T {
	return with(T{Kind: ast.KindField, Op: ast.FieldPositional}, ast.SlotValue, v)
}

func NamedField(name string, v T) T {
	return with(T{Kind: ast.KindField, Op: ast.FieldNamed, Name: name}, ast.SlotValue, v)
}

func KeyField(k, v T) T {
	t := with(T{Kind: ast.KindField, Op: ast.FieldKeyed}, ast.SlotKey, k)
	return with(t, ast.SlotValue, v)
}

func Unary(op string, x T) T {
	return with(T{Kind: ast.KindUnary, Op: op}, ast.SlotOperand, x)
}

func Binary(op string, l, r T) T {
	t := with(T{Kind: ast.KindBinary, Op: op}, ast.SlotLeft, l)
	return with(t, ast.SlotRight, r)
}

func Var(name string) T { return T{Kind: ast.KindVar, Name: name} }

func Member(name string) T { return T{Kind: ast.KindMember, Name: name} }

func Index(expr T) T {
	return with(T{Kind: ast.KindIndex}, ast.SlotIndex, expr)
}

func Call(args ...T) T {
	return with(T{Kind: ast.KindCall}, ast.SlotArgs, args...)
}

func Method(name string, args ...T) T {
	return with(T{Kind: ast.KindMethodCall, Name: name}, ast.SlotArgs, args...)
}

func Paren(inner T) T {
	return with(T{Kind: ast.KindParen}, ast.SlotInner, inner)
}

// Chain nests links behind head as successive suffixes: Chain(Var("a"),
// Member("b"), Call()) is a.b().
func Chain(head T, links ...T) T {
	if len(links) == 0 {
		return head
	}
	return with(head, ast.SlotSuffix, Chain(links[0], links[1:]...))
}

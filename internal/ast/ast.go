// Package ast defines the arena-indexed syntax tree shared by the matcher,
// resolver and impact analysis.
//
// Each version of a program lives in its own Tree. Nodes are addressed by
// NodeID and never shared between trees; parent links and references are ids
// into the owning tree.
package ast

import (
	"fmt"
	"math"
	"strconv"
)

// NodeID addresses a node inside one Tree.
type NodeID int32

// NoNode is the absent node.
const NoNode NodeID = -1

// Kind is the closed set of syntactic node variants.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Containers.
	KindApplication
	KindComponent
	KindNamedChunk
	KindChunk
	KindBlock

	// Statements.
	KindAssignment
	KindLocalAssignment
	KindCallStat
	KindDo
	KindWhile
	KindRepeat
	KindIf
	KindElseIf
	KindNumericFor
	KindGenericFor
	KindFunctionDecl
	KindLocalFunctionDecl
	KindReturn
	KindBreak
	KindGoto
	KindLabel

	// Expressions.
	KindNil
	KindTrue
	KindFalse
	KindVarArgs
	KindNumber
	KindString
	KindFunctionExpr
	KindTable
	KindField
	KindUnary
	KindBinary

	// Feature chain links.
	KindVar
	KindMember
	KindIndex
	KindCall
	KindMethodCall
	KindParen

	// Function parts and local names.
	KindFuncBody
	KindParam
	KindLocalName

	kindCount
)

var kindNames = [...]string{
	KindInvalid:           "invalid",
	KindApplication:       "application",
	KindComponent:         "component",
	KindNamedChunk:        "named_chunk",
	KindChunk:             "chunk",
	KindBlock:             "block",
	KindAssignment:        "assignment",
	KindLocalAssignment:   "local_assignment",
	KindCallStat:          "call_stat",
	KindDo:                "do",
	KindWhile:             "while",
	KindRepeat:            "repeat",
	KindIf:                "if",
	KindElseIf:            "elseif",
	KindNumericFor:        "numeric_for",
	KindGenericFor:        "generic_for",
	KindFunctionDecl:      "function_decl",
	KindLocalFunctionDecl: "local_function_decl",
	KindReturn:            "return",
	KindBreak:             "break",
	KindGoto:              "goto",
	KindLabel:             "label",
	KindNil:               "nil",
	KindTrue:              "true",
	KindFalse:             "false",
	KindVarArgs:           "varargs",
	KindNumber:            "number",
	KindString:            "string",
	KindFunctionExpr:      "function_expr",
	KindTable:             "table",
	KindField:             "field",
	KindUnary:             "unary",
	KindBinary:            "binary",
	KindVar:               "var",
	KindMember:            "member",
	KindIndex:             "index",
	KindCall:              "call",
	KindMethodCall:        "method_call",
	KindParen:             "paren",
	KindFuncBody:          "func_body",
	KindParam:             "param",
	KindLocalName:         "local_name",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// IsStatement reports whether nodes of kind k appear directly in a block.
func (k Kind) IsStatement() bool {
	switch k {
	case KindAssignment, KindLocalAssignment, KindCallStat, KindDo, KindWhile,
		KindRepeat, KindIf, KindNumericFor, KindGenericFor, KindFunctionDecl,
		KindLocalFunctionDecl, KindReturn, KindBreak, KindGoto, KindLabel:
		return true
	}
	return false
}

// IsFeature reports whether k is a link of a feature chain (a.b[c]:d()).
func (k Kind) IsFeature() bool {
	switch k {
	case KindVar, KindMember, KindIndex, KindCall, KindMethodCall, KindParen:
		return true
	}
	return false
}

// IsDeclaration reports whether k is one of the three function declaration forms.
func (k Kind) IsDeclaration() bool {
	return k == KindFunctionDecl || k == KindLocalFunctionDecl || k == KindFunctionExpr
}

// Slot names the role a child plays in its parent.
type Slot uint8

const (
	SlotNone Slot = iota
	SlotMembers
	SlotBody
	SlotStats
	SlotCond
	SlotThen
	SlotElseIf
	SlotElse
	SlotTargets
	SlotValues
	SlotArgs
	SlotLeft
	SlotRight
	SlotOperand
	SlotFields
	SlotKey
	SlotValue
	SlotSuffix
	SlotIndex
	SlotParams
	SlotLoopVar
	SlotNames
	SlotFrom
	SlotTo
	SlotStep
	SlotFuncBody
	SlotInner
	SlotExpr
)

var slotNames = [...]string{
	SlotNone:     "none",
	SlotMembers:  "members",
	SlotBody:     "body",
	SlotStats:    "stats",
	SlotCond:     "cond",
	SlotThen:     "then",
	SlotElseIf:   "elseif",
	SlotElse:     "else",
	SlotTargets:  "targets",
	SlotValues:   "values",
	SlotArgs:     "args",
	SlotLeft:     "left",
	SlotRight:    "right",
	SlotOperand:  "operand",
	SlotFields:   "fields",
	SlotKey:      "key",
	SlotValue:    "value",
	SlotSuffix:   "suffix",
	SlotIndex:    "index",
	SlotParams:   "params",
	SlotLoopVar:  "loop_var",
	SlotNames:    "names",
	SlotFrom:     "from",
	SlotTo:       "to",
	SlotStep:     "step",
	SlotFuncBody: "func_body",
	SlotInner:    "inner",
	SlotExpr:     "expr",
}

func (s Slot) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return fmt.Sprintf("slot(%d)", uint8(s))
}

// RefState distinguishes the three states of a reference.
type RefState uint8

const (
	// RefNone marks a node that does not refer to anything.
	RefNone RefState = iota
	// RefResolved marks a reference to a node of the same tree.
	RefResolved
	// RefUnresolved marks a reference the loader could not resolve statically.
	RefUnresolved
)

// Ref is a non-owning link from a use to the entity it denotes.
type Ref struct {
	State  RefState
	Target NodeID
}

// Resolved returns a reference to target.
func Resolved(target NodeID) Ref {
	return Ref{State: RefResolved, Target: target}
}

// Unresolved returns the placeholder for a reference that could not be resolved.
func Unresolved() Ref {
	return Ref{State: RefUnresolved, Target: NoNode}
}

// Get returns the target and whether the reference is resolved.
func (r Ref) Get() (NodeID, bool) {
	if r.State != RefResolved {
		return NoNode, false
	}
	return r.Target, true
}

// Field forms, stored in Node.Op for KindField nodes.
const (
	FieldPositional = ""
	FieldNamed      = "name"
	FieldKeyed      = "key"
)

// Number is a numeric literal value. Integers and floats are distinct
// subtypes, as in Lua 5.3 and later.
type Number struct {
	Int     int64
	Float   float64
	IsFloat bool
}

// IntNumber returns the integer n.
func IntNumber(n int64) Number { return Number{Int: n} }

// FloatNumber returns the float f.
func FloatNumber(f float64) Number { return Number{Float: f, IsFloat: true} }

// Equal compares by mathematical value: integers exactly, floats with ==,
// and an integer equals a float only when the float is that exact integer.
func (a Number) Equal(b Number) bool {
	switch {
	case !a.IsFloat && !b.IsFloat:
		return a.Int == b.Int
	case a.IsFloat && b.IsFloat:
		return a.Float == b.Float
	case a.IsFloat:
		return floatIsInt(a.Float, b.Int)
	default:
		return floatIsInt(b.Float, a.Int)
	}
}

func floatIsInt(f float64, i int64) bool {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return false
	}
	return int64(f) == i
}

func (a Number) String() string {
	if a.IsFloat {
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	}
	return strconv.FormatInt(a.Int, 10)
}

// Node is one arena entry.
//
// Name holds the identifier of named nodes (vars, members, method calls,
// declarations, labels, params, locals, chunks and components). Op holds the
// operator of unary and binary expressions and the form of table fields.
// Number holds the parsed value of number literals and Text their source
// spelling; string literals keep their content without delimiters in Text.
type Node struct {
	Kind   Kind
	Name   string
	Op     string
	Text   string
	Number Number
	Ref    Ref
	Line   int

	parent NodeID
	slot   Slot
	kids   []edge
}

type edge struct {
	slot Slot
	id   NodeID
}

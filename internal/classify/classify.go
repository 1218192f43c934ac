// Package classify maps syntax nodes onto the structural categories used to
// pick a matching strategy.
package classify

import (
	"errors"
	"fmt"

	"github.com/phobologic/astsync/internal/ast"
)

// ErrUnclassifiable is raised when a node kind has no category.
var ErrUnclassifiable = errors.New("unclassifiable node")

// Category is the coarse structural kind of a node.
type Category uint8

const (
	Terminal Category = iota + 1
	Unary
	Binary
	NumberLiteral
	StringLiteral
	FunctionExpr
	TableConstructor
	TableField
	Feature
	Goto
	Assignment
	LocalAssignment
	ControlFlow
	FunctionBody
	Return
	Referenceable
	StructuralContainer
	NamedContainer
)

var categoryNames = map[Category]string{
	Terminal:            "terminal",
	Unary:               "unary",
	Binary:              "binary",
	NumberLiteral:       "number",
	StringLiteral:       "string",
	FunctionExpr:        "function_expr",
	TableConstructor:    "table",
	TableField:          "field",
	Feature:             "feature",
	Goto:                "goto",
	Assignment:          "assignment",
	LocalAssignment:     "local_assignment",
	ControlFlow:         "control_flow",
	FunctionBody:        "function_body",
	Return:              "return",
	Referenceable:       "referenceable",
	StructuralContainer: "structural",
	NamedContainer:      "named",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Variant refines a category. Unary and binary expressions use their
// operator; every other category uses the node kind.
type Variant string

// NodeKind is the classification result. Two nodes can only match when their
// NodeKinds are equal.
type NodeKind struct {
	Category Category
	Variant  Variant
}

func (k NodeKind) String() string {
	if k.Variant == "" {
		return k.Category.String()
	}
	return k.Category.String() + "/" + string(k.Variant)
}

// IsAssignmentLike reports whether k carries a right-hand expression list.
func (k NodeKind) IsAssignmentLike() bool {
	return k.Category == Assignment || k.Category == LocalAssignment
}

var unaryOps = map[string]bool{"#": true, "not": true, "-": true, "~": true}

var binaryOps = map[string]bool{
	"or": true, "and": true,
	">": true, ">=": true, "<": true, "<=": true, "==": true, "~=": true, "..": true,
	"+": true, "-": true, "*": true, "/": true, "//": true, "^": true, "%": true,
	"&": true, "|": true, "~": true, "<<": true, ">>": true,
}

// Classify returns the structural kind of node id. Kinds outside the closed
// set raise an *ast.InternalError wrapping ErrUnclassifiable.
func Classify(t *ast.Tree, id ast.NodeID) NodeKind {
	n := t.Node(id)
	v := Variant(n.Kind.String())
	switch n.Kind {
	case ast.KindNil, ast.KindTrue, ast.KindFalse, ast.KindVarArgs:
		return NodeKind{Terminal, v}
	case ast.KindUnary:
		if !unaryOps[n.Op] {
			ast.Fail("classify", t.Describe(id), fmt.Errorf("%w: unary operator %q", ErrUnclassifiable, n.Op))
		}
		return NodeKind{Unary, Variant(n.Op)}
	case ast.KindBinary:
		if !binaryOps[n.Op] {
			ast.Fail("classify", t.Describe(id), fmt.Errorf("%w: binary operator %q", ErrUnclassifiable, n.Op))
		}
		return NodeKind{Binary, Variant(n.Op)}
	case ast.KindNumber:
		return NodeKind{NumberLiteral, v}
	case ast.KindString:
		return NodeKind{StringLiteral, v}
	case ast.KindFunctionExpr:
		return NodeKind{FunctionExpr, v}
	case ast.KindTable:
		return NodeKind{TableConstructor, v}
	case ast.KindField:
		return NodeKind{TableField, v}
	case ast.KindVar, ast.KindMember, ast.KindIndex, ast.KindCall,
		ast.KindMethodCall, ast.KindParen, ast.KindCallStat:
		return NodeKind{Feature, v}
	case ast.KindGoto:
		return NodeKind{Goto, v}
	case ast.KindAssignment:
		return NodeKind{Assignment, v}
	case ast.KindLocalAssignment:
		return NodeKind{LocalAssignment, v}
	case ast.KindIf, ast.KindElseIf, ast.KindWhile, ast.KindRepeat,
		ast.KindNumericFor, ast.KindGenericFor:
		return NodeKind{ControlFlow, v}
	case ast.KindFuncBody:
		return NodeKind{FunctionBody, v}
	case ast.KindReturn:
		return NodeKind{Return, v}
	case ast.KindLocalName, ast.KindParam, ast.KindLabel,
		ast.KindFunctionDecl, ast.KindLocalFunctionDecl:
		return NodeKind{Referenceable, v}
	case ast.KindBlock, ast.KindChunk, ast.KindApplication, ast.KindBreak, ast.KindDo:
		return NodeKind{StructuralContainer, v}
	case ast.KindNamedChunk, ast.KindComponent:
		return NodeKind{NamedContainer, v}
	}
	ast.Fail("classify", t.Describe(id), ErrUnclassifiable)
	return NodeKind{}
}

// Package match decides whether two nodes from two versions of a tree
// represent the same program construct.
//
// The Matcher compares local content only and recurses into syntactic
// children where a rule needs them; which pairs it is asked about is decided
// by the hierarchical Driver.
package match

import (
	"errors"
	"log/slog"

	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/classify"
	"github.com/phobologic/astsync/internal/scope"
)

// ErrCoverage indicates a pair of nodes for which no rule applied.
var ErrCoverage = errors.New("no matching rule for node kind")

// Options tune the rule table.
type Options struct {
	// Stringent also requires assignment targets to match.
	Stringent bool
}

// Matcher compares nodes of an old and a new tree.
type Matcher struct {
	old, new *ast.Tree
	opts     Options
	logger   *slog.Logger
}

// New returns a Matcher for old and new. A nil logger discards output.
func New(old, new *ast.Tree, opts Options, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Matcher{old: old, new: new, opts: opts, logger: logger}
}

// Old returns the old tree.
func (m *Matcher) Old() *ast.Tree { return m.old }

// New returns the new tree.
func (m *Matcher) New() *ast.Tree { return m.new }

// Match reports whether o (in the old tree) and n (in the new tree) match.
// Rules are tried in a fixed order and the first applicable one decides.
func (m *Matcher) Match(o, n ast.NodeID) bool {
	if !m.old.Valid(o) || !m.new.Valid(n) {
		return false
	}
	ko := classify.Classify(m.old, o)
	kn := classify.Classify(m.new, n)
	if ko != kn {
		return false
	}

	on, nn := m.old.Node(o), m.new.Node(n)
	switch ko.Category {
	case classify.Terminal:
		return true
	case classify.Unary:
		return m.matchSlot(o, n, ast.SlotOperand)
	case classify.NumberLiteral:
		return on.Number.Equal(nn.Number)
	case classify.StringLiteral:
		return on.Text == nn.Text
	case classify.Binary:
		return m.matchSlot(o, n, ast.SlotLeft) && m.matchSlot(o, n, ast.SlotRight)
	case classify.FunctionExpr:
		return m.matchSlot(o, n, ast.SlotFuncBody)
	case classify.TableConstructor:
		return m.matchList(o, n, ast.SlotFields)
	case classify.TableField:
		return m.matchField(o, n)
	case classify.Feature:
		if ok, handled := m.matchFeature(o, n, on.Kind); handled {
			return ok
		}
	case classify.Goto:
		return m.matchGoto(on, nn)
	case classify.Assignment, classify.LocalAssignment:
		if !m.matchList(o, n, ast.SlotValues) {
			return false
		}
		return !m.opts.Stringent || m.matchList(o, n, ast.SlotTargets)
	case classify.ControlFlow:
		if ok, handled := m.matchControlFlow(o, n, on.Kind); handled {
			return ok
		}
	case classify.FunctionBody:
		return m.matchList(o, n, ast.SlotParams)
	case classify.Return:
		return m.matchList(o, n, ast.SlotValues)
	case classify.Referenceable:
		return scope.SameReferenceable(m.old, o, m.new, n)
	case classify.NamedContainer:
		return on.Name == nn.Name
	case classify.StructuralContainer:
		return true
	}

	m.logger.Error("no matching rule",
		"kind", ko.String(),
		"old", m.old.Describe(o),
		"new", m.new.Describe(n),
	)
	recordFallthrough(ko.String())
	ast.Fail("match", m.old.Describe(o), ErrCoverage)
	return false
}

func (m *Matcher) matchFeature(o, n ast.NodeID, kind ast.Kind) (bool, bool) {
	switch kind {
	case ast.KindVar, ast.KindMember:
		return scope.SameReferenceable(m.old, o, m.new, n), true
	case ast.KindCall:
		return m.matchList(o, n, ast.SlotArgs), true
	case ast.KindMethodCall:
		return scope.SameReferenceable(m.old, o, m.new, n) && m.matchList(o, n, ast.SlotArgs), true
	case ast.KindIndex:
		return m.matchSlot(o, n, ast.SlotIndex) && scope.SameReferenceable(m.old, o, m.new, n), true
	case ast.KindParen:
		return m.matchSlot(o, n, ast.SlotInner), true
	case ast.KindCallStat:
		return m.matchSlot(o, n, ast.SlotExpr), true
	}
	return false, false
}

func (m *Matcher) matchField(o, n ast.NodeID) bool {
	on, nn := m.old.Node(o), m.new.Node(n)
	if on.Op != nn.Op {
		return false
	}
	switch on.Op {
	case ast.FieldNamed:
		if on.Name != nn.Name {
			return false
		}
	case ast.FieldKeyed:
		if !m.matchSlot(o, n, ast.SlotKey) {
			return false
		}
	}
	return m.matchSlot(o, n, ast.SlotValue)
}

func (m *Matcher) matchGoto(on, nn *ast.Node) bool {
	lo, ok := on.Ref.Get()
	if !ok {
		return false
	}
	ln, ok := nn.Ref.Get()
	if !ok {
		return false
	}
	return scope.SameReferenceable(m.old, lo, m.new, ln)
}

func (m *Matcher) matchControlFlow(o, n ast.NodeID, kind ast.Kind) (bool, bool) {
	switch kind {
	case ast.KindWhile, ast.KindRepeat, ast.KindElseIf:
		return m.matchSlot(o, n, ast.SlotCond), true
	case ast.KindNumericFor:
		return m.matchSlot(o, n, ast.SlotLoopVar) &&
			m.matchSlot(o, n, ast.SlotFrom) &&
			m.matchSlot(o, n, ast.SlotTo) &&
			m.matchOptional(o, n, ast.SlotStep), true
	case ast.KindGenericFor:
		return m.matchList(o, n, ast.SlotNames) && m.matchList(o, n, ast.SlotValues), true
	case ast.KindIf:
		return m.matchIf(o, n), true
	}
	return false, false
}

func (m *Matcher) matchIf(o, n ast.NodeID) bool {
	if !m.matchSlot(o, n, ast.SlotCond) {
		return false
	}
	if !m.sameStatementKinds(m.old.Child(o, ast.SlotThen), m.new.Child(n, ast.SlotThen)) {
		return false
	}
	if !m.matchList(o, n, ast.SlotElseIf) {
		return false
	}
	hasOld := m.old.Child(o, ast.SlotElse) != ast.NoNode
	hasNew := m.new.Child(n, ast.SlotElse) != ast.NoNode
	return hasOld == hasNew
}

// sameStatementKinds compares two blocks by the kinds of their statements only.
func (m *Matcher) sameStatementKinds(ob, nb ast.NodeID) bool {
	so, sn := m.old.Slot(ob, ast.SlotStats), m.new.Slot(nb, ast.SlotStats)
	if len(so) != len(sn) {
		return false
	}
	for i := range so {
		if classify.Classify(m.old, so[i]) != classify.Classify(m.new, sn[i]) {
			return false
		}
	}
	return true
}

func (m *Matcher) matchSlot(o, n ast.NodeID, slot ast.Slot) bool {
	return m.Match(m.old.Child(o, slot), m.new.Child(n, slot))
}

// matchOptional matches an optional child; absence on both sides matches.
func (m *Matcher) matchOptional(o, n ast.NodeID, slot ast.Slot) bool {
	co, cn := m.old.Child(o, slot), m.new.Child(n, slot)
	if co == ast.NoNode && cn == ast.NoNode {
		return true
	}
	return m.Match(co, cn)
}

// matchList matches two ordered child lists elementwise. Two empty lists match.
func (m *Matcher) matchList(o, n ast.NodeID, slot ast.Slot) bool {
	ol, nl := m.old.Slot(o, slot), m.new.Slot(n, slot)
	if len(ol) != len(nl) {
		return false
	}
	for i := range ol {
		if !m.Match(ol[i], nl[i]) {
			return false
		}
	}
	return true
}

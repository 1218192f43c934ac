// Package resolve turns call expressions into call sites and follows their
// references to function declarations.
package resolve

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/phobologic/astsync/internal/ast"
)

// MaxDepth bounds the length of reference chains followed by Resolve.
const MaxDepth = 1000

var (
	// ErrResolutionDepth indicates a reference chain longer than MaxDepth,
	// which only a cyclic or malformed reference graph produces.
	ErrResolutionDepth = errors.New("reference chain exceeds depth bound")

	// ErrMissingBody indicates a declaration without a function body or block.
	ErrMissingBody = errors.New("declaration without function body")
)

// Declaration is the unified view of the three function declaration forms:
// global function statements, local function statements and function
// expressions bound to a name.
type Declaration struct {
	Name string
	// Root is the declaring node. Two declarations are equal iff their
	// roots are.
	Root ast.NodeID
	// Body is the function body holding the parameters and block.
	Body   ast.NodeID
	Block  ast.NodeID
	Params []ast.NodeID
	// ContainingStat is the statement holding the declaration. For a
	// function statement that is Root itself.
	ContainingStat ast.NodeID
	Component      ast.NodeID
}

// Resolution is either a resolved declaration or the unresolved (mocked)
// outcome.
type Resolution struct {
	decl Declaration
	ok   bool
}

// Resolved wraps d.
func Resolved(d Declaration) Resolution { return Resolution{decl: d, ok: true} }

// Unresolved is the outcome for references the loader could not resolve.
func Unresolved() Resolution { return Resolution{} }

// Get returns the declaration and whether the resolution succeeded.
func (r Resolution) Get() (Declaration, bool) { return r.decl, r.ok }

// IsResolved reports whether a declaration was found.
func (r Resolution) IsResolved() bool { return r.ok }

// CallSite is the derived view of a call expression.
type CallSite struct {
	// Name is the qualified name used at the call, e.g. "A.f" or "obj:m".
	Name string
	// Node is the call or method call link.
	Node ast.NodeID
	// Feature is the named link that denotes the callee.
	Feature   ast.NodeID
	Component ast.NodeID
	Target    Resolution
}

// Mocked reports whether the callee could not be resolved statically.
func (cs CallSite) Mocked() bool { return !cs.Target.ok }

// Resolver derives call sites and declarations from one tree. It memoises
// its results and must not be used after the tree is modified.
type Resolver struct {
	t        *ast.Tree
	decls    map[ast.NodeID]Declaration
	calls    map[ast.NodeID]CallSite
	resolved map[ast.NodeID]Resolution
}

// NewResolver returns a Resolver over t.
func NewResolver(t *ast.Tree) *Resolver {
	return &Resolver{
		t:        t,
		decls:    make(map[ast.NodeID]Declaration),
		calls:    make(map[ast.NodeID]CallSite),
		resolved: make(map[ast.NodeID]Resolution),
	}
}

// Tree returns the tree the resolver works on.
func (r *Resolver) Tree() *ast.Tree { return r.t }

// Declaration returns the declaration rooted at id. ok is false when id is
// not one of the three declaration forms.
func (r *Resolver) Declaration(id ast.NodeID) (Declaration, bool) {
	if !r.t.Kind(id).IsDeclaration() {
		return Declaration{}, false
	}
	if d, ok := r.decls[id]; ok {
		return d, true
	}
	d := r.buildDeclaration(id)
	r.decls[id] = d
	return d, true
}

func (r *Resolver) buildDeclaration(id ast.NodeID) Declaration {
	t := r.t
	body := t.Child(id, ast.SlotFuncBody)
	if body == ast.NoNode {
		ast.Fail("resolve", t.Describe(id), ErrMissingBody)
	}
	block := t.Child(body, ast.SlotBody)
	if block == ast.NoNode {
		ast.Fail("resolve", t.Describe(body), ErrMissingBody)
	}

	n := t.Node(id)
	d := Declaration{
		Name:      n.Name,
		Root:      id,
		Body:      body,
		Block:     block,
		Params:    t.Slot(body, ast.SlotParams),
		Component: t.Ancestor(id, ast.KindComponent),
	}
	if n.Kind == ast.KindFunctionExpr {
		d.ContainingStat = ContainingStat(t, id)
		if d.Name == "" {
			d.Name = "function@" + strconv.Itoa(n.Line)
		}
	} else {
		d.ContainingStat = id
	}
	return d
}

// Declarations returns every declaration in the tree in source order.
func (r *Resolver) Declarations() []Declaration {
	var out []Declaration
	r.t.Walk(r.t.Root(), func(id ast.NodeID) bool {
		if d, ok := r.Declaration(id); ok {
			out = append(out, d)
		}
		return true
	})
	return out
}

// CallSiteAt returns the call site for a call or method call node.
func (r *Resolver) CallSiteAt(id ast.NodeID) (CallSite, bool) {
	k := r.t.Kind(id)
	if k != ast.KindCall && k != ast.KindMethodCall {
		return CallSite{}, false
	}
	if cs, ok := r.calls[id]; ok {
		return cs, true
	}

	feature := id
	if k == ast.KindCall {
		feature = namedFeature(r.t, id)
	}
	cs := CallSite{
		Node:      id,
		Feature:   feature,
		Component: r.t.Ancestor(id, ast.KindComponent),
		Target:    Unresolved(),
	}
	if feature != ast.NoNode {
		cs.Name = r.t.QualifiedName(feature)
		cs.Target = r.resolveRef(feature, 0)
	}
	r.calls[id] = cs
	return cs, true
}

// namedFeature returns the nearest named link preceding a call in its chain.
func namedFeature(t *ast.Tree, call ast.NodeID) ast.NodeID {
	for cur := call; t.SlotOf(cur) == ast.SlotSuffix; {
		cur = t.Parent(cur)
		switch t.Kind(cur) {
		case ast.KindVar, ast.KindMember, ast.KindMethodCall:
			return cur
		case ast.KindParen:
			return ast.NoNode
		}
	}
	return ast.NoNode
}

// Resolve returns the declaration a call site denotes.
func (r *Resolver) Resolve(cs CallSite) (Declaration, bool) {
	return cs.Target.Get()
}

// IsExternal reports whether cs is a resolved call into another component.
func (r *Resolver) IsExternal(cs CallSite) bool {
	d, ok := cs.Target.Get()
	return ok && d.Component != cs.Component
}

// IsInternal reports whether cs is a resolved call within its own component.
func (r *Resolver) IsInternal(cs CallSite) bool {
	d, ok := cs.Target.Get()
	return ok && d.Component == cs.Component
}

// resolveRef follows the reference held by id until it reaches a declaration.
func (r *Resolver) resolveRef(id ast.NodeID, depth int) Resolution {
	if res, ok := r.resolved[id]; ok {
		return res
	}
	if depth > MaxDepth {
		ast.Fail("resolve", r.t.Describe(id), fmt.Errorf("%w (%d)", ErrResolutionDepth, MaxDepth))
	}
	target, ok := r.t.Node(id).Ref.Get()
	if !ok {
		r.resolved[id] = Unresolved()
		return Unresolved()
	}
	res := r.resolveTarget(target, depth+1)
	r.resolved[id] = res
	return res
}

func (r *Resolver) resolveTarget(target ast.NodeID, depth int) Resolution {
	t := r.t
	switch t.Kind(target) {
	case ast.KindFunctionDecl, ast.KindLocalFunctionDecl, ast.KindFunctionExpr:
		d, _ := r.Declaration(target)
		return Resolved(d)
	case ast.KindVar, ast.KindMember, ast.KindMethodCall:
		return r.resolveRef(target, depth)
	case ast.KindLocalName:
		value := AssignedValue(t, target)
		switch t.Kind(value) {
		case ast.KindFunctionExpr:
			d, _ := r.Declaration(value)
			return Resolved(d)
		case ast.KindVar:
			if tail := ChainTail(t, value); tail != ast.NoNode {
				return r.resolveRef(tail, depth)
			}
		}
	}
	return Unresolved()
}

// AssignedValue returns the expression assigned to a local name by its
// declaring local assignment, or NoNode.
func AssignedValue(t *ast.Tree, name ast.NodeID) ast.NodeID {
	stat := t.Parent(name)
	if t.Kind(stat) != ast.KindLocalAssignment {
		return ast.NoNode
	}
	targets := t.Slot(stat, ast.SlotTargets)
	values := t.Slot(stat, ast.SlotValues)
	for i, id := range targets {
		if id == name && i < len(values) {
			return values[i]
		}
	}
	return ast.NoNode
}

// ChainTail returns the last link of a pure name chain (a, a.b, a.b.c) or
// NoNode when the chain contains anything else.
func ChainTail(t *ast.Tree, head ast.NodeID) ast.NodeID {
	if t.Kind(head) != ast.KindVar {
		return ast.NoNode
	}
	cur := head
	for {
		next := t.Child(cur, ast.SlotSuffix)
		if next == ast.NoNode {
			return cur
		}
		if t.Kind(next) != ast.KindMember {
			return ast.NoNode
		}
		cur = next
	}
}

// ContainingStat returns the statement that holds id, or id itself when it
// is a statement.
func ContainingStat(t *ast.Tree, id ast.NodeID) ast.NodeID {
	for cur := id; cur != ast.NoNode; cur = t.Parent(cur) {
		if t.Kind(t.Parent(cur)) == ast.KindBlock {
			return cur
		}
	}
	return ast.NoNode
}

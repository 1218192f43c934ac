package ast

import (
	"fmt"
	"strings"
)

// Tree is the arena holding one version of a program.
type Tree struct {
	nodes []Node
	root  NodeID
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{root: NoNode}
}

// Len returns the number of nodes in the arena, attached or not.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Root returns the root node, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	return t.root
}

// SetRoot makes id the root of the tree.
func (t *Tree) SetRoot(id NodeID) {
	t.mustValid(id)
	t.root = id
}

// Valid reports whether id addresses a node of t.
func (t *Tree) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Tree) mustValid(id NodeID) {
	if !t.Valid(id) {
		Fail("tree", fmt.Sprintf("node %d", id), fmt.Errorf("%w: [0,%d)", ErrNodeRange, len(t.nodes)))
	}
}

// Node returns the arena entry for id. The pointer is invalidated by Add.
func (t *Tree) Node(id NodeID) *Node {
	t.mustValid(id)
	return &t.nodes[id]
}

// Kind returns the kind of id, or KindInvalid for NoNode.
func (t *Tree) Kind(id NodeID) Kind {
	if !t.Valid(id) {
		return KindInvalid
	}
	return t.nodes[id].Kind
}

// Parent returns the parent of id, or NoNode for a root or detached node.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.Valid(id) {
		return NoNode
	}
	return t.nodes[id].parent
}

// SlotOf returns the slot id occupies in its parent.
func (t *Tree) SlotOf(id NodeID) Slot {
	if !t.Valid(id) {
		return SlotNone
	}
	return t.nodes[id].slot
}

// Add stores n as a detached node and returns its id.
func (t *Tree) Add(n Node) NodeID {
	n.parent = NoNode
	n.slot = SlotNone
	n.kids = nil
	if n.Ref.State == RefNone {
		n.Ref.Target = NoNode
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// Append attaches the detached node child to parent under slot.
func (t *Tree) Append(parent NodeID, slot Slot, child NodeID) {
	t.mustValid(parent)
	t.mustValid(child)
	c := &t.nodes[child]
	if c.parent != NoNode || child == t.root {
		Fail("tree", t.Describe(child), ErrAttached)
	}
	c.parent = parent
	c.slot = slot
	p := &t.nodes[parent]
	p.kids = append(p.kids, edge{slot: slot, id: child})
}

// NewChild adds n and attaches it to parent under slot.
func (t *Tree) NewChild(parent NodeID, slot Slot, n Node) NodeID {
	id := t.Add(n)
	t.Append(parent, slot, id)
	return id
}

// Children returns every child of id in source order.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.Valid(id) {
		return nil
	}
	kids := t.nodes[id].kids
	out := make([]NodeID, len(kids))
	for i, e := range kids {
		out[i] = e.id
	}
	return out
}

// Slot returns the children of id held in slot, in order.
func (t *Tree) Slot(id NodeID, slot Slot) []NodeID {
	if !t.Valid(id) {
		return nil
	}
	var out []NodeID
	for _, e := range t.nodes[id].kids {
		if e.slot == slot {
			out = append(out, e.id)
		}
	}
	return out
}

// Child returns the first child of id in slot, or NoNode.
func (t *Tree) Child(id NodeID, slot Slot) NodeID {
	if !t.Valid(id) {
		return NoNode
	}
	for _, e := range t.nodes[id].kids {
		if e.slot == slot {
			return e.id
		}
	}
	return NoNode
}

// SlotsOf returns the distinct slots used by the children of id, in first-use order.
func (t *Tree) SlotsOf(id NodeID) []Slot {
	if !t.Valid(id) {
		return nil
	}
	var out []Slot
	seen := make(map[Slot]bool)
	for _, e := range t.nodes[id].kids {
		if !seen[e.slot] {
			seen[e.slot] = true
			out = append(out, e.slot)
		}
	}
	return out
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if !t.Valid(id) {
		return
	}
	if !fn(id) {
		return
	}
	for _, e := range t.nodes[id].kids {
		t.Walk(e.id, fn)
	}
}

// Ancestor returns the nearest strict ancestor of id whose kind is one of
// kinds, or NoNode.
func (t *Tree) Ancestor(id NodeID, kinds ...Kind) NodeID {
	for p := t.Parent(id); p != NoNode; p = t.Parent(p) {
		for _, k := range kinds {
			if t.nodes[p].Kind == k {
				return p
			}
		}
	}
	return NoNode
}

// AncestorOrSelf is like Ancestor but considers id itself first.
func (t *Tree) AncestorOrSelf(id NodeID, kinds ...Kind) NodeID {
	if t.Valid(id) {
		for _, k := range kinds {
			if t.nodes[id].Kind == k {
				return id
			}
		}
	}
	return t.Ancestor(id, kinds...)
}

// IsAncestor reports whether anc is id or one of its ancestors.
func (t *Tree) IsAncestor(anc, id NodeID) bool {
	for p := id; p != NoNode; p = t.Parent(p) {
		if p == anc {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of t. Node ids are preserved.
func (t *Tree) Clone() *Tree {
	c := &Tree{root: t.root, nodes: make([]Node, len(t.nodes))}
	copy(c.nodes, t.nodes)
	for i := range c.nodes {
		if kids := c.nodes[i].kids; kids != nil {
			c.nodes[i].kids = append([]edge(nil), kids...)
		}
	}
	return c
}

// Graft copies the subtree of src rooted at srcRoot into t and attaches the
// copy to parent under slot. References between nodes of the copied subtree
// are remapped; references leaving it become unresolved.
func (t *Tree) Graft(parent NodeID, slot Slot, src *Tree, srcRoot NodeID) NodeID {
	remap := make(map[NodeID]NodeID)
	var copySub func(id NodeID) NodeID
	copySub = func(id NodeID) NodeID {
		n := src.nodes[id]
		nid := t.Add(n)
		remap[id] = nid
		for _, e := range n.kids {
			c := copySub(e.id)
			t.Append(nid, e.slot, c)
		}
		return nid
	}
	root := copySub(srcRoot)
	for old, nid := range remap {
		r := src.nodes[old].Ref
		if r.State != RefResolved {
			continue
		}
		if target, ok := remap[r.Target]; ok {
			t.nodes[nid].Ref = Resolved(target)
		} else {
			t.nodes[nid].Ref = Unresolved()
		}
	}
	if parent != NoNode {
		t.Append(parent, slot, root)
	}
	return root
}

// QualifiedName joins the names of a feature chain up to and including id,
// e.g. "A.b.c" or "obj:m". The name starts after the nearest unnamed link
// (call, index or parenthesis) preceding id.
func (t *Tree) QualifiedName(id NodeID) string {
	var parts, seps []string
walk:
	for cur := id; t.Kind(cur).IsFeature(); cur = t.Parent(cur) {
		n := &t.nodes[cur]
		switch n.Kind {
		case KindVar:
			parts = append(parts, n.Name)
			seps = append(seps, "")
			break walk
		case KindMember:
			parts = append(parts, n.Name)
			seps = append(seps, ".")
		case KindMethodCall:
			parts = append(parts, n.Name)
			seps = append(seps, ":")
		default:
			if cur != id {
				break walk
			}
		}
		if n.slot != SlotSuffix {
			break
		}
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		if b.Len() > 0 {
			b.WriteString(seps[i])
		}
		b.WriteString(parts[i])
	}
	return b.String()
}

// Describe renders id as kind[name]@line for logs and test messages.
func (t *Tree) Describe(id NodeID) string {
	if !t.Valid(id) {
		return "<none>"
	}
	n := &t.nodes[id]
	var b strings.Builder
	b.WriteString(n.Kind.String())
	if n.Name != "" {
		fmt.Fprintf(&b, "[%s]", n.Name)
	}
	if n.Line > 0 {
		fmt.Fprintf(&b, "@%d", n.Line)
	}
	return b.String()
}

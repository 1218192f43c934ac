package resolve

import "github.com/phobologic/astsync/internal/ast"

// CallSites returns every call site in the tree in source order.
func (r *Resolver) CallSites() []CallSite {
	return r.CallsIn(r.t.Root())
}

// CallsIn returns the call sites inside the subtree rooted at id, including
// id itself, in source order.
func (r *Resolver) CallsIn(id ast.NodeID) []CallSite {
	var out []CallSite
	r.t.Walk(id, func(cur ast.NodeID) bool {
		if cs, ok := r.CallSiteAt(cur); ok {
			out = append(out, cs)
		}
		return true
	})
	return out
}

// ExternalCalls returns every resolved call that crosses a component boundary.
func (r *Resolver) ExternalCalls() []CallSite {
	var out []CallSite
	for _, cs := range r.CallSites() {
		if r.IsExternal(cs) {
			out = append(out, cs)
		}
	}
	return out
}

// Index maps each declaration to the call sites that resolve to it.
type Index struct {
	callers map[ast.NodeID][]CallSite
	decls   map[ast.NodeID]Declaration
	order   []ast.NodeID
}

// BuildIndex indexes every resolved call site of the tree.
func (r *Resolver) BuildIndex() *Index {
	idx := &Index{
		callers: make(map[ast.NodeID][]CallSite),
		decls:   make(map[ast.NodeID]Declaration),
	}
	for _, d := range r.Declarations() {
		idx.decls[d.Root] = d
		idx.order = append(idx.order, d.Root)
	}
	for _, cs := range r.CallSites() {
		d, ok := cs.Target.Get()
		if !ok {
			continue
		}
		idx.callers[d.Root] = append(idx.callers[d.Root], cs)
	}
	return idx
}

// Callers returns the call sites resolving to the declaration rooted at root.
func (idx *Index) Callers(root ast.NodeID) []CallSite {
	return idx.callers[root]
}

// Declarations returns the indexed declarations in source order.
func (idx *Index) Declarations() []Declaration {
	out := make([]Declaration, 0, len(idx.order))
	for _, root := range idx.order {
		out = append(out, idx.decls[root])
	}
	return out
}

// Unused returns the declarations no call site resolves to.
func (idx *Index) Unused() []Declaration {
	var out []Declaration
	for _, root := range idx.order {
		if len(idx.callers[root]) == 0 {
			out = append(out, idx.decls[root])
		}
	}
	return out
}

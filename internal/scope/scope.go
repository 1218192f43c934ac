// Package scope compares the structural position of named entities across
// two versions of a tree.
package scope

import (
	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/classify"
)

// AncestorChain returns the kinds of the ancestors of id, nearest first,
// up to and including the root. A root node has an empty chain.
func AncestorChain(t *ast.Tree, id ast.NodeID) []classify.NodeKind {
	var chain []classify.NodeKind
	for p := t.Parent(id); p != ast.NoNode; p = t.Parent(p) {
		chain = append(chain, classify.Classify(t, p))
	}
	return chain
}

// Depth returns the number of ancestors of id.
func Depth(t *ast.Tree, id ast.NodeID) int {
	d := 0
	for p := t.Parent(id); p != ast.NoNode; p = t.Parent(p) {
		d++
	}
	return d
}

// SameScope reports whether o in ot and n in nt sit at structurally equal
// positions: both ancestor chains have the same length, pairwise equal kinds,
// and equal right-hand list lengths wherever both ancestors are assignments.
// Ancestor content is not compared.
func SameScope(ot *ast.Tree, o ast.NodeID, nt *ast.Tree, n ast.NodeID) bool {
	po, pn := ot.Parent(o), nt.Parent(n)
	for po != ast.NoNode && pn != ast.NoNode {
		ko, kn := classify.Classify(ot, po), classify.Classify(nt, pn)
		if ko != kn {
			return false
		}
		if ko.IsAssignmentLike() &&
			len(ot.Slot(po, ast.SlotValues)) != len(nt.Slot(pn, ast.SlotValues)) {
			return false
		}
		po, pn = ot.Parent(po), nt.Parent(pn)
	}
	return po == ast.NoNode && pn == ast.NoNode
}

// SameReferenceable reports whether two named entities match by name and scope.
func SameReferenceable(ot *ast.Tree, o ast.NodeID, nt *ast.Tree, n ast.NodeID) bool {
	if ot.Node(o).Name != nt.Node(n).Name {
		return false
	}
	return SameScope(ot, o, nt, n)
}

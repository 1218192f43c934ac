// Package report turns an impact analysis or a matching pass into the
// serializable structures of package model.
package report

import (
	"path/filepath"
	"sort"

	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/changes"
	"github.com/phobologic/astsync/internal/graph"
	"github.com/phobologic/astsync/internal/impact"
	"github.com/phobologic/astsync/internal/loader"
	"github.com/phobologic/astsync/internal/match"
	"github.com/phobologic/astsync/internal/model"
	"github.com/phobologic/astsync/internal/resolve"
)

// Build assembles the impact report of snap. info must have been computed
// over snap.Tree.
func Build(snap *loader.Snapshot, info *impact.Info) *model.Report {
	t := snap.Tree
	res := info.Resolver()

	r := &model.Report{
		Project:     filepath.Base(snap.Root),
		Policy:      info.Policy().String(),
		Fingerprint: snap.Fingerprint(),
	}

	for _, cs := range res.ExternalCalls() {
		d, _ := cs.Target.Get()
		r.CallSites = append(r.CallSites, model.CallSite{
			Caller:          callerName(res, cs.Node),
			Callee:          d.Name,
			Component:       t.Node(cs.Component).Name,
			TargetComponent: t.Node(d.Component).Name,
			File:            FileOf(t, cs.Node),
			Line:            t.Node(cs.Node).Line,
		})
	}
	graph.SortCallSites(r.CallSites)

	served := make(map[string]int)
	for _, d := range info.Served() {
		fn := model.Function{
			Name:      d.Name,
			Component: t.Node(d.Component).Name,
			File:      FileOf(t, d.Root),
			Line:      t.Node(d.Root).Line,
			Marked:    markedIn(info, d),
		}
		if cs, ok := info.ServedBy(d); ok {
			fn.ServedBy = t.Node(cs.Component).Name + ":" + callerName(res, cs.Node)
		}
		served[fn.Component]++
		r.Functions = append(r.Functions, fn)
		r.Actions = append(r.Actions, actions(info, d)...)
	}

	for _, d := range info.Unused() {
		r.Unused = append(r.Unused, model.Declaration{
			Name:      d.Name,
			Component: t.Node(d.Component).Name,
			File:      FileOf(t, d.Root),
			Line:      t.Node(d.Root).Line,
		})
	}

	for _, b := range info.MarkedBlocks() {
		r.Blocks = append(r.Blocks, model.Block{
			Function: callerName(res, b),
			File:     FileOf(t, b),
			Line:     blockLine(t, b),
			Role:     BlockRole(t, b),
		})
	}

	for _, g := range snap.Groups {
		r.Components = append(r.Components, model.ComponentInfo{
			Name:   g.Name,
			Files:  g.Files,
			Served: served[g.Name],
		})
	}
	r.Dependencies = graph.BuildGraph(r.CallSites)
	graph.Rank(r.Components, r.Dependencies)
	return r
}

// Changes lists the statements touched by fileChanges and whether each lies
// in a region that needs reconstruction. Files absent from snap are ignored.
func Changes(snap *loader.Snapshot, info *impact.Info, fileChanges []changes.FileChange) []model.Change {
	t := snap.Tree
	var out []model.Change
	for _, fc := range fileChanges {
		f, ok := snap.File(fc.Path)
		if !ok {
			continue
		}
		for _, stmt := range changes.Statements(t, f.Chunk, fc.Ranges) {
			out = append(out, model.Change{
				File:        f.Path,
				Line:        t.Node(stmt).Line,
				Statement:   t.Describe(stmt),
				Reconstruct: info.NeedsReconstruction(stmt),
			})
		}
	}
	return out
}

// BuildMatch summarises a matching pass between two snapshots. Only
// structural nodes (components, chunks and statements) are listed.
func BuildMatch(old, new *loader.Snapshot, res *match.Result) *model.MatchReport {
	out := &model.MatchReport{
		Old: filepath.Base(old.Root),
		New: filepath.Base(new.Root),
	}
	// Pairs follow the old tree in source order.
	partner := res.OldToNew()
	old.Tree.Walk(old.Tree.Root(), func(id ast.NodeID) bool {
		n, ok := partner[id]
		if ok && listed(old.Tree, id) {
			out.Pairs = append(out.Pairs, model.Pair{
				Old: nodeRef(old.Tree, id),
				New: nodeRef(new.Tree, n),
			})
		}
		return true
	})
	for _, id := range res.Deleted {
		if listed(old.Tree, id) {
			out.Deleted = append(out.Deleted, nodeRef(old.Tree, id))
		}
	}
	for _, id := range res.Added {
		if listed(new.Tree, id) {
			out.Added = append(out.Added, nodeRef(new.Tree, id))
		}
	}
	sortRefs(out.Deleted)
	sortRefs(out.Added)
	return out
}

// FileOf returns the name of the chunk holding id.
func FileOf(t *ast.Tree, id ast.NodeID) string {
	chunk := t.AncestorOrSelf(id, ast.KindNamedChunk)
	if chunk == ast.NoNode {
		return ""
	}
	return t.Node(chunk).Name
}

// BlockRole names the position of block within its parent statement.
func BlockRole(t *ast.Tree, block ast.NodeID) string {
	parent := t.Parent(block)
	switch t.Kind(parent) {
	case ast.KindFuncBody:
		return "body"
	case ast.KindElseIf:
		return "elseif"
	case ast.KindIf:
		if t.SlotOf(block) == ast.SlotElse {
			return "else"
		}
		return "then"
	case ast.KindWhile, ast.KindRepeat, ast.KindNumericFor, ast.KindGenericFor:
		return "loop"
	case ast.KindDo:
		return "do"
	}
	return "block"
}

func callerName(res *resolve.Resolver, id ast.NodeID) string {
	t := res.Tree()
	body := t.AncestorOrSelf(id, ast.KindFuncBody)
	if body == ast.NoNode {
		return model.ChunkCaller
	}
	if d, ok := res.Declaration(t.Parent(body)); ok && d.Name != "" {
		return d.Name
	}
	return model.ChunkCaller
}

func markedIn(info *impact.Info, d resolve.Declaration) int {
	t := info.Tree()
	n := 0
	for _, b := range info.MarkedBlocks() {
		if t.IsAncestor(d.Body, b) && t.AncestorOrSelf(t.Parent(b), ast.KindFuncBody) == d.Body {
			n++
		}
	}
	return n
}

// actions reconstructs the body of d, descending into marked branches, loop
// bodies and do blocks.
func actions(info *impact.Info, d resolve.Declaration) []model.Action {
	t := info.Tree()
	var out []model.Action
	var walk func(block ast.NodeID)
	walk = func(block ast.NodeID) {
		for _, stmt := range t.Slot(block, ast.SlotStats) {
			switch t.Kind(stmt) {
			case ast.KindFunctionDecl, ast.KindLocalFunctionDecl:
				continue
			case ast.KindDo:
				if body := t.Child(stmt, ast.SlotBody); info.IsMarked(body) {
					walk(body)
				}
				continue
			}
			for _, a := range info.Reconstruct(stmt) {
				out = append(out, model.Action{
					Function:    d.Name,
					Kind:        a.Kind.String(),
					Callee:      a.Callee,
					File:        FileOf(t, stmt),
					Line:        t.Node(stmt).Line,
					Description: a.Description,
				})
			}
			switch t.Kind(stmt) {
			case ast.KindIf:
				for _, b := range impact.IfBlocks(t, stmt) {
					if info.IsMarked(b) {
						walk(b)
					}
				}
			case ast.KindWhile, ast.KindRepeat, ast.KindNumericFor, ast.KindGenericFor:
				if body := t.Child(stmt, ast.SlotBody); info.IsMarked(body) {
					walk(body)
				}
			}
		}
	}
	walk(d.Block)
	return out
}

func blockLine(t *ast.Tree, block ast.NodeID) int {
	if line := t.Node(block).Line; line > 0 {
		return line
	}
	return t.Node(t.Parent(block)).Line
}

func listed(t *ast.Tree, id ast.NodeID) bool {
	k := t.Kind(id)
	return k == ast.KindComponent || k == ast.KindNamedChunk || (k.IsStatement() && k != ast.KindElseIf)
}

func nodeRef(t *ast.Tree, id ast.NodeID) model.NodeRef {
	n := t.Node(id)
	return model.NodeRef{
		Kind: n.Kind.String(),
		Name: n.Name,
		File: FileOf(t, id),
		Line: n.Line,
	}
}

func sortRefs(refs []model.NodeRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].File != refs[j].File {
			return refs[i].File < refs[j].File
		}
		return refs[i].Line < refs[j].Line
	})
}

// Package impact decides which blocks of a program need their behavioural
// model regenerated.
//
// A function needs a model counterpart when some other component calls it.
// Inside such a function, every statement containing an architecturally
// relevant call marks the blocks between itself and the function; an if
// statement on that path marks all of its branches.
package impact

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/resolve"
)

// Info holds the impact analysis of one component set snapshot. Marking is
// monotonic: a block marked during construction stays marked.
type Info struct {
	// Generation identifies this build of the info.
	Generation uuid.UUID

	tree     *ast.Tree
	policy   Policy
	resolver *resolve.Resolver
	index    *resolve.Index
	logger   *slog.Logger

	servedBy map[ast.NodeID]resolve.CallSite
	served   []resolve.Declaration
	actions  map[ast.NodeID][]Action
	requires map[ast.NodeID][]ast.NodeID
	marked   map[ast.NodeID]bool
}

// NewInfo analyses t under policy. An internal consistency failure aborts
// the analysis and is returned as an *ast.InternalError.
func NewInfo(t *ast.Tree, policy Policy, logger *slog.Logger) (_ *Info, err error) {
	defer ast.Guard(&err)

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gen := uuid.New()
	info := &Info{
		Generation: gen,
		tree:       t,
		policy:     policy,
		resolver:   resolve.NewResolver(t),
		logger:     logger.With("generation", gen.String()),
		servedBy:   make(map[ast.NodeID]resolve.CallSite),
		actions:    make(map[ast.NodeID][]Action),
		requires:   make(map[ast.NodeID][]ast.NodeID),
		marked:     make(map[ast.NodeID]bool),
	}
	info.index = info.resolver.BuildIndex()
	info.collectServed()
	info.scan()
	info.logger.Debug("impact analysis complete",
		"policy", policy.String(),
		"served", len(info.served),
		"marked_blocks", len(info.marked),
	)
	return info, nil
}

func (i *Info) collectServed() {
	for _, d := range i.index.Declarations() {
		for _, cs := range i.index.Callers(d.Root) {
			if !i.resolver.IsExternal(cs) {
				continue
			}
			if _, ok := i.servedBy[d.Root]; !ok {
				i.servedBy[d.Root] = cs
				i.served = append(i.served, d)
			}
			if !slices.Contains(i.requires[cs.Component], d.Component) {
				i.requires[cs.Component] = append(i.requires[cs.Component], d.Component)
			}
		}
	}
	for _, comps := range i.requires {
		slices.Sort(comps)
	}
}

func (i *Info) scan() {
	for _, d := range i.served {
		i.mark(d.Block)
		i.tree.Walk(d.Block, func(id ast.NodeID) bool {
			if i.tree.Kind(id).IsStatement() && i.hasRelevantCall(id) {
				i.logger.Debug("statement causes reconstruction",
					"function", d.Name, "statement", i.tree.Describe(id))
				i.markPath(id, d)
			}
			return true
		})
	}
}

func (i *Info) hasRelevantCall(stmt ast.NodeID) bool {
	for _, cs := range i.resolver.CallsIn(stmt) {
		if i.IsRelevant(cs) {
			return true
		}
	}
	return false
}

// IsRelevant reports whether cs affects the behavioural model: it must be
// resolved and either cross a component boundary or, under
// PolicyInternalCallAction, call a function that itself needs reconstruction.
func (i *Info) IsRelevant(cs resolve.CallSite) bool {
	if cs.Mocked() {
		return false
	}
	if i.resolver.IsExternal(cs) {
		return true
	}
	d, _ := cs.Target.Get()
	return i.policy == PolicyInternalCallAction &&
		i.resolver.IsInternal(cs) &&
		i.NeedsDeclaration(d)
}

// markPath marks every block from stmt up to the statement holding the
// declaration, and every branch of each if statement on the way.
func (i *Info) markPath(stmt ast.NodeID, d resolve.Declaration) {
	for cur := stmt; cur != ast.NoNode && cur != d.ContainingStat; cur = i.tree.Parent(cur) {
		switch i.tree.Kind(cur) {
		case ast.KindBlock:
			i.mark(cur)
		case ast.KindIf:
			for _, b := range IfBlocks(i.tree, cur) {
				i.mark(b)
			}
		}
	}
}

func (i *Info) mark(block ast.NodeID) {
	if block == ast.NoNode || i.marked[block] {
		return
	}
	i.marked[block] = true
}

// IfBlocks returns the then, elseif and else blocks of an if statement.
func IfBlocks(t *ast.Tree, ifStat ast.NodeID) []ast.NodeID {
	var out []ast.NodeID
	if b := t.Child(ifStat, ast.SlotThen); b != ast.NoNode {
		out = append(out, b)
	}
	for _, ei := range t.Slot(ifStat, ast.SlotElseIf) {
		if b := t.Child(ei, ast.SlotThen); b != ast.NoNode {
			out = append(out, b)
		}
	}
	if b := t.Child(ifStat, ast.SlotElse); b != ast.NoNode {
		out = append(out, b)
	}
	return out
}

// NeedsReconstruction reports whether id lies in a region that must be
// regenerated. An if statement needs it when any branch is marked; any other
// node when the block of its nearest enclosing function body is marked.
func (i *Info) NeedsReconstruction(id ast.NodeID) bool {
	if i.tree.Kind(id) == ast.KindIf {
		for _, b := range IfBlocks(i.tree, id) {
			if i.marked[b] {
				return true
			}
		}
		return false
	}
	body := i.tree.AncestorOrSelf(id, ast.KindFuncBody)
	if body == ast.NoNode {
		return false
	}
	return i.marked[i.tree.Child(body, ast.SlotBody)]
}

// IsMarked reports whether block is marked.
func (i *Info) IsMarked(block ast.NodeID) bool {
	return i.marked[block]
}

// MarkedBlocks returns the marked blocks in id order.
func (i *Info) MarkedBlocks() []ast.NodeID {
	out := make([]ast.NodeID, 0, len(i.marked))
	for id := range i.marked {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// NeedsDeclaration reports whether d is served to another component and
// therefore needs a behavioural model.
func (i *Info) NeedsDeclaration(d resolve.Declaration) bool {
	_, ok := i.servedBy[d.Root]
	return ok
}

// ServedBy returns the first external call site serving d.
func (i *Info) ServedBy(d resolve.Declaration) (resolve.CallSite, bool) {
	cs, ok := i.servedBy[d.Root]
	return cs, ok
}

// Served returns the served declarations in source order.
func (i *Info) Served() []resolve.Declaration {
	return i.served
}

// Unused returns the declarations no call site resolves to, in source order.
func (i *Info) Unused() []resolve.Declaration {
	return i.index.Unused()
}

// RequiredComponents returns the components component calls into, in id
// order.
func (i *Info) RequiredComponents(component ast.NodeID) []ast.NodeID {
	return i.requires[component]
}

// RecordAction appends a to the actions calling d.
func (i *Info) RecordAction(d resolve.Declaration, a Action) {
	i.actions[d.Root] = append(i.actions[d.Root], a)
}

// Actions returns the actions recorded as calling d.
func (i *Info) Actions(d resolve.Declaration) []Action {
	return i.actions[d.Root]
}

// Tree returns the analysed tree.
func (i *Info) Tree() *ast.Tree { return i.tree }

// Resolver returns the resolver the analysis used.
func (i *Info) Resolver() *resolve.Resolver { return i.resolver }

// Policy returns the reconstruction policy.
func (i *Info) Policy() Policy { return i.policy }

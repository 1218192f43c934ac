package match

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/phobologic/astsync/internal/ast"
)

// Pair relates a node of the old tree to a node of the new tree.
type Pair struct {
	Old ast.NodeID
	New ast.NodeID
}

// Result is the outcome of one matching pass.
type Result struct {
	// Pairs lists matched nodes in the order they were established; a
	// parent pair always precedes the pairs of its children.
	Pairs []Pair
	// Deleted lists old nodes without a counterpart.
	Deleted []ast.NodeID
	// Added lists new nodes without a counterpart.
	Added []ast.NodeID
}

// OldToNew returns the pairs as a map keyed by old node.
func (r *Result) OldToNew() map[ast.NodeID]ast.NodeID {
	out := make(map[ast.NodeID]ast.NodeID, len(r.Pairs))
	for _, p := range r.Pairs {
		out[p.Old] = p.New
	}
	return out
}

// Driver walks both trees top-down and asks the Matcher about children only
// once their parents correspond.
type Driver struct {
	m      *Matcher
	logger *slog.Logger
}

// NewDriver returns a Driver over the trees of m.
func NewDriver(m *Matcher) *Driver {
	return &Driver{m: m, logger: m.logger}
}

// Run performs one matching pass. An internal error aborts the pass and no
// pairs are returned.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	ctx, span := startPassSpan(ctx, d.m.old.Len(), d.m.new.Len())
	defer span.End()

	start := time.Now()
	res, err := d.run()
	recordPass(ctx, time.Since(start), len(resPairs(res)), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "matching aborted")
		d.logger.Error("matching pass aborted", "error", err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("match.pairs", len(res.Pairs)),
		attribute.Int("match.deleted", len(res.Deleted)),
		attribute.Int("match.added", len(res.Added)),
	)
	d.logger.Debug("matching pass complete",
		"pairs", len(res.Pairs),
		"deleted", len(res.Deleted),
		"added", len(res.Added),
	)
	return res, nil
}

func resPairs(r *Result) []Pair {
	if r == nil {
		return nil
	}
	return r.Pairs
}

func (d *Driver) run() (_ *Result, err error) {
	defer ast.Guard(&err)

	old, new := d.m.old, d.m.new
	seenOld := make(map[ast.NodeID]bool)
	seenNew := make(map[ast.NodeID]bool)
	var pairs []Pair

	var descend func(o, n ast.NodeID)
	descend = func(o, n ast.NodeID) {
		pairs = append(pairs, Pair{Old: o, New: n})
		seenOld[o] = true
		seenNew[n] = true
		for _, slot := range unionSlots(old.SlotsOf(o), new.SlotsOf(n)) {
			ol, nl := old.Slot(o, slot), new.Slot(n, slot)
			next := 0
			for _, oc := range ol {
				for j := next; j < len(nl); j++ {
					if seenNew[nl[j]] || !d.m.Match(oc, nl[j]) {
						continue
					}
					descend(oc, nl[j])
					next = j + 1
					break
				}
			}
		}
	}

	if or, nr := old.Root(), new.Root(); d.m.Match(or, nr) {
		descend(or, nr)
	}

	res := &Result{Pairs: pairs}
	old.Walk(old.Root(), func(id ast.NodeID) bool {
		if !seenOld[id] {
			res.Deleted = append(res.Deleted, id)
		}
		return true
	})
	new.Walk(new.Root(), func(id ast.NodeID) bool {
		if !seenNew[id] {
			res.Added = append(res.Added, id)
		}
		return true
	})
	return res, nil
}

func unionSlots(a, b []ast.Slot) []ast.Slot {
	out := append([]ast.Slot(nil), a...)
	for _, s := range b {
		found := false
		for _, x := range a {
			if x == s {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

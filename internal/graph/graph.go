// Package graph builds the component dependency graph and computes PageRank.
package graph

import (
	"math"
	"slices"
	"sort"

	"github.com/phobologic/astsync/internal/model"
)

// BuildGraph creates dependency edges from calls that cross component
// boundaries. Each edge lists the called functions once, in call order.
func BuildGraph(calls []model.CallSite) []model.Dependency {
	type edgeKey struct{ src, tgt string }
	edgeSymbols := make(map[edgeKey][]string)

	for i := range calls {
		cs := &calls[i]
		if cs.Component == cs.TargetComponent {
			continue
		}
		key := edgeKey{cs.Component, cs.TargetComponent}
		if !slices.Contains(edgeSymbols[key], cs.Callee) {
			edgeSymbols[key] = append(edgeSymbols[key], cs.Callee)
		}
	}

	var deps []model.Dependency
	for key, syms := range edgeSymbols {
		deps = append(deps, model.Dependency{
			Source:  key.src,
			Target:  key.tgt,
			Symbols: syms,
		})
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Source != deps[j].Source {
			return deps[i].Source < deps[j].Source
		}
		return deps[i].Target < deps[j].Target
	})

	return deps
}

// SortCallSites orders call sites by caller, callee, file and line.
func SortCallSites(sites []model.CallSite) {
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Caller != sites[j].Caller {
			return sites[i].Caller < sites[j].Caller
		}
		if sites[i].Callee != sites[j].Callee {
			return sites[i].Callee < sites[j].Callee
		}
		if sites[i].File != sites[j].File {
			return sites[i].File < sites[j].File
		}
		return sites[i].Line < sites[j].Line
	})
}

// Rank applies PageRank to components and sorts them by rank descending.
// A component many others call into ranks high. Ties keep name order.
func Rank(components []model.ComponentInfo, deps []model.Dependency) {
	if len(components) == 0 {
		return
	}

	if len(deps) == 0 {
		uniform := 1.0 / float64(len(components))
		for i := range components {
			components[i].Rank = uniform
		}
		return
	}

	// Each called function contributes one edge.
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	nodes := make(map[string]struct{})

	for i := range components {
		nodes[components[i].Name] = struct{}{}
	}

	for _, d := range deps {
		for range d.Symbols {
			outEdges[d.Source] = append(outEdges[d.Source], d.Target)
			outDegree[d.Source]++
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	for i := range components {
		components[i].Rank = ranks[components[i].Name]
	}

	sort.SliceStable(components, func(i, j int) bool {
		return components[i].Rank > components[j].Rank
	})
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for src, targets := range outEdges {
			deg := float64(outDegree[src])
			contrib := alpha * rank[src] / deg
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}

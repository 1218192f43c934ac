package graph

import (
	"math"
	"testing"

	"github.com/phobologic/astsync/internal/model"
)

func TestBuildGraphCrossComponentCall(t *testing.T) {
	t.Parallel()

	calls := []model.CallSite{
		{Caller: "run", Callee: "Core.start", Component: "App", TargetComponent: "Core"},
	}

	deps := BuildGraph(calls)
	if len(deps) != 1 {
		t.Fatalf("expected 1 dep, got %d", len(deps))
	}
	if deps[0].Source != "App" || deps[0].Target != "Core" {
		t.Errorf("dep: %+v", deps[0])
	}
	if len(deps[0].Symbols) != 1 || deps[0].Symbols[0] != "Core.start" {
		t.Errorf("symbols: %v", deps[0].Symbols)
	}
}

func TestBuildGraphNoSelfEdge(t *testing.T) {
	t.Parallel()

	calls := []model.CallSite{
		{Caller: "a", Callee: "b", Component: "Core", TargetComponent: "Core"},
	}

	deps := BuildGraph(calls)
	if len(deps) != 0 {
		t.Errorf("expected 0 deps (no self-edges), got %d", len(deps))
	}
}

func TestBuildGraphDeduplicatesSymbols(t *testing.T) {
	t.Parallel()

	calls := []model.CallSite{
		{Caller: "a", Callee: "Core.f", Component: "App", TargetComponent: "Core", Line: 1},
		{Caller: "b", Callee: "Core.f", Component: "App", TargetComponent: "Core", Line: 7},
		{Caller: "b", Callee: "Core.g", Component: "App", TargetComponent: "Core", Line: 9},
		{Caller: "h", Callee: "Util.h", Component: "Core", TargetComponent: "Util", Line: 3},
	}

	deps := BuildGraph(calls)
	if len(deps) != 2 {
		t.Fatalf("expected 2 deps, got %d: %+v", len(deps), deps)
	}
	// Sorted by source: App before Core.
	if deps[0].Source != "App" || deps[1].Source != "Core" {
		t.Errorf("unexpected order: %+v", deps)
	}
	if len(deps[0].Symbols) != 2 || deps[0].Symbols[0] != "Core.f" || deps[0].Symbols[1] != "Core.g" {
		t.Errorf("symbols: %v", deps[0].Symbols)
	}
}

func TestBuildGraphEmpty(t *testing.T) {
	t.Parallel()
	if deps := BuildGraph(nil); deps != nil {
		t.Errorf("expected nil, got %v", deps)
	}
}

func TestSortCallSites(t *testing.T) {
	t.Parallel()

	sites := []model.CallSite{
		{Caller: "foo", Callee: "bar", File: "a.lua", Line: 20},
		{Caller: "foo", Callee: "bar", File: "a.lua", Line: 10},
		{Caller: model.ChunkCaller, Callee: "bar", File: "a.lua", Line: 5},
	}
	SortCallSites(sites)

	// <chunk> sorts before "foo".
	if sites[0].Caller != model.ChunkCaller || sites[0].Line != 5 {
		t.Errorf("expected sites[0] = <chunk> at line 5, got %+v", sites[0])
	}
	if sites[1].Line != 10 || sites[2].Line != 20 {
		t.Errorf("expected lines 10, 20; got %d, %d", sites[1].Line, sites[2].Line)
	}
}

func TestRankUniform(t *testing.T) {
	t.Parallel()

	components := []model.ComponentInfo{{Name: "A"}, {Name: "B"}}
	Rank(components, nil)

	for _, c := range components {
		if math.Abs(c.Rank-0.5) > 1e-9 {
			t.Errorf("%s rank = %f, want 0.5", c.Name, c.Rank)
		}
	}
}

func TestRankCalleeRanksHigher(t *testing.T) {
	t.Parallel()

	components := []model.ComponentInfo{{Name: "App"}, {Name: "Core"}, {Name: "Util"}}
	deps := []model.Dependency{
		{Source: "App", Target: "Core", Symbols: []string{"f", "g"}},
		{Source: "Util", Target: "Core", Symbols: []string{"h"}},
	}
	Rank(components, deps)

	if components[0].Name != "Core" {
		t.Errorf("expected Core first, got %+v", components)
	}

	var sum float64
	for _, c := range components {
		sum += c.Rank
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("ranks sum to %f, want 1", sum)
	}
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()
	Rank(nil, nil) // must not panic
}

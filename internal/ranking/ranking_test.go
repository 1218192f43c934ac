package ranking

import (
	"testing"

	"github.com/phobologic/astsync/internal/model"
)

func makeReport() *model.Report {
	return &model.Report{
		Project: "test",
		Policy:  "external-call-action",
		Components: []model.ComponentInfo{
			{Name: "Core", Files: []string{"core/a.lua"}, Rank: 0.5},
			{Name: "Plugins", Files: []string{"plugins/b.lua"}, Rank: 0.3},
			{Name: "Runtime", Files: []string{"src/c.lua"}, Rank: 0.2},
		},
		Functions: []model.Function{
			{Name: "Core.f", Component: "Core", File: "core/a.lua", Line: 1},
			{Name: "Plugins.g", Component: "Plugins", File: "plugins/b.lua", Line: 3},
			{Name: "Runtime.h", Component: "Runtime", File: "src/c.lua", Line: 5},
		},
		CallSites: []model.CallSite{
			{Caller: "Plugins.g", Callee: "Core.f", Component: "Plugins", TargetComponent: "Core", File: "plugins/b.lua", Line: 4},
			{Caller: "Runtime.h", Callee: "Plugins.g", Component: "Runtime", TargetComponent: "Plugins", File: "src/c.lua", Line: 6},
			{Caller: "Runtime.h", Callee: "Core.f", Component: "Runtime", TargetComponent: "Core", File: "src/c.lua", Line: 7},
		},
		Dependencies: []model.Dependency{
			{Source: "Plugins", Target: "Core", Symbols: []string{"Core.f"}},
			{Source: "Runtime", Target: "Core", Symbols: []string{"Core.f"}},
			{Source: "Runtime", Target: "Plugins", Symbols: []string{"Plugins.g"}},
		},
		Blocks: []model.Block{
			{Function: "Core.f", File: "core/a.lua", Line: 1, Role: "body"},
			{Function: "Plugins.g", File: "plugins/b.lua", Line: 3, Role: "body"},
		},
		Actions: []model.Action{
			{Function: "Plugins.g", Kind: "external-call", Callee: "Core.f", File: "plugins/b.lua", Line: 4},
		},
		Unused: []model.Declaration{
			{Name: "Runtime.main", Component: "Runtime", File: "src/c.lua", Line: 9},
		},
	}
}

func TestSelectComponentsAll(t *testing.T) {
	t.Parallel()

	r := makeReport()
	if got := SelectComponents(r, 0); got != r {
		t.Error("maxComponents=0 should return original")
	}
	if got := SelectComponents(r, 5); got != r {
		t.Error("maxComponents > len should return original")
	}
	if got := SelectComponents(r, 3); got != r {
		t.Error("maxComponents == len should return original")
	}
}

func TestSelectComponentsSubset(t *testing.T) {
	t.Parallel()

	r := makeReport()
	got := SelectComponents(r, 2)

	if len(got.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(got.Components))
	}
	if got.Components[0].Name != "Core" || got.Components[1].Name != "Plugins" {
		t.Errorf("expected Core, Plugins; got %s, %s", got.Components[0].Name, got.Components[1].Name)
	}

	// Only Plugins→Core survives (Runtime not selected)
	if len(got.Dependencies) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(got.Dependencies))
	}
	if got.Dependencies[0].Source != "Plugins" {
		t.Errorf("unexpected dependency %+v", got.Dependencies[0])
	}
	if len(got.CallSites) != 1 || got.CallSites[0].Caller != "Plugins.g" {
		t.Errorf("expected only the Plugins.g call site, got %+v", got.CallSites)
	}
	if len(got.Functions) != 2 {
		t.Errorf("expected 2 functions, got %d", len(got.Functions))
	}
	if len(got.Blocks) != 2 || len(got.Actions) != 1 {
		t.Errorf("blocks=%d actions=%d", len(got.Blocks), len(got.Actions))
	}
	if len(got.Unused) != 0 {
		t.Errorf("unused declarations of dropped components kept: %+v", got.Unused)
	}
	if got.Project != "test" || got.Policy != r.Policy {
		t.Error("header fields not preserved")
	}
}

func TestSelectComponentsDoesNotMutate(t *testing.T) {
	t.Parallel()

	r := makeReport()
	_ = SelectComponents(r, 1)

	if len(r.Components) != 3 || len(r.CallSites) != 3 || len(r.Dependencies) != 3 {
		t.Error("original report was mutated")
	}
}

func TestFilterByFunction(t *testing.T) {
	t.Parallel()

	r := makeReport()
	got := FilterByFunction(r, "core.F")

	if len(got.Functions) != 1 || got.Functions[0].Name != "Core.f" {
		t.Fatalf("expected Core.f, got %+v", got.Functions)
	}
	if len(got.CallSites) != 2 {
		t.Errorf("expected 2 calls into Core.f, got %d", len(got.CallSites))
	}
	if len(got.Blocks) != 1 {
		t.Errorf("expected 1 block, got %d", len(got.Blocks))
	}
	if len(got.Actions) != 0 {
		t.Errorf("expected no actions, got %d", len(got.Actions))
	}
}

func TestFilterByFunctionNoMatch(t *testing.T) {
	t.Parallel()

	got := FilterByFunction(makeReport(), "nothing")
	if len(got.Functions) != 0 || len(got.CallSites) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestFilterByFunctionUnused(t *testing.T) {
	t.Parallel()

	got := FilterByFunction(makeReport(), "runtime.main")
	if len(got.Functions) != 0 {
		t.Errorf("expected no served functions, got %+v", got.Functions)
	}
	if len(got.Unused) != 1 || got.Unused[0].Name != "Runtime.main" {
		t.Errorf("expected Runtime.main, got %+v", got.Unused)
	}
}

func TestFilterByFile(t *testing.T) {
	t.Parallel()

	r := makeReport()
	got := FilterByFile(r, "PLUGINS/")

	if len(got.Components) != 1 || got.Components[0].Name != "Plugins" {
		t.Fatalf("expected Plugins component, got %+v", got.Components)
	}
	if len(got.Functions) != 1 || got.Functions[0].Name != "Plugins.g" {
		t.Errorf("expected Plugins.g, got %+v", got.Functions)
	}
	// Calls made from plugins/b.lua and calls into Plugins.g
	if len(got.CallSites) != 2 {
		t.Errorf("expected 2 call sites, got %d", len(got.CallSites))
	}
	if len(got.Blocks) != 1 || len(got.Actions) != 1 {
		t.Errorf("blocks=%d actions=%d", len(got.Blocks), len(got.Actions))
	}
}

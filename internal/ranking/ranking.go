// Package ranking narrows an impact report to the parts a reader asked for.
package ranking

import (
	"strings"

	"github.com/phobologic/astsync/internal/model"
)

// SelectComponents returns a new Report with only the top-ranked components.
// Components must already be sorted by rank. If maxComponents is <= 0 or
// >= len(components), the report is returned unchanged.
func SelectComponents(r *model.Report, maxComponents int) *model.Report {
	if maxComponents <= 0 || maxComponents >= len(r.Components) {
		return r
	}

	selected := r.Components[:maxComponents]
	names := make(map[string]struct{}, maxComponents)
	for i := range selected {
		names[selected[i].Name] = struct{}{}
	}

	out := filter(r, func(component string) bool {
		_, ok := names[component]
		return ok
	}, nil)
	out.Components = selected

	var deps []model.Dependency
	for i := range r.Dependencies {
		d := &r.Dependencies[i]
		_, srcOK := names[d.Source]
		_, tgtOK := names[d.Target]
		if srcOK && tgtOK {
			deps = append(deps, *d)
		}
	}
	out.Dependencies = deps
	return out
}

// FilterByFunction returns a new Report limited to served functions whose
// name contains substr (case-insensitive), the calls into them, and the
// blocks and actions inside them.
func FilterByFunction(r *model.Report, substr string) *model.Report {
	lower := strings.ToLower(substr)
	matched := make(map[string]struct{})
	for i := range r.Functions {
		if strings.Contains(strings.ToLower(r.Functions[i].Name), lower) {
			matched[r.Functions[i].Name] = struct{}{}
		}
	}
	has := func(name string) bool {
		_, ok := matched[name]
		return ok
	}

	out := copyHeader(r)
	out.Components = r.Components
	for i := range r.Functions {
		if has(r.Functions[i].Name) {
			out.Functions = append(out.Functions, r.Functions[i])
		}
	}
	for i := range r.CallSites {
		if has(r.CallSites[i].Callee) {
			out.CallSites = append(out.CallSites, r.CallSites[i])
		}
	}
	for i := range r.Blocks {
		if has(r.Blocks[i].Function) {
			out.Blocks = append(out.Blocks, r.Blocks[i])
		}
	}
	for i := range r.Actions {
		if has(r.Actions[i].Function) {
			out.Actions = append(out.Actions, r.Actions[i])
		}
	}
	for i := range r.Unused {
		if has(r.Unused[i].Name) {
			out.Unused = append(out.Unused, r.Unused[i])
		}
	}
	out.Dependencies = r.Dependencies
	out.Changes = r.Changes
	return out
}

// FilterByFile returns a new Report containing only rows located in files
// whose path contains substr (case-insensitive). Call sites are kept when
// either end lies in a matched file.
func FilterByFile(r *model.Report, substr string) *model.Report {
	lower := strings.ToLower(substr)
	matchFile := func(path string) bool {
		return strings.Contains(strings.ToLower(path), lower)
	}

	out := filter(r, nil, matchFile)

	// Keep calls made into functions of matched files as well.
	served := make(map[string]struct{})
	for i := range out.Functions {
		served[out.Functions[i].Name] = struct{}{}
	}
	out.CallSites = nil
	for i := range r.CallSites {
		cs := &r.CallSites[i]
		_, into := served[cs.Callee]
		if into || matchFile(cs.File) {
			out.CallSites = append(out.CallSites, *cs)
		}
	}

	for i := range r.Components {
		for _, f := range r.Components[i].Files {
			if matchFile(f) {
				out.Components = append(out.Components, r.Components[i])
				break
			}
		}
	}
	out.Dependencies = r.Dependencies
	return out
}

func copyHeader(r *model.Report) *model.Report {
	return &model.Report{
		Project:     r.Project,
		Policy:      r.Policy,
		Fingerprint: r.Fingerprint,
	}
}

// filter keeps rows whose component satisfies keepComponent and whose file
// satisfies keepFile; a nil predicate keeps everything.
func filter(r *model.Report, keepComponent, keepFile func(string) bool) *model.Report {
	okComponent := func(c string) bool { return keepComponent == nil || keepComponent(c) }
	okFile := func(f string) bool { return keepFile == nil || keepFile(f) }

	out := copyHeader(r)
	functionComponent := make(map[string]string, len(r.Functions))
	for i := range r.Functions {
		fn := &r.Functions[i]
		functionComponent[fn.Name] = fn.Component
		if okComponent(fn.Component) && okFile(fn.File) {
			out.Functions = append(out.Functions, *fn)
		}
	}
	for i := range r.CallSites {
		cs := &r.CallSites[i]
		if okComponent(cs.Component) && okComponent(cs.TargetComponent) && okFile(cs.File) {
			out.CallSites = append(out.CallSites, *cs)
		}
	}
	for i := range r.Blocks {
		b := &r.Blocks[i]
		if okComponent(functionComponent[b.Function]) && okFile(b.File) {
			out.Blocks = append(out.Blocks, *b)
		}
	}
	for i := range r.Actions {
		a := &r.Actions[i]
		if okComponent(functionComponent[a.Function]) && okFile(a.File) {
			out.Actions = append(out.Actions, *a)
		}
	}
	for i := range r.Changes {
		if okFile(r.Changes[i].File) {
			out.Changes = append(out.Changes, r.Changes[i])
		}
	}
	for i := range r.Unused {
		d := &r.Unused[i]
		if okComponent(d.Component) && okFile(d.File) {
			out.Unused = append(out.Unused, *d)
		}
	}
	return out
}

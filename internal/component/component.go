// Package component partitions source files into named components.
package component

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Names of the buckets filled by the dedicated strategies.
const (
	MockedComponent  = "Mocked Objects"
	StdLibComponent  = "Lua Standard Library"
	DefaultComponent = "Default"
)

// Rule assigns files to the component Name when their path ends with one of
// Files, or when one of their ancestor directories ends with one of Dirs.
type Rule struct {
	Name  string   `yaml:"name"`
	Dirs  []string `yaml:"dirs,omitempty"`
	Files []string `yaml:"files,omitempty"`
}

// Strategy assigns a repo-relative, slash separated path to a component.
type Strategy interface {
	Detect(rel string) (string, bool)
}

// Detector applies strategies in order; the first match wins and unmatched
// files fall through to the default component.
type Detector struct {
	strategies []Strategy
	fallback   string
}

// Options configures the built-in strategies.
type Options struct {
	// MockedDirs hold stand-ins for code outside the project.
	MockedDirs []string
	// StdLibDirs hold shims of the Lua standard library.
	StdLibDirs []string
	// Default names the bucket for unmatched files.
	Default string
}

// NewDetector returns a detector that tries the mocked and standard library
// buckets first, then rules in order.
func NewDetector(rules []Rule, opts Options) *Detector {
	fallback := opts.Default
	if fallback == "" {
		fallback = DefaultComponent
	}
	return &Detector{
		strategies: []Strategy{
			dirBucket{name: MockedComponent, dirs: opts.MockedDirs},
			dirBucket{name: StdLibComponent, dirs: opts.StdLibDirs},
			directoryRules(rules),
		},
		fallback: fallback,
	}
}

// Detect returns the component for rel.
func (d *Detector) Detect(rel string) string {
	rel = filepath.ToSlash(rel)
	for _, s := range d.strategies {
		if name, ok := s.Detect(rel); ok {
			return name
		}
	}
	return d.fallback
}

// Group is one detected component and its files.
type Group struct {
	Name  string
	Files []string
}

// Partition groups files by component. Groups and their files are sorted.
func (d *Detector) Partition(files []string) []Group {
	byName := make(map[string][]string)
	for _, f := range files {
		name := d.Detect(f)
		byName[name] = append(byName[name], f)
	}
	groups := make([]Group, 0, len(byName))
	for name, fs := range byName {
		sort.Strings(fs)
		groups = append(groups, Group{Name: name, Files: fs})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
	return groups
}

type dirBucket struct {
	name string
	dirs []string
}

func (b dirBucket) Detect(rel string) (string, bool) {
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		for _, d := range b.dirs {
			if hasPathSuffix(dir, d) {
				return b.name, true
			}
		}
	}
	return "", false
}

type directoryRules []Rule

func (rules directoryRules) Detect(rel string) (string, bool) {
	for _, r := range rules {
		for _, f := range r.Files {
			if hasPathSuffix(rel, f) {
				return r.Name, true
			}
		}
	}
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		for _, r := range rules {
			for _, d := range r.Dirs {
				if hasPathSuffix(dir, d) {
					return r.Name, true
				}
			}
		}
	}
	return "", false
}

// hasPathSuffix reports whether p ends with the path elements of suffix.
func hasPathSuffix(p, suffix string) bool {
	suffix = strings.Trim(filepath.ToSlash(suffix), "/")
	if suffix == "" {
		return false
	}
	return p == suffix || strings.HasSuffix(p, "/"+suffix)
}

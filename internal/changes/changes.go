// Package changes reads unified diffs and maps them onto loaded snapshots.
package changes

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/lang"
)

const devNull = "/dev/null"

// LineRange is an inclusive range of lines on the new side of a diff.
type LineRange struct {
	Start, End int
}

// Contains reports whether line lies in r.
func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line <= r.End
}

// FileChange summarises the diff of one file.
type FileChange struct {
	Path    string // new path; the old path for deletions
	OldPath string
	Added   bool
	Deleted bool
	Ranges  []LineRange
}

// Renamed reports whether the file moved.
func (c FileChange) Renamed() bool {
	return !c.Added && !c.Deleted && c.OldPath != c.Path
}

// Parse reads a multi-file unified diff such as git diff output.
func Parse(patch []byte) ([]FileChange, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	out := make([]FileChange, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		c := FileChange{
			OldPath: stripPrefix(fd.OrigName),
			Path:    stripPrefix(fd.NewName),
			Added:   fd.OrigName == devNull,
			Deleted: fd.NewName == devNull,
		}
		if c.Deleted {
			c.Path = c.OldPath
		}
		for _, h := range fd.Hunks {
			if h.NewLines == 0 {
				continue
			}
			c.Ranges = append(c.Ranges, LineRange{
				Start: int(h.NewStartLine),
				End:   int(h.NewStartLine + h.NewLines - 1),
			})
		}
		out = append(out, c)
	}
	return out, nil
}

func stripPrefix(name string) string {
	if name == devNull {
		return ""
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return name
}

// LuaFiles returns the sorted, de-duplicated Lua paths touched by changes,
// including the old side of renames.
func LuaFiles(changes []FileChange) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p == "" || seen[p] || lang.ForPath(p) != lang.Lua {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, c := range changes {
		add(c.Path)
		if c.Renamed() {
			add(c.OldPath)
		}
	}
	sort.Strings(out)
	return out
}

// Statements returns the statements below chunk that start inside one of
// ranges, outermost first in source order. Nested statements are listed
// only when their enclosing statement starts outside the ranges.
func Statements(t *ast.Tree, chunk ast.NodeID, ranges []LineRange) []ast.NodeID {
	var out []ast.NodeID
	t.Walk(chunk, func(id ast.NodeID) bool {
		if !t.Kind(id).IsStatement() {
			return true
		}
		line := t.Node(id).Line
		for _, r := range ranges {
			if r.Contains(line) {
				out = append(out, id)
				return false
			}
		}
		return true
	})
	return out
}

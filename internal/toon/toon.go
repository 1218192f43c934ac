// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/astsync/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts an impact Report into TOON format.
func Encode(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("project: %s", encodeValue(r.Project)))
	parts = append(parts, fmt.Sprintf("policy: %s", encodeValue(r.Policy)))
	if r.Fingerprint != "" {
		parts = append(parts, fmt.Sprintf("fingerprint: %s", encodeValue(r.Fingerprint)))
	}

	var componentRows [][]string
	for i := range r.Components {
		c := &r.Components[i]
		componentRows = append(componentRows, []string{
			c.Name,
			strconv.Itoa(len(c.Files)),
			strconv.Itoa(c.Served),
			fmt.Sprintf("%.4f", c.Rank),
		})
	}
	parts = append(parts, formatTabular("components", []string{"name", "files", "served", "rank"}, componentRows))

	var functionRows [][]string
	for i := range r.Functions {
		fn := &r.Functions[i]
		functionRows = append(functionRows, []string{
			fn.Name,
			fn.Component,
			fn.File,
			strconv.Itoa(fn.Line),
			fn.ServedBy,
			strconv.Itoa(fn.Marked),
		})
	}
	parts = append(parts, formatTabular("functions", []string{"name", "component", "file", "line", "served_by", "marked"}, functionRows))

	var siteRows [][]string
	for i := range r.CallSites {
		cs := &r.CallSites[i]
		siteRows = append(siteRows, []string{
			cs.Caller,
			cs.Callee,
			cs.Component,
			cs.TargetComponent,
			cs.File,
			strconv.Itoa(cs.Line),
		})
	}
	parts = append(parts, formatTabular("callsites", []string{"caller", "callee", "from", "to", "file", "line"}, siteRows))

	var depRows [][]string
	for i := range r.Dependencies {
		d := &r.Dependencies[i]
		depRows = append(depRows, []string{
			d.Source,
			d.Target,
			strings.Join(d.Symbols, " "),
		})
	}
	parts = append(parts, formatTabular("dependencies", []string{"source", "target", "symbols"}, depRows))

	var blockRows [][]string
	for i := range r.Blocks {
		b := &r.Blocks[i]
		blockRows = append(blockRows, []string{b.Function, b.File, strconv.Itoa(b.Line), b.Role})
	}
	parts = append(parts, formatTabular("blocks", []string{"function", "file", "line", "role"}, blockRows))

	if len(r.Actions) > 0 {
		var actionRows [][]string
		for i := range r.Actions {
			a := &r.Actions[i]
			actionRows = append(actionRows, []string{
				a.Function,
				a.Kind,
				a.Callee,
				a.File,
				strconv.Itoa(a.Line),
				a.Description,
			})
		}
		parts = append(parts, formatTabular("actions", []string{"function", "kind", "callee", "file", "line", "description"}, actionRows))
	}

	if len(r.Changes) > 0 {
		var changeRows [][]string
		for i := range r.Changes {
			c := &r.Changes[i]
			changeRows = append(changeRows, []string{
				c.File,
				strconv.Itoa(c.Line),
				c.Statement,
				strconv.FormatBool(c.Reconstruct),
			})
		}
		parts = append(parts, formatTabular("changes", []string{"file", "line", "statement", "reconstruct"}, changeRows))
	}

	if len(r.Unused) > 0 {
		var unusedRows [][]string
		for i := range r.Unused {
			d := &r.Unused[i]
			unusedRows = append(unusedRows, []string{d.Name, d.Component, d.File, strconv.Itoa(d.Line)})
		}
		parts = append(parts, formatTabular("unused", []string{"name", "component", "file", "line"}, unusedRows))
	}

	return strings.Join(parts, "\n")
}

// EncodeMatch converts a MatchReport into TOON format.
func EncodeMatch(m *model.MatchReport) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("old: %s", encodeValue(m.Old)))
	parts = append(parts, fmt.Sprintf("new: %s", encodeValue(m.New)))

	var pairRows [][]string
	for i := range m.Pairs {
		p := &m.Pairs[i]
		pairRows = append(pairRows, []string{
			p.Old.Kind,
			p.Old.Name,
			p.Old.File,
			strconv.Itoa(p.Old.Line),
			p.New.File,
			strconv.Itoa(p.New.Line),
		})
	}
	parts = append(parts, formatTabular("pairs", []string{"kind", "name", "old_file", "old_line", "new_file", "new_line"}, pairRows))
	parts = append(parts, nodeTable("deleted", m.Deleted))
	parts = append(parts, nodeTable("added", m.Added))

	return strings.Join(parts, "\n")
}

func nodeTable(name string, refs []model.NodeRef) string {
	var rows [][]string
	for i := range refs {
		n := &refs[i]
		rows = append(rows, []string{n.Kind, n.Name, n.File, strconv.Itoa(n.Line)})
	}
	return formatTabular(name, []string{"kind", "name", "file", "line"}, rows)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

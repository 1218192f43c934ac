package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/lang"
)

var (
	// ErrSyntax reports a file tree-sitter could not parse cleanly.
	ErrSyntax = errors.New("syntax error")
	// ErrUnsupported reports a syntax node the converter has no mapping for.
	ErrUnsupported = errors.New("unsupported syntax")
)

// Convert parses src and returns a detached tree rooted at a named chunk
// called name. References are left unset; Link fills them in once all chunks
// share one tree.
func Convert(ctx context.Context, parser *sitter.Parser, src []byte, name string) (_ *ast.Tree, err error) {
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w in %s", ErrSyntax, name)
	}

	defer ast.Guard(&err)

	c := newConverter(src)
	chunk := c.t.Add(ast.Node{Kind: ast.KindNamedChunk, Name: name, Line: 1})
	c.t.SetRoot(chunk)
	c.t.Append(chunk, ast.SlotBody, c.block(c.children(root), 1))
	return c.t, nil
}

// The grammar keeps prefix expressions flat: a.b[c] is the sibling run
// identifier "." identifier "[" identifier "]", and a parenthesised
// expression is left_paren ... right_paren. Statement bodies are the
// siblings between named delimiters such as while_do and while_end.

var binaryOps = map[string]bool{
	"or": true, "and": true,
	"<": true, "<=": true, "==": true, "~=": true, ">=": true, ">": true,
	"|": true, "~": true, "&": true, "<<": true, ">>": true,
	"+": true, "-": true, "*": true, "/": true, "//": true, "%": true,
	"..": true, "^": true,
}

// callSuffix marks the children that end the callee of a function_call.
var callSuffix = map[string]bool{
	"self_call_colon":     true,
	"function_call_paren": true,
	"function_arguments":  true,
	"string_argument":     true,
	"table_argument":      true,
}

type converter struct {
	t   *ast.Tree
	src []byte
	// newlines holds the byte offset of every '\n' in src.
	newlines []int
}

func newConverter(src []byte) *converter {
	c := &converter{t: ast.NewTree(), src: src}
	for i, b := range src {
		if b == '\n' {
			c.newlines = append(c.newlines, i)
		}
	}
	return c
}

// text returns the source of n without the surrounding whitespace the
// grammar folds into tokens.
func (c *converter) text(n *sitter.Node) string {
	return strings.TrimSpace(lang.NodeText(n, c.src))
}

// line returns the 1-based line of the first non-blank byte of n.
func (c *converter) line(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	off, end := int(n.StartByte()), int(n.EndByte())
	for off < end && isSpace(c.src[off]) {
		off++
	}
	return sort.SearchInts(c.newlines, off) + 1
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

func (c *converter) add(kind ast.Kind, n *sitter.Node) ast.NodeID {
	return c.t.Add(ast.Node{Kind: kind, Line: c.line(n)})
}

func (c *converter) named(kind ast.Kind, name string, n *sitter.Node) ast.NodeID {
	return c.t.Add(ast.Node{Kind: kind, Name: name, Line: c.line(n)})
}

func (c *converter) unsupported(n *sitter.Node) {
	snippet := lang.CollapseWhitespace(lang.NodeText(n, c.src))
	if len(snippet) > 40 {
		snippet = snippet[:40] + "..."
	}
	ast.Fail("convert", fmt.Sprintf("%s@%d %q", n.Type(), c.line(n), snippet), ErrUnsupported)
}

// children returns every child of n, named or not, without comments.
func (c *converter) children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func childOfType(kids []*sitter.Node, typ string) *sitter.Node {
	for _, k := range kids {
		if k.Type() == typ {
			return k
		}
	}
	return nil
}

func indexOfType(kids []*sitter.Node, typ string) int {
	for i, k := range kids {
		if k.Type() == typ {
			return i
		}
	}
	return -1
}

// split cuts kids at the delimiters named in marks. parts[0] precedes the
// first delimiter and parts[i+1] follows delims[i].
func split(kids []*sitter.Node, marks ...string) (parts [][]*sitter.Node, delims []*sitter.Node) {
	isMark := make(map[string]bool, len(marks))
	for _, m := range marks {
		isMark[m] = true
	}
	var cur []*sitter.Node
	for _, k := range kids {
		if isMark[k.Type()] {
			parts = append(parts, cur)
			delims = append(delims, k)
			cur = nil
			continue
		}
		cur = append(cur, k)
	}
	return append(parts, cur), delims
}

// bracketDepth returns the nesting change of a flat token.
func bracketDepth(n *sitter.Node) int {
	switch n.Type() {
	case "[", "left_paren":
		return 1
	case "]", "right_paren":
		return -1
	}
	return 0
}

// commaSplit splits a flat expression list at its top-level commas.
func commaSplit(kids []*sitter.Node) [][]*sitter.Node {
	var out [][]*sitter.Node
	var cur []*sitter.Node
	depth := 0
	for _, k := range kids {
		depth += bracketDepth(k)
		if depth == 0 && !k.IsNamed() && k.Type() == "," {
			out = append(out, cur)
			cur = nil
			continue
		}
		cur = append(cur, k)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// closing returns the index of the token closing the bracket at kids[open].
func closing(kids []*sitter.Node, open int) int {
	depth := 0
	for i := open; i < len(kids); i++ {
		depth += bracketDepth(kids[i])
		if depth == 0 {
			return i
		}
	}
	return -1
}

// block converts a run of statements into a Block. An empty run yields an
// empty block on fallbackLine.
func (c *converter) block(kids []*sitter.Node, fallbackLine int) ast.NodeID {
	b := c.t.Add(ast.Node{Kind: ast.KindBlock, Line: fallbackLine})
	first := true
	for _, k := range kids {
		if !k.IsNamed() || k.Type() == "shebang" {
			continue
		}
		if first {
			c.t.Node(b).Line = c.line(k)
			first = false
		}
		c.t.Append(b, ast.SlotStats, c.stat(k))
	}
	return b
}

func (c *converter) stat(n *sitter.Node) ast.NodeID {
	switch n.Type() {
	case "variable_declaration":
		return c.assignment(n)
	case "function_statement":
		return c.functionDecl(n)
	case "function_call":
		s := c.add(ast.KindCallStat, n)
		c.t.Append(s, ast.SlotExpr, c.chain([]*sitter.Node{n}))
		return s
	case "break_statement":
		return c.add(ast.KindBreak, n)
	case "do_statement":
		parts, delims := split(c.children(n), "do_start", "do_end")
		if len(delims) != 2 {
			c.unsupported(n)
		}
		s := c.add(ast.KindDo, n)
		c.t.Append(s, ast.SlotBody, c.block(parts[1], c.line(delims[0])))
		return s
	case "while_statement":
		parts, delims := split(c.children(n), "while_start", "while_do", "while_end")
		if len(delims) != 3 {
			c.unsupported(n)
		}
		s := c.add(ast.KindWhile, n)
		c.t.Append(s, ast.SlotCond, c.expr(parts[1], n))
		c.t.Append(s, ast.SlotBody, c.block(parts[2], c.line(delims[1])))
		return s
	case "repeat_statement":
		parts, delims := split(c.children(n), "repeat_start", "repeat_until")
		if len(delims) != 2 {
			c.unsupported(n)
		}
		s := c.add(ast.KindRepeat, n)
		c.t.Append(s, ast.SlotBody, c.block(parts[1], c.line(delims[0])))
		c.t.Append(s, ast.SlotCond, c.expr(parts[2], n))
		return s
	case "if_statement":
		return c.ifStat(n)
	case "for_statement":
		return c.forStat(n)
	case "return_statement", "module_return_statement":
		kids := c.children(n)
		s := c.add(ast.KindReturn, n)
		if i := indexOfType(kids, "return"); i >= 0 {
			kids = kids[i+1:]
		}
		c.exprList(s, ast.SlotValues, dropSemicolons(kids))
		return s
	}
	c.unsupported(n)
	return ast.NoNode
}

func dropSemicolons(kids []*sitter.Node) []*sitter.Node {
	out := kids[:0:0]
	for _, k := range kids {
		if !k.IsNamed() && k.Type() == ";" {
			continue
		}
		out = append(out, k)
	}
	return out
}

// assignment converts both local and global variable declarations.
func (c *converter) assignment(n *sitter.Node) ast.NodeID {
	kids := c.children(n)
	local := len(kids) > 0 && kids[0].Type() == "local"
	eq := -1
	for i, k := range kids {
		if !k.IsNamed() && k.Type() == "=" {
			eq = i
			break
		}
	}
	if eq < 0 && !local {
		// A bare expression is not a statement.
		c.unsupported(n)
	}
	lhs, rhs := kids, []*sitter.Node(nil)
	if eq >= 0 {
		lhs, rhs = kids[:eq], kids[eq+1:]
	}

	kind := ast.KindAssignment
	if local {
		kind = ast.KindLocalAssignment
	}
	s := c.add(kind, n)
	var names []string
	for _, d := range lhs {
		if d.Type() != "variable_declarator" {
			continue
		}
		parts := c.children(d)
		if local {
			if len(parts) != 1 || parts[0].Type() != "identifier" {
				c.unsupported(d)
			}
			name := c.text(parts[0])
			c.t.Append(s, ast.SlotTargets, c.named(ast.KindLocalName, name, parts[0]))
			names = append(names, name)
			continue
		}
		c.t.Append(s, ast.SlotTargets, c.chain(parts))
		names = append(names, c.bindingName(parts))
	}
	for i, seg := range commaSplit(rhs) {
		value := c.expr(seg, n)
		if c.t.Kind(value) == ast.KindFunctionExpr && i < len(names) {
			c.t.Node(value).Name = names[i]
		}
		c.t.Append(s, ast.SlotValues, value)
	}
	return s
}

// bindingName returns the dotted name an assignment target spells, or "" for
// targets containing calls or index expressions.
func (c *converter) bindingName(parts []*sitter.Node) string {
	var sb strings.Builder
	for i, p := range parts {
		switch {
		case i%2 == 0 && p.Type() == "identifier":
			sb.WriteString(c.text(p))
		case i%2 == 1 && !p.IsNamed() && p.Type() == ".":
			sb.WriteByte('.')
		default:
			return ""
		}
	}
	if len(parts)%2 == 0 {
		return ""
	}
	return sb.String()
}

func (c *converter) functionDecl(n *sitter.Node) ast.NodeID {
	kids := c.children(n)
	kind := ast.KindFunctionDecl
	if childOfType(kids, "local") != nil {
		kind = ast.KindLocalFunctionDecl
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		c.unsupported(n)
	}
	name := strings.Join(strings.Fields(lang.NodeText(nameNode, c.src)), "")
	d := c.named(kind, name, n)
	c.t.Append(d, ast.SlotFuncBody, c.funcBody(n, kids))
	return d
}

func (c *converter) funcBody(n *sitter.Node, kids []*sitter.Node) ast.NodeID {
	fb := c.add(ast.KindFuncBody, n)
	for _, p := range c.children(childOfType(kids, "parameter_list")) {
		switch p.Type() {
		case "identifier":
			c.t.Append(fb, ast.SlotParams, c.named(ast.KindParam, c.text(p), p))
		case "ellipsis":
			c.t.Append(fb, ast.SlotParams, c.add(ast.KindVarArgs, p))
		}
	}
	body := childOfType(kids, "function_body")
	c.t.Append(fb, ast.SlotBody, c.block(c.children(body), c.line(n)))
	return fb
}

func (c *converter) ifStat(n *sitter.Node) ast.NodeID {
	parts, delims := split(c.children(n), "if_start", "if_then", "if_elseif", "if_else", "if_end")
	s := c.add(ast.KindIf, n)
	cur := s
	for i, d := range delims {
		seg := parts[i+1]
		switch d.Type() {
		case "if_start":
			c.t.Append(s, ast.SlotCond, c.expr(seg, n))
		case "if_then":
			c.t.Append(cur, ast.SlotThen, c.block(seg, c.line(d)))
		case "if_elseif":
			cur = c.add(ast.KindElseIf, d)
			c.t.Append(cur, ast.SlotCond, c.expr(seg, d))
			c.t.Append(s, ast.SlotElseIf, cur)
		case "if_else":
			c.t.Append(s, ast.SlotElse, c.block(seg, c.line(d)))
		}
	}
	return s
}

func (c *converter) forStat(n *sitter.Node) ast.NodeID {
	parts, delims := split(c.children(n), "for_start", "for_do", "for_end")
	if len(delims) != 3 || len(parts[1]) != 1 {
		c.unsupported(n)
	}
	clause := parts[1][0]
	kids := c.children(clause)

	var s ast.NodeID
	switch clause.Type() {
	case "for_numeric":
		eq := indexOfType(kids, "=")
		if eq != 1 || kids[0].Type() != "identifier" {
			c.unsupported(clause)
		}
		bounds := commaSplit(kids[eq+1:])
		if len(bounds) < 2 || len(bounds) > 3 {
			c.unsupported(clause)
		}
		s = c.add(ast.KindNumericFor, n)
		c.t.Append(s, ast.SlotLoopVar, c.named(ast.KindLocalName, c.text(kids[0]), kids[0]))
		c.t.Append(s, ast.SlotFrom, c.expr(bounds[0], clause))
		c.t.Append(s, ast.SlotTo, c.expr(bounds[1], clause))
		if len(bounds) == 3 {
			c.t.Append(s, ast.SlotStep, c.expr(bounds[2], clause))
		}
	case "for_generic":
		in := indexOfType(kids, "for_in")
		if in < 0 {
			c.unsupported(clause)
		}
		s = c.add(ast.KindGenericFor, n)
		for _, id := range c.children(childOfType(kids[:in], "identifier_list")) {
			if id.Type() == "identifier" {
				c.t.Append(s, ast.SlotNames, c.named(ast.KindLocalName, c.text(id), id))
			}
		}
		c.exprList(s, ast.SlotValues, kids[in+1:])
	default:
		c.unsupported(clause)
	}
	c.t.Append(s, ast.SlotBody, c.block(parts[2], c.line(delims[1])))
	return s
}

func (c *converter) exprList(parent ast.NodeID, slot ast.Slot, kids []*sitter.Node) {
	for _, seg := range commaSplit(kids) {
		c.t.Append(parent, slot, c.expr(seg, nil))
	}
}

// expr converts one expression given as a run of sibling tokens. at locates
// the error when the run is empty.
func (c *converter) expr(seg []*sitter.Node, at *sitter.Node) ast.NodeID {
	if len(seg) == 0 {
		where := "<missing expression>"
		if at != nil {
			where = fmt.Sprintf("%s@%d", at.Type(), c.line(at))
		}
		ast.Fail("convert", where, ErrUnsupported)
	}
	if len(seg) > 1 {
		return c.chain(seg)
	}
	n := seg[0]
	switch n.Type() {
	case "nil":
		return c.add(ast.KindNil, n)
	case "boolean":
		if c.text(n) == "true" {
			return c.add(ast.KindTrue, n)
		}
		return c.add(ast.KindFalse, n)
	case "ellipsis":
		return c.add(ast.KindVarArgs, n)
	case "number":
		text := c.text(n)
		num, err := parseNumber(text)
		if err != nil {
			ast.Fail("convert", fmt.Sprintf("number@%d", c.line(n)), fmt.Errorf("%w: %w", ErrUnsupported, err))
		}
		return c.t.Add(ast.Node{Kind: ast.KindNumber, Text: text, Number: num, Line: c.line(n)})
	case "string":
		return c.str(n)
	case "function":
		f := c.add(ast.KindFunctionExpr, n)
		c.t.Append(f, ast.SlotFuncBody, c.funcBody(n, c.children(n)))
		return f
	case "tableconstructor":
		return c.table(n)
	case "binary_operation":
		return c.binary(n)
	case "unary_operation":
		kids := c.children(n)
		if len(kids) < 2 {
			c.unsupported(n)
		}
		u := c.t.Add(ast.Node{Kind: ast.KindUnary, Op: kids[0].Type(), Line: c.line(n)})
		c.t.Append(u, ast.SlotOperand, c.expr(kids[1:], n))
		return u
	case "identifier", "function_call":
		return c.chain(seg)
	}
	c.unsupported(n)
	return ast.NoNode
}

func (c *converter) binary(n *sitter.Node) ast.NodeID {
	kids := c.children(n)
	depth := 0
	for i, k := range kids {
		depth += bracketDepth(k)
		if depth != 0 || i == 0 || k.IsNamed() || !binaryOps[k.Type()] {
			continue
		}
		b := c.t.Add(ast.Node{Kind: ast.KindBinary, Op: k.Type(), Line: c.line(n)})
		c.t.Append(b, ast.SlotLeft, c.expr(kids[:i], n))
		c.t.Append(b, ast.SlotRight, c.expr(kids[i+1:], n))
		return b
	}
	c.unsupported(n)
	return ast.NoNode
}

// str keeps the raw text between the delimiters, escapes unprocessed.
func (c *converter) str(n *sitter.Node) ast.NodeID {
	var start, end *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		switch child := n.Child(i); child.Type() {
		case "string_start":
			start = child
		case "string_end":
			end = child
		}
	}
	var text string
	if start != nil && end != nil && start.EndByte() <= end.StartByte() {
		text = string(c.src[start.EndByte():end.StartByte()])
	}
	return c.t.Add(ast.Node{Kind: ast.KindString, Text: text, Line: c.line(n)})
}

// parseNumber reads a Lua numeral. Decimal integers that overflow int64 and
// numerals with a fraction or exponent are floats; hexadecimal integers wrap
// around modulo 2^64.
func parseNumber(text string) (ast.Number, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" || !(s[0] == '.' || s[0] >= '0' && s[0] <= '9') {
		return ast.Number{}, fmt.Errorf("invalid numeral %q", text)
	}
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		if strings.ContainsAny(hex, ".p") {
			if !strings.Contains(hex, "p") {
				s += "p0"
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil && !errors.Is(err, strconv.ErrRange) {
				return ast.Number{}, fmt.Errorf("invalid numeral %q", text)
			}
			return ast.FloatNumber(f), nil
		}
		if hex == "" {
			return ast.Number{}, fmt.Errorf("invalid numeral %q", text)
		}
		var v uint64
		for _, r := range hex {
			d, err := strconv.ParseUint(string(r), 16, 8)
			if err != nil {
				return ast.Number{}, fmt.Errorf("invalid numeral %q", text)
			}
			v = v<<4 | d
		}
		return ast.IntNumber(int64(v)), nil
	}
	if !strings.ContainsAny(s, ".e") {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ast.IntNumber(v), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return ast.Number{}, fmt.Errorf("invalid numeral %q", text)
	}
	return ast.FloatNumber(f), nil
}

// table converts a tableconstructor or table_argument node.
func (c *converter) table(n *sitter.Node) ast.NodeID {
	tbl := c.add(ast.KindTable, n)
	for _, f := range c.children(childOfType(c.children(n), "fieldlist")) {
		if f.Type() != "field" {
			continue
		}
		kids := c.children(f)
		field := c.add(ast.KindField, f)
		eq := -1
		for i, k := range kids {
			if !k.IsNamed() && k.Type() == "=" {
				eq = i
				break
			}
		}
		switch {
		case eq < 0:
			c.t.Node(field).Op = ast.FieldPositional
			c.t.Append(field, ast.SlotValue, c.expr(kids, f))
		case kids[0].Type() == "field_left_bracket":
			if eq < 3 || kids[eq-1].Type() != "field_right_bracket" {
				c.unsupported(f)
			}
			c.t.Node(field).Op = ast.FieldKeyed
			c.t.Append(field, ast.SlotKey, c.expr(kids[1:eq-1], f))
			c.t.Append(field, ast.SlotValue, c.expr(kids[eq+1:], f))
		default:
			if eq != 1 || kids[0].Type() != "identifier" {
				c.unsupported(f)
			}
			c.t.Node(field).Op = ast.FieldNamed
			c.t.Node(field).Name = c.text(kids[0])
			c.t.Append(field, ast.SlotValue, c.expr(kids[eq+1:], f))
		}
		c.t.Append(tbl, ast.SlotFields, field)
	}
	return tbl
}

// chain converts a prefix expression into a feature chain: a.b:c(x) becomes
// Var(a) -> Member(b) -> MethodCall(c).
func (c *converter) chain(seg []*sitter.Node) ast.NodeID {
	links := c.links(seg)
	for i := len(links) - 1; i > 0; i-- {
		c.t.Append(links[i-1], ast.SlotSuffix, links[i])
	}
	return links[0]
}

func (c *converter) links(seg []*sitter.Node) []ast.NodeID {
	head := seg[0]
	var out []ast.NodeID
	i := 1
	switch head.Type() {
	case "identifier":
		out = []ast.NodeID{c.named(ast.KindVar, c.text(head), head)}
	case "function_call":
		out = c.callLinks(head)
	case "left_paren":
		end := closing(seg, 0)
		if end < 0 {
			c.unsupported(head)
		}
		p := c.add(ast.KindParen, head)
		c.t.Append(p, ast.SlotInner, c.expr(seg[1:end], head))
		out = []ast.NodeID{p}
		i = end + 1
	default:
		c.unsupported(head)
	}

	for i < len(seg) {
		tok := seg[i]
		switch {
		case !tok.IsNamed() && tok.Type() == "." && i+1 < len(seg) && seg[i+1].Type() == "identifier":
			out = append(out, c.named(ast.KindMember, c.text(seg[i+1]), seg[i+1]))
			i += 2
		case !tok.IsNamed() && tok.Type() == "[":
			end := closing(seg, i)
			if end < 0 {
				c.unsupported(tok)
			}
			idx := c.add(ast.KindIndex, tok)
			c.t.Append(idx, ast.SlotIndex, c.expr(seg[i+1:end], tok))
			out = append(out, idx)
			i = end + 1
		default:
			c.unsupported(tok)
		}
	}
	return out
}

// callLinks converts a function_call node: its callee links followed by a
// Call or MethodCall link.
func (c *converter) callLinks(n *sitter.Node) []ast.NodeID {
	kids := c.children(n)
	p := 0
	for p < len(kids) && !callSuffix[kids[p].Type()] {
		p++
	}
	if p == 0 || p == len(kids) {
		c.unsupported(n)
	}
	out := c.links(kids[:p])
	rest := kids[p:]
	if rest[0].Type() == "self_call_colon" {
		if len(rest) < 2 || rest[1].Type() != "identifier" {
			c.unsupported(n)
		}
		m := c.named(ast.KindMethodCall, c.text(rest[1]), n)
		c.args(m, rest[2:])
		return append(out, m)
	}
	call := c.add(ast.KindCall, n)
	c.args(call, rest)
	return append(out, call)
}

func (c *converter) args(call ast.NodeID, rest []*sitter.Node) {
	for _, a := range rest {
		switch a.Type() {
		case "function_call_paren":
		case "function_arguments":
			c.exprList(call, ast.SlotArgs, c.children(a))
		case "string_argument":
			c.t.Append(call, ast.SlotArgs, c.str(a))
		case "table_argument":
			c.t.Append(call, ast.SlotArgs, c.table(a))
		default:
			c.unsupported(a)
		}
	}
}

package loader

import (
	"sort"
	"strings"

	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/resolve"
)

// symbols maps dotted function names (A.b.c, methods normalised from A:m to
// A.m) to the node defining them: a declaration, or the last link of an
// aliasing chain such as the B.g in A.f = B.g.
type symbols map[string]ast.NodeID

func (s symbols) define(name string, id ast.NodeID) {
	name = normalize(name)
	if _, ok := s[name]; !ok {
		s[name] = id
	}
}

func normalize(name string) string {
	return strings.ReplaceAll(name, ":", ".")
}

// Link resolves the references of every chunk below the root of t.
//
// Variables bind to the innermost visible local, parameter or local function,
// or else to a global function of the same name. Member and method links
// bind to the function declared or assigned under their dotted name, looked
// up in the chunk when the chain starts at a local and across all chunks
// otherwise. A local bound to require("mod") reaches into the table the
// module returns. Gotos bind to the visible label of their name. Anything
// else is marked unresolved.
func Link(t *ast.Tree) (err error) {
	defer ast.Guard(&err)

	l := &linker{
		t:       t,
		global:  make(symbols),
		local:   make(map[ast.NodeID]symbols),
		exports: make(map[ast.NodeID]string),
		modules: make(map[string]ast.NodeID),
	}
	chunks := l.chunks()

	l.collecting = true
	for _, c := range chunks {
		l.visitChunk(c)
	}
	l.collecting = false
	for _, c := range chunks {
		l.visitChunk(c)
	}
	return nil
}

type linker struct {
	t          *ast.Tree
	collecting bool

	global  symbols
	local   map[ast.NodeID]symbols
	exports map[ast.NodeID]string
	modules map[string]ast.NodeID
	names   []string

	chunk  ast.NodeID
	scopes []map[string]ast.NodeID
	self   []string
}

func (l *linker) chunks() []ast.NodeID {
	var out []ast.NodeID
	l.t.Walk(l.t.Root(), func(id ast.NodeID) bool {
		switch l.t.Kind(id) {
		case ast.KindNamedChunk, ast.KindChunk:
			out = append(out, id)
			l.local[id] = make(symbols)
			if name := l.t.Node(id).Name; name != "" {
				l.modules[name] = id
				l.names = append(l.names, name)
			}
			return false
		}
		return true
	})
	sort.Strings(l.names)
	return out
}

func (l *linker) visitChunk(c ast.NodeID) {
	l.chunk = c
	l.scopes = l.scopes[:0]
	l.self = l.self[:0]
	body := l.t.Child(c, ast.SlotBody)
	if l.collecting {
		l.collectExport(c, body)
	}
	l.visit(body)
}

// collectExport records the local a chunk returns, as in "return M".
func (l *linker) collectExport(c, body ast.NodeID) {
	stats := l.t.Slot(body, ast.SlotStats)
	if len(stats) == 0 {
		return
	}
	last := stats[len(stats)-1]
	if l.t.Kind(last) != ast.KindReturn {
		return
	}
	values := l.t.Slot(last, ast.SlotValues)
	if len(values) == 1 && l.t.Kind(values[0]) == ast.KindVar && l.t.Child(values[0], ast.SlotSuffix) == ast.NoNode {
		l.exports[c] = l.t.Node(values[0]).Name
	}
}

func (l *linker) push() { l.scopes = append(l.scopes, make(map[string]ast.NodeID)) }
func (l *linker) pop()  { l.scopes = l.scopes[:len(l.scopes)-1] }

func (l *linker) bind(id ast.NodeID) {
	if len(l.scopes) == 0 {
		l.push()
	}
	l.scopes[len(l.scopes)-1][l.t.Node(id).Name] = id
}

func (l *linker) lookup(name string) (ast.NodeID, bool) {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if id, ok := l.scopes[i][name]; ok {
			return id, true
		}
	}
	return ast.NoNode, false
}

// declare registers a function under name. Names rooted at a visible local
// stay private to the chunk.
func (l *linker) declare(name string, id ast.NodeID) {
	if name == "" {
		return
	}
	l.local[l.chunk].define(name, id)
	head, _, _ := strings.Cut(normalize(name), ".")
	if _, ok := l.lookup(head); !ok {
		l.global.define(name, id)
	}
}

func (l *linker) visit(id ast.NodeID) {
	t := l.t
	switch t.Kind(id) {
	case ast.KindBlock:
		l.push()
		for _, s := range t.Slot(id, ast.SlotStats) {
			l.visit(s)
		}
		l.pop()
		return
	case ast.KindLocalAssignment:
		l.visitSlot(id, ast.SlotValues)
		for _, n := range t.Slot(id, ast.SlotTargets) {
			l.bind(n)
		}
		return
	case ast.KindLocalFunctionDecl:
		l.bind(id)
		l.visitFunc(id, "")
		return
	case ast.KindFunctionDecl:
		name := t.Node(id).Name
		if l.collecting {
			l.declare(name, id)
		}
		l.visitFunc(id, receiver(name))
		return
	case ast.KindAssignment:
		if l.collecting {
			l.collectAssignment(id)
		}
	case ast.KindFuncBody:
		l.push()
		for _, p := range t.Slot(id, ast.SlotParams) {
			if t.Kind(p) == ast.KindParam {
				l.bind(p)
			}
		}
		l.visit(t.Child(id, ast.SlotBody))
		l.pop()
		return
	case ast.KindNumericFor:
		l.visitSlot(id, ast.SlotFrom)
		l.visitSlot(id, ast.SlotTo)
		l.visitSlot(id, ast.SlotStep)
		l.push()
		l.bind(t.Child(id, ast.SlotLoopVar))
		l.visit(t.Child(id, ast.SlotBody))
		l.pop()
		return
	case ast.KindGenericFor:
		l.visitSlot(id, ast.SlotValues)
		l.push()
		for _, n := range t.Slot(id, ast.SlotNames) {
			l.bind(n)
		}
		l.visit(t.Child(id, ast.SlotBody))
		l.pop()
		return
	case ast.KindVar:
		if !l.collecting {
			l.resolveChain(id)
		}
	case ast.KindGoto:
		if !l.collecting {
			l.resolveGoto(id)
		}
	}
	for _, c := range t.Children(id) {
		l.visit(c)
	}
}

func (l *linker) visitSlot(id ast.NodeID, slot ast.Slot) {
	for _, c := range l.t.Slot(id, slot) {
		l.visit(c)
	}
}

func (l *linker) visitFunc(decl ast.NodeID, self string) {
	l.self = append(l.self, self)
	l.visit(l.t.Child(decl, ast.SlotFuncBody))
	l.self = l.self[:len(l.self)-1]
}

// receiver returns the table a function declared as A.b:m or A.b.m belongs
// to, which is what self denotes inside it.
func receiver(name string) string {
	if i := strings.LastIndexAny(name, ".:"); i > 0 {
		return name[:i]
	}
	return ""
}

// collectAssignment registers A.f = function ... end and A.f = B.g.
func (l *linker) collectAssignment(id ast.NodeID) {
	t := l.t
	values := t.Slot(id, ast.SlotValues)
	for i, target := range t.Slot(id, ast.SlotTargets) {
		if i >= len(values) {
			return
		}
		tail := resolve.ChainTail(t, target)
		if tail == ast.NoNode {
			continue
		}
		name := t.QualifiedName(tail)
		switch v := values[i]; t.Kind(v) {
		case ast.KindFunctionExpr:
			l.declare(name, v)
		case ast.KindVar:
			if alias := resolve.ChainTail(t, v); alias != ast.NoNode && alias != v {
				l.declare(name, alias)
			}
		}
	}
}

type prefix struct {
	syms symbols
	name string
}

func (l *linker) resolveChain(head ast.NodeID) {
	t := l.t
	h := t.Node(head).Name
	binding, isLocal := l.lookup(h)

	switch {
	case isLocal && t.Kind(binding) == ast.KindLocalName:
		// "local f" followed by "function f() ... end"
		d, ok := l.local[l.chunk][h]
		if ok && resolve.AssignedValue(t, binding) == ast.NoNode {
			t.Node(head).Ref = ast.Resolved(d)
		} else {
			t.Node(head).Ref = ast.Resolved(binding)
		}
	case isLocal:
		t.Node(head).Ref = ast.Resolved(binding)
	default:
		if d, ok := l.global[h]; ok {
			t.Node(head).Ref = ast.Resolved(d)
		} else {
			t.Node(head).Ref = ast.Unresolved()
		}
	}

	prefixes := l.prefixes(h, binding, isLocal)
	path := ""
	pure := true
	for cur := t.Child(head, ast.SlotSuffix); cur != ast.NoNode; cur = t.Child(cur, ast.SlotSuffix) {
		k := t.Kind(cur)
		if k != ast.KindMember && k != ast.KindMethodCall {
			pure = false
			continue
		}
		ref := ast.Unresolved()
		if pure {
			path += "." + t.Node(cur).Name
			for _, p := range prefixes {
				if d, ok := p.syms[p.name+path]; ok {
					ref = ast.Resolved(d)
					break
				}
			}
		}
		t.Node(cur).Ref = ref
		if k == ast.KindMethodCall {
			pure = false
		}
	}
}

// prefixes returns the tables and names a chain starting at h is looked up
// under, most specific first.
func (l *linker) prefixes(h string, binding ast.NodeID, isLocal bool) []prefix {
	t := l.t
	var out []prefix
	if self := l.currentSelf(); h == "self" && self != "" && (!isLocal || t.Kind(binding) == ast.KindParam) {
		out = append(out, prefix{l.local[l.chunk], normalize(self)}, prefix{l.global, normalize(self)})
	}
	if !isLocal {
		return append(out, prefix{l.global, h})
	}
	if t.Kind(binding) == ast.KindLocalName {
		if mod, ok := l.required(binding); ok {
			if exported, ok := l.exports[mod]; ok {
				out = append(out, prefix{l.local[mod], exported})
			}
		}
	}
	return append(out, prefix{l.local[l.chunk], h})
}

func (l *linker) currentSelf() string {
	for i := len(l.self) - 1; i >= 0; i-- {
		if l.self[i] != "" {
			return l.self[i]
		}
	}
	return ""
}

// required returns the chunk a local holding require("mod") refers to.
func (l *linker) required(name ast.NodeID) (ast.NodeID, bool) {
	t := l.t
	v := resolve.AssignedValue(t, name)
	if t.Kind(v) != ast.KindVar || t.Node(v).Name != "require" {
		return ast.NoNode, false
	}
	call := t.Child(v, ast.SlotSuffix)
	if t.Kind(call) != ast.KindCall {
		return ast.NoNode, false
	}
	args := t.Slot(call, ast.SlotArgs)
	if len(args) == 0 || t.Kind(args[0]) != ast.KindString {
		return ast.NoNode, false
	}
	return l.module(t.Node(args[0]).Text)
}

// module finds the chunk for a module path such as "net.http", trying
// net/http.lua and net/http/init.lua at any depth.
func (l *linker) module(mod string) (ast.NodeID, bool) {
	p := strings.ReplaceAll(mod, ".", "/")
	for _, candidate := range []string{p + ".lua", p + "/init.lua"} {
		for _, name := range l.names {
			if name == candidate || strings.HasSuffix(name, "/"+candidate) {
				return l.modules[name], true
			}
		}
	}
	return ast.NoNode, false
}

// resolveGoto binds a goto to the label of the same name in an enclosing
// block of the same function.
func (l *linker) resolveGoto(g ast.NodeID) {
	t := l.t
	name := t.Node(g).Name
	for blk := t.Ancestor(g, ast.KindBlock); blk != ast.NoNode; blk = t.Ancestor(blk, ast.KindBlock) {
		for _, s := range t.Slot(blk, ast.SlotStats) {
			if t.Kind(s) == ast.KindLabel && t.Node(s).Name == name {
				t.Node(g).Ref = ast.Resolved(s)
				return
			}
		}
		if t.Kind(t.Parent(blk)) == ast.KindFuncBody {
			break
		}
	}
	t.Node(g).Ref = ast.Unresolved()
}

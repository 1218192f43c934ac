// Package lang maps source files to the tree-sitter grammars astsync can
// convert.
package lang

import (
	"path"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language is a registered grammar and the extensions it claims.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language
}

// GetLanguage returns the grammar.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser returns a parser set to the grammar. Parsers must not be
// shared between goroutines; close them when done.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages is keyed by language name and filled by init functions.
var Languages = map[string]*Language{}

var (
	extensionMap  map[string]string
	extensionOnce sync.Once
)

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language claiming ext, or "".
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// ForPath returns the language of a slash or OS path, or "".
func ForPath(p string) string {
	return ForExtension(path.Ext(strings.ReplaceAll(p, "\\", "/")))
}

// NodeText returns the bytes node spans in source.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

package lang

import "github.com/smacker/go-tree-sitter/lua"

// Lua is the only language the loader converts.
const Lua = "lua"

func init() {
	Languages[Lua] = &Language{
		Name:       Lua,
		Extensions: []string{".lua"},
		lang:       lua.GetLanguage(),
	}
}

package lang

import (
	"testing"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".lua", "lua"},
		{".py", ""},
		{".go", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			got := ForExtension(tt.ext)
			if got != tt.want {
				t.Errorf("ForExtension(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	l, ok := Languages[Lua]
	if !ok {
		t.Fatal("lua language not registered")
	}
	if l.GetLanguage() == nil {
		t.Error("lua language is nil")
	}
}

func TestNewParser(t *testing.T) {
	t.Parallel()

	p := Languages[Lua].NewParser()
	if p == nil {
		t.Fatal("NewParser returned nil")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	if got := CollapseWhitespace("  a \n\t b  "); got != "a b" {
		t.Errorf("CollapseWhitespace = %q, want %q", got, "a b")
	}
}

func TestForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"core/util.lua", "lua"},
		{`core\util.LUA`, "lua"},
		{"README.md", ""},
		{"lua", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := ForPath(tt.path); got != tt.want {
				t.Errorf("ForPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

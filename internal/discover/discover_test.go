package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverLuaFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.lua", "print('hello')")
	writeFile(t, dir, "lib/util.lua", "local function helper() end")
	// Non-Lua file should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.lua", "secret")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), paths)
	}

	// Should be sorted
	if entries[0].Path != filepath.Join("lib", "util.lua") {
		t.Errorf("entry 0: got %q", entries[0].Path)
	}
	if entries[1].Path != "main.lua" {
		t.Errorf("entry 1: got %q", entries[1].Path)
	}

	for _, e := range entries {
		if e.Language != "lua" {
			t.Errorf("entry %q: language = %q, want lua", e.Path, e.Language)
		}
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.lua", "return 1")
	writeFile(t, dir, "lua_modules/pkg.lua", "return 1")
	writeFile(t, dir, ".luarocks/cached.lua", "return 1")
	writeFile(t, dir, ".hidden/secret.lua", "return 1")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Path != "main.lua" {
		t.Errorf("expected main.lua, got %q", entries[0].Path)
	}
}

func TestDiscoverOptions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "small.lua", "x = 1")
	writeFile(t, dir, "big.lua", "x = 1 -- padding padding padding padding")
	writeFile(t, dir, "gen/out.lua", "x = 1")
	writeFile(t, dir, "spec/small_spec.lua", "x = 1")

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"none", Options{}, []string{"big.lua", filepath.Join("gen", "out.lua"), "small.lua", filepath.Join("spec", "small_spec.lua")}},
		{"max size", Options{MaxSize: 10}, []string{filepath.Join("gen", "out.lua"), "small.lua", filepath.Join("spec", "small_spec.lua")}},
		{"exclude", Options{Exclude: []string{"gen/"}}, []string{"big.lua", "small.lua", filepath.Join("spec", "small_spec.lua")}},
		{"skip tests", Options{SkipTests: true}, []string{"big.lua", filepath.Join("gen", "out.lua"), "small.lua"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entries, err := Files(dir, tt.opts)
			if err != nil {
				t.Fatalf("Files: %v", err)
			}
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d: %v", len(entries), len(tt.want), entries)
			}
			for i, e := range entries {
				if e.Path != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, e.Path, tt.want[i])
				}
			}
		})
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "vendor/\n")
	writeFile(t, dir, "main.lua", "return 1")
	writeFile(t, dir, "vendor/dep.lua", "return 1")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "main.lua" {
		t.Fatalf("expected only main.lua, got %v", entries)
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.lua", "return 1")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.lua"), filepath.Join(dir, "link.lua"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.lua" {
		t.Errorf("expected real.lua, got %q", entries[0].Path)
	}
}

func TestIsTestFile(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want bool
	}{
		{"spec/parser_spec.lua", true},
		{"tests/helpers.lua", true},
		{"src/test/util.lua", true},
		{"parser_spec.lua", true},
		{"parser_test.lua", true},
		{"test_parser.lua", true},
		{"src/parser.lua", false},
		{"specification.lua", false},
		{"testing/util.lua", false},
		{"latest.lua", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got := IsTestFile(tc.path)
			if got != tc.want {
				t.Errorf("IsTestFile(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, root, rel, content string) {
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

const sampleConfig = `components:
  - name: Core
    dirs: [core]
  - name: Plugins
    dirs: [plugins]
`

const utilSource = `local M = {}

function M.f(x)
  if x then
    print(x)
  end
  return x
end

function M.unused()
  return 1
end

return M
`

const pluginSource = `local util = require("core.util")

local function run()
  util.f(1)
end

run()
`

func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, ".astsync.yml", sampleConfig)
	writeTestFile(t, dir, "core/util.lua", utilSource)
	writeTestFile(t, dir, "plugins/main.lua", pluginSource)
	return dir
}

func TestRunImpact(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"impact", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if !strings.HasPrefix(out, "project: ") {
		t.Errorf("output should start with project:, got:\n%s", out)
	}
	if !strings.Contains(out, "policy: external-call-action") {
		t.Error("missing default policy")
	}
	if !strings.Contains(out, "components[2]") {
		t.Errorf("expected 2 components, got:\n%s", out)
	}
	if !strings.Contains(out, "functions[1]") {
		t.Errorf("expected only M.f to be served, got:\n%s", out)
	}
	if !strings.Contains(out, "M.f,Core,core/util.lua,3") {
		t.Errorf("missing served function row, got:\n%s", out)
	}
	if strings.Contains(out, "M.unused,Core,core/util.lua,10,") {
		t.Error("M.unused is not called from another component")
	}
	if !strings.Contains(out, "{name,component,file,line}:\n  M.unused,Core,core/util.lua,10") {
		t.Errorf("M.unused should be listed as unused, got:\n%s", out)
	}
	if !strings.Contains(out, "  Plugins,Core,M.f") {
		t.Errorf("missing Plugins->Core dependency, got:\n%s", out)
	}
	if !strings.Contains(stderr.String(), "analyzed 2 files in 2 components") {
		t.Errorf("missing status line, stderr:\n%s", stderr.String())
	}
}

func TestRunImpactMaxComponents(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"impact", "-n", "1", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "components[1]") {
		t.Errorf("expected 1 component, got:\n%s", out)
	}
	// The served component ranks first.
	if !strings.Contains(out, "components[1]{name,files,served,rank}:\n  Core,") {
		t.Errorf("expected Core to rank first, got:\n%s", out)
	}
	if !strings.Contains(out, "dependencies[0]") {
		t.Errorf("dependencies to unselected components should be dropped, got:\n%s", out)
	}
}

func TestRunImpactFunctionFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"impact", "--function", "nothing", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "functions[0]") {
		t.Errorf("expected no functions, got:\n%s", stdout.String())
	}
}

func TestRunImpactFileFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"impact", "--file", "plugins/", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "components[1]") || !strings.Contains(out, "  Plugins,") {
		t.Errorf("expected only the Plugins component, got:\n%s", out)
	}
	if !strings.Contains(out, "functions[0]") {
		t.Errorf("no served function lives in plugins/, got:\n%s", out)
	}
}

func TestRunImpactPolicy(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"impact", "--policy", "internal-action", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "policy: internal-action") {
		t.Errorf("policy flag not applied, got:\n%s", stdout.String())
	}

	err := run([]string{"impact", "--policy", "sometimes", dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unknown reconstruction policy") {
		t.Errorf("expected policy error, got %v", err)
	}
}

func TestRunImpactDiff(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	patch := `--- a/core/util.lua
+++ b/core/util.lua
@@ -5,1 +5,1 @@
-    print(x, 0)
+    print(x)
`
	writeTestFile(t, dir, "fix.patch", patch)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"impact", "--diff", filepath.Join(dir, "fix.patch"), dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "changes[1]{file,line,statement,reconstruct}:") {
		t.Fatalf("expected one changed statement, got:\n%s", out)
	}
	if !strings.Contains(out, `  core/util.lua,5,call_stat@5,"true"`) {
		t.Errorf("changed statement should need reconstruction, got:\n%s", out)
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--version"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "astsync") {
		t.Errorf("version output: %q", stdout.String())
	}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "readme.txt", "nothing here")

	var stdout, stderr bytes.Buffer
	err := run([]string{"impact", dir}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for no parseable files")
	}
	if !strings.Contains(err.Error(), "no parseable Lua files") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunNotADirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "file.lua", "return 1\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"impact", filepath.Join(dir, "file.lua")}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for non-directory")
	}
	if !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunBadLogLevel(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"impact", "--log-level", "loud", dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("expected log level error, got %v", err)
	}
}

func TestRunSyntaxErrorSkipped(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	writeTestFile(t, dir, "core/broken.lua", "function (\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"impact", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr.String(), "skipped 1 files with syntax errors") {
		t.Errorf("expected skip notice, stderr:\n%s", stderr.String())
	}
	if !strings.Contains(stdout.String(), "functions[1]") {
		t.Errorf("remaining files should still be analysed, got:\n%s", stdout.String())
	}
}

func TestRunCache(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	cachePath := filepath.Join(t.TempDir(), "cache.toon")

	var stdout1, stderr1 bytes.Buffer
	if err := run([]string{"impact", "--cache", cachePath, dir}, &stdout1, &stderr1); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("cache file not created: %v", err)
	}

	// Make sources older than the cache so it counts as fresh.
	past := time.Now().Add(-time.Hour)
	for _, rel := range []string{".astsync.yml", "core/util.lua", "plugins/main.lua"} {
		if err := os.Chtimes(filepath.Join(dir, rel), past, past); err != nil {
			t.Fatal(err)
		}
	}

	var stdout2, stderr2 bytes.Buffer
	if err := run([]string{"impact", "--cache", cachePath, dir}, &stdout2, &stderr2); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stdout1.String() != stdout2.String() {
		t.Error("cached output differs from original")
	}
	if strings.Contains(stderr2.String(), "analyzed") {
		t.Error("second run should be served from the cache")
	}
}

func TestRunCacheStale(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	cachePath := filepath.Join(t.TempDir(), "cache.toon")
	writeTestFile(t, filepath.Dir(cachePath), filepath.Base(cachePath), "stale\n")

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(cachePath, past, past); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"impact", "--cache", cachePath, dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(stdout.String(), "stale") {
		t.Error("stale cache should have been rebuilt")
	}
}

func TestRunMatchIdentical(t *testing.T) {
	t.Parallel()
	oldDir := createSampleProject(t)
	newDir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"match", oldDir, newDir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "deleted[0]") || !strings.Contains(out, "added[0]") {
		t.Errorf("identical snapshots should match completely, got:\n%s", out)
	}
	if !strings.Contains(out, "function_decl,M.f,core/util.lua,3,core/util.lua,3") {
		t.Errorf("missing M.f pair, got:\n%s", out)
	}
}

func TestRunMatchChanged(t *testing.T) {
	t.Parallel()
	oldDir := createSampleProject(t)
	newDir := createSampleProject(t)
	writeTestFile(t, newDir, "core/util.lua", strings.Replace(utilSource, "return 1", "return 2", 1))

	var stdout, stderr bytes.Buffer
	if err := run([]string{"match", oldDir, newDir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "deleted[1]") || !strings.Contains(out, "added[1]") {
		t.Errorf("expected one replaced statement, got:\n%s", out)
	}
	if !strings.Contains(out, `return,"",core/util.lua,11`) {
		t.Errorf("expected the changed return statement, got:\n%s", out)
	}
}

func TestRunMatchArgs(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"match", t.TempDir()}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for missing new snapshot")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"frobnicate"}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

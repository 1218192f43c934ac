package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/astsync/internal/component"
	"github.com/phobologic/astsync/internal/impact"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	policy, err := cfg.ReconstructionPolicy()
	require.NoError(t, err)
	assert.Equal(t, impact.PolicyExternalCallAction, policy)
}

func TestLoadConfigFromRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".astsync.yaml"), `
components:
  - name: Core
    dirs: [core]
detection:
  mocked_dirs: [mocks]
analysis:
  policy: internal-action
  stringent: true
log:
  level: debug
`)

	cfg, err := LoadConfig(root, "")
	require.NoError(t, err)
	assert.Equal(t, []component.Rule{{Name: "Core", Dirs: []string{"core"}}}, cfg.Components)
	assert.True(t, cfg.Analysis.Stringent)
	// Unset keys keep their defaults.
	assert.Equal(t, 1_000_000, cfg.Analysis.MaxFileSize)
	assert.Equal(t, 500, cfg.Watch.DebounceMillis)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	d := cfg.Detector()
	assert.Equal(t, "Core", d.Detect("core/a.lua"))
	assert.Equal(t, component.MockedComponent, d.Detect("mocks/core/a.lua"))
	assert.Equal(t, component.DefaultComponent, d.Detect("a.lua"))
}

func TestLoadConfigPrefersYml(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".astsync.yml"), "log:\n  level: warn\n")
	writeFile(t, filepath.Join(root, ".astsync.yaml"), "log:\n  level: error\n")

	cfg, err := LoadConfig(root, "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed", "components: [", "failed to parse config file"},
		{"policy", "analysis:\n  policy: never\n", "unknown reconstruction policy"},
		{"level", "log:\n  level: loud\n", `invalid log level "loud"`},
		{"unnamed component", "components:\n  - dirs: [a]\n", "component 0 has no name"},
		{"empty component", "components:\n  - name: A\n", `component "A" has neither dirs nor files`},
		{"negative size", "analysis:\n  max_file_size: -1\n", "max_file_size must not be negative"},
		{"negative workers", "analysis:\n  workers: -2\n", "workers must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(root, tt.name+".yml")
			writeFile(t, path, tt.content)
			_, err := LoadConfig(root, path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadConfig(root, filepath.Join(root, "missing.yml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", ".astsync.yml")
	want := Sample()
	require.NoError(t, want.SaveConfig(path))

	got, err := LoadConfig(filepath.Dir(path), "")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// Package config loads the astsync configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/astsync/internal/component"
	"github.com/phobologic/astsync/internal/impact"
)

// FileNames are the configuration files looked up in the project root.
var FileNames = []string{".astsync.yml", ".astsync.yaml"}

// Config is the astsync configuration.
type Config struct {
	Version string `yaml:"version"`

	// Component detection
	Components []component.Rule `yaml:"components,omitempty"`
	Detection  DetectionConfig  `yaml:"detection"`

	Analysis AnalysisConfig `yaml:"analysis"`
	Log      LogConfig      `yaml:"log"`
	Watch    WatchConfig    `yaml:"watch"`
}

type DetectionConfig struct {
	MockedDirs []string `yaml:"mocked_dirs,omitempty"`
	StdLibDirs []string `yaml:"stdlib_dirs,omitempty"`
	Default    string   `yaml:"default_component"`
}

type AnalysisConfig struct {
	// Reconstruction policy for internal calls to served functions
	Policy string `yaml:"policy"`

	// Also compare assignment targets when matching
	Stringent bool `yaml:"stringent"`

	// Files larger than this are skipped
	MaxFileSize int `yaml:"max_file_size"`

	// Parser goroutines; 0 means GOMAXPROCS
	Workers int `yaml:"workers"`

	// Extra gitignore-style patterns to leave out
	Exclude []string `yaml:"exclude,omitempty"`

	// Leave out busted and luaunit test files
	SkipTests bool `yaml:"skip_tests"`

	// Snapshots kept by the impact cache
	CacheSize int `yaml:"cache_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Trace bool   `yaml:"trace"`
}

type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_ms"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Detection: DetectionConfig{
			Default: component.DefaultComponent,
		},
		Analysis: AnalysisConfig{
			Policy:      impact.PolicyExternalCallAction.String(),
			MaxFileSize: 1_000_000,
			CacheSize:   impact.DefaultRegistrySize,
		},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			DebounceMillis: 500,
		},
	}
}

// Sample returns an example configuration with component rules filled in.
func Sample() *Config {
	cfg := DefaultConfig()
	cfg.Components = []component.Rule{
		{Name: "Plugins", Dirs: []string{"plugins"}, Files: []string{"plugins.lua"}},
		{Name: "Core", Dirs: []string{"core"}, Files: []string{"core.lua"}},
		{Name: "Runtime", Dirs: []string{"src"}},
	}
	cfg.Detection.MockedDirs = []string{"spec/mocks"}
	return cfg
}

// LoadConfig reads configPath, or the first of FileNames found in root when
// configPath is empty. Without a file the defaults are returned.
func LoadConfig(root, configPath string) (*Config, error) {
	if configPath == "" {
		configPath = findConfigFile(root)
	}
	if configPath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile(root string) string {
	for _, name := range FileNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, err := c.ReconstructionPolicy(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	for i, r := range c.Components {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("component %d has no name", i)
		}
		if len(r.Dirs) == 0 && len(r.Files) == 0 {
			return fmt.Errorf("component %q has neither dirs nor files", r.Name)
		}
	}
	if c.Analysis.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must not be negative")
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// ReconstructionPolicy returns the parsed analysis policy.
func (c *Config) ReconstructionPolicy() (impact.Policy, error) {
	return impact.ParsePolicy(c.Analysis.Policy)
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return lvl, nil
}

// Detector builds the component detector described by the configuration.
func (c *Config) Detector() *component.Detector {
	return component.NewDetector(c.Components, component.Options{
		MockedDirs: c.Detection.MockedDirs,
		StdLibDirs: c.Detection.StdLibDirs,
		Default:    c.Detection.Default,
	})
}

// SaveConfig writes c as YAML to configPath.
func (c *Config) SaveConfig(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

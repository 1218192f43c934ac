// astsync matches Lua component sets against earlier snapshots and reports
// which blocks of their behavioural model need to be regenerated.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phobologic/astsync/internal/config"
	"github.com/phobologic/astsync/internal/discover"
	"github.com/phobologic/astsync/internal/telemetry"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	trace      bool
	metrics    bool

	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "astsync",
		Short: "Keep behavioural models of Lua components in sync with their code",
		Long: `astsync structurally matches two snapshots of a Lua component set and
decides which blocks of the behavioural model must be regenerated after a
change.

Examples:
  astsync impact .                      # served functions and marked blocks
  astsync impact -n 5 --diff fix.patch  # top 5 components, changed statements
  astsync match old/ new/               # correspondence between two snapshots
  astsync watch .                       # re-run the analysis on every save
  astsync init                          # write a sample .astsync.yml`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("astsync {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to configuration file (default: .astsync.yml in the project root)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.trace, "trace", false, "print trace spans to stderr")
	flags.BoolVar(&opts.metrics, "metrics", false, "print metrics to stderr on exit")

	cmd.AddCommand(
		newImpactCmd(opts),
		newMatchCmd(opts),
		newWatchCmd(opts),
		newInitCmd(opts),
	)
	return cmd
}

// env is the per-invocation state built from the global flags.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	shutdown telemetry.Shutdown
}

// setup loads the configuration for project root and installs logging and
// telemetry. The caller must run env.close.
func (o *globalOptions) setup(root string) (*env, error) {
	cfg, err := config.LoadConfig(root, o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: level}))

	shutdown, err := telemetry.Init(telemetry.Options{
		ServiceVersion: version,
		Traces:         o.trace || cfg.Log.Trace,
		Metrics:        o.metrics,
		Writer:         o.stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	return &env{cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

func (e *env) close(ctx context.Context) {
	if err := e.shutdown(ctx); err != nil {
		e.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// status prints a highlighted progress line to w.
func status(w io.Writer, attr color.Attribute, format string, args ...any) {
	_, _ = color.New(attr).Fprintf(w, format+"\n", args...)
}

// projectRoot resolves the optional directory argument.
func projectRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", root)
	}
	return root, nil
}

// cacheIsFresh reports whether the cache file is newer than every source
// file and the configuration.
func cacheIsFresh(cachePath, root string, files []discover.FileEntry) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	paths := make([]string, 0, len(files)+len(config.FileNames))
	for _, f := range files {
		paths = append(paths, filepath.Join(root, f.Path))
	}
	for _, name := range config.FileNames {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}

	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	return true
}

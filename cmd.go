package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phobologic/astsync/internal/changes"
	"github.com/phobologic/astsync/internal/config"
	"github.com/phobologic/astsync/internal/discover"
	"github.com/phobologic/astsync/internal/impact"
	"github.com/phobologic/astsync/internal/loader"
	"github.com/phobologic/astsync/internal/match"
	"github.com/phobologic/astsync/internal/ranking"
	"github.com/phobologic/astsync/internal/report"
	"github.com/phobologic/astsync/internal/toon"
	"github.com/phobologic/astsync/internal/watcher"
)

// reportOptions narrow and annotate an impact report.
type reportOptions struct {
	policy        string
	maxComponents int
	file          string
	function      string
	diffPath      string
}

func (r *reportOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.policy, "policy", "", "reconstruction policy (external-call-action, internal-call-action, internal-action)")
	cmd.Flags().IntVarP(&r.maxComponents, "max-components", "n", 0, "maximum number of components to include")
	cmd.Flags().StringVar(&r.file, "file", "", "only report rows in files whose path contains this")
	cmd.Flags().StringVar(&r.function, "function", "", "only report served functions whose name contains this")
	cmd.Flags().StringVar(&r.diffPath, "diff", "", "unified diff whose changed statements are checked for reconstruction")
}

func newImpactCmd(opts *globalOptions) *cobra.Command {
	var (
		ro        reportOptions
		cachePath string
	)
	cmd := &cobra.Command{
		Use:   "impact [dir]",
		Short: "Report served functions and the blocks that need reconstruction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(args)
			if err != nil {
				return err
			}
			e, err := opts.setup(root)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())
			if ro.policy != "" {
				e.cfg.Analysis.Policy = ro.policy
			}

			if cachePath != "" {
				files, err := discover.Files(root, discover.Options{
					MaxSize:   int64(e.cfg.Analysis.MaxFileSize),
					Exclude:   e.cfg.Analysis.Exclude,
					SkipTests: e.cfg.Analysis.SkipTests,
				})
				if err != nil {
					return fmt.Errorf("discovering files: %w", err)
				}
				if cacheIsFresh(cachePath, root, files) {
					if data, err := os.ReadFile(cachePath); err == nil {
						_, _ = opts.stdout.Write(data)
						return nil
					}
				}
			}

			policy, err := e.cfg.ReconstructionPolicy()
			if err != nil {
				return err
			}
			registry, err := impact.NewRegistry(e.cfg.Analysis.CacheSize, policy, e.logger)
			if err != nil {
				return err
			}

			output, err := analyze(cmd.Context(), root, e, registry, &ro, opts.stderr)
			if err != nil {
				return err
			}

			if cachePath != "" {
				if err := os.WriteFile(cachePath, []byte(output+"\n"), 0o644); err != nil {
					e.logger.Warn("failed to write cache", "path", cachePath, "error", err)
				}
			}
			_, _ = fmt.Fprintln(opts.stdout, output)
			return nil
		},
	}
	ro.register(cmd)
	cmd.Flags().StringVar(&cachePath, "cache", "", "cache file path")
	return cmd
}

// analyze loads root, runs the impact analysis and renders the report.
func analyze(ctx context.Context, root string, e *env, registry *impact.Registry, ro *reportOptions, stderr io.Writer) (string, error) {
	snap, err := loader.Load(ctx, root, e.cfg, e.logger)
	if err != nil {
		return "", err
	}
	if len(snap.Files) == 0 {
		return "", fmt.Errorf("no parseable Lua files found")
	}
	info, err := registry.Info(snap.Tree)
	if err != nil {
		return "", fmt.Errorf("impact analysis: %w", err)
	}

	r := report.Build(snap, info)
	if ro.diffPath != "" {
		patch, err := os.ReadFile(ro.diffPath)
		if err != nil {
			return "", fmt.Errorf("reading diff: %w", err)
		}
		fileChanges, err := changes.Parse(patch)
		if err != nil {
			return "", err
		}
		r.Changes = report.Changes(snap, info, fileChanges)
	}

	if ro.file != "" {
		r = ranking.FilterByFile(r, ro.file)
	}
	if ro.function != "" {
		r = ranking.FilterByFunction(r, ro.function)
	}
	if ro.maxComponents > 0 {
		r = ranking.SelectComponents(r, ro.maxComponents)
	}

	status(stderr, color.FgCyan, "analyzed %d files in %d components: %d served functions, %d marked blocks",
		len(snap.Files), len(snap.Groups), len(info.Served()), len(info.MarkedBlocks()))
	if len(snap.Skipped) > 0 {
		status(stderr, color.FgYellow, "skipped %d files with syntax errors", len(snap.Skipped))
	}
	return toon.Encode(r), nil
}

func newMatchCmd(opts *globalOptions) *cobra.Command {
	var stringent bool
	cmd := &cobra.Command{
		Use:   "match <old-dir> <new-dir>",
		Short: "Match two snapshots of a component set node by node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldRoot, err := projectRoot(args[:1])
			if err != nil {
				return err
			}
			newRoot, err := projectRoot(args[1:])
			if err != nil {
				return err
			}
			e, err := opts.setup(newRoot)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			ctx := cmd.Context()
			oldSnap, err := loader.Load(ctx, oldRoot, e.cfg, e.logger)
			if err != nil {
				return fmt.Errorf("loading %s: %w", oldRoot, err)
			}
			newSnap, err := loader.Load(ctx, newRoot, e.cfg, e.logger)
			if err != nil {
				return fmt.Errorf("loading %s: %w", newRoot, err)
			}

			m := match.New(oldSnap.Tree, newSnap.Tree, match.Options{
				Stringent: stringent || e.cfg.Analysis.Stringent,
			}, e.logger)
			res, err := match.NewDriver(m).Run(ctx)
			if err != nil {
				return fmt.Errorf("matching: %w", err)
			}

			mr := report.BuildMatch(oldSnap, newSnap, res)
			status(opts.stderr, color.FgCyan, "%d pairs, %d deleted, %d added",
				len(res.Pairs), len(res.Deleted), len(res.Added))
			_, _ = fmt.Fprintln(opts.stdout, toon.EncodeMatch(mr))
			return nil
		},
	}
	cmd.Flags().BoolVar(&stringent, "stringent", false, "also require assignment targets to match")
	return cmd
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var ro reportOptions
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-run the impact analysis whenever a Lua file changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(args)
			if err != nil {
				return err
			}
			e, err := opts.setup(root)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())
			if ro.policy != "" {
				e.cfg.Analysis.Policy = ro.policy
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, root, e, &ro, opts.stdout, opts.stderr)
		},
	}
	ro.register(cmd)
	return cmd
}

func watch(ctx context.Context, root string, e *env, ro *reportOptions, stdout, stderr io.Writer) error {
	policy, err := e.cfg.ReconstructionPolicy()
	if err != nil {
		return err
	}
	registry, err := impact.NewRegistry(e.cfg.Analysis.CacheSize, policy, e.logger)
	if err != nil {
		return err
	}

	render := func() error {
		output, err := analyze(ctx, root, e, registry, ro, stderr)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, output)
		return nil
	}
	if err := render(); err != nil {
		return err
	}

	w, err := watcher.New(time.Duration(e.cfg.Watch.DebounceMillis)*time.Millisecond, e.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	status(stderr, color.FgGreen, "watching %s for changes (Ctrl+C to stop)", root)
	return w.Watch(ctx, root, func(paths []string) error {
		status(stderr, color.FgYellow, "%d files changed, re-analyzing", len(paths))
		registry.SignalResourcesChanged()
		if err := render(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			status(stderr, color.FgRed, "analysis failed: %v", err)
			return err
		}
		return nil
	})
}

// writeConfig writes the sample configuration to path unless it exists and
// force is false.
func writeConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return config.Sample().SaveConfig(path)
}

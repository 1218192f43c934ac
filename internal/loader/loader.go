// Package loader turns a directory of Lua sources into one linked syntax
// tree: an application whose components hold one named chunk per file.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/component"
	"github.com/phobologic/astsync/internal/config"
	"github.com/phobologic/astsync/internal/discover"
	"github.com/phobologic/astsync/internal/lang"
)

// File is one loaded source file.
type File struct {
	Path      string // slash separated, relative to the snapshot root
	Component string
	Hash      string
	Size      int64
	Chunk     ast.NodeID
}

// Snapshot is a loaded, linked component set.
type Snapshot struct {
	Root    string
	Tree    *ast.Tree
	Files   []File
	Groups  []component.Group
	Skipped []string
}

// File returns the entry for path.
func (s *Snapshot) File(path string) (File, bool) {
	i := sort.Search(len(s.Files), func(i int) bool { return s.Files[i].Path >= path })
	if i < len(s.Files) && s.Files[i].Path == path {
		return s.Files[i], true
	}
	return File{}, false
}

// Fingerprint combines the file hashes into one value identifying the
// snapshot content.
func (s *Snapshot) Fingerprint() string {
	h := xxh3.New()
	for _, f := range s.Files {
		h.WriteString(f.Path)
		h.WriteString(f.Hash)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Source is an in-memory file handed to Assemble.
type Source struct {
	Path string
	Data []byte
}

type parsed struct {
	src  Source
	hash string
	tree *ast.Tree
	err  error
}

// Load discovers, parses and links the Lua files below root.
func Load(ctx context.Context, root string, cfg *config.Config, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	entries, err := discover.Files(root, discover.Options{
		MaxSize:   int64(cfg.Analysis.MaxFileSize),
		Exclude:   cfg.Analysis.Exclude,
		SkipTests: cfg.Analysis.SkipTests,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	sources := make([]Source, len(entries))
	for i, e := range entries {
		data, err := os.ReadFile(filepath.Join(root, e.Path))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Path, err)
		}
		sources[i] = Source{Path: filepath.ToSlash(e.Path), Data: data}
	}

	snap, err := Assemble(ctx, sources, cfg, logger)
	if err != nil {
		return nil, err
	}
	snap.Root = root
	return snap, nil
}

// Assemble parses sources concurrently, groups them into components and
// links the result. Files with syntax errors are skipped and listed in
// Snapshot.Skipped.
func Assemble(ctx context.Context, sources []Source, cfg *config.Config, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, span := startLoadSpan(ctx, len(sources))
	defer span.End()
	start := time.Now()

	results, err := parseAll(ctx, sources, cfg.Analysis.Workers)
	if err != nil {
		recordLoad(ctx, time.Since(start), 0, err)
		return nil, err
	}

	snap := &Snapshot{Tree: ast.NewTree()}
	byPath := make(map[string]parsed, len(results))
	var paths []string
	for _, r := range results {
		if r.err != nil {
			logger.Warn("skipping file", "path", r.src.Path, "error", r.err)
			snap.Skipped = append(snap.Skipped, r.src.Path)
			recordSkip(ctx)
			continue
		}
		byPath[r.src.Path] = r
		paths = append(paths, r.src.Path)
	}

	t := snap.Tree
	app := t.Add(ast.Node{Kind: ast.KindApplication})
	t.SetRoot(app)
	snap.Groups = cfg.Detector().Partition(paths)
	for _, g := range snap.Groups {
		comp := t.NewChild(app, ast.SlotMembers, ast.Node{Kind: ast.KindComponent, Name: g.Name})
		for _, path := range g.Files {
			r := byPath[path]
			chunk := t.Graft(comp, ast.SlotMembers, r.tree, r.tree.Root())
			snap.Files = append(snap.Files, File{
				Path:      path,
				Component: g.Name,
				Hash:      r.hash,
				Size:      int64(len(r.src.Data)),
				Chunk:     chunk,
			})
		}
		logger.Debug("component assembled", "component", g.Name, "files", len(g.Files))
	}
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })

	if err := Link(t); err != nil {
		recordLoad(ctx, time.Since(start), 0, err)
		return nil, fmt.Errorf("linking: %w", err)
	}

	recordLoad(ctx, time.Since(start), len(snap.Files), nil)
	logger.Info("snapshot loaded",
		"files", len(snap.Files),
		"components", len(snap.Groups),
		"nodes", t.Len(),
		"skipped", len(snap.Skipped),
	)
	return snap, nil
}

func parseAll(ctx context.Context, sources []Source, workers int) ([]parsed, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	luaLang := lang.Languages[lang.Lua]
	results := make([]parsed, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Parsers are not safe for concurrent use.
			parser := luaLang.NewParser()
			defer parser.Close()

			tree, err := Convert(ctx, parser, src.Data, src.Path)
			results[i] = parsed{
				src:  src,
				hash: fmt.Sprintf("%016x", xxh3.Hash(src.Data)),
				tree: tree,
				err:  err,
			}
			if err != nil && !errors.Is(err, ErrSyntax) && !errors.Is(err, ErrUnsupported) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

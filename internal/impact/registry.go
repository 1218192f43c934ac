package impact

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/phobologic/astsync/internal/ast"
)

// DefaultRegistrySize bounds the number of snapshots a Registry keeps.
const DefaultRegistrySize = 16

// Registry caches one Info per snapshot tree. The owner must not invalidate
// it while an Info obtained from it is still being read.
type Registry struct {
	cache   *lru.Cache[*ast.Tree, *Info]
	changed atomic.Bool
	policy  Policy
	logger  *slog.Logger
}

// NewRegistry returns a registry holding at most size snapshots.
func NewRegistry(size int, policy Policy, logger *slog.Logger) (*Registry, error) {
	if size <= 0 {
		size = DefaultRegistrySize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cache, err := lru.New[*ast.Tree, *Info](size)
	if err != nil {
		return nil, fmt.Errorf("creating info cache: %w", err)
	}
	return &Registry{cache: cache, policy: policy, logger: logger}, nil
}

// Info returns the analysis of t, building it on first use. A pending
// resources-changed signal is consumed first and clears the cache.
func (r *Registry) Info(t *ast.Tree) (*Info, error) {
	if r.changed.Swap(false) {
		r.logger.Debug("resources changed, clearing impact cache", "entries", r.cache.Len())
		r.cache.Purge()
		recordPurge()
	}
	if info, ok := r.cache.Get(t); ok {
		recordLookup(true)
		return info, nil
	}
	recordLookup(false)
	start := time.Now()
	info, err := NewInfo(t, r.policy, r.logger)
	recordBuild(time.Since(start), markedCount(info), err)
	if err != nil {
		return nil, err
	}
	r.cache.Add(t, info)
	return info, nil
}

// SignalResourcesChanged requests a full rebuild on the next Info call. It
// may be called from any goroutine.
func (r *Registry) SignalResourcesChanged() {
	r.changed.Store(true)
}

// Invalidate clears the cache immediately.
func (r *Registry) Invalidate() {
	r.cache.Purge()
}

// Len returns the number of cached snapshots.
func (r *Registry) Len() int {
	return r.cache.Len()
}

func markedCount(info *Info) int {
	if info == nil {
		return 0
	}
	return len(info.marked)
}

package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

// DefaultRefreshInterval is the background refresh loop's default period.
const DefaultRefreshInterval = 600 * time.Second

// shutdownJoinDeadline bounds how long Stop waits for a running refresh
// cycle to finish before giving up and returning anyway.
const shutdownJoinDeadline = 5 * time.Second

// Catalogue is the subset of the Catalogue Manager the Index Engine
// consumes: the current converged tool set. Owning servers are resolved
// through Registry below.
type Catalogue interface {
	All() []tool.Info
}

// Registry resolves a server id to its current record, needed to build
// search_text and server_version alongside each tool.
type Registry interface {
	Get(ctx context.Context, id string) (*upstream.Server, error)
}

// Summary reports what a sync changed, for logging and tests.
type Summary struct {
	Added     int
	Updated   int
	Removed   int
	Unchanged int
}

func (s Summary) String() string {
	return fmt.Sprintf("added=%d updated=%d removed=%d unchanged=%d", s.Added, s.Updated, s.Removed, s.Unchanged)
}

// Engine keeps an IndexStore converged with a Catalogue's current tool
// set, via a full rebuild or an incremental diff, and can run that diff
// on an interval in the background.
type Engine struct {
	catalogue Catalogue
	registry  Registry
	store     outbound.IndexStore
	interval  time.Duration
	logger    *slog.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewEngine builds an Engine. interval <= 0 selects DefaultRefreshInterval.
func NewEngine(catalogue Catalogue, registry Registry, store outbound.IndexStore, interval time.Duration, logger *slog.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalogue: catalogue,
		registry:  registry,
		store:     store,
		interval:  interval,
		logger:    logger,
	}
}

// serverCache avoids re-fetching the same server record for every tool
// during a single sync pass.
type serverCache struct {
	registry Registry
	cache    map[string]*upstream.Server
}

func newServerCache(registry Registry) *serverCache {
	return &serverCache{registry: registry, cache: make(map[string]*upstream.Server)}
}

func (c *serverCache) get(ctx context.Context, id string) (*upstream.Server, error) {
	if srv, ok := c.cache[id]; ok {
		return srv, nil
	}
	srv, err := c.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache[id] = srv
	return srv, nil
}

// buildDocuments projects the catalogue's current tools into documents,
// skipping (and logging) any tool whose owning server can no longer be
// resolved -- a benign race against server deletion, not a sync failure.
func (e *Engine) buildDocuments(ctx context.Context, now time.Time) []Document {
	tools := e.catalogue.All()
	servers := newServerCache(e.registry)

	docs := make([]Document, 0, len(tools))
	for _, t := range tools {
		srv, err := servers.get(ctx, t.ServerID)
		if err != nil {
			e.logger.Warn("index: skipping tool with unresolvable server", "tool_id", t.ID(), "server_id", t.ServerID, "error", err)
			continue
		}
		doc, err := BuildDocument(t, srv, now)
		if err != nil {
			e.logger.Warn("index: skipping tool with unversionable document", "tool_id", t.ID(), "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// FullBuild clears the store and rebuilds it from the catalogue's entire
// current tool set.
func (e *Engine) FullBuild(ctx context.Context) (Summary, error) {
	if err := e.store.Clear(ctx); err != nil {
		return Summary{}, fmt.Errorf("clear index: %w", err)
	}
	docs := e.buildDocuments(ctx, time.Now())
	if len(docs) == 0 {
		return Summary{}, nil
	}
	wire := make([]outbound.IndexDocument, 0, len(docs))
	for _, d := range docs {
		wire = append(wire, d.toIndexDocument())
	}
	if err := e.store.Upsert(ctx, wire); err != nil {
		return Summary{}, fmt.Errorf("upsert index: %w", err)
	}
	return Summary{Added: len(docs)}, nil
}

// Refresh performs an incremental sync (spec.md §4.4's added/updated/
// removed/unchanged convergence): documents whose tool_version changed
// (or are new) are upserted, and documents for tools no longer present
// in the catalogue are deleted.
func (e *Engine) Refresh(ctx context.Context) (Summary, error) {
	existing, err := e.store.Versions(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read existing versions: %w", err)
	}

	now := time.Now()
	docs := e.buildDocuments(ctx, now)

	var summary Summary
	seen := make(map[string]struct{}, len(docs))
	var toUpsert []outbound.IndexDocument

	for _, d := range docs {
		seen[d.ToolID] = struct{}{}
		prevVersion, existed := existing[d.ToolID]
		switch {
		case !existed:
			summary.Added++
			toUpsert = append(toUpsert, d.toIndexDocument())
		case prevVersion != d.ToolVersion:
			summary.Updated++
			toUpsert = append(toUpsert, d.toIndexDocument())
		default:
			summary.Unchanged++
		}
	}

	var toRemove []string
	for toolID := range existing {
		if _, ok := seen[toolID]; !ok {
			toRemove = append(toRemove, toolID)
		}
	}
	summary.Removed = len(toRemove)

	if len(toUpsert) > 0 {
		if err := e.store.Upsert(ctx, toUpsert); err != nil {
			return Summary{}, fmt.Errorf("upsert index: %w", err)
		}
	}
	if len(toRemove) > 0 {
		if err := e.store.Delete(ctx, toRemove); err != nil {
			return Summary{}, fmt.Errorf("delete stale index entries: %w", err)
		}
	}
	return summary, nil
}

// Start runs Refresh on an interval until Stop is called. Intended to be
// run in its own goroutine.
func (e *Engine) Start(ctx context.Context) {
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			summary, err := e.Refresh(ctx)
			if err != nil {
				e.logger.Error("index: background refresh failed", "error", err)
				continue
			}
			e.logger.Info("index: background refresh complete", "summary", summary.String())
		}
	}
}

// Stop signals a running Start loop to exit and waits up to
// shutdownJoinDeadline for it to do so.
func (e *Engine) Stop() {
	e.once.Do(func() {
		if e.stop == nil {
			return
		}
		close(e.stop)
	})
	if e.done == nil {
		return
	}
	select {
	case <-e.done:
	case <-time.After(shutdownJoinDeadline):
	}
}

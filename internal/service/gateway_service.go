package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/toolgate/toolgate/internal/adapter/outbound/mcp"
	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/domain/catalogue"
	"github.com/toolgate/toolgate/internal/domain/dispatch"
	"github.com/toolgate/toolgate/internal/domain/index"
	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

// Gateway wires the Server Registry, Catalogue Manager, Index Engine, and
// Invocation Dispatcher into the operations a caller (the CLI, or an
// agent-facing transport) actually performs: discover, search, call, and
// get_mcp_server_tools.
type Gateway struct {
	Registry   *RegistryService
	Catalogue  *catalogue.Manager
	Index      *index.Engine
	Dispatcher *dispatch.Dispatcher
	Searcher   *index.Searcher

	logger *slog.Logger
	cancel context.CancelFunc
}

// NewGateway constructs every domain component from cfg and the given
// adapters, ready for Start to be called once at startup.
func NewGateway(cfg *config.GatewayConfig, store upstream.Store, documents outbound.IndexStore, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cacheTTL, err := time.ParseDuration(cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("parse cache_ttl %q: %w", cfg.CacheTTL, err)
	}
	refreshInterval, err := time.ParseDuration(cfg.RefreshInterval)
	if err != nil {
		return nil, fmt.Errorf("parse refresh_interval %q: %w", cfg.RefreshInterval, err)
	}

	transports := mcp.NewRegistry()
	registrySvc := NewRegistryService(store, transports, logger)
	catalogueMgr := catalogue.NewManager(store, transports, transports, cacheTTL)
	indexEngine := index.NewEngine(catalogueMgr, store, documents, refreshInterval, logger)
	dispatcher := dispatch.NewDispatcher(catalogueMgr, store, transports, documents)
	searcher := index.NewSearcher(documents, catalogueMgr)

	return &Gateway{
		Registry:   registrySvc,
		Catalogue:  catalogueMgr,
		Index:      indexEngine,
		Dispatcher: dispatcher,
		Searcher:   searcher,
		logger:     logger,
	}, nil
}

// Start loads cfg's declared servers, bootstraps them, runs a full index
// build, and starts the background refresh loop. Returns once startup
// work is complete; the refresh loop continues in its own goroutine
// until Stop is called.
func (g *Gateway) Start(ctx context.Context, cfg *config.GatewayConfig) error {
	if err := g.Registry.LoadFromConfig(ctx, cfg); err != nil {
		return fmt.Errorf("load servers: %w", err)
	}
	if err := g.Registry.BootstrapAll(ctx, g.Catalogue); err != nil {
		return fmt.Errorf("bootstrap servers: %w", err)
	}

	summary, err := g.Index.FullBuild(ctx)
	if err != nil {
		return fmt.Errorf("initial index build: %w", err)
	}
	g.logger.Info("gateway: initial index build complete", "summary", summary.String())

	refreshCtx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	go g.Index.Start(refreshCtx)

	return nil
}

// Stop halts the background refresh loop. Safe to call on a Gateway that
// was never Start-ed.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Index.Stop()
}

// Call dispatches a tools/call against serverID/toolName, per spec.md
// §4.5.
func (g *Gateway) Call(ctx context.Context, serverID, toolName string, arguments any) (string, error) {
	return g.Dispatcher.Call(ctx, serverID, toolName, arguments)
}

// Search runs the federated search operation over the current document
// store, per spec.md §4.4.
func (g *Gateway) Search(ctx context.Context, query string, topK int, minScore float64) ([]tool.Info, error) {
	return g.Searcher.Search(ctx, query, topK, minScore)
}

// Discover runs the catalogue's discover operation for one server
// (serverID != "") or every server (serverID == ""), per spec.md §4.3.
func (g *Gateway) Discover(ctx context.Context, serverID string, forceRefresh bool) ([]tool.Info, error) {
	return g.Catalogue.Discover(ctx, serverID, forceRefresh)
}

// GetServerTools implements the reflective get_mcp_server_tools tool.
func (g *Gateway) GetServerTools(ctx context.Context, serverID string) (string, error) {
	return g.Dispatcher.GetServerTools(ctx, serverID)
}

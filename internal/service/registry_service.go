// Package service wires the domain packages (upstream, catalogue, index,
// dispatch) into the two long-lived components a running gateway needs:
// a registry that bootstraps configured servers at startup, and a
// gateway facade exposing call/search/discover to the CLI and any
// agent-facing transport built on top of it.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

// maxConcurrentBootstraps bounds how many servers are initialized at
// once during startup, so a large mcpServers document doesn't open an
// unbounded number of simultaneous outbound connections.
const maxConcurrentBootstraps = 8

// Transports resolves the TransportAdapter for a server's dialect, the
// same port catalogue.Manager and dispatch.Dispatcher depend on.
type Transports interface {
	For(dialect upstream.Dialect) outbound.TransportAdapter
}

// Discoverer runs the catalogue's tools/list discovery for one server,
// used here only to seed the category/tag inference right after a
// server's first successful bootstrap.
type Discoverer interface {
	Discover(ctx context.Context, serverID string, forceRefresh bool) ([]tool.Info, error)
}

// RegistryService owns the Server Registry's lifecycle: turning the
// declared mcpServers document into live *upstream.Server records,
// bootstrapping each one, and inferring category/tags from its first
// discovered tool set.
type RegistryService struct {
	store      upstream.Store
	transports Transports
	logger     *slog.Logger
}

// NewRegistryService builds a RegistryService over store.
func NewRegistryService(store upstream.Store, transports Transports, logger *slog.Logger) *RegistryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistryService{store: store, transports: transports, logger: logger}
}

// LoadFromConfig materializes one upstream.Server per entry of cfg's
// declared servers and adds it to the store. Headers are expected to
// already have gone through environment-variable substitution.
func (r *RegistryService) LoadFromConfig(ctx context.Context, cfg *config.GatewayConfig) error {
	for id, sc := range cfg.Servers {
		srv, err := upstream.NewServer(id, sc.URL, upstream.Dialect(sc.Type), sc.Headers)
		if err != nil {
			return fmt.Errorf("server %q: %w", id, err)
		}
		if err := r.store.Add(ctx, srv); err != nil {
			return fmt.Errorf("register server %q: %w", id, err)
		}
	}
	return nil
}

// BootstrapAll initializes every configured server concurrently, bounded
// by maxConcurrentBootstraps, and classifies each server's category/tags
// from its first discovered tool set once bootstrap succeeds. A single
// server's bootstrap failure is logged and does not fail the others or
// the overall startup (spec.md §7 category 3: discovery errors are
// recovered locally).
func (r *RegistryService) BootstrapAll(ctx context.Context, discoverer Discoverer) error {
	servers, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list servers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBootstraps)

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			r.bootstrapOne(gctx, srv, discoverer)
			return nil
		})
	}
	// Every task above always returns nil; Wait only ever reports the
	// group's own setup errors.
	return g.Wait()
}

func (r *RegistryService) bootstrapOne(ctx context.Context, srv *upstream.Server, discoverer Discoverer) {
	transport := r.transports.For(srv.Dialect)

	// Initialize performs network I/O and, for session dialects, reads
	// and writes srv.Session itself (via HasSession and direct field
	// writes); it must run without srv's lock held, or a concurrent
	// HasSession call inside it would deadlock against this goroutine's
	// own lock.
	hello, err := transport.Initialize(ctx, srv)
	if err != nil {
		r.logger.Error("registry: bootstrap failed", "server_id", srv.ID, "error", err)
		srv.Lock()
		srv.Status = upstream.StatusUnhealthy
		srv.LastError = err.Error()
		srv.Unlock()
		return
	}

	srv.Lock()
	srv.Status = upstream.StatusBootstrapped
	if hello != nil {
		srv.Name = hello.Name
		srv.Description = hello.Description
		srv.ProtocolVersion = hello.ProtocolVersion
		srv.Capabilities = hello.Capabilities
	}
	srv.Unlock()
	r.logger.Info("registry: server bootstrapped", "server_id", srv.ID, "name", srv.Name)

	tools, err := discoverer.Discover(ctx, srv.ID, true)
	if err != nil {
		r.logger.Warn("registry: initial discovery failed", "server_id", srv.ID, "error", err)
		return
	}

	category, tags := tool.Classify(tools)
	if category == "" && len(tags) == 0 {
		return
	}
	srv.Lock()
	srv.Category = category
	srv.Tags = tags
	srv.Unlock()
	r.logger.Debug("registry: classified server", "server_id", srv.ID, "category", category, "tags", tags)

	// The tool.Info records cached by the first Discover carry the
	// category/tags srv had at that time (none). Re-run discovery, forced,
	// so every cached tool.Info reflects the classification just derived.
	if _, err := discoverer.Discover(ctx, srv.ID, true); err != nil {
		r.logger.Warn("registry: post-classification re-discovery failed", "server_id", srv.ID, "error", err)
	}
}

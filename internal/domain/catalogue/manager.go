// Package catalogue implements the Catalogue Manager (C3): per-server
// tool caching with TTL, and the tools_by_id index used by the
// dispatcher and the registry's category/tag inference.
package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

// DefaultTTL is the default cache lifetime for a server's discovered
// tool set.
const DefaultTTL = 3600 * time.Second

// Registry is the subset of the Server Registry the Catalogue Manager
// needs: enumerate servers and look one up by id.
type Registry interface {
	List(ctx context.Context) ([]*upstream.Server, error)
	Get(ctx context.Context, id string) (*upstream.Server, error)
}

// HealthChecker probes one server's liveness, dialect differences
// handled internally (GET /health for plain, tools/list + retry for
// session dialects).
type HealthChecker interface {
	Probe(ctx context.Context, srv *upstream.Server) error
}

// Transports resolves the TransportAdapter for a server's dialect.
type Transports interface {
	For(dialect upstream.Dialect) outbound.TransportAdapter
}

type cacheEntry struct {
	tools     []tool.Info
	expiresAt time.Time
}

// Manager holds tools_by_id and cache_by_server and implements
// discover's five-step algorithm (spec.md §4.3).
type Manager struct {
	registry   Registry
	health     HealthChecker
	transports Transports
	ttl        time.Duration

	mu            sync.RWMutex
	toolsByID     map[string]tool.Info
	cacheByServer map[string]cacheEntry
}

// NewManager builds a Manager. ttl <= 0 selects DefaultTTL.
func NewManager(registry Registry, health HealthChecker, transports Transports, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		registry:      registry,
		health:        health,
		transports:    transports,
		ttl:           ttl,
		toolsByID:     make(map[string]tool.Info),
		cacheByServer: make(map[string]cacheEntry),
	}
}

// toolsListResult is the shape of a tools/list response; the parameter
// schema is accepted under either "parameters" or "inputSchema".
type toolsListResult struct {
	Tools []toolWire `json:"tools"`
}

type toolWire struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func (w toolWire) schema() json.RawMessage {
	if len(w.Parameters) > 0 {
		return w.Parameters
	}
	return w.InputSchema
}

// Discover implements spec.md §4.3's numbered algorithm for one server
// (serverID != "") or every enabled server (serverID == "").
func (m *Manager) Discover(ctx context.Context, serverID string, forceRefresh bool) ([]tool.Info, error) {
	targets, err := m.targetServers(ctx, serverID)
	if err != nil {
		return nil, err
	}

	var all []tool.Info
	for _, srv := range targets {
		tools, err := m.discoverOne(ctx, srv, forceRefresh)
		if err != nil {
			// Discovery errors are recovered locally (spec.md §7
			// category 3): the cache entry is left absent and the
			// caller sees fewer tools, not a hard failure, unless a
			// single server was explicitly requested.
			if serverID != "" {
				return nil, err
			}
			continue
		}
		all = append(all, tools...)
	}
	return all, nil
}

func (m *Manager) targetServers(ctx context.Context, serverID string) ([]*upstream.Server, error) {
	if serverID != "" {
		srv, err := m.registry.Get(ctx, serverID)
		if err != nil {
			return nil, err
		}
		return []*upstream.Server{srv}, nil
	}
	return m.registry.List(ctx)
}

// discoverOne runs steps 2-5 of spec.md §4.3 for a single server. Probe
// and Call perform network I/O and, for session dialects, bootstrap or
// tear down srv's session internally (via HasSession and direct field
// access); srv's lock is only ever taken for the brief status-field
// writes below, never held across a transport call, or a concurrent
// HasSession call inside that transport call would deadlock against it.
func (m *Manager) discoverOne(ctx context.Context, srv *upstream.Server, forceRefresh bool) ([]tool.Info, error) {
	// Step 2: evict and skip an unhealthy server (I2).
	if err := m.health.Probe(ctx, srv); err != nil {
		m.evictServer(srv.ID)
		srv.Lock()
		srv.Status = upstream.StatusUnhealthy
		srv.LastError = err.Error()
		srv.Unlock()
		return nil, fmt.Errorf("server %s is unhealthy: %w", srv.ID, err)
	}
	srv.Lock()
	srv.Status = upstream.StatusHealthy
	srv.Unlock()

	// Step 3: serve from cache if present, unexpired, and not forced.
	if !forceRefresh {
		if tools, ok := m.cachedTools(srv.ID); ok {
			return tools, nil
		}
	}

	// Step 4: refresh via tools/list.
	transport := m.transports.For(srv.Dialect)
	raw, err := transport.Call(ctx, srv, "tools/list", map[string]any{})
	if err != nil {
		// Step 5: leave the cache entry absent, propagate the error.
		m.evictServer(srv.ID)
		return nil, fmt.Errorf("tools/list on %s: %w", srv.ID, err)
	}

	var result toolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		m.evictServer(srv.ID)
		return nil, fmt.Errorf("decode tools/list result from %s: %w", srv.ID, err)
	}

	srv.Lock()
	category, tags := srv.Category, srv.Tags
	srv.Unlock()

	now := time.Now()
	seen := make(map[string]struct{}, len(result.Tools))
	tools := make([]tool.Info, 0, len(result.Tools))
	for _, w := range result.Tools {
		// I1: tool_id is unique across all upstreams; a server
		// advertising the same name twice has its second copy rejected
		// at ingestion rather than overwriting the first silently.
		if _, dup := seen[w.Name]; dup {
			continue
		}
		seen[w.Name] = struct{}{}
		tools = append(tools, tool.Info{
			Name:         w.Name,
			Description:  w.Description,
			ServerID:     srv.ID,
			Parameters:   w.schema(),
			Category:     category,
			Tags:         tags,
			DiscoveredAt: now,
		})
	}

	m.swapIn(srv.ID, tools)
	return tools, nil
}

// cachedTools returns the server's cached tools if present and unexpired.
func (m *Manager) cachedTools(serverID string) ([]tool.Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.cacheByServer[serverID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.tools, true
}

// swapIn atomically replaces the cache entry and tools_by_id entries for
// serverID, so readers always see either the old or new snapshot
// (spec.md §5).
func (m *Manager) swapIn(serverID string, tools []tool.Info) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.toolsByID {
		if t.ServerID == serverID {
			delete(m.toolsByID, id)
		}
	}
	for _, t := range tools {
		m.toolsByID[t.ID()] = t
	}
	m.cacheByServer[serverID] = cacheEntry{
		tools:     tools,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// evictServer removes a server's cache entry and tools_by_id entries
// (I2: an unhealthy server's cache is evicted).
func (m *Manager) evictServer(serverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cacheByServer, serverID)
	for id, t := range m.toolsByID {
		if t.ServerID == serverID {
			delete(m.toolsByID, id)
		}
	}
}

// Lookup resolves a tool_id to its ToolInfo.
func (m *Manager) Lookup(toolID string) (tool.Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.toolsByID[toolID]
	return t, ok
}

// All returns every cached ToolInfo across all servers.
func (m *Manager) All() []tool.Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tool.Info, 0, len(m.toolsByID))
	for _, t := range m.toolsByID {
		out = append(out, t)
	}
	return out
}

// ByServer returns the cached tools for one server, without refreshing.
func (m *Manager) ByServer(serverID string) []tool.Info {
	tools, _ := m.cachedTools(serverID)
	return tools
}

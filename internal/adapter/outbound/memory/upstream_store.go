// Package memory provides in-memory adapters backing the Server
// Registry and Index Engine ports. The CLI always keeps its servers in
// UpstreamStore; IndexStore is used by unit tests and when the
// state_backend configuration key is "memory".
package memory

import (
	"context"
	"sync"

	"github.com/toolgate/toolgate/internal/domain/upstream"
)

// UpstreamStore implements upstream.Store with an in-memory map.
// Thread-safe for concurrent access via sync.RWMutex. List and Get hand
// out the live stored records, not copies.
type UpstreamStore struct {
	servers map[string]*upstream.Server
	mu      sync.RWMutex
}

// NewUpstreamStore creates a new in-memory server store.
func NewUpstreamStore() *UpstreamStore {
	return &UpstreamStore{
		servers: make(map[string]*upstream.Server),
	}
}

// List returns the live *Server records for every configured server.
// Callers that want a consistent copy of a server's fields should call
// Snapshot themselves instead of relying on List's absence of a copy.
func (s *UpstreamStore) List(_ context.Context) ([]*upstream.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*upstream.Server, 0, len(s.servers))
	for _, srv := range s.servers {
		out = append(out, srv)
	}
	return out, nil
}

// Get returns the live *Server record for id. Returns
// upstream.ErrServerNotFound if absent.
func (s *UpstreamStore) Get(_ context.Context, id string) (*upstream.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	srv, ok := s.servers[id]
	if !ok {
		return nil, upstream.ErrServerNotFound
	}
	return srv, nil
}

// Add registers a new server. Returns upstream.ErrDuplicateServerID if
// the id is already present.
func (s *UpstreamStore) Add(_ context.Context, srv *upstream.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.servers[srv.ID]; ok {
		return upstream.ErrDuplicateServerID
	}
	s.servers[srv.ID] = srv
	return nil
}

// Update replaces an existing server record. Returns
// upstream.ErrServerNotFound if the id is absent.
func (s *UpstreamStore) Update(_ context.Context, srv *upstream.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.servers[srv.ID]; !ok {
		return upstream.ErrServerNotFound
	}
	s.servers[srv.ID] = srv
	return nil
}

// Delete removes a server by id. Returns upstream.ErrServerNotFound if
// the id is absent.
func (s *UpstreamStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.servers[id]; !ok {
		return upstream.ErrServerNotFound
	}
	delete(s.servers, id)
	return nil
}

var _ upstream.Store = (*UpstreamStore)(nil)

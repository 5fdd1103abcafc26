package memory

import (
	"context"
	"sync"

	"github.com/toolgate/toolgate/internal/port/outbound"
)

// IndexStore implements outbound.IndexStore with an in-memory map, keyed
// by tool_id, with a secondary index by server_id maintained on every
// write. Used by unit tests and when the state_backend configuration key
// is "memory".
type IndexStore struct {
	mu       sync.RWMutex
	docs     map[string]outbound.IndexDocument
	byServer map[string]map[string]struct{}
}

// NewIndexStore creates an empty in-memory document store.
func NewIndexStore() *IndexStore {
	return &IndexStore{
		docs:     make(map[string]outbound.IndexDocument),
		byServer: make(map[string]map[string]struct{}),
	}
}

// Upsert writes docs in a single batch, keyed by ToolID.
func (s *IndexStore) Upsert(_ context.Context, docs []outbound.IndexDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		s.docs[doc.ToolID] = doc
		s.indexByServer(doc.ServerID, doc.ToolID)
	}
	return nil
}

// indexByServer must be called with s.mu held.
func (s *IndexStore) indexByServer(serverID, toolID string) {
	ids, ok := s.byServer[serverID]
	if !ok {
		ids = make(map[string]struct{})
		s.byServer[serverID] = ids
	}
	ids[toolID] = struct{}{}
}

// Delete removes the documents for the given tool_ids. Deleting an absent
// tool_id is not an error.
func (s *IndexStore) Delete(_ context.Context, toolIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range toolIDs {
		doc, ok := s.docs[id]
		if !ok {
			continue
		}
		delete(s.docs, id)
		if ids, ok := s.byServer[doc.ServerID]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(s.byServer, doc.ServerID)
			}
		}
	}
	return nil
}

// Clear removes every document, used before a full build.
func (s *IndexStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = make(map[string]outbound.IndexDocument)
	s.byServer = make(map[string]map[string]struct{})
	return nil
}

// All returns every stored document.
func (s *IndexStore) All(_ context.Context) ([]outbound.IndexDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]outbound.IndexDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	return out, nil
}

// ByServer returns the documents belonging to one server, via the
// secondary index rather than a linear scan.
func (s *IndexStore) ByServer(_ context.Context, serverID string) ([]outbound.IndexDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.byServer[serverID]
	if !ok {
		return nil, nil
	}
	out := make([]outbound.IndexDocument, 0, len(ids))
	for id := range ids {
		out = append(out, s.docs[id])
	}
	return out, nil
}

// Versions returns the current tool_version of every stored document,
// keyed by tool_id.
func (s *IndexStore) Versions(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.docs))
	for id, doc := range s.docs {
		out[id] = doc.ToolVersion
	}
	return out, nil
}

var _ outbound.IndexStore = (*IndexStore)(nil)

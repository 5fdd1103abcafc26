package upstream

import (
	"context"
	"errors"
)

// Sentinel errors for registry operations.
var (
	// ErrServerNotFound is returned when a server with the given ID does not exist.
	ErrServerNotFound = errors.New("server not found")
	// ErrDuplicateServerID is returned when a server ID already exists.
	ErrDuplicateServerID = errors.New("duplicate server id")
)

// Store is a port for the Server Registry's backing storage. Both List
// and Get return live *Server records, so a caller's field writes (taken
// under the server's own lock, never held across I/O) reach every other
// holder of the record; callers that want a consistent copy of the
// fields call Snapshot themselves.
type Store interface {
	// List returns every configured server.
	List(ctx context.Context) ([]*Server, error)
	// Get returns the live server for the given ID.
	// Returns ErrServerNotFound if no such server is configured.
	Get(ctx context.Context, id string) (*Server, error)
	// Add registers a new server. Returns ErrDuplicateServerID if the ID
	// is already in use.
	Add(ctx context.Context, server *Server) error
	// Update replaces an existing server's declared configuration.
	// Returns ErrServerNotFound if the server does not exist.
	Update(ctx context.Context, server *Server) error
	// Delete removes a server by ID.
	// Returns ErrServerNotFound if the server does not exist.
	Delete(ctx context.Context, id string) error
}

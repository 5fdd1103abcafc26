// Package upstream contains domain types for federated MCP upstream servers:
// their declared configuration, the metadata derived from bootstrapping
// them, and the session state the streamable and SSE dialects require.
package upstream

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Dialect identifies which of the three JSON-RPC transport variants an
// upstream speaks. The zero value is invalid; Validate rejects it.
type Dialect string

const (
	// DialectPlain is a single HTTP POST, JSON request, JSON response, no
	// session bootstrap.
	DialectPlain Dialect = "plain"
	// DialectStreamable carries the same request shape as plain but
	// bootstraps a session id from the mcp-session-id response header.
	DialectStreamable Dialect = "streamable"
	// DialectSSE is the two-step Server-Sent-Events bootstrap: a GET that
	// yields a message endpoint and session id over the event stream,
	// then POSTs against that endpoint, each response read from the event
	// stream in that POST's own reply body.
	DialectSSE Dialect = "sse"
)

// RequiresSession reports whether the dialect needs a bootstrapped
// session before any tools/list or tools/call can be sent.
func (d Dialect) RequiresSession() bool {
	return d == DialectStreamable || d == DialectSSE
}

// ConnectionStatus is the runtime health of an upstream. It is never
// persisted; it is recomputed by health probes and bootstrap attempts.
type ConnectionStatus string

const (
	StatusUnknown      ConnectionStatus = "unknown"
	StatusBootstrapped ConnectionStatus = "bootstrapped"
	StatusHealthy      ConnectionStatus = "healthy"
	StatusUnhealthy    ConnectionStatus = "unhealthy"
)

// Session holds the transport state a streamable or SSE upstream needs
// between calls. MessageEndpoint is only populated for SSE, discovered
// during the two-step handshake.
type Session struct {
	ID              string
	MessageEndpoint string
	EstablishedAt   time.Time
}

// Server is a configured MCP upstream: identity and endpoint as declared,
// plus everything derived at bootstrap and refresh time. Lock/Unlock
// guard brief reads and writes of these fields; the lock is never held
// across network I/O, so two bootstraps or health probes of the same
// server are not serialized and can run at the same time. Snapshot
// returns a consistent value copy.
type Server struct {
	mu sync.Mutex

	// ID uniquely identifies this server within a gateway instance; it is
	// the mcpServers configuration map key and the server_id half of
	// every tool_id.
	ID string
	// URL is the absolute upstream endpoint.
	URL string
	// Dialect is one of plain, streamable, sse.
	Dialect Dialect
	// Headers are static request headers, already through ${VAR}
	// environment substitution.
	Headers map[string]string

	// Derived from the upstream's initialize reply, when it answers one.
	Name            string
	Description     string
	Capabilities    map[string]any
	ProtocolVersion string

	// Derived from the first successful tools/list via keyword heuristic.
	Category string
	Tags     []string

	// Session state, present only once a streamable/sse bootstrap has
	// succeeded.
	Session *Session

	// Runtime-only health state.
	Status    ConnectionStatus
	LastError string

	CreatedAt time.Time
}

// NewServer constructs a Server from its declared configuration fields
// and validates it.
func NewServer(id, rawURL string, dialect Dialect, headers map[string]string) (*Server, error) {
	s := &Server{
		ID:        id,
		URL:       rawURL,
		Dialect:   dialect,
		Headers:   headers,
		Status:    StatusUnknown,
		CreatedAt: time.Now(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the declared (not derived) fields of a Server.
func (s *Server) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(s.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("url is not a valid absolute URL")
	}
	switch s.Dialect {
	case DialectPlain, DialectStreamable, DialectSSE:
	default:
		return fmt.Errorf("type must be %q, %q or %q", DialectPlain, DialectStreamable, DialectSSE)
	}
	return nil
}

// Lock and Unlock expose the per-server mutex that guards brief field
// reads and writes. Callers release it before any bootstrap, probe or
// call, so it does not serialize those attempts against a single server.
func (s *Server) Lock()   { s.mu.Lock() }
func (s *Server) Unlock() { s.mu.Unlock() }

// Snapshot returns a value copy of the server's fields, safe to read
// without holding the lock across subsequent network I/O.
func (s *Server) Snapshot() Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *s
	cp.mu = sync.Mutex{}
	if s.Headers != nil {
		cp.Headers = make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			cp.Headers[k] = v
		}
	}
	if s.Tags != nil {
		cp.Tags = append([]string(nil), s.Tags...)
	}
	if s.Session != nil {
		sess := *s.Session
		cp.Session = &sess
	}
	return cp
}

// HasSession reports whether a session has already been bootstrapped.
func (s *Server) HasSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Session != nil && s.Session.ID != ""
}

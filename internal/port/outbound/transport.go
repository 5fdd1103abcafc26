// Package outbound defines the ports ToolGate's domain logic calls into
// adapters through: the transport adapter (C1) and the index document
// store (C4).
package outbound

import (
	"context"
	"encoding/json"

	"github.com/toolgate/toolgate/internal/domain/upstream"
)

// ServerHello is what Initialize learns from an upstream's initialize
// reply: the fields the Registry uses to populate a Server's derived
// name/description/capabilities.
type ServerHello struct {
	// Name is serverInfo.name, or the server's own id if the upstream
	// didn't answer with serverInfo.
	Name string
	// Description is serverInfo.description, or "MCP server: <id>" when
	// the upstream gives none.
	Description string
	// ProtocolVersion is the negotiated protocol version, possibly empty.
	ProtocolVersion string
	// Capabilities is the upstream's declared capabilities object.
	Capabilities map[string]any
	// Synthesized is true when the adapter fabricated this hello because
	// the upstream doesn't implement initialize (-32601 tolerance).
	Synthesized bool
}

// RawResult is the undecoded `result` field of a successful JSON-RPC
// response, handed back to callers (the Catalogue Manager for
// tools/list, the Dispatcher for tools/call) to interpret.
type RawResult json.RawMessage

// TransportAdapter speaks JSON-RPC 2.0 to a single upstream across any of
// the three dialects. Implementations are selected by srv.Dialect; each
// owns the dialect's session bootstrap, header injection, and response
// framing.
type TransportAdapter interface {
	// Initialize performs the upstream handshake: sends `initialize`,
	// tolerates `-32601` as a no-op success, and for streamable/sse
	// dialects also sends `notifications/initialized` and captures the
	// session. It performs network I/O and reads/writes srv.Session
	// itself, taking srv's lock only for those brief field touches (via
	// HasSession, and around each Session write); the derived
	// name/description fields are left to the caller, which copies them
	// from the returned hello. Callers must NOT hold srv's lock across
	// this call.
	Initialize(ctx context.Context, srv *upstream.Server) (*ServerHello, error)

	// Call invokes method with params against srv, bootstrapping a
	// session first if the dialect requires one and none exists (I5).
	// Same locking contract as Initialize: callers must not hold srv's
	// lock across this call.
	Call(ctx context.Context, srv *upstream.Server, method string, params any) (RawResult, error)

	// Probe performs a lightweight liveness check appropriate to the
	// dialect: GET <url>/health for plain, a lightweight tools/list (with
	// one re-bootstrap retry on failure) for streamable/sse. Same locking
	// contract as Initialize.
	Probe(ctx context.Context, srv *upstream.Server) error
}

package mcp

import (
	"context"

	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

// Registry resolves a dialect to the TransportAdapter that speaks it,
// satisfying both the Catalogue Manager's and the Dispatcher's Transports
// port, and doubling as a catalogue.HealthChecker by delegating Probe to
// the right dialect.
type Registry struct {
	plain      outbound.TransportAdapter
	streamable outbound.TransportAdapter
	sse        outbound.TransportAdapter
}

// NewRegistry builds a Registry with one adapter per dialect.
func NewRegistry() *Registry {
	return &Registry{
		plain:      NewPlainAdapter(),
		streamable: NewStreamableAdapter(),
		sse:        NewSSEAdapter(),
	}
}

// For returns the TransportAdapter for dialect, defaulting to the plain
// adapter for an unrecognized value (Server.Validate rejects those
// before they ever reach here).
func (r *Registry) For(dialect upstream.Dialect) outbound.TransportAdapter {
	switch dialect {
	case upstream.DialectStreamable:
		return r.streamable
	case upstream.DialectSSE:
		return r.sse
	default:
		return r.plain
	}
}

// Probe implements catalogue.HealthChecker by delegating to the adapter
// for srv's dialect.
func (r *Registry) Probe(ctx context.Context, srv *upstream.Server) error {
	return r.For(srv.Dialect).Probe(ctx, srv)
}

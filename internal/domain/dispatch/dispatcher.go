// Package dispatch implements the Invocation Dispatcher (C5): validating
// a call target, invoking the Transport Adapter, and normalizing the
// heterogeneous result envelope into one textual reply.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/domain/validation"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

// Catalogue resolves a compound tool_id to its ToolInfo and lists a
// server's currently cached tools -- the subset of catalogue.Manager the
// dispatcher needs.
type Catalogue interface {
	Lookup(toolID string) (tool.Info, bool)
	ByServer(serverID string) []tool.Info
}

// Registry resolves a server id to its current record.
type Registry interface {
	Get(ctx context.Context, id string) (*upstream.Server, error)
}

// Transports resolves the TransportAdapter for a server's dialect.
type Transports interface {
	For(dialect upstream.Dialect) outbound.TransportAdapter
}

// Dispatcher implements spec.md §4.5.
type Dispatcher struct {
	catalogue  Catalogue
	registry   Registry
	transports Transports
	documents  outbound.IndexStore // optional; nil falls back to Catalogue only
	sanitizer  *validation.Sanitizer
}

// NewDispatcher builds a Dispatcher. documents may be nil, in which case
// GetServerTools always falls back to the live catalogue.
func NewDispatcher(catalogue Catalogue, registry Registry, transports Transports, documents outbound.IndexStore) *Dispatcher {
	return &Dispatcher{
		catalogue:  catalogue,
		registry:   registry,
		transports: transports,
		documents:  documents,
		sanitizer:  validation.NewSanitizer(),
	}
}

// callParams is the tools/call request payload.
type callParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// Call implements spec.md §4.5 steps 1-5: resolve the tool, ensure the
// server is reachable and session-bootstrapped, invoke tools/call, and
// normalize the reply.
func (d *Dispatcher) Call(ctx context.Context, serverID, toolName string, arguments any) (string, error) {
	// Reject a malformed tool name before it ever reaches a lookup or an
	// upstream call.
	if err := d.sanitizer.ValidateToolName(toolName); err != nil {
		return "", err
	}

	toolID := serverID + ":" + toolName

	// Step 1: reject unknown tool_id.
	info, ok := d.catalogue.Lookup(toolID)
	if !ok {
		return "", ErrToolNotFound(toolID)
	}

	// Step 2: reject if the server has since been deregistered.
	srv, err := d.registry.Get(ctx, info.ServerID)
	if err != nil {
		return "", ErrServerNotRegistered(info.ServerID)
	}

	// Step 3: bootstrap a session-requiring server on demand. HasSession
	// takes srv's lock itself, so it is called bare here, never wrapped
	// in an outer srv.Lock()/Unlock() pair -- Go's mutex isn't
	// reentrant, and Initialize runs network I/O afterward anyway, so
	// there is nothing for an outer lock to protect.
	transport := d.transports.For(srv.Dialect)
	if srv.Dialect.RequiresSession() && !srv.HasSession() {
		if _, err := transport.Initialize(ctx, srv); err != nil {
			return "", ErrBootstrapFailed(srv.ID, err)
		}
	}

	// Step 4: invoke tools/call. Arguments pass through the sanitizer so a
	// stray null byte or an oversized string in caller-supplied input never
	// reaches an upstream.
	if arguments == nil {
		arguments = map[string]any{}
	}
	sanitized, err := d.sanitizer.SanitizeValue(arguments)
	if err != nil {
		return "", err
	}
	raw, err := transport.Call(ctx, srv, "tools/call", callParams{Name: toolName, Arguments: sanitized})
	if err != nil {
		// Invocation errors are data, not exceptions (spec.md §7 category
		// 4): surfaced as a string the agent treats as a normal result.
		return invocationErrorText(err), nil
	}

	// Step 5: normalize the heterogeneous reply.
	return Normalize(json.RawMessage(raw)), nil
}

// methodNotFoundCode mirrors the JSON-RPC standard code for "method not
// found", used here to spot an upstream that doesn't recognize
// tools/call at all.
const methodNotFoundCode = -32601

// invocationErrorText renders a transport/JSON-RPC failure as the
// "error:"-prefixed string spec.md §7 requires, with a hint toward
// tools/list when the upstream doesn't recognize the method at all.
func invocationErrorText(err error) string {
	var wireErr *jsonrpc.WireError
	if errors.As(err, &wireErr) {
		if wireErr.Code == methodNotFoundCode {
			return fmt.Sprintf("error: %s (hint: call tools/list to see what this server actually supports)", wireErr.Message)
		}
		return fmt.Sprintf("error: %s", wireErr.Message)
	}
	return fmt.Sprintf("error: %v", err)
}

// GetServerTools implements the reflective get_mcp_server_tools(server_id)
// tool: the document store is the system-of-record when it has entries
// for this server; otherwise fall back to a live catalogue lookup
// (resolves spec.md §9's reflection-precedence open question).
func (d *Dispatcher) GetServerTools(ctx context.Context, serverID string) (string, error) {
	if d.documents != nil {
		docs, err := d.documents.ByServer(ctx, serverID)
		if err == nil && len(docs) > 0 {
			return marshalToolList(documentsToSummaries(docs))
		}
	}

	tools := d.catalogue.ByServer(serverID)
	return marshalToolList(toolsToSummaries(tools))
}

// toolSummary is the shape returned by get_mcp_server_tools: name,
// description, and parameter schema, deliberately omitting server-level
// fields the caller already knows (it asked for this server_id).
type toolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

func toolsToSummaries(tools []tool.Info) []toolSummary {
	out := make([]toolSummary, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolSummary{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}

func documentsToSummaries(docs []outbound.IndexDocument) []toolSummary {
	out := make([]toolSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toolSummary{Name: doc.ToolName, Description: doc.ToolDescription, Parameters: doc.ToolParameters})
	}
	return out
}

func marshalToolList(summaries []toolSummary) (string, error) {
	raw, err := json.Marshal(summaries)
	if err != nil {
		return "", fmt.Errorf("marshal tool listing: %w", err)
	}
	return string(raw), nil
}

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

type fakeCatalogue struct {
	tools map[string]tool.Info
}

func (f *fakeCatalogue) Lookup(toolID string) (tool.Info, bool) {
	t, ok := f.tools[toolID]
	return t, ok
}

func (f *fakeCatalogue) ByServer(serverID string) []tool.Info {
	var out []tool.Info
	for _, t := range f.tools {
		if t.ServerID == serverID {
			out = append(out, t)
		}
	}
	return out
}

type fakeRegistry struct {
	servers map[string]*upstream.Server
}

func (f *fakeRegistry) Get(_ context.Context, id string) (*upstream.Server, error) {
	srv, ok := f.servers[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return srv, nil
}

type fakeTransport struct {
	initializeErr error
	callResult    outbound.RawResult
	callErr       error
	initCalls     int
	callCalls     int
}

func (f *fakeTransport) Initialize(_ context.Context, srv *upstream.Server) (*outbound.ServerHello, error) {
	f.initCalls++
	if f.initializeErr != nil {
		return nil, f.initializeErr
	}
	srv.Session = &upstream.Session{ID: "sess-1", EstablishedAt: time.Now()}
	return &outbound.ServerHello{Name: srv.ID}, nil
}

func (f *fakeTransport) Call(_ context.Context, _ *upstream.Server, _ string, _ any) (outbound.RawResult, error) {
	f.callCalls++
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callResult, nil
}

func (f *fakeTransport) Probe(context.Context, *upstream.Server) error { return nil }

type fakeTransports struct {
	transport outbound.TransportAdapter
}

func (f *fakeTransports) For(upstream.Dialect) outbound.TransportAdapter { return f.transport }

type fakeIndexStore struct {
	byServer map[string][]outbound.IndexDocument
}

func (f *fakeIndexStore) Upsert(context.Context, []outbound.IndexDocument) error { return nil }
func (f *fakeIndexStore) Delete(context.Context, []string) error                { return nil }
func (f *fakeIndexStore) Clear(context.Context) error                           { return nil }
func (f *fakeIndexStore) All(context.Context) ([]outbound.IndexDocument, error) { return nil, nil }
func (f *fakeIndexStore) ByServer(_ context.Context, serverID string) ([]outbound.IndexDocument, error) {
	return f.byServer[serverID], nil
}
func (f *fakeIndexStore) Versions(context.Context) (map[string]string, error) { return nil, nil }

func newPlainServer(id string) *upstream.Server {
	srv, _ := upstream.NewServer(id, "https://"+id+".example.com/mcp", upstream.DialectPlain, nil)
	return srv
}

func TestDispatcher_Call_ToolNotFound(t *testing.T) {
	d := NewDispatcher(&fakeCatalogue{tools: map[string]tool.Info{}}, &fakeRegistry{}, &fakeTransports{}, nil)
	_, err := d.Call(context.Background(), "A", "missing", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown tool_id")
	}
}

func TestDispatcher_Call_ServerNotRegistered(t *testing.T) {
	cat := &fakeCatalogue{tools: map[string]tool.Info{
		"A:read_file": {Name: "read_file", ServerID: "A"},
	}}
	d := NewDispatcher(cat, &fakeRegistry{servers: map[string]*upstream.Server{}}, &fakeTransports{}, nil)
	_, err := d.Call(context.Background(), "A", "read_file", nil)
	if err == nil {
		t.Fatal("expected an error when the server is no longer registered")
	}
}

func TestDispatcher_Call_BootstrapsSessionServerOnDemand(t *testing.T) {
	srv, _ := upstream.NewServer("B", "https://b.example.com/mcp", upstream.DialectStreamable, nil)
	cat := &fakeCatalogue{tools: map[string]tool.Info{
		"B:read_file": {Name: "read_file", ServerID: "B"},
	}}
	result, _ := json.Marshal(map[string]any{"success": true})
	transport := &fakeTransport{callResult: outbound.RawResult(result)}
	d := NewDispatcher(cat, &fakeRegistry{servers: map[string]*upstream.Server{"B": srv}}, &fakeTransports{transport: transport}, nil)

	got, err := d.Call(context.Background(), "B", "read_file", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if transport.initCalls != 1 {
		t.Fatalf("expected exactly one bootstrap call, got %d", transport.initCalls)
	}
	if got != "operation successful" {
		t.Fatalf("Call = %q", got)
	}
}

func TestDispatcher_Call_BootstrapFailureIsConnectionError(t *testing.T) {
	srv, _ := upstream.NewServer("B", "https://b.example.com/mcp", upstream.DialectStreamable, nil)
	cat := &fakeCatalogue{tools: map[string]tool.Info{
		"B:read_file": {Name: "read_file", ServerID: "B"},
	}}
	transport := &fakeTransport{initializeErr: fmt.Errorf("connection refused")}
	d := NewDispatcher(cat, &fakeRegistry{servers: map[string]*upstream.Server{"B": srv}}, &fakeTransports{transport: transport}, nil)

	_, err := d.Call(context.Background(), "B", "read_file", nil)
	if err == nil {
		t.Fatal("expected a bootstrap failure to surface as an error")
	}
	gwErr, ok := err.(*GatewayError)
	if !ok {
		t.Fatalf("expected a *GatewayError, got %T", err)
	}
	if gwErr.Code != ErrCodeUpstreamConnection {
		t.Fatalf("expected code %d, got %d", ErrCodeUpstreamConnection, gwErr.Code)
	}
}

func TestDispatcher_Call_InvocationErrorIsSurfacedAsData(t *testing.T) {
	srv := newPlainServer("A")
	cat := &fakeCatalogue{tools: map[string]tool.Info{
		"A:read_file": {Name: "read_file", ServerID: "A"},
	}}
	transport := &fakeTransport{callErr: &jsonrpc.WireError{Code: -32603, Message: "boom"}}
	d := NewDispatcher(cat, &fakeRegistry{servers: map[string]*upstream.Server{"A": srv}}, &fakeTransports{transport: transport}, nil)

	got, err := d.Call(context.Background(), "A", "read_file", nil)
	if err != nil {
		t.Fatalf("invocation errors must not be returned as Go errors: %v", err)
	}
	if got != "error: boom" {
		t.Fatalf("Call = %q, want an \"error: \"-prefixed string", got)
	}
}

func TestDispatcher_Call_MethodNotFoundHintsAtToolsList(t *testing.T) {
	srv := newPlainServer("A")
	cat := &fakeCatalogue{tools: map[string]tool.Info{
		"A:read_file": {Name: "read_file", ServerID: "A"},
	}}
	transport := &fakeTransport{callErr: &jsonrpc.WireError{Code: -32601, Message: "method not found"}}
	d := NewDispatcher(cat, &fakeRegistry{servers: map[string]*upstream.Server{"A": srv}}, &fakeTransports{transport: transport}, nil)

	got, err := d.Call(context.Background(), "A", "read_file", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !containsHint(got) {
		t.Fatalf("expected a tools/list hint in %q", got)
	}
}

func containsHint(s string) bool {
	return len(s) > 0 && (func() bool {
		for i := 0; i+len("tools/list") <= len(s); i++ {
			if s[i:i+len("tools/list")] == "tools/list" {
				return true
			}
		}
		return false
	})()
}

func TestDispatcher_GetServerTools_PrefersDocumentStore(t *testing.T) {
	cat := &fakeCatalogue{tools: map[string]tool.Info{}}
	docs := &fakeIndexStore{byServer: map[string][]outbound.IndexDocument{
		"A": {{ToolName: "read_file", ToolDescription: "reads a file"}},
	}}
	d := NewDispatcher(cat, &fakeRegistry{}, &fakeTransports{}, docs)

	got, err := d.GetServerTools(context.Background(), "A")
	if err != nil {
		t.Fatalf("GetServerTools: %v", err)
	}
	var summaries []toolSummary
	if err := json.Unmarshal([]byte(got), &summaries); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "read_file" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
}

func TestDispatcher_GetServerTools_FallsBackToCatalogueWhenStoreEmpty(t *testing.T) {
	cat := &fakeCatalogue{tools: map[string]tool.Info{
		"A:read_file": {Name: "read_file", ServerID: "A", Description: "reads a file"},
	}}
	docs := &fakeIndexStore{byServer: map[string][]outbound.IndexDocument{}}
	d := NewDispatcher(cat, &fakeRegistry{}, &fakeTransports{}, docs)

	got, err := d.GetServerTools(context.Background(), "A")
	if err != nil {
		t.Fatalf("GetServerTools: %v", err)
	}
	var summaries []toolSummary
	if err := json.Unmarshal([]byte(got), &summaries); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "read_file" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
	"github.com/toolgate/toolgate/pkg/mcp"
)

// initializeParams is the params object sent with every initialize call,
// identical across all three dialects.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func newInitializeParams() initializeParams {
	return initializeParams{
		ProtocolVersion: "2024-11-05",
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "toolgate", Version: "1.0.0"},
	}
}

type initializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    map[string]any  `json:"capabilities"`
	ServerInfo      *serverInfoWire `json:"serverInfo"`
}

type serverInfoWire struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// methodNotFoundCode is the JSON-RPC code an upstream returns when it
// doesn't implement a given method, tolerated for initialize.
const methodNotFoundCode = -32601

// helloFromResult turns a successful initialize result into a
// ServerHello, or synthesizes one from the server id if result has no
// serverInfo.
func helloFromResult(raw outbound.RawResult, serverID string) (*outbound.ServerHello, error) {
	var res initializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode initialize result: %w", err)
	}
	if res.ServerInfo == nil {
		return &outbound.ServerHello{
			Name:        serverID,
			Description: "MCP server: " + serverID,
			Synthesized: true,
		}, nil
	}
	desc := res.ServerInfo.Description
	if desc == "" {
		desc = "MCP server: " + serverID
	}
	return &outbound.ServerHello{
		Name:            res.ServerInfo.Name,
		Description:     desc,
		ProtocolVersion: res.ProtocolVersion,
		Capabilities:    res.Capabilities,
	}, nil
}

func synthesizedHello(serverID string) *outbound.ServerHello {
	return &outbound.ServerHello{
		Name:        serverID,
		Description: "MCP server: " + serverID,
		Synthesized: true,
	}
}

// PlainAdapter speaks a single HTTP POST, JSON request, JSON response
// dialect with no session bootstrap.
type PlainAdapter struct {
	client *http.Client
}

// NewPlainAdapter builds a PlainAdapter.
func NewPlainAdapter() *PlainAdapter {
	return &PlainAdapter{client: newHTTPClient()}
}

var _ outbound.TransportAdapter = (*PlainAdapter)(nil)

func (a *PlainAdapter) post(ctx context.Context, srv *upstream.Server, req *http.Request) (*jsonrpc.Response, error) {
	applyHeaders(req, srv.Headers)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	_, body, err := doRequest(a.client, req)
	if err != nil {
		return nil, err
	}
	return decodeJSONRPCResponse(body)
}

func (a *PlainAdapter) Initialize(ctx context.Context, srv *upstream.Server) (*outbound.ServerHello, error) {
	ctx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	raw, err := mcp.NewRequest(1, "initialize", newInitializeParams())
	if err != nil {
		return nil, err
	}
	body, err := mcp.Encode(raw)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, newBodyReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initialize request: %w", err)
	}
	resp, err := a.post(ctx, srv, httpReq)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == methodNotFoundCode {
			return synthesizedHello(srv.ID), nil
		}
		return nil, resp.Error
	}
	return helloFromResult(resp.Result, srv.ID)
}

func (a *PlainAdapter) Call(ctx context.Context, srv *upstream.Server, method string, params any) (outbound.RawResult, error) {
	timeout := callTimeout
	if method == "tools/list" {
		timeout = discoveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := mcp.NewRequest(2, method, params)
	if err != nil {
		return nil, err
	}
	body, err := mcp.Encode(raw)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, newBodyReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	resp, err := a.post(ctx, srv, httpReq)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return outbound.RawResult(resp.Result), nil
}

func (a *PlainAdapter) Probe(ctx context.Context, srv *upstream.Server) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	healthURL := strings.TrimRight(srv.URL, "/") + "/health"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	applyHeaders(httpReq, srv.Headers)

	_, _, err = doRequest(a.client, httpReq)
	return err
}

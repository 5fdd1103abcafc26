package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
	"github.com/toolgate/toolgate/pkg/mcp"
)

// StreamableAdapter speaks the same request/response shape as plain but
// bootstraps a session id from the mcp-session-id response header after
// initialize, and echoes it back as a request header on every call.
type StreamableAdapter struct {
	client *http.Client
}

// NewStreamableAdapter builds a StreamableAdapter.
func NewStreamableAdapter() *StreamableAdapter {
	return &StreamableAdapter{client: newHTTPClient()}
}

var _ outbound.TransportAdapter = (*StreamableAdapter)(nil)

func (a *StreamableAdapter) send(ctx context.Context, srv *upstream.Server, body []byte, sessionID string) (*http.Response, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, newBodyReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	applyHeaders(httpReq, srv.Headers)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", sessionID)
	}
	return doRequest(a.client, httpReq, http.StatusAccepted)
}

func (a *StreamableAdapter) Initialize(ctx context.Context, srv *upstream.Server) (*outbound.ServerHello, error) {
	ctx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	req, err := mcp.NewRequest(1, "initialize", newInitializeParams())
	if err != nil {
		return nil, err
	}
	body, err := mcp.Encode(req)
	if err != nil {
		return nil, err
	}

	httpResp, respBody, err := a.send(ctx, srv, body, "")
	if err != nil {
		return nil, err
	}

	resp, err := decodeJSONRPCResponse(respBody)
	if err != nil {
		return nil, err
	}

	var hello *outbound.ServerHello
	if resp.Error != nil {
		if resp.Error.Code != methodNotFoundCode {
			return nil, resp.Error
		}
		hello = synthesizedHello(srv.ID)
	} else {
		hello, err = helloFromResult(resp.Result, srv.ID)
		if err != nil {
			return nil, err
		}
	}

	sessionID := sessionIDHeader(httpResp.Header)
	if sessionID != "" {
		srv.Lock()
		srv.Session = &upstream.Session{ID: sessionID, EstablishedAt: time.Now()}
		srv.Unlock()
		if err := a.sendInitialized(ctx, srv); err != nil {
			return nil, fmt.Errorf("notifications/initialized: %w", err)
		}
	}

	return hello, nil
}

// sendInitialized sends the notifications/initialized notification. No
// response is expected; HTTP 200 and 202 both count as success.
func (a *StreamableAdapter) sendInitialized(ctx context.Context, srv *upstream.Server) error {
	note, err := mcp.NewNotification("notifications/initialized", nil)
	if err != nil {
		return err
	}
	body, err := mcp.Encode(note)
	if err != nil {
		return err
	}
	_, _, err = a.send(ctx, srv, body, srv.Session.ID)
	return err
}

func (a *StreamableAdapter) Call(ctx context.Context, srv *upstream.Server, method string, params any) (outbound.RawResult, error) {
	if !srv.HasSession() {
		if _, err := a.Initialize(ctx, srv); err != nil {
			return nil, fmt.Errorf("bootstrap before call: %w", err)
		}
	}

	timeout := callTimeout
	if method == "tools/list" {
		timeout = discoveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := mcp.NewRequest(2, method, params)
	if err != nil {
		return nil, err
	}
	body, err := mcp.Encode(req)
	if err != nil {
		return nil, err
	}

	sessionID := ""
	if srv.Session != nil {
		sessionID = srv.Session.ID
	}
	_, respBody, err := a.send(ctx, srv, body, sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := decodeJSONRPCResponse(respBody)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return outbound.RawResult(resp.Result), nil
}

func (a *StreamableAdapter) Probe(ctx context.Context, srv *upstream.Server) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if !srv.HasSession() {
		if _, err := a.Initialize(ctx, srv); err != nil {
			return err
		}
	}

	_, err := a.Call(ctx, srv, "tools/list", map[string]any{})
	if err == nil {
		return nil
	}

	// Re-bootstrap once and retry, per spec.md's asymmetric health-probe
	// rule for session dialects.
	srv.Lock()
	srv.Session = nil
	srv.Unlock()
	if _, initErr := a.Initialize(ctx, srv); initErr != nil {
		return err
	}
	_, err = a.Call(ctx, srv, "tools/list", map[string]any{})
	return err
}

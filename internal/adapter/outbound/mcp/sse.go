package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
	"github.com/toolgate/toolgate/pkg/mcp"
)

const (
	sseScannerInitialBuf = 256 * 1024
	sseScannerMaxBuf     = 1024 * 1024
)

// SSEAdapter speaks the two-step Server-Sent-Events bootstrap: a GET that
// yields a message endpoint and session id over the event stream, then
// POSTs against that endpoint. The GET stream is closed once the endpoint
// is known; each response is read from the event stream in the body of
// the POST that carried its request.
type SSEAdapter struct {
	client *http.Client
}

// NewSSEAdapter builds an SSEAdapter.
func NewSSEAdapter() *SSEAdapter {
	return &SSEAdapter{client: newHTTPClient()}
}

var _ outbound.TransportAdapter = (*SSEAdapter)(nil)

// bootstrap performs the GET handshake: opens the SSE stream and scans
// for the first `data:` line carrying the relative message endpoint URL.
func (a *SSEAdapter) bootstrap(ctx context.Context, srv *upstream.Server) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		return fmt.Errorf("build sse handshake request: %w", err)
	}
	applyHeaders(httpReq, srv.Headers)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sse handshake: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sse handshake http status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, sseScannerInitialBuf), sseScannerMaxBuf)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if !isRelativeMessageURL(payload) {
			continue
		}

		origin, err := url.Parse(srv.URL)
		if err != nil {
			return fmt.Errorf("parse server url: %w", err)
		}
		endpointURL, err := url.Parse(payload)
		if err != nil {
			return fmt.Errorf("parse message endpoint: %w", err)
		}
		resolved := origin.ResolveReference(endpointURL)

		sessionID := resolved.Query().Get("sessionId")
		srv.Lock()
		srv.Session = &upstream.Session{
			ID:              sessionID,
			MessageEndpoint: resolved.String(),
			EstablishedAt:   time.Now(),
		}
		srv.Unlock()
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read sse stream: %w", err)
	}
	return fmt.Errorf("sse stream closed before a message endpoint was announced")
}

// sendAndRead POSTs body to the bootstrapped message endpoint and scans
// the SSE response stream for the first JSON data: frame whose id
// matches requestID.
func (a *SSEAdapter) sendAndRead(ctx context.Context, srv *upstream.Server, body []byte, requestID int64) (*http.Response, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.Session.MessageEndpoint, newBodyReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	applyHeaders(httpReq, srv.Headers)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return resp, nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, sseScannerInitialBuf), sseScannerMaxBuf)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return resp, nil, ctx.Err()
		}
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)

		var probe struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal([]byte(payload), &probe); err != nil {
			continue
		}
		if probe.ID.String() != fmt.Sprintf("%d", requestID) {
			continue
		}
		return resp, []byte(payload), nil
	}
	if err := scanner.Err(); err != nil {
		return resp, nil, fmt.Errorf("read sse response stream: %w", err)
	}
	return resp, nil, fmt.Errorf("sse stream closed before a matching response frame arrived")
}

func (a *SSEAdapter) Initialize(ctx context.Context, srv *upstream.Server) (*outbound.ServerHello, error) {
	ctx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	if !srv.HasSession() {
		if err := a.bootstrap(ctx, srv); err != nil {
			return nil, err
		}
	}

	const requestID = 1
	req, err := mcp.NewRequest(requestID, "initialize", newInitializeParams())
	if err != nil {
		return nil, err
	}
	body, err := mcp.Encode(req)
	if err != nil {
		return nil, err
	}

	_, respBody, err := a.sendAndRead(ctx, srv, body, requestID)
	if err != nil {
		return nil, err
	}
	resp, err := decodeJSONRPCResponse(respBody)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == methodNotFoundCode {
			return synthesizedHello(srv.ID), nil
		}
		return nil, resp.Error
	}

	hello, err := helloFromResult(resp.Result, srv.ID)
	if err != nil {
		return nil, err
	}

	note, err := mcp.NewNotification("notifications/initialized", nil)
	if err != nil {
		return nil, err
	}
	noteBody, err := mcp.Encode(note)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.Session.MessageEndpoint, newBodyReader(noteBody))
	if err != nil {
		return nil, fmt.Errorf("build notifications/initialized request: %w", err)
	}
	applyHeaders(httpReq, srv.Headers)
	httpReq.Header.Set("Content-Type", "application/json")
	if _, _, err := doRequest(a.client, httpReq, http.StatusAccepted); err != nil {
		return nil, fmt.Errorf("notifications/initialized: %w", err)
	}

	return hello, nil
}

func (a *SSEAdapter) Call(ctx context.Context, srv *upstream.Server, method string, params any) (outbound.RawResult, error) {
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

	const requestID = 2
	req, err := mcp.NewRequest(requestID, method, params)
	if err != nil {
		return nil, err
	}
	body, err := mcp.Encode(req)
	if err != nil {
		return nil, err
	}

	_, respBody, err := a.sendAndRead(ctx, srv, body, requestID)
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

func (a *SSEAdapter) Probe(ctx context.Context, srv *upstream.Server) error {
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

	srv.Lock()
	srv.Session = nil
	srv.Unlock()
	if _, initErr := a.Initialize(ctx, srv); initErr != nil {
		return err
	}
	_, err = a.Call(ctx, srv, "tools/list", map[string]any{})
	return err
}

// Package mcp implements the three JSON-RPC transport dialects (plain,
// streamable, sse) behind the outbound.TransportAdapter port.
package mcp

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/toolgate/toolgate/pkg/mcp"
)

const (
	// maxResponseBodySize bounds how much of an upstream's response body
	// is read, guarding against a malicious or misbehaving upstream
	// sending an unbounded body.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB

	initializeTimeout = 10 * time.Second
	discoveryTimeout  = 10 * time.Second
	callTimeout       = 30 * time.Second
	probeTimeout      = 5 * time.Second
)

// newHTTPClient builds the shared *http.Client configuration every
// dialect adapter uses: a TLS 1.2 floor and conservative idle-connection
// pooling. Each call site still sets its own per-request timeout via
// context, since the three dialects have different budgets.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// doRequest executes req with client, applying headers, and returns the
// response body capped at maxResponseBodySize. Non-2xx status codes
// (other than the explicitly allowed ones) are treated as failures.
func doRequest(client *http.Client, req *http.Request, allow2xxExtra ...int) (*http.Response, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, body, nil
	}
	for _, code := range allow2xxExtra {
		if resp.StatusCode == code {
			return resp, body, nil
		}
	}
	return resp, body, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
}

// sessionIDHeader finds the mcp-session-id response header, matching
// case-insensitively as net/http.Header already folds header names, but
// kept explicit since upstreams are free to send any casing.
func sessionIDHeader(h http.Header) string {
	return h.Get("Mcp-Session-Id")
}

// applyHeaders sets the server's configured static headers on req,
// skipping any whose value is empty after substitution so the request
// doesn't carry a header with no value.
func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		if v == "" {
			continue
		}
		req.Header.Set(k, v)
	}
}

// isRelativeMessageURL reports whether s looks like the relative message
// endpoint path the SSE handshake announces, of the form
// "/.../message?sessionId=<id>".
func isRelativeMessageURL(s string) bool {
	return strings.HasPrefix(s, "/") && strings.Contains(s, "sessionId=")
}

// newBodyReader wraps raw request bytes for an http.Request body.
func newBodyReader(raw []byte) *bytes.Reader {
	return bytes.NewReader(raw)
}

// decodeJSONRPCResponse parses a response body into a *jsonrpc.Response,
// tolerating trailing newlines some servers append after json.Encode.
func decodeJSONRPCResponse(body []byte) (*jsonrpc.Response, error) {
	body = bytes.TrimRight(body, "\n")
	return mcp.DecodeResponse(body)
}

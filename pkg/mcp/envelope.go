// Package mcp provides shared JSON-RPC 2.0 envelope helpers for the three
// transport dialects: building requests and notifications, and decoding
// whatever an upstream sends back into a usable result or typed error.
package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// NewRequest builds a JSON-RPC request for method with the given id and
// params. params is marshaled to JSON; passing nil omits the field.
func NewRequest(id int64, method string, params any) (*jsonrpc.Request, error) {
	jid, err := jsonrpc.MakeID(id)
	if err != nil {
		return nil, fmt.Errorf("make request id: %w", err)
	}
	req := &jsonrpc.Request{
		Method: method,
		ID:     jid,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}
	return req, nil
}

// NewNotification builds a JSON-RPC notification: a request with no ID,
// for which no response is expected.
func NewNotification(method string, params any) (*jsonrpc.Request, error) {
	req := &jsonrpc.Request{Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}
	return req, nil
}

// Encode serializes a JSON-RPC message to its wire format.
func Encode(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// DecodeResponse parses wire-format bytes expected to be a JSON-RPC
// response and returns it, or an error if the bytes decode to a request
// instead (or fail to decode at all).
func DecodeResponse(data []byte) (*jsonrpc.Response, error) {
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		return nil, fmt.Errorf("expected a JSON-RPC response, got a request")
	}
	return resp, nil
}

// ResultOrError returns resp.Result if the response carries no error, or
// the upstream's *jsonrpc.WireError otherwise. The dialect adapters in
// internal/adapter/outbound/mcp do not call it; they check resp.Error
// inline.
func ResultOrError(resp *jsonrpc.Response) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

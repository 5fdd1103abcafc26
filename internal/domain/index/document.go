// Package index implements the Index Engine (C4): projecting discovered
// tools into searchable documents, hash-versioning them, and keeping the
// document store converged with the catalogue via full and incremental
// syncs.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/domain/upstream"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

// Document is the tool document projection persisted in the index,
// keyed by ToolID in the document store.
type Document struct {
	ToolID           string
	ToolName         string
	ToolDescription  string
	ToolParameters   json.RawMessage
	ServerID         string
	ServerName       string
	Category         string
	Tags             []string
	SearchText       string
	ToolVersion      string
	ServerVersion    string
	LastDiscoveredAt time.Time
	IndexedAt        time.Time
}

// toIndexDocument converts a Document to the port-level shape the store
// persists.
func (d Document) toIndexDocument() outbound.IndexDocument {
	return outbound.IndexDocument{
		ToolID:           d.ToolID,
		ToolName:         d.ToolName,
		ToolDescription:  d.ToolDescription,
		ToolParameters:   d.ToolParameters,
		ServerID:         d.ServerID,
		ServerName:       d.ServerName,
		Category:         d.Category,
		Tags:             d.Tags,
		SearchText:       d.SearchText,
		ToolVersion:      d.ToolVersion,
		ServerVersion:    d.ServerVersion,
		LastDiscoveredAt: d.LastDiscoveredAt.Unix(),
		IndexedAt:        d.IndexedAt.Unix(),
	}
}

// documentFromIndexDocument is the inverse of toIndexDocument.
func documentFromIndexDocument(d outbound.IndexDocument) Document {
	return Document{
		ToolID:           d.ToolID,
		ToolName:         d.ToolName,
		ToolDescription:  d.ToolDescription,
		ToolParameters:   d.ToolParameters,
		ServerID:         d.ServerID,
		ServerName:       d.ServerName,
		Category:         d.Category,
		Tags:             d.Tags,
		SearchText:       d.SearchText,
		ToolVersion:      d.ToolVersion,
		ServerVersion:    d.ServerVersion,
		LastDiscoveredAt: time.Unix(d.LastDiscoveredAt, 0).UTC(),
		IndexedAt:        time.Unix(d.IndexedAt, 0).UTC(),
	}
}

// parameterDescriptions extracts "<name>: <description>" pairs from a
// JSON Schema's top-level properties, sorted by property name; properties
// without a description are left out.
func parameterDescriptions(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}
	var parsed struct {
		Properties map[string]struct {
			Description string `json:"description"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		return nil
	}
	names := make([]string, 0, len(parsed.Properties))
	for name := range parsed.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		desc := parsed.Properties[name].Description
		if desc == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", name, desc))
	}
	return out
}

// buildSearchText builds the fixed, ordered search_text concatenation
// described in spec.md §4.4.
func buildSearchText(t tool.Info, srv *upstream.Server) string {
	var lines []string
	lines = append(lines, "tool name: "+t.Name)
	lines = append(lines, "tool description: "+t.Description)
	lines = append(lines, "server name: "+srv.Name)
	lines = append(lines, "server description: "+srv.Description)

	if t.Category != "" {
		lines = append(lines, "category: "+t.Category)
	}
	if len(t.Tags) > 0 {
		lines = append(lines, "tags: "+strings.Join(t.Tags, ", "))
	}
	if params := parameterDescriptions(t.Parameters); len(params) > 0 {
		lines = append(lines, "parameters: "+strings.Join(params, ", "))
	}

	return strings.Join(lines, "\n")
}

// canonicalJSON marshals v with sorted keys and no escaping of non-ASCII,
// the byte-stable form tool_version/server_version hash over.
func canonicalJSON(v any) ([]byte, error) {
	// encoding/json already sorts map keys; for the fixed-field structs
	// below, field order in the struct definition IS the sorted key
	// order, so a plain Marshal is already canonical as long as no field
	// is itself a map with non-deterministic order (none are here).
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(strings.TrimSuffix(buf.String(), "\n")), nil
}

// hashFields canonicalizes and hashes v, returning the first 16 hex
// characters of its SHA-256.
func hashFields(v any) (string, error) {
	canon, err := canonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])[:16], nil
}

// sortedTags returns a sorted copy of tags, never nil (an empty, non-nil
// slice marshals to "[]", matching the reference hash computation).
func sortedTags(tags []string) []string {
	out := append([]string(nil), tags...)
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}

// toolVersionDoc is the exact field set I3 hashes: (name, description,
// parameters, server_id, category, sorted tags). Field names match the
// canonical JSON keys, alphabetically ordered so struct order == sort
// order.
type toolVersionDoc struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Name        string   `json:"name"`
	Parameters  any      `json:"parameters"`
	ServerID    string   `json:"server_id"`
	Tags        []string `json:"tags"`
}

// ToolVersion computes the content-addressed tool_version (I3): a pure
// function of (name, description, parameters, server_id, category,
// sorted tags).
func ToolVersion(t tool.Info) (string, error) {
	// Decode the raw schema so its object keys are re-marshaled in sorted
	// order; UseNumber keeps numeric literals as written. An absent
	// schema stays nil and hashes as null.
	var params any
	if len(t.Parameters) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(t.Parameters)))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return "", fmt.Errorf("parse parameters: %w", err)
		}
	}
	return hashFields(toolVersionDoc{
		Category:    t.Category,
		Description: t.Description,
		Name:        t.Name,
		Parameters:  params,
		ServerID:    t.ServerID,
		Tags:        sortedTags(t.Tags),
	})
}

// serverVersionDoc is the field set hashed for server_version: (id,
// name, description, url, category, sorted tags).
type serverVersionDoc struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
}

// ServerVersion computes the content-addressed server_version.
func ServerVersion(srv *upstream.Server) (string, error) {
	return hashFields(serverVersionDoc{
		Category:    srv.Category,
		Description: srv.Description,
		ID:          srv.ID,
		Name:        srv.Name,
		Tags:        sortedTags(srv.Tags),
		URL:         srv.URL,
	})
}

// BuildDocument projects a ToolInfo and its owning server into a
// Document, computing search_text and both version hashes.
func BuildDocument(t tool.Info, srv *upstream.Server, now time.Time) (Document, error) {
	toolVersion, err := ToolVersion(t)
	if err != nil {
		return Document{}, fmt.Errorf("tool_version for %s: %w", t.ID(), err)
	}
	serverVersion, err := ServerVersion(srv)
	if err != nil {
		return Document{}, fmt.Errorf("server_version for %s: %w", srv.ID, err)
	}

	category := t.Category
	if category == "" {
		category = srv.Category
	}
	tags := t.Tags
	if len(tags) == 0 {
		tags = srv.Tags
	}

	return Document{
		ToolID:           t.ID(),
		ToolName:         t.Name,
		ToolDescription:  t.Description,
		ToolParameters:   t.Parameters,
		ServerID:         t.ServerID,
		ServerName:       srv.Name,
		Category:         category,
		Tags:             tags,
		SearchText:       buildSearchText(t, srv),
		ToolVersion:      toolVersion,
		ServerVersion:    serverVersion,
		LastDiscoveredAt: t.DiscoveredAt,
		IndexedAt:        now,
	}, nil
}

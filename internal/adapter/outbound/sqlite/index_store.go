// Package sqlite provides the embedded, file-backed implementation of
// outbound.IndexStore: one row per tool document, keyed by tool_id, with
// an index on server_id for the secondary lookup spec.md §6 requires to
// be efficient.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/toolgate/toolgate/internal/port/outbound"
)

// Store is a sqlite-backed outbound.IndexStore.
type Store struct {
	db *sql.DB
}

// New opens (creating if absent) the sqlite database at path and ensures
// its schema exists.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// The document store is rebuilt/refreshed by a single Index Engine
	// goroutine; one open connection avoids sqlite's writer-lock
	// contention under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tool_documents (
			tool_id            TEXT PRIMARY KEY,
			tool_name          TEXT NOT NULL,
			tool_description   TEXT NOT NULL DEFAULT '',
			tool_parameters    TEXT NOT NULL DEFAULT 'null',
			server_id          TEXT NOT NULL,
			server_name        TEXT NOT NULL DEFAULT '',
			category           TEXT NOT NULL DEFAULT '',
			tags               TEXT NOT NULL DEFAULT '[]',
			search_text        TEXT NOT NULL DEFAULT '',
			tool_version       TEXT NOT NULL DEFAULT '',
			server_version     TEXT NOT NULL DEFAULT '',
			last_discovered_at INTEGER NOT NULL DEFAULT 0,
			indexed_at         INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_documents_server_id ON tool_documents(server_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite create schema: %w", err)
		}
	}
	return nil
}

// Upsert writes docs in a single batch, keyed by ToolID.
func (s *Store) Upsert(ctx context.Context, docs []outbound.IndexDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite upsert begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tool_documents
			(tool_id, tool_name, tool_description, tool_parameters, server_id, server_name,
			 category, tags, search_text, tool_version, server_version, last_discovered_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool_id) DO UPDATE SET
			tool_name=excluded.tool_name,
			tool_description=excluded.tool_description,
			tool_parameters=excluded.tool_parameters,
			server_id=excluded.server_id,
			server_name=excluded.server_name,
			category=excluded.category,
			tags=excluded.tags,
			search_text=excluded.search_text,
			tool_version=excluded.tool_version,
			server_version=excluded.server_version,
			last_discovered_at=excluded.last_discovered_at,
			indexed_at=excluded.indexed_at`)
	if err != nil {
		return fmt.Errorf("sqlite upsert prepare: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		tags, err := json.Marshal(doc.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", doc.ToolID, err)
		}
		params := doc.ToolParameters
		if len(params) == 0 {
			params = []byte("null")
		}
		_, err = stmt.ExecContext(ctx,
			doc.ToolID, doc.ToolName, doc.ToolDescription, string(params), doc.ServerID, doc.ServerName,
			doc.Category, string(tags), doc.SearchText, doc.ToolVersion, doc.ServerVersion,
			doc.LastDiscoveredAt, doc.IndexedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite upsert %s: %w", doc.ToolID, err)
		}
	}

	return tx.Commit()
}

// Delete removes the documents for the given tool_ids. Deleting an absent
// tool_id is not an error.
func (s *Store) Delete(ctx context.Context, toolIDs []string) error {
	if len(toolIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite delete begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM tool_documents WHERE tool_id = ?`)
	if err != nil {
		return fmt.Errorf("sqlite delete prepare: %w", err)
	}
	defer stmt.Close()

	for _, id := range toolIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("sqlite delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Clear removes every document, used before a full build.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tool_documents`)
	if err != nil {
		return fmt.Errorf("sqlite clear: %w", err)
	}
	return nil
}

// All returns every stored document.
func (s *Store) All(ctx context.Context) ([]outbound.IndexDocument, error) {
	rows, err := s.db.QueryContext(ctx, documentColumns+` FROM tool_documents`)
	if err != nil {
		return nil, fmt.Errorf("sqlite all: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ByServer returns the documents belonging to one server.
func (s *Store) ByServer(ctx context.Context, serverID string) ([]outbound.IndexDocument, error) {
	rows, err := s.db.QueryContext(ctx, documentColumns+` FROM tool_documents WHERE server_id = ?`, serverID)
	if err != nil {
		return nil, fmt.Errorf("sqlite by_server: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Versions returns the current tool_version of every stored document,
// keyed by tool_id.
func (s *Store) Versions(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool_id, tool_version FROM tool_documents`)
	if err != nil {
		return nil, fmt.Errorf("sqlite versions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, version string
		if err := rows.Scan(&id, &version); err != nil {
			return nil, fmt.Errorf("sqlite versions scan: %w", err)
		}
		out[id] = version
	}
	return out, rows.Err()
}

const documentColumns = `SELECT tool_id, tool_name, tool_description, tool_parameters, server_id, server_name,
	category, tags, search_text, tool_version, server_version, last_discovered_at, indexed_at`

func scanDocuments(rows *sql.Rows) ([]outbound.IndexDocument, error) {
	var docs []outbound.IndexDocument
	for rows.Next() {
		var (
			doc           outbound.IndexDocument
			parametersStr string
			tagsStr       string
		)
		err := rows.Scan(
			&doc.ToolID, &doc.ToolName, &doc.ToolDescription, &parametersStr, &doc.ServerID, &doc.ServerName,
			&doc.Category, &tagsStr, &doc.SearchText, &doc.ToolVersion, &doc.ServerVersion,
			&doc.LastDiscoveredAt, &doc.IndexedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan document: %w", err)
		}
		doc.ToolParameters = []byte(parametersStr)
		if err := json.Unmarshal([]byte(tagsStr), &doc.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags for %s: %w", doc.ToolID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

var _ outbound.IndexStore = (*Store)(nil)

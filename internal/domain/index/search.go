package index

import (
	"context"
	"strings"

	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

// Resolver turns a tool_id into the live ToolInfo the catalogue currently
// holds, so a search hit reflects the tool's current state rather than a
// possibly-stale document snapshot.
type Resolver interface {
	Lookup(toolID string) (tool.Info, bool)
}

// DefaultTopK bounds an unspecified or non-positive top_k.
const DefaultTopK = 10

// Searcher implements spec.md §4.4's search operation: a case-insensitive
// substring match over tool_name, tool_description, and search_text,
// returning at most top_k hits resolved back to live ToolInfo via C3.
type Searcher struct {
	store    outbound.IndexStore
	resolver Resolver
}

// NewSearcher builds a Searcher over the document store, resolving hits
// through resolver.
func NewSearcher(store outbound.IndexStore, resolver Resolver) *Searcher {
	return &Searcher{store: store, resolver: resolver}
}

// Search returns at most topK ToolInfo whose document matches query,
// case-insensitively, against tool_name, tool_description, or search_text.
// minScore is accepted for forward compatibility with ranked retrieval and
// is a no-op today (spec.md §4.4).
func (s *Searcher) Search(ctx context.Context, query string, topK int, minScore float64) ([]tool.Info, error) {
	_ = minScore
	if topK <= 0 {
		topK = DefaultTopK
	}

	docs, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var hits []tool.Info
	for _, doc := range docs {
		if !matches(doc, needle) {
			continue
		}
		info, ok := s.resolver.Lookup(doc.ToolID)
		if !ok {
			// The document store hasn't converged with a catalogue change
			// yet (e.g. the owning server was just deregistered); skip
			// rather than return a stale result.
			continue
		}
		hits = append(hits, info)
		if len(hits) == topK {
			break
		}
	}
	return hits, nil
}

func matches(doc outbound.IndexDocument, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(doc.ToolName), needle) ||
		strings.Contains(strings.ToLower(doc.ToolDescription), needle) ||
		strings.Contains(strings.ToLower(doc.SearchText), needle)
}

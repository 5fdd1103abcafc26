package index

import (
	"context"
	"testing"

	"github.com/toolgate/toolgate/internal/domain/tool"
	"github.com/toolgate/toolgate/internal/port/outbound"
)

type fakeResolver struct {
	tools map[string]tool.Info
}

func (f *fakeResolver) Lookup(toolID string) (tool.Info, bool) {
	t, ok := f.tools[toolID]
	return t, ok
}

func TestSearcher_MatchesToolName(t *testing.T) {
	t.Parallel()

	store := &fakeStore{docs: map[string]outbound.IndexDocument{
		"weather:get_forecast": {ToolID: "weather:get_forecast", ToolName: "get_forecast", ToolDescription: "fetches a forecast"},
	}}
	resolver := &fakeResolver{tools: map[string]tool.Info{
		"weather:get_forecast": {Name: "get_forecast", ServerID: "weather"},
	}}
	s := NewSearcher(store, resolver)

	hits, err := s.Search(context.Background(), "FORECAST", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "get_forecast" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestSearcher_MatchesSearchText(t *testing.T) {
	t.Parallel()

	store := &fakeStore{docs: map[string]outbound.IndexDocument{
		"weather:get_forecast": {
			ToolID:     "weather:get_forecast",
			ToolName:   "get_forecast",
			SearchText: "tool name: get_forecast\ntags: weather, climate",
		},
	}}
	resolver := &fakeResolver{tools: map[string]tool.Info{
		"weather:get_forecast": {Name: "get_forecast", ServerID: "weather"},
	}}
	s := NewSearcher(store, resolver)

	hits, err := s.Search(context.Background(), "climate", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %+v, want 1 match via search_text", hits)
	}
}

func TestSearcher_NoMatchReturnsEmpty(t *testing.T) {
	t.Parallel()

	store := &fakeStore{docs: map[string]outbound.IndexDocument{
		"weather:get_forecast": {ToolID: "weather:get_forecast", ToolName: "get_forecast"},
	}}
	s := NewSearcher(store, &fakeResolver{tools: map[string]tool.Info{}})

	hits, err := s.Search(context.Background(), "nonexistent", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits = %+v, want none", hits)
	}
}

func TestSearcher_RespectsTopK(t *testing.T) {
	t.Parallel()

	docs := make(map[string]outbound.IndexDocument)
	tools := make(map[string]tool.Info)
	for i := 0; i < 5; i++ {
		id := toolIDForIndex(i)
		docs[id] = outbound.IndexDocument{ToolID: id, ToolName: "echo"}
		tools[id] = tool.Info{Name: "echo", ServerID: "srv"}
	}
	store := &fakeStore{docs: docs}
	s := NewSearcher(store, &fakeResolver{tools: tools})

	hits, err := s.Search(context.Background(), "echo", 2, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
}

func TestSearcher_SkipsUnresolvableDocument(t *testing.T) {
	t.Parallel()

	store := &fakeStore{docs: map[string]outbound.IndexDocument{
		"stale:gone": {ToolID: "stale:gone", ToolName: "gone"},
	}}
	s := NewSearcher(store, &fakeResolver{tools: map[string]tool.Info{}})

	hits, err := s.Search(context.Background(), "gone", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits = %+v, want none for an unresolvable document", hits)
	}
}

func TestSearcher_EmptyQueryMatchesEverythingUpToTopK(t *testing.T) {
	t.Parallel()

	store := &fakeStore{docs: map[string]outbound.IndexDocument{
		"a:one": {ToolID: "a:one", ToolName: "one"},
		"a:two": {ToolID: "a:two", ToolName: "two"},
	}}
	resolver := &fakeResolver{tools: map[string]tool.Info{
		"a:one": {Name: "one", ServerID: "a"},
		"a:two": {Name: "two", ServerID: "a"},
	}}
	s := NewSearcher(store, resolver)

	hits, err := s.Search(context.Background(), "", 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
}

func toolIDForIndex(i int) string {
	return "srv:" + string(rune('a'+i))
}

package dispatch

import (
	"encoding/json"
	"testing"
)

func TestNormalize_ContentTextJSONParses(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"{\"k\":1}"}]}`)
	got := Normalize(raw)
	want := "{\n  \"k\": 1\n}"
	if got != want {
		t.Fatalf("Normalize mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestNormalize_ContentTextRawFallback(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"plain text, not json"}]}`)
	got := Normalize(raw)
	want := "plain text, not json"
	if got != want {
		t.Fatalf("Normalize mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestNormalize_ContentStringWithSize(t *testing.T) {
	raw := json.RawMessage(`{"content":"hello","size":5}`)
	got := Normalize(raw)
	want := "file content (5 chars): hello"
	if got != want {
		t.Fatalf("Normalize mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestNormalize_ContentStringSizeReflectsEnvelopeNotStringLength(t *testing.T) {
	// result.size is an upstream-declared field (e.g. a file's full byte
	// count for a truncated preview) and must be reported verbatim, not
	// recomputed from the returned string's length.
	raw := json.RawMessage(`{"content":"hello","size":12345}`)
	got := Normalize(raw)
	want := "file content (12345 chars): hello"
	if got != want {
		t.Fatalf("Normalize mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestNormalize_ContentStringWithoutSizeFallsThrough(t *testing.T) {
	// Predicate 2 requires size to be present; without it, a string
	// content field alone falls through to the raw pretty-print predicate.
	raw := json.RawMessage(`{"content":"hello"}`)
	want := "{\n  \"content\": \"hello\"\n}"
	if got := Normalize(raw); got != want {
		t.Fatalf("Normalize mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestNormalize_SuccessWithMessage(t *testing.T) {
	raw := json.RawMessage(`{"success":true,"message":"deleted 3 rows"}`)
	if got, want := Normalize(raw), "deleted 3 rows"; got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalize_SuccessWithoutMessage(t *testing.T) {
	raw := json.RawMessage(`{"success":true}`)
	if got, want := Normalize(raw), "operation successful"; got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalize_DirectoryListingTruncatesAtTen(t *testing.T) {
	files := make([]map[string]any, 0, 15)
	for i := 0; i < 15; i++ {
		files = append(files, map[string]any{"name": "f", "size": i})
	}
	payload := map[string]any{
		"path":        "/data",
		"files":       files,
		"directories": []map[string]any{{"name": "sub"}},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	got := Normalize(raw)
	want := "directory: /data\nfiles: 15, directories: 1"
	if len(got) < len(want) || got[:len(want)] != want {
		t.Fatalf("Normalize header mismatch:\ngot:  %q", got)
	}
	// 2 header lines + 10 entries.
	lineCount := 1
	for _, c := range got {
		if c == '\n' {
			lineCount++
		}
	}
	if lineCount != 12 {
		t.Fatalf("expected 12 lines (2 header + 10 entries), got %d:\n%s", lineCount, got)
	}
}

func TestNormalize_RawPrettyPrintFallback(t *testing.T) {
	raw := json.RawMessage(`{"k":1}`)
	want := "{\n  \"k\": 1\n}"
	if got := Normalize(raw); got != want {
		t.Fatalf("Normalize mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestNormalize_NullResult(t *testing.T) {
	if got, want := Normalize(json.RawMessage(`null`)), "operation complete (no result)"; got != want {
		t.Fatalf("Normalize(null) = %q, want %q", got, want)
	}
	if got, want := Normalize(nil), "operation complete (no result)"; got != want {
		t.Fatalf("Normalize(nil) = %q, want %q", got, want)
	}
}

func TestNormalize_EmptyParameterSchemaStillInvokable(t *testing.T) {
	// Boundary behavior: a tool with no declared parameters still gets a
	// sane normalized reply when its call succeeds with no content.
	raw := json.RawMessage(`{}`)
	want := "{}"
	if got := Normalize(raw); got != want {
		t.Fatalf("Normalize(%s) = %q, want %q", raw, got, want)
	}
}

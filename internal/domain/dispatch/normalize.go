package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"
)

const directoryListingLimit = 10

// resultEnvelope is the heterogeneous shape tools/call results arrive in.
// Every field is optional; Normalize evaluates them as an ordered
// sequence of pattern predicates, the first match winning (spec.md
// §4.5/§9 "Heterogeneous response envelopes").
type resultEnvelope struct {
	Content     json.RawMessage `json:"content"`
	Size        *int64          `json:"size"`
	Success     *bool           `json:"success"`
	Message     *string         `json:"message"`
	Files       []fileEntry     `json:"files"`
	Directories []fileEntry     `json:"directories"`
	Path        *string         `json:"path"`
}

type fileEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Normalize implements spec.md §4.5 step 5: turning a raw tools/call
// result into a single textual reply, via the ordered predicates below.
func Normalize(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "operation complete (no result)"
	}

	var env resultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Not an object shape at all (or malformed); fall through to the
		// raw pretty-print predicate using the original bytes.
		return prettyPrintRaw(raw)
	}

	if text, ok := contentFirstText(env.Content); ok {
		return normalizeContentText(text)
	}
	if contentStr, size, ok := contentStringWithSize(env); ok {
		return fmt.Sprintf("file content (%d chars): %s", size, contentStr)
	}
	if env.Success != nil {
		if env.Message != nil && *env.Message != "" {
			return *env.Message
		}
		return "operation successful"
	}
	if env.Files != nil {
		return formatDirectoryListing(env)
	}

	return prettyPrintRaw(raw)
}

// contentFirstText reports whether content is a non-empty list whose
// first element carries a "text" field, per the first predicate.
func contentFirstText(content json.RawMessage) (string, bool) {
	if len(content) == 0 {
		return "", false
	}
	var items []contentItem
	if err := json.Unmarshal(content, &items); err != nil || len(items) == 0 {
		return "", false
	}
	if items[0].Text == "" {
		return "", false
	}
	return items[0].Text, true
}

// normalizeContentText JSON-parses text if possible and pretty-prints
// the parsed value; otherwise returns the raw text unchanged.
func normalizeContentText(text string) string {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return text
	}
	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return text
	}
	return string(pretty)
}

// contentStringWithSize reports whether content is a JSON string and a
// sibling "size" field is present on the envelope, per the second
// predicate (spec.md §4.5: "content is a string and result.size is
// present"). The reported size is the envelope's own size field, not
// the string's length -- they agree only by coincidence for the file
// servers where content happens to be the whole file body.
func contentStringWithSize(env resultEnvelope) (string, int64, bool) {
	if len(env.Content) == 0 || env.Size == nil {
		return "", 0, false
	}
	var asString string
	if err := json.Unmarshal(env.Content, &asString); err != nil {
		return "", 0, false
	}
	return asString, *env.Size, true
}

// formatDirectoryListing builds the directory-listing predicate's
// output: a header naming the path and true file/directory counts,
// followed by up to the first ten file entries.
func formatDirectoryListing(env resultEnvelope) string {
	path := ""
	if env.Path != nil {
		path = *env.Path
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("directory: %s", path))
	lines = append(lines, fmt.Sprintf("files: %d, directories: %d", len(env.Files), len(env.Directories)))

	limit := len(env.Files)
	if limit > directoryListingLimit {
		limit = directoryListingLimit
	}
	for _, f := range env.Files[:limit] {
		lines = append(lines, fmt.Sprintf("- %s (%d bytes)", f.Name, f.Size))
	}
	return strings.Join(lines, "\n")
}

// prettyPrintRaw pretty-prints arbitrary raw JSON, falling back to the
// original bytes verbatim if it somehow isn't valid JSON.
func prettyPrintRaw(raw json.RawMessage) string {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw)
	}
	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

package tool

import (
	"sort"
	"strings"
)

// categoryKeywords maps a keyword found in a server's combined tool names
// and descriptions to the category it implies. Lookup order matters: the
// first keyword (in table order) found in the combined text wins, so more
// specific categories should be listed ahead of more general ones.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"file", "file_operations"},
	{"read", "file_operations"},
	{"write", "file_operations"},
	{"directory", "file_operations"},
	{"time", "system"},
	{"date", "system"},
	{"mysql", "database"},
	{"database", "database"},
	{"sql", "database"},
	{"query", "database"},
	{"music", "music"},
	{"song", "music"},
	{"train", "travel"},
	{"ticket", "travel"},
	{"12306", "travel"},
}

// tagStopwords are name fragments too generic to serve as tags on their own.
var tagStopwords = map[string]struct{}{
	"get":    {},
	"set":    {},
	"list":   {},
	"create": {},
	"delete": {},
	"update": {},
}

// maxTags bounds how many inferred tags a server carries.
const maxTags = 5

// Classify infers a category and a set of tags for a server from the
// tools it advertises, by matching keywords against the combined lowercase
// text of every tool's name and description, and by splitting tool names
// on underscores to harvest tag candidates. It returns ("", nil) if tools
// is empty.
//
// This is a fixed heuristic, not a pluggable classifier: a server that
// already carries an explicit category and tags should not be reclassified
// by calling this again.
func Classify(tools []Info) (category string, tags []string) {
	if len(tools) == 0 {
		return "", nil
	}

	var names, descriptions strings.Builder
	for _, t := range tools {
		names.WriteString(strings.ToLower(t.Name))
		names.WriteByte(' ')
		descriptions.WriteString(strings.ToLower(t.Description))
		descriptions.WriteByte(' ')
	}
	combined := names.String() + " " + descriptions.String()

	for _, ck := range categoryKeywords {
		if strings.Contains(combined, ck.keyword) {
			category = ck.category
			break
		}
	}

	seen := make(map[string]struct{})
	for _, t := range tools {
		for _, part := range strings.Split(strings.ToLower(t.Name), "_") {
			if len(part) <= 2 {
				continue
			}
			if _, stop := tagStopwords[part]; stop {
				continue
			}
			seen[part] = struct{}{}
		}
	}

	tags = make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return category, tags
}

package tool

import (
	"reflect"
	"testing"
)

func TestClassify_Category(t *testing.T) {
	tests := []struct {
		name string
		in   []Info
		want string
	}{
		{
			name: "file keyword",
			in:   []Info{{Name: "read_file", Description: "reads a file from disk"}},
			want: "file_operations",
		},
		{
			name: "database keyword",
			in:   []Info{{Name: "run_query", Description: "runs a SQL query"}},
			want: "database",
		},
		{
			name: "music keyword",
			in:   []Info{{Name: "play_song", Description: "plays a music track"}},
			want: "music",
		},
		{
			name: "travel keyword",
			in:   []Info{{Name: "book_ticket", Description: "books a train ticket"}},
			want: "travel",
		},
		{
			name: "no match",
			in:   []Info{{Name: "ping", Description: "checks liveness"}},
			want: "",
		},
		{
			name: "first matching keyword wins",
			in:   []Info{{Name: "write_song", Description: "writes a music file to disk"}},
			want: "file_operations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Classify(tt.in)
			if got != tt.want {
				t.Errorf("Classify(%v) category = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassify_Tags(t *testing.T) {
	in := []Info{
		{Name: "list_files"},
		{Name: "get_file_contents"},
		{Name: "create_directory"},
	}

	_, tags := Classify(in)

	want := []string{"contents", "directory", "file", "files"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("Classify tags = %v, want %v", tags, want)
	}
}

func TestClassify_TagsCapped(t *testing.T) {
	in := []Info{
		{Name: "alpha_bravo_charlie_delta_echo_foxtrot_golf"},
	}

	_, tags := Classify(in)

	if len(tags) > maxTags {
		t.Errorf("Classify returned %d tags, want at most %d", len(tags), maxTags)
	}
}

func TestClassify_Empty(t *testing.T) {
	category, tags := Classify(nil)
	if category != "" {
		t.Errorf("Classify(nil) category = %q, want empty", category)
	}
	if tags != nil {
		t.Errorf("Classify(nil) tags = %v, want nil", tags)
	}
}

package parser

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse_FrontMatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - work\n  - work/reports\ncreated: 2024-03-05\n---\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if diff := cmp.Diff([]string{"work", "work/reports"}, r.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local); !r.Created.Equal(want) {
		t.Errorf("created = %v, want %v", r.Created, want)
	}
	if r.Body != "Body text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_TagsAsString(t *testing.T) {
	r, err := Parse([]byte("---\ntags: a, b ,, c\n---\nx"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, r.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FrontMatter != nil {
		t.Errorf("expected nil front matter, got %+v", r.FrontMatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
	if !r.Created.IsZero() {
		t.Errorf("created = %v, want zero", r.Created)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.FrontMatter != nil {
		t.Errorf("expected nil front matter on invalid YAML")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_BadCreated(t *testing.T) {
	if _, err := Parse([]byte("---\ncreated: March 5th\n---\nx")); err == nil {
		t.Error("expected error for malformed created date")
	}
}

func TestExtractTags_InlineAndFrontMatter(t *testing.T) {
	fm := &FrontMatter{Tags: TagList{"alpha"}}
	tags := extractTags("Some text #beta and #alpha again, #work/reports.", fm)
	if diff := cmp.Diff([]string{"alpha", "beta", "work/reports"}, tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		fm   *FrontMatter
		body string
		want string
	}{
		{"front matter wins", &FrontMatter{Title: "FM Title"}, "# H1 Title\ntext", "FM Title"},
		{"heading", nil, "some text\n# My Heading\nmore", "My Heading"},
		{"first line", nil, "\n  plain first line \nmore", "plain first line"},
		{"empty", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveTitle(tt.fm, tt.body); got != tt.want {
				t.Errorf("title = %q, want %q", got, tt.want)
			}
		})
	}
}

// Package parser splits inbox files into YAML front matter and a plain-text
// body, and collects the title, tags and creation date they declare.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/docket/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// FrontMatter is the YAML header an inbox file may start with.
type FrontMatter struct {
	Title   string  `yaml:"title"`
	Tags    TagList `yaml:"tags"`
	Created string  `yaml:"created"`
}

// TagList accepts either a YAML sequence or a comma-separated string.
type TagList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *TagList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*l = nil
		for _, p := range strings.Split(n.Value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				*l = append(*l, p)
			}
		}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("parser: line %d: tags must be a list or a string", n.Line)
}

// Result holds the output of parsing an inbox file.
type Result struct {
	FrontMatter *FrontMatter // nil when the file has none
	Body        string
	Title       string
	Tags        []string
	Created     time.Time // zero when not declared
}

// Parse extracts front matter, title, tags and body from raw file bytes.
// Malformed YAML is treated as part of the body; a malformed created date
// is an error.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontMatter(data)

	r := &Result{
		FrontMatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Tags:        extractTags(body, fm),
	}
	if fm != nil && fm.Created != "" {
		t, err := time.ParseInLocation(models.DateLayout, fm.Created, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parser: created %q: want YYYY-MM-DD", fm.Created)
		}
		r.Created = t
	}
	return r, nil
}

// splitFrontMatter separates YAML front matter (between leading --- delimiters)
// from the body. If no front matter is found the entire content is body.
func splitFrontMatter(data []byte) (*FrontMatter, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm FrontMatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return &fm, body
}

// extractTags collects tag names from the front matter followed by inline
// #tags in the body, without duplicates.
func extractTags(body string, fm *FrontMatter) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	if fm != nil {
		for _, t := range fm.Tags {
			add(t)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the front matter title if present, otherwise the first
// "# " heading, otherwise the first non-blank line.
func deriveTitle(fm *FrontMatter, body string) string {
	if fm != nil && strings.TrimSpace(fm.Title) != "" {
		return strings.TrimSpace(fm.Title)
	}
	first := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
		if first == "" {
			first = trimmed
		}
	}
	return first
}

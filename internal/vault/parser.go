// Package vault reads Obsidian-style notes and extracts what ingestion stores:
// cleaned text, search tags and wiki-link targets.
package vault

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

var (
	codeBlockRe  = regexp.MustCompile("(?s)(```.*?```|~~~.*?~~~)")
	imageEmbedRe = regexp.MustCompile(`!\[\[.*?\]\]`)
	wikilinkRe   = regexp.MustCompile(`\[\[.*?\]\]`)
	linkNoiseRe  = regexp.MustCompile(`(\[\[|\]\]|\\)`)

	searchTagsRe = regexp.MustCompile(`(?m)^Search Tags:.*$`)
	headerLineRe = regexp.MustCompile(`(?m)^(Primary Categories|Secondary Categories|Search Tags):.*\n?`)
)

// Document is a parsed vault note ready to be embedded.
type Document struct {
	Title        string
	Type         domain.NoteType
	OriginalText string
	Text         string
	SearchTags   []string
	Links        []string
}

// Parse turns raw note content into a Document.
func Parse(title string, noteType domain.NoteType, content []byte) *Document {
	original := string(content)
	fm, body := splitFrontmatter(content)

	tags := ParseSearchTags(original)
	tags = mergeTags(tags, frontmatterTags(fm))

	return &Document{
		Title:        title,
		Type:         noteType,
		OriginalText: original,
		Text:         CleanText(title, body),
		SearchTags:   tags,
		Links:        ParseLinks(original),
	}
}

// ParseLinks returns wiki-link targets in document order. Fenced code blocks
// and image embeds are ignored; aliases and heading anchors are cut off.
// Duplicates are kept.
func ParseLinks(text string) []string {
	text = codeBlockRe.ReplaceAllString(text, "")
	text = imageEmbedRe.ReplaceAllString(text, "")

	var links []string
	for _, raw := range wikilinkRe.FindAllString(text, -1) {
		target := linkNoiseRe.ReplaceAllString(raw, "")
		target, _, _ = strings.Cut(target, "|")
		target, _, _ = strings.Cut(target, "#")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		links = append(links, target)
	}
	return links
}

// ParseSearchTags reads the first "Search Tags:" line and returns its
// #-prefixed tokens.
func ParseSearchTags(text string) []string {
	line := searchTagsRe.FindString(text)
	if line == "" {
		return nil
	}

	parts := strings.Split(line, "#")
	if len(parts) < 2 {
		return nil
	}

	var tags []string
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// CleanText drops the category and tag header lines and prefixes the title
// as a heading, since titles are not otherwise part of the embedded text.
func CleanText(title, text string) string {
	return "# " + title + "\n" + headerLineRe.ReplaceAllString(text, "")
}

// splitFrontmatter separates a leading YAML block from the body. Invalid or
// unterminated frontmatter leaves the content untouched.
func splitFrontmatter(data []byte) (map[string]any, string) {
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

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}

	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

func frontmatterTags(fm map[string]any) []string {
	raw, ok := fm["tags"]
	if !ok {
		return nil
	}

	var out []string
	switch v := raw.(type) {
	case string:
		for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, strings.TrimPrefix(s, "#"))
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, strings.TrimPrefix(strings.TrimSpace(s), "#"))
			}
		}
	}
	return out
}

func mergeTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, t := range append(a, b...) {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

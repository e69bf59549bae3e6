package generator

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	markerTitle       = "TITLE"
	markerDescription = "DESCRIPTION"
	markerHashtags    = "HASHTAGS"
	markerContent     = "CONTENT"
)

var knownMarkers = []string{markerTitle, markerDescription, markerHashtags, markerContent}

// ErrUnparseable is returned when a model answer lacks required markers
var ErrUnparseable = errors.New("unparseable model response")

func requiredMarkers(kind Type) []string {
	switch kind {
	case TypeEnhance:
		return []string{markerTitle, markerDescription}
	case TypeHashtags:
		return []string{markerHashtags}
	case TypeContent:
		return []string{markerContent}
	default:
		return knownMarkers
	}
}

func buildPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("You write social media marketing copy for product links.\n\n")
	b.WriteString("Product:\n")
	fmt.Fprintf(&b, "- Title: %s\n", in.Title)
	if in.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", in.Description)
	}
	if in.Price != "" {
		fmt.Fprintf(&b, "- Price: %s\n", in.Price)
	}
	if in.URL != "" {
		fmt.Fprintf(&b, "- Link: %s\n", in.URL)
	}
	if in.Platform != "" {
		fmt.Fprintf(&b, "\nTarget platform: %s (at most %d characters per post).\n", in.Platform, in.Platform.MaxTextLength())
	}

	b.WriteString("\n")
	switch in.Type {
	case TypeEnhance:
		b.WriteString("Rewrite the title and description so they are clear and persuasive.\n")
	case TypeHashtags:
		b.WriteString("Suggest 5 to 10 relevant hashtags.\n")
	case TypeContent:
		b.WriteString("Write one ready-to-publish post.\n")
	default:
		b.WriteString("Write an improved title, a short description, 5 to 10 hashtags and one ready-to-publish post.\n")
	}

	b.WriteString("\nAnswer using exactly these markers, each at the start of its own line:\n")
	for _, m := range requiredMarkers(in.Type) {
		fmt.Fprintf(&b, "%s: ...\n", m)
	}
	return b.String()
}

// parseSections splits a model answer into marker sections. Markers are
// case-insensitive, may be wrapped in markdown emphasis, and a section runs
// until the next marker line.
func parseSections(text string, required []string) (map[string]string, error) {
	sections := make(map[string]string)
	current := ""
	var buf []string

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if marker, rest, ok := splitMarker(line); ok {
			flush()
			current = marker
			if rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()

	for _, m := range required {
		if sections[m] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrUnparseable, m)
		}
	}
	return sections, nil
}

func splitMarker(line string) (string, string, bool) {
	trimmed := strings.TrimLeft(strings.TrimSpace(line), "#*_ ")
	for _, m := range knownMarkers {
		if len(trimmed) <= len(m) || !strings.EqualFold(trimmed[:len(m)], m) {
			continue
		}
		rest := strings.TrimLeft(trimmed[len(m):], "*_ ")
		if !strings.HasPrefix(rest, ":") {
			continue
		}
		rest = strings.TrimLeft(rest[1:], "*_ ")
		return m, strings.TrimSpace(rest), true
	}
	return "", "", false
}

// parseHashtags normalizes free text into unique #tags
func parseHashtags(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})

	tags := []string{}
	seen := make(map[string]bool)
	for _, f := range fields {
		tag := normalizeHashtag(f)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		tags = append(tags, tag)
	}
	return tags
}

func normalizeHashtag(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}

package fallback

import (
	"regexp"
	"strings"
)

var (
	hashHeading = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	boldHeading = regexp.MustCompile(`^\*\*([^*]+?)\*\*:?$`)
	bullet      = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
)

// Section is one headed block of a markdown response.
type Section struct {
	Heading string
	Body    string
}

// ParseSections splits markdown text on "#" headings and standalone bold lines.
// Text before the first heading becomes a section with an empty heading.
func ParseSections(text string) []Section {
	var (
		out     []Section
		current Section
		body    []string
		started bool
	)
	flush := func() {
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Heading != "" || current.Body != "" {
			out = append(out, current)
		}
		body = body[:0]
	}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if heading, ok := headingOf(line); ok {
			if started || len(body) > 0 {
				flush()
			}
			current = Section{Heading: heading}
			started = true
			continue
		}
		body = append(body, raw)
	}
	flush()
	return out
}

func headingOf(line string) (string, bool) {
	if m := hashHeading.FindStringSubmatch(line); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), "*: "), true
	}
	if m := boldHeading.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// ListItems returns the bullet or numbered items of a section body. A body
// without bullets yields its non-empty lines.
func ListItems(body string) []string {
	var items, plain []string
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if loc := bullet.FindStringIndex(line); loc != nil {
			if item := strings.TrimSpace(strings.ReplaceAll(line[loc[1]:], "**", "")); item != "" {
				items = append(items, item)
			}
			continue
		}
		plain = append(plain, strings.ReplaceAll(line, "**", ""))
	}
	if len(items) > 0 {
		return items
	}
	return plain
}

// Find returns the body of the first section whose heading contains any of
// the given names, case-insensitively.
func Find(sections []Section, names ...string) (string, bool) {
	for _, s := range sections {
		h := strings.ToLower(s.Heading)
		for _, n := range names {
			if n != "" && strings.Contains(h, strings.ToLower(n)) {
				return s.Body, true
			}
		}
	}
	return "", false
}

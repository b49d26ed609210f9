package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// payloadCandidates lists the readings of a model reply worth handing to the
// JSON decoder, most literal first: the reply itself, its fenced body, and the
// outermost brace pair when prose surrounds the object.
func payloadCandidates(content string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(content)
	body := stripCodeFence(content)
	add(body)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		add(body[start : end+1])
	}
	return out
}

// decodeJSON unmarshals the first candidate reading of content that parses.
func decodeJSON(content string, target any) error {
	candidates := payloadCandidates(content)
	if len(candidates) == 0 {
		return errors.New("empty payload")
	}
	var last error
	for _, c := range candidates {
		if last = json.Unmarshal([]byte(c), target); last == nil {
			return nil
		}
	}
	return fmt.Errorf("%w (payload snippet: %s)", last, payloadSnippet(candidates[len(candidates)-1]))
}

// stripCodeFence returns the body of a ``` or ```json block, or the trimmed
// input when there is no fence.
func stripCodeFence(content string) string {
	body := strings.TrimSpace(content)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimLeft(body[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// jsonText collects the string values of a JSON document in key order. Used
// when a reply is valid JSON but not in the analysis shape.
func jsonText(content string) string {
	var doc any
	if err := decodeJSON(content, &doc); err != nil {
		return ""
	}
	var parts []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				parts = append(parts, s)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		}
	}
	walk(doc)
	return strings.Join(parts, "\n\n")
}

func payloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}

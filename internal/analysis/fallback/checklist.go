// Package fallback recovers analysis data from free-form model text, used when
// the model ignores the structured response schema.
package fallback

import (
	"regexp"
	"strings"

	"github.com/archstudio/intake/internal/models"
)

// FallbackConfidence is assigned to every recovered entry. It clears the
// reconciliation threshold: a line that names an id and an answer is treated as
// an answer.
const FallbackConfidence = 70

// Line patterns, tried in this order on every line.
var linePatterns = []struct {
	re       *regexp.Regexp
	idGroup  int
	ansGroup int
}{
	// ID: <id> - <answer>
	{regexp.MustCompile(`^(?i:ID):\s*([^\s\[\]]+)\s*-\s*(.*)$`), 1, 2},
	// [ID: <id>]: <answer>
	{regexp.MustCompile(`^\[(?i:ID):\s*([^\]]+?)\s*\]\s*:\s*(.*)$`), 1, 2},
	// <answer> : **[ID: <id>]**
	{regexp.MustCompile(`^(.*?)\s*:\s*\*\*\[(?i:ID):\s*([^\]]+?)\s*\]\*\*$`), 2, 1},
	// - [ID: <id>]: <answer>
	{regexp.MustCompile(`^[-*•]\s*\[(?i:ID):\s*([^\]]+?)\s*\]\s*:\s*(.*)$`), 1, 2},
}

var (
	notAnswered = regexp.MustCompile(`(?i)answered\s*[=:]\s*false`)
	answerNoise = strings.NewReplacer("✓", "", "✔", "", "✅", "", "☑", "", "**", "")
)

// ParseChecklistLines scans text line by line for id/answer pairs. Entries with
// an empty answer or one that says answered=false are dropped; the first match
// for an id wins.
func ParseChecklistLines(text string) []models.ChecklistAnalysisEntry {
	var (
		out  []models.ChecklistAnalysisEntry
		seen = map[string]bool{}
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		id, answer, ok := matchLine(line)
		if !ok || seen[id] {
			continue
		}
		if notAnswered.MatchString(answer) {
			continue
		}
		answer = cleanAnswer(answer)
		if answer == "" {
			continue
		}
		seen[id] = true
		answered := true
		out = append(out, models.ChecklistAnalysisEntry{
			ID:            id,
			Answered:      &answered,
			AnswerSummary: answer,
			Confidence:    FallbackConfidence,
			SourceQuote:   line,
		})
	}
	return out
}

func matchLine(line string) (id, answer string, ok bool) {
	for _, p := range linePatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id = strings.TrimSpace(m[p.idGroup])
		if id == "" {
			continue
		}
		return id, m[p.ansGroup], true
	}
	return "", "", false
}

func cleanAnswer(s string) string {
	return strings.TrimSpace(answerNoise.Replace(s))
}

package analysis

import (
	"fmt"
	"strings"

	"github.com/archstudio/intake/internal/models"
)

// MaxLearnings bounds the correction examples embedded in one prompt.
const MaxLearnings = 20

// Input is everything the analysis of one transcript needs.
type Input struct {
	Transcript  string
	Stage       string
	ProjectType string
	Questions   []models.ChecklistQuestion
	Learnings   []models.Learning
}

// SystemPrompt is sent as the model's system instruction.
const SystemPrompt = `You analyze recorded intake conversations between an architecture firm and a prospective client.
Answer in the language of the conversation. Never invent facts that were not said.`

// BuildPrompt renders the single analysis prompt for in.
func BuildPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("Analyze the following conversation")
	if in.Stage != "" {
		fmt.Fprintf(&b, " (stage: %s", in.Stage)
		if in.ProjectType != "" {
			fmt.Fprintf(&b, ", project type: %s", in.ProjectType)
		}
		b.WriteString(")")
	}
	b.WriteString(".\n\n")

	b.WriteString("Return a JSON object with: summary, executive_summary, client_needs, budget {range, flexibility}, ")
	b.WriteString("timeline {desired, urgency}, sentiment {overall, excitement 1-10, seriousness 1-10, closing_probability 0-100}, ")
	b.WriteString("concerns, next_steps, key_facts and checklist_analysis.\n")
	b.WriteString("flexibility, urgency and overall are one of low, medium, high.\n\n")

	if len(in.Questions) > 0 {
		b.WriteString("Checklist questions. For every question add one checklist_analysis entry with the same id, ")
		b.WriteString("answered (true only if the conversation answers it), answer_summary, confidence 0-100 and a short source_quote:\n")
		for _, q := range in.Questions {
			fmt.Fprintf(&b, "- [ID: %s] %s\n", q.ID, q.Question)
		}
		b.WriteString("\n")
	}

	if learnings := recentLearnings(in.Learnings); len(learnings) > 0 {
		b.WriteString("Past corrections made by the team. Calibrate your answers accordingly:\n")
		for _, l := range learnings {
			fmt.Fprintf(&b, "- field %q: original %q, corrected %q", l.Field, l.Original, l.Corrected)
			if l.Explanation != "" {
				fmt.Fprintf(&b, " (%s)", l.Explanation)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Conversation transcript:\n\"\"\"\n")
	b.WriteString(strings.TrimSpace(in.Transcript))
	b.WriteString("\n\"\"\"\n")
	return b.String()
}

func recentLearnings(all []models.Learning) []models.Learning {
	if len(all) <= MaxLearnings {
		return all
	}
	return all[len(all)-MaxLearnings:]
}

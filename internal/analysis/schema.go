package analysis

import "github.com/archstudio/intake/internal/providers/llm"

var levels = []string{"low", "medium", "high"}

func str(desc string) *llm.Schema { return &llm.Schema{Type: llm.TypeString, Description: desc} }

func strList(desc string) *llm.Schema {
	return &llm.Schema{Type: llm.TypeArray, Description: desc, Items: &llm.Schema{Type: llm.TypeString}}
}

func level(desc string) *llm.Schema {
	return &llm.Schema{Type: llm.TypeString, Description: desc, Enum: levels}
}

func integer(desc string) *llm.Schema { return &llm.Schema{Type: llm.TypeInteger, Description: desc} }

// ResponseSchema describes models.AnalysisResult for schema constrained output.
func ResponseSchema() *llm.Schema {
	entry := &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"id":             str("checklist question id, copied verbatim"),
			"answered":       {Type: llm.TypeBoolean},
			"answer_summary": str("short answer"),
			"confidence":     integer("0-100"),
			"source_quote":   str("quote from the transcript"),
		},
		Required: []string{"id", "answered", "answer_summary", "confidence"},
	}

	return &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"summary":           str("summary of the conversation"),
			"executive_summary": str("two sentence summary"),
			"client_needs":      strList("what the client needs"),
			"budget": {
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"range":       str("budget range as stated"),
					"flexibility": level("budget flexibility"),
					"notes":       str(""),
				},
			},
			"timeline": {
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"desired": str("desired timeline"),
					"urgency": level("urgency"),
					"notes":   str(""),
				},
			},
			"sentiment": {
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"overall":             level("overall sentiment"),
					"excitement":          integer("1-10"),
					"seriousness":         integer("1-10"),
					"closing_probability": integer("0-100"),
				},
			},
			"concerns":           strList("client concerns"),
			"next_steps":         strList("agreed next steps"),
			"key_facts":          strList("key facts"),
			"checklist_analysis": {Type: llm.TypeArray, Items: entry},
		},
		Required: []string{"summary", "checklist_analysis"},
	}
}

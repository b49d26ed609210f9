package models

// Level is a low/medium/high rating produced by the model.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

type BudgetInfo struct {
	Range       string `json:"range,omitempty"`
	Flexibility Level  `json:"flexibility,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type TimelineInfo struct {
	Desired string `json:"desired,omitempty"`
	Urgency Level  `json:"urgency,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type SentimentInfo struct {
	Overall            Level `json:"overall,omitempty"`
	Excitement         int   `json:"excitement,omitempty"`          // 1-10
	Seriousness        int   `json:"seriousness,omitempty"`         // 1-10
	ClosingProbability int   `json:"closing_probability,omitempty"` // 0-100
}

// AnalysisResult is persisted verbatim next to the recording and never patched;
// a re-analysis produces a new value.
type AnalysisResult struct {
	Summary          string        `json:"summary"`
	ExecutiveSummary string        `json:"executive_summary,omitempty"`
	ClientNeeds      []string      `json:"client_needs,omitempty"`
	Budget           BudgetInfo    `json:"budget"`
	Timeline         TimelineInfo  `json:"timeline"`
	Sentiment        SentimentInfo `json:"sentiment"`
	Concerns         []string      `json:"concerns,omitempty"`
	NextSteps        []string      `json:"next_steps,omitempty"`
	KeyFacts         []string      `json:"key_facts,omitempty"`

	ChecklistAnalysis []ChecklistAnalysisEntry `json:"checklist_analysis"`

	// Set when the model ignored the response schema and the text parsers
	// recovered the result.
	ParsedFromText bool   `json:"parsed_from_text,omitempty"`
	RawText        string `json:"raw_text,omitempty"`
}

// Package analysis turns a transcript into a structured AnalysisResult using an
// LLM, recovering from free-form answers when the model ignores the schema.
package analysis

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/archstudio/intake/internal/analysis/fallback"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/providers/llm"
	"github.com/archstudio/intake/internal/utils"
)

type Analyzer struct {
	provider llm.Provider
	log      logrus.FieldLogger
}

func NewAnalyzer(provider llm.Provider, log logrus.FieldLogger) *Analyzer {
	if log == nil {
		log = logrus.New()
	}
	return &Analyzer{provider: provider, log: log}
}

func (a *Analyzer) Analyze(ctx context.Context, in Input) (*models.AnalysisResult, error) {
	const op = "Analyzer.Analyze"

	if strings.TrimSpace(in.Transcript) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "transcript is empty", nil)
	}

	raw, err := a.provider.Generate(ctx, BuildPrompt(in), ResponseSchema())
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "model call failed", err)
	}

	res, err := Parse(raw)
	if err != nil {
		a.log.WithField("payload", payloadSnippet(raw)).Warn("analysis response could not be parsed")
		return nil, utils.E(utils.CodeFailedPrecondition, op, "no usable analysis", err)
	}
	if res.ParsedFromText {
		a.log.WithFields(logrus.Fields{
			"payload":           payloadSnippet(raw),
			"recovered_entries": len(res.ChecklistAnalysis),
		}).Warn("model ignored the response schema, recovered analysis from text")
	}
	return res, nil
}

// Parse decodes a model response. Structured JSON is used as is; anything else,
// including JSON with neither a summary nor checklist entries, goes through the
// text parsers. The returned error wraps utils.ErrAnalysisUnparseable.
func Parse(raw string) (*models.AnalysisResult, error) {
	var res models.AnalysisResult
	text := strings.TrimSpace(stripCodeFence(raw))
	if err := decodeJSON(raw, &res); err == nil {
		if strings.TrimSpace(res.Summary) == "" {
			res.Summary = strings.TrimSpace(res.ExecutiveSummary)
		}
		if res.Summary != "" || len(res.ChecklistAnalysis) > 0 {
			normalize(&res)
			return &res, nil
		}
		// Valid JSON in some other shape: keep whatever prose it carries.
		text = jsonText(raw)
	}

	if text == "" {
		return nil, utils.ErrAnalysisUnparseable
	}
	res = fromText(text)
	normalize(&res)
	return &res, nil
}

func fromText(text string) models.AnalysisResult {
	res := models.AnalysisResult{
		Summary:        text,
		ParsedFromText: true,
		RawText:        text,
	}

	sections := fallback.ParseSections(text)
	if body, ok := fallback.Find(sections, "executive", "תקציר"); ok {
		res.ExecutiveSummary = body
	}
	if body, ok := fallback.Find(sections, "need", "צרכי"); ok {
		res.ClientNeeds = fallback.ListItems(body)
	}
	if body, ok := fallback.Find(sections, "concern", "חשש"); ok {
		res.Concerns = fallback.ListItems(body)
	}
	if body, ok := fallback.Find(sections, "next step", "צעדים"); ok {
		res.NextSteps = fallback.ListItems(body)
	}
	if body, ok := fallback.Find(sections, "key fact", "עובדות"); ok {
		res.KeyFacts = fallback.ListItems(body)
	}
	if body, ok := fallback.Find(sections, "budget", "תקציב"); ok {
		res.Budget.Notes = body
	}
	if body, ok := fallback.Find(sections, "timeline", "לוח זמנים", "לו\"ז"); ok {
		res.Timeline.Notes = body
	}

	res.ChecklistAnalysis = fallback.ParseChecklistLines(text)
	return res
}

// normalize applies range sanity to the pass-through numeric and enum fields.
func normalize(res *models.AnalysisResult) {
	res.Budget.Flexibility = normalizeLevel(res.Budget.Flexibility)
	res.Timeline.Urgency = normalizeLevel(res.Timeline.Urgency)
	res.Sentiment.Overall = normalizeLevel(res.Sentiment.Overall)

	if res.Sentiment.Excitement != 0 {
		res.Sentiment.Excitement = clamp(res.Sentiment.Excitement, 1, 10)
	}
	if res.Sentiment.Seriousness != 0 {
		res.Sentiment.Seriousness = clamp(res.Sentiment.Seriousness, 1, 10)
	}
	res.Sentiment.ClosingProbability = clamp(res.Sentiment.ClosingProbability, 0, 100)

	entries := res.ChecklistAnalysis[:0]
	for _, e := range res.ChecklistAnalysis {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			continue
		}
		e.Confidence = clamp(e.Confidence, 0, 100)
		e.AnswerSummary = strings.TrimSpace(e.AnswerSummary)
		entries = append(entries, e)
	}
	res.ChecklistAnalysis = entries
}

func normalizeLevel(l models.Level) models.Level {
	switch models.Level(strings.ToLower(strings.TrimSpace(string(l)))) {
	case models.LevelLow:
		return models.LevelLow
	case models.LevelMedium:
		return models.LevelMedium
	case models.LevelHigh:
		return models.LevelHigh
	default:
		return ""
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

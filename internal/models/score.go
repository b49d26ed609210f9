package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// looseInt decodes the numbers models send when they drift from the schema:
// 85, 85.0, 72.5, "85" or "85%". Fractions round to the nearest integer.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.TrimSuffix(strings.TrimSpace(strings.Trim(s, `"`)), "%")
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("models: %s is not a number", b)
	}
	*n = looseInt(math.Round(f))
	return nil
}

func (e *ChecklistAnalysisEntry) UnmarshalJSON(b []byte) error {
	type plain ChecklistAnalysisEntry
	aux := struct {
		*plain
		Confidence looseInt `json:"confidence"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Confidence = int(aux.Confidence)
	return nil
}

func (s *SentimentInfo) UnmarshalJSON(b []byte) error {
	type plain SentimentInfo
	aux := struct {
		*plain
		Excitement         looseInt `json:"excitement"`
		Seriousness        looseInt `json:"seriousness"`
		ClosingProbability looseInt `json:"closing_probability"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.Excitement = int(aux.Excitement)
	s.Seriousness = int(aux.Seriousness)
	s.ClosingProbability = int(aux.ClosingProbability)
	return nil
}

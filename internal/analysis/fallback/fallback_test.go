package fallback

import "testing"

func TestParseChecklistLinesRecoversBracketForm(t *testing.T) {
	entries := ParseChecklistLines("[ID: project_type]: ✓ שיפוץ דירה")
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ID != "project_type" || e.AnswerSummary != "שיפוץ דירה" || !e.IsAnswered() {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Confidence != FallbackConfidence {
		t.Fatalf("unexpected confidence %d", e.Confidence)
	}
}

func TestParseChecklistLinesPatterns(t *testing.T) {
	text := `Summary of the call.
ID: budget - around 400k ₪
[ID: timeline]: **within six months**
Wants a bright kitchen : **[ID: kitchen]**
- [ID: rooms]: ✅ 4 rooms
* [ID: parking]: ☑ two spots
Unrelated line: nothing here`

	entries := ParseChecklistLines(text)
	want := []struct{ id, answer string }{
		{"budget", "around 400k ₪"},
		{"timeline", "within six months"},
		{"kitchen", "Wants a bright kitchen"},
		{"rooms", "4 rooms"},
		{"parking", "two spots"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i, w := range want {
		if entries[i].ID != w.id || entries[i].AnswerSummary != w.answer {
			t.Fatalf("entry %d = %+v, want %s/%s", i, entries[i], w.id, w.answer)
		}
		if entries[i].SourceQuote == "" {
			t.Fatalf("entry %d missing source quote", i)
		}
	}
}

func TestParseChecklistLinesDiscardsAndDedupes(t *testing.T) {
	text := `[ID: budget]: answered=false
[ID: style]:
[ID: style]: ✓
[ID: area]: answered: false, not discussed
[ID: area]: 120 sqm
[ID: area]: 90 sqm
ID: budget - 300k`

	entries := ParseChecklistLines(text)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].ID != "area" || entries[0].AnswerSummary != "120 sqm" {
		t.Fatalf("first match should win, got %+v", entries[0])
	}
	if entries[1].ID != "budget" || entries[1].AnswerSummary != "300k" {
		t.Fatalf("a discarded line must not block a later valid one, got %+v", entries[1])
	}
}

func TestParseSections(t *testing.T) {
	text := `Intro line
## Summary
The client wants a renovation.
**Next steps**
- send proposal
- 2) schedule visit
1. call back
### Concerns ###
* budget`

	sections := ParseSections(text)
	if len(sections) != 4 {
		t.Fatalf("expected 4 sections, got %+v", sections)
	}
	if sections[0].Heading != "" || sections[0].Body != "Intro line" {
		t.Fatalf("unexpected preamble %+v", sections[0])
	}
	body, ok := Find(sections, "summary")
	if !ok || body != "The client wants a renovation." {
		t.Fatalf("summary not found: %q", body)
	}
	next, _ := Find(sections, "next step", "צעדים")
	items := ListItems(next)
	if len(items) != 3 || items[0] != "send proposal" || items[2] != "call back" {
		t.Fatalf("unexpected next steps %q", items)
	}
	concerns, _ := Find(sections, "concern")
	if got := ListItems(concerns); len(got) != 1 || got[0] != "budget" {
		t.Fatalf("unexpected concerns %q", got)
	}
	if _, ok := Find(sections, "missing"); ok {
		t.Fatal("unexpected match")
	}
}

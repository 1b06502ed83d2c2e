package excerpt

import (
	"strings"
	"testing"
)

func TestCompactStructuredDecision(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"decision_id":        "98765432",
		"doc_type":           "Постанова",
		"court_name":         "Касаційний цивільний суд",
		"adjudication_date":  "2024-03-12",
		"facts":              "Позивач звернувся з позовом про стягнення боргу.",
		"reasoning":          "Суд виходить із того, що договір укладено належним чином.",
		"operative_part":     "Касаційну скаргу залишити без задоволення.",
		"irrelevant_numeric": 42,
	}
	out := Compact(payload, 600)
	if out.ID != "98765432" {
		t.Fatalf("ID=%q, want decision_id value", out.ID)
	}
	if out.Court != "Касаційний цивільний суд" {
		t.Fatalf("Court=%q", out.Court)
	}
	if len(out.Sections) != 3 {
		t.Fatalf("sections=%d, want 3 (%+v)", len(out.Sections), out.Sections)
	}
	if out.Sections[2].Name != "decision" || !strings.Contains(out.Sections[2].Text, "без задоволення") {
		t.Fatalf("decision section=%+v", out.Sections[2])
	}
	if out.Truncated {
		t.Fatal("nothing exceeded the cap, Truncated must be false")
	}
}

func TestCompactMarksTruncation(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"id":        "doc-1",
		"reasoning": strings.Repeat("дуже довгий мотивувальний текст ", 100),
	}
	out := Compact(payload, 120)
	if !out.Truncated {
		t.Fatal("expected Truncated=true")
	}
	found := false
	for _, s := range out.Sections {
		if s.Name == "reasoning" {
			found = true
			if !strings.HasSuffix(s.Text, truncationMark) {
				t.Fatalf("section text lacks truncation mark: %q", s.Text[len(s.Text)-40:])
			}
			if len([]rune(s.Text)) > 120+len([]rune(truncationMark)) {
				t.Fatalf("section exceeds cap: %d runes", len([]rune(s.Text)))
			}
		}
	}
	if !found {
		t.Fatal("reasoning section missing")
	}
}

func TestCompactHeadingFallback(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		"Справа № 757/1234/24",
		"ВСТАНОВИВ:",
		"Сторони уклали договір поставки.",
		"УХВАЛИВ:",
		"Позов задовольнити повністю.",
	}, "\n")
	payload := map[string]any{"id": "757/1234/24", "full_text": body}

	out := Compact(payload, 600)
	var facts, decision string
	for _, s := range out.Sections {
		switch s.Name {
		case "facts":
			facts = s.Text
		case "decision":
			decision = s.Text
		}
	}
	if !strings.Contains(facts, "договір поставки") {
		t.Fatalf("facts=%q", facts)
	}
	if !strings.Contains(decision, "задовольнити") {
		t.Fatalf("decision=%q", decision)
	}
	if strings.Contains(facts, "задовольнити") {
		t.Fatalf("facts bleeds into decision: %q", facts)
	}
}

func TestCompactPlainTextPayload(t *testing.T) {
	t.Parallel()

	out := Compact("plain diagnostic output", 600)
	if out.Summary != "plain diagnostic output" {
		t.Fatalf("Summary=%q", out.Summary)
	}
}

func TestRenderNeverEmpty(t *testing.T) {
	t.Parallel()

	out := Compact(map[string]any{"id": "x"}, 600)
	if strings.TrimSpace(out.Render()) == "" {
		t.Fatal("rendered excerpt is empty")
	}
}

// Package excerpt shrinks raw tool payloads into bounded structured excerpts.
// Identifying metadata survives verbatim; body text is reduced to up to three
// named sections, each capped by the request tier.
package excerpt

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/overthelex/secondlayer-sub006/internal/contextpack/model"
)

const truncationMark = " ... [truncated]"

// Field candidates checked in order; structured results vary per tool.
var (
	idFields    = []string{"id", "decision_id", "document_id", "case_number", "law_id", "edrpou"}
	typeFields  = []string{"type", "doc_type", "judgment_form", "entity_type"}
	courtFields = []string{"court", "court_name", "court_title"}
	dateFields  = []string{"date", "adjudication_date", "registration_date", "decision_date"}
	textFields  = []string{"text", "full_text", "body", "content"}

	sectionFields = map[string][]string{
		"facts":     {"facts", "circumstances"},
		"reasoning": {"reasoning", "motivation", "legal_position"},
		"decision":  {"decision", "resolution", "conclusion", "operative_part"},
	}
	sectionOrder = []string{"facts", "reasoning", "decision"}

	headingPatterns = map[string]*regexp.Regexp{
		"facts":     regexp.MustCompile(`(?im)^\s*(?:встановив|обставини справи|facts)\s*:?\s*$`),
		"reasoning": regexp.MustCompile(`(?im)^\s*(?:мотивувальна частина|правова позиція|мотиви|reasoning)\s*:?\s*$`),
		"decision":  regexp.MustCompile(`(?im)^\s*(?:ухвалив|постановив|вирішив|резолютивна частина|decision)\s*:?\s*$`),
	}
)

// Compact reduces one raw tool payload to an excerpt whose rendered size is
// bounded by sectionCap per section. Truncation is always marked, never
// silent.
func Compact(payload any, sectionCap int) model.Excerpt {
	if sectionCap <= 0 {
		sectionCap = 600
	}
	raw := normalizeJSON(payload)
	if raw == "" {
		return model.Excerpt{Summary: capText(stringify(payload), sectionCap, nil)}
	}

	var out model.Excerpt
	truncated := false
	out.ID = firstString(raw, idFields)
	out.Type = firstString(raw, typeFields)
	out.Court = firstString(raw, courtFields)
	out.Date = firstString(raw, dateFields)

	if summary := gjson.Get(raw, "summary").String(); strings.TrimSpace(summary) != "" {
		out.Summary = capText(summary, sectionCap, &truncated)
	}

	// Structured section fields win; heading matching on the raw text is the
	// fallback for plain-text decisions.
	body := firstString(raw, textFields)
	for _, name := range sectionOrder {
		text := firstString(raw, sectionFields[name])
		if strings.TrimSpace(text) == "" && body != "" {
			text = sectionByHeading(body, name)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out.Sections = append(out.Sections, model.Section{
			Name: name,
			Text: capText(text, sectionCap, &truncated),
		})
	}

	if out.Summary == "" && len(out.Sections) == 0 {
		fallback := body
		if strings.TrimSpace(fallback) == "" {
			fallback = raw
		}
		out.Summary = capText(fallback, sectionCap, &truncated)
	}
	out.Truncated = truncated
	return out
}

func normalizeJSON(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		if gjson.Valid(v) {
			return v
		}
		return ""
	case []byte:
		if gjson.ValidBytes(v) {
			return string(v)
		}
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func stringify(payload any) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func firstString(raw string, fields []string) string {
	for _, field := range fields {
		if val := gjson.Get(raw, field).String(); strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

func sectionByHeading(body string, name string) string {
	re, ok := headingPatterns[name]
	if !ok {
		return ""
	}
	loc := re.FindStringIndex(body)
	if loc == nil {
		return ""
	}
	rest := body[loc[1]:]
	// The section runs until the next recognized heading.
	end := len(rest)
	for _, other := range headingPatterns {
		if next := other.FindStringIndex(rest); next != nil && next[0] > 0 && next[0] < end {
			end = next[0]
		}
	}
	return strings.TrimSpace(rest[:end])
}

func capText(text string, limit int, truncated *bool) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if truncated != nil {
		*truncated = true
	}
	return string(runes[:limit]) + truncationMark
}

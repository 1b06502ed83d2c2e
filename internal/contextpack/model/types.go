// Package model holds the shared types of the context-management pipeline.
package model

import "strings"

// Turn is one prior conversation message as supplied by the client.
type Turn struct {
	Role    string `json:"role"` // user|assistant
	Content string `json:"content"`
}

// TotalChars sums the content length of turns in runes.
func TotalChars(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += len([]rune(t.Content))
	}
	return total
}

// Section is one named slice of a compacted tool result.
type Section struct {
	Name string `json:"name"` // facts|reasoning|decision
	Text string `json:"text"`
}

// Excerpt is the bounded structured reduction of one tool result. Raw full
// text never reaches the model; an Excerpt is what does.
type Excerpt struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type,omitempty"`
	Court     string    `json:"court,omitempty"`
	Date      string    `json:"date,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Sections  []Section `json:"sections,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
}

// Render flattens an excerpt into the text block fed to the model.
func (e Excerpt) Render() string {
	var sb strings.Builder
	writeField := func(name string, value string) {
		if value = strings.TrimSpace(value); value != "" {
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(value)
			sb.WriteString("\n")
		}
	}
	writeField("id", e.ID)
	writeField("type", e.Type)
	writeField("court", e.Court)
	writeField("date", e.Date)
	writeField("summary", e.Summary)
	for _, section := range e.Sections {
		if txt := strings.TrimSpace(section.Text); txt != "" {
			sb.WriteString(strings.ToUpper(section.Name))
			sb.WriteString(":\n")
			sb.WriteString(txt)
			sb.WriteString("\n")
		}
	}
	if e.Truncated {
		sb.WriteString("[truncated]\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

package orchestrator

import (
	"encoding/json"

	"github.com/tidwall/sjson"
)

// ChatEvent types, in the order a client may observe them. Exactly one of
// EventComplete or EventError terminates a stream.
const (
	EventPlan            = "plan"
	EventThinking        = "thinking"
	EventToolResult      = "tool_result"
	EventAnswerDelta     = "answer_delta"
	EventAnswer          = "answer"
	EventCitationWarning = "citation_warning"
	EventComplete        = "complete"
	EventError           = "error"
)

// ChatEvent is one entry of the ordered stream a research request produces.
type ChatEvent struct {
	Type string `json:"type"`

	// plan
	Goal               string     `json:"goal,omitempty"`
	Steps              []PlanStep `json:"steps,omitempty"`
	ExpectedIterations int        `json:"expected_iterations,omitempty"`

	// thinking
	Text   string         `json:"text,omitempty"`
	Params map[string]any `json:"params,omitempty"`

	// tool_result. Result is the raw payload; Excerpt is the compacted
	// rendition the model saw.
	ToolName string `json:"tool_name,omitempty"`
	CallID   string `json:"call_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Result   any    `json:"result,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
	Cached   bool   `json:"cached,omitempty"`

	// answer_delta / answer
	Delta    string `json:"delta,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// citation_warning. Status is shared with tool_result.
	CaseNumber         string   `json:"case_number,omitempty"`
	Confidence         float64  `json:"confidence,omitempty"`
	AffectingDecisions []string `json:"affecting_decisions,omitempty"`

	// complete
	ToolCallsUsed int     `json:"tool_calls_used,omitempty"`
	Iterations    int     `json:"iterations,omitempty"`
	ElapsedMS     int64   `json:"elapsed_ms,omitempty"`
	TotalCostUSD  float64 `json:"total_cost_usd,omitempty"`
	Tier          string  `json:"tier,omitempty"`
	Escalated     bool    `json:"escalated,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// EncodeEvent renders an event as one JSON object stamped with its position
// in the stream. seq is 1-based; clients use it to detect gaps.
func EncodeEvent(event ChatEvent, seq int64) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(raw, "seq", seq)
}

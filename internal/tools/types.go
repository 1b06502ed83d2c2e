// Package tools defines the research-tool contract consumed by the
// orchestration loop: tool definitions, invocation/result types and the
// registry that validates arguments at the boundary.
package tools

import (
	"encoding/json"
	"strings"
)

// Domain groups tools by the research area they serve.
const (
	DomainCourt       = "court"
	DomainLegislation = "legislation"
	DomainRegistry    = "registry"
	DomainDocument    = "document"
	DomainAnalysis    = "analysis"
)

// Def describes a single research tool exposed to the model.
type Def struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Domain      string          `json:"domain"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	// PrimaryKeys, when non-empty, names the argument subset that identifies
	// an invocation for deduplication. Tools prone to cosmetic re-invocation
	// (same document, different formatting flags) set this so repeat calls
	// hash equal.
	PrimaryKeys []string `json:"primary_keys,omitempty"`
}

// Call is one model-requested tool invocation.
type Call struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusAborted = "aborted"
	StatusTimeout = "timeout"
)

// Result is the outcome of executing one Call. Execution failure is data,
// not control flow: a failed call still produces a Result with Err set.
type Result struct {
	CallID   string    `json:"call_id"`
	ToolName string    `json:"tool_name"`
	Status   string    `json:"status"`
	Payload  any       `json:"payload,omitempty"`
	Err      *ToolErr  `json:"error,omitempty"`
	Cached   bool      `json:"cached,omitempty"`
	CostUSD  float64   `json:"cost_usd,omitempty"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// ToolErr is a structured execution error fed back to the model.
type ToolErr struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Error codes.
const (
	ErrCodeUnknown     = "unknown"
	ErrCodeArgument    = "argument_error"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeTimeout     = "timeout"
	ErrCodeUpstream    = "upstream_error"
)

// ClassifyErr maps a raw execution error onto a structured ToolErr.
func ClassifyErr(err error) *ToolErr {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "tool failed"
	}
	lower := strings.ToLower(msg)

	out := &ToolErr{Code: ErrCodeUnknown, Message: msg}
	switch {
	case strings.Contains(lower, "not found") || strings.Contains(lower, "no such"):
		out.Code = ErrCodeNotFound
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		out.Code = ErrCodeRateLimited
		out.Retryable = true
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		out.Code = ErrCodeTimeout
		out.Retryable = true
	case strings.Contains(lower, "unavailable") || strings.Contains(lower, "bad gateway") || strings.Contains(lower, "connection refused"):
		out.Code = ErrCodeUpstream
		out.Retryable = true
	}
	return out
}

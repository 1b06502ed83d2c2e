// Package llm defines the provider-neutral streaming completion contract and
// the OpenAI / Anthropic adapters behind it.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// Message is one entry of the model conversation state.
// Role is one of: system, user, assistant, tool.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages that requested tools
	ToolCallID string     // tool messages answering one call
}

// ToolCall is a model-requested tool invocation as it crosses the provider
// boundary.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolDef is the provider-facing slice of a tool definition.
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// TurnRequest describes one completion turn.
type TurnRequest struct {
	Model           string
	Messages        []Message
	Tools           []ToolDef
	MaxOutputTokens int
	// ResponseFormat is "" (text) or "json_object".
	ResponseFormat string
	Temperature    *float64
}

// Usage is the token accounting for one turn.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// TurnResult is the terminal outcome of one streamed turn.
type TurnResult struct {
	Text         string
	ToolCalls    []ToolCall
	Usage        Usage
	FinishReason string // stop|tool_calls|length|error|unknown
}

// StreamEvent types.
const (
	StreamEventTextDelta     = "text_delta"
	StreamEventToolCallStart = "tool_call_start"
)

// StreamEvent is an incremental notification emitted while a turn streams.
type StreamEvent struct {
	Type     string
	Text     string
	ToolName string
}

// Client is the streaming completion service consumed by the orchestrator.
type Client interface {
	Provider() string
	StreamTurn(ctx context.Context, req TurnRequest, onEvent func(StreamEvent)) (TurnResult, error)
}

// Complete runs one turn without forwarding stream events.
func Complete(ctx context.Context, c Client, req TurnRequest) (TurnResult, error) {
	if c == nil {
		return TurnResult{}, errors.New("nil llm client")
	}
	return c.StreamTurn(ctx, req, nil)
}

// New constructs a provider adapter.
func New(providerType string, baseURL string, apiKey string) (Client, error) {
	providerType = strings.ToLower(strings.TrimSpace(providerType))
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing provider api key")
	}
	switch providerType {
	case "openai", "openai_compatible":
		opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(apiKey))}
		if strings.TrimSpace(baseURL) != "" {
			opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(baseURL)))
		}
		return &openAIClient{
			client:           openai.NewClient(opts...),
			strictToolSchema: useStrictOpenAIToolSchema(providerType, baseURL),
		}, nil
	case "anthropic":
		opts := []aoption.RequestOption{aoption.WithAPIKey(strings.TrimSpace(apiKey))}
		if strings.TrimSpace(baseURL) != "" {
			opts = append(opts, aoption.WithBaseURL(strings.TrimSpace(baseURL)))
		}
		return &anthropicClient{client: anthropic.NewClient(opts...)}, nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", providerType)
	}
}

func useStrictOpenAIToolSchema(providerType string, baseURL string) bool {
	if providerType == "openai_compatible" {
		// Compatible gateways vary widely in strict function schema support.
		return false
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return true
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(u.Hostname())) == "api.openai.com"
}

func emitStreamEvent(onEvent func(StreamEvent), event StreamEvent) {
	if onEvent != nil {
		onEvent(event)
	}
}

func sanitizeToolName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var sb strings.Builder
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '-':
			sb.WriteRune(ch)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func marshalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func toStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, _ := item.(string)
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

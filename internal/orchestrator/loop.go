package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/overthelex/secondlayer-sub006/internal/budget"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/excerpt"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/rerank"
	"github.com/overthelex/secondlayer-sub006/internal/llm"
	"github.com/overthelex/secondlayer-sub006/internal/tools"
)

const (
	duplicateNudge = "You already have this data from earlier tool calls in this request. " +
		"Answer from what you have retrieved, or request genuinely new data."

	synthesizeNudge = "If the retrieved material already answers the question, answer now " +
		"instead of making more tool calls."

	budgetExhaustedNote = "The tool-call budget for this request is exhausted; this call was " +
		"not executed. Answer from the material already retrieved."
)

// loopResult is the terminal state of one tool-call loop.
type loopResult struct {
	answer        string
	toolCallsUsed int
	iterations    int
	costUSD       float64
	// fetchedCases holds case numbers retrieved successfully in this
	// request; citations of these skip re-verification.
	fetchedCases map[string]struct{}
}

// toolLoop runs the budgeted reason-call-observe cycle. It returns ok=false
// only after emitting a terminal error event (or on cancellation, where
// nothing more may be emitted).
func (o *Orchestrator) toolLoop(
	ctx context.Context,
	req Request,
	s *Stream,
	logger zerolog.Logger,
	profile budget.Profile,
	messages []llm.Message,
	toolDefs []llm.ToolDef,
) (loopResult, bool) {
	result := loopResult{fetchedCases: make(map[string]struct{})}
	dedup := newDeduper()
	nudgedDuplicates := false
	nudgedSynthesize := false

	for result.toolCallsUsed < profile.MaxToolCalls {
		if ctx.Err() != nil {
			return loopResult{}, false
		}

		result.iterations++
		turn, err := o.streamReasoningTurn(ctx, s, messages, toolDefs, profile)
		result.costUSD += llm.ComputeCost(o.model, turn.Usage)
		o.costs.record(req.RequestID, req.ConversationID, o.model, "reason", turn.Usage, err != nil)
		if err != nil {
			if ctx.Err() != nil {
				return loopResult{}, false
			}
			logger.Error().Err(err).Msg("reasoning turn failed")
			s.emit(ctx, ChatEvent{Type: EventError, Message: "model call failed: " + err.Error()})
			return loopResult{}, false
		}

		if len(turn.ToolCalls) == 0 {
			result.answer = strings.TrimSpace(turn.Text)
			if result.answer == "" {
				break // fall through to forced synthesis
			}
			return result, true
		}

		remaining := profile.MaxToolCalls - result.toolCallsUsed
		unique, duplicates, deferred := o.partitionCalls(dedup, turn.ToolCalls, remaining)

		if len(unique) == 0 {
			// Every requested call repeats earlier work. Feed that back
			// once; a second all-duplicate round means the model is stuck.
			logger.Debug().Int("duplicates", len(duplicates)).Msg("all requested tool calls are duplicates")
			if nudgedDuplicates {
				break
			}
			nudgedDuplicates = true
			messages = append(messages, assistantCallMessage(turn))
			for _, call := range duplicates {
				messages = append(messages, llm.Message{
					Role:       "tool",
					ToolCallID: call.ID,
					Content:    duplicateNudge,
				})
			}
			continue
		}

		for _, call := range unique {
			logger.Debug().Str("tool", call.Name).Any("args", redactArgs(call.Args)).Msg("executing tool call")
			s.emit(ctx, ChatEvent{
				Type:     EventThinking,
				Text:     describeCall(call),
				ToolName: call.Name,
				Params:   redactArgs(call.Args),
			})
		}

		results := o.executeCalls(ctx, unique)
		if ctx.Err() != nil {
			return loopResult{}, false
		}
		result.toolCallsUsed += len(unique)

		excerpts := o.compactResults(ctx, strings.TrimSpace(req.Query), results, profile)
		for i, res := range results {
			s.emit(ctx, ChatEvent{
				Type:     EventToolResult,
				ToolName: res.ToolName,
				CallID:   res.CallID,
				Status:   res.Status,
				Result:   res.Payload,
				Excerpt:  excerpts[i],
				Cached:   res.Cached,
			})
			if res.OK() {
				if number, ok := unique[i].Args["case_number"].(string); ok {
					result.fetchedCases[strings.TrimSpace(number)] = struct{}{}
				}
			}
		}

		messages = append(messages, assistantCallMessage(turn))
		for i, res := range results {
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: res.CallID,
				Content:    toolMessageContent(res, excerpts[i]),
			})
		}
		// Unexecuted requests in a mixed round still need an answer message,
		// otherwise providers reject the unmatched call ids.
		for _, call := range duplicates {
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    duplicateNudge,
			})
		}
		for _, call := range deferred {
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    budgetExhaustedNote,
			})
		}

		if !nudgedSynthesize && anySuccess(results) {
			nudgedSynthesize = true
			messages = append(messages, llm.Message{Role: "user", Content: synthesizeNudge})
		}
	}

	if ctx.Err() != nil {
		return loopResult{}, false
	}

	// Budget exhausted (or an empty answer turn): force a final synthesis
	// pass with no tools offered.
	logger.Info().Int("tool_calls_used", result.toolCallsUsed).Msg("forcing final synthesis")
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: "The research budget is exhausted. Answer now from the material above. Note any gaps explicitly.",
	})
	result.iterations++
	turn, err := o.streamReasoningTurn(ctx, s, messages, nil, profile)
	result.costUSD += llm.ComputeCost(o.model, turn.Usage)
	o.costs.record(req.RequestID, req.ConversationID, o.model, "synthesize", turn.Usage, err != nil)
	if err != nil || strings.TrimSpace(turn.Text) == "" {
		if ctx.Err() != nil {
			return loopResult{}, false
		}
		logger.Error().Err(err).Msg("forced synthesis failed")
		s.emit(ctx, ChatEvent{Type: EventError, Message: "failed to produce an answer within the research budget"})
		return loopResult{}, false
	}
	result.answer = strings.TrimSpace(turn.Text)
	return result, true
}

// streamReasoningTurn runs one completion turn, forwarding text deltas as
// answer_delta events.
func (o *Orchestrator) streamReasoningTurn(
	ctx context.Context,
	s *Stream,
	messages []llm.Message,
	toolDefs []llm.ToolDef,
	profile budget.Profile,
) (llm.TurnResult, error) {
	return o.client.StreamTurn(ctx, llm.TurnRequest{
		Model:           o.model,
		Messages:        messages,
		Tools:           toolDefs,
		MaxOutputTokens: profile.MaxOutputTokens,
	}, func(event llm.StreamEvent) {
		if event.Type == llm.StreamEventTextDelta && event.Text != "" {
			s.emit(ctx, ChatEvent{Type: EventAnswerDelta, Delta: event.Text})
		}
	})
}

// partitionCalls splits a turn's requests into executable unique calls,
// duplicates of earlier work, and deferred calls the remaining budget cannot
// cover. Deferred call ids still get tool messages, just not the duplicate
// framing.
func (o *Orchestrator) partitionCalls(dedup *deduper, requested []llm.ToolCall, remaining int) (unique, duplicates, deferred []tools.Call) {
	for _, tc := range requested {
		call := tools.Call{ID: tc.ID, Name: strings.TrimSpace(tc.Name), Args: tc.Args}
		def, known := o.registry.Lookup(call.Name)
		if !known {
			// Unknown names go to execution, which reports the error back
			// to the model in a structured result.
			unique = append(unique, call)
			continue
		}
		if dedup.isDuplicate(def, call) {
			duplicates = append(duplicates, call)
			continue
		}
		if len(unique) >= remaining {
			deferred = append(deferred, call)
			continue
		}
		unique = append(unique, call)
	}
	return unique, duplicates, deferred
}

// executeCalls runs one round's unique calls concurrently. Results come back
// in call order; every failure is data in its Result, never an error that
// aborts siblings.
func (o *Orchestrator) executeCalls(ctx context.Context, calls []tools.Call) []tools.Result {
	results := make([]tools.Result, len(calls))
	g := new(errgroup.Group)
	g.SetLimit(4)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = o.executeOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// executeOne consults the result cache before hitting the gateway and
// write-throughs successful payloads after.
func (o *Orchestrator) executeOne(ctx context.Context, call tools.Call) tools.Result {
	def, known := o.registry.Lookup(call.Name)
	cacheKey := ""
	if known {
		cacheKey = newDeduper().key(def, call)
		if raw, ok := o.resultCache.GetResult(ctx, cacheKey); ok {
			var payload any
			if err := json.Unmarshal(raw, &payload); err == nil {
				return tools.Result{
					CallID:   call.ID,
					ToolName: call.Name,
					Status:   tools.StatusSuccess,
					Payload:  payload,
					Cached:   true,
				}
			}
		}
	}

	result := o.registry.Execute(ctx, call)

	if result.OK() && cacheKey != "" {
		if raw, err := json.Marshal(result.Payload); err == nil {
			o.resultCache.PutResult(ctx, cacheKey, raw)
		}
	}
	return result
}

// compactResults reduces raw payloads to budgeted excerpts, re-ranking the
// batch by query similarity when it is far over budget.
func (o *Orchestrator) compactResults(ctx context.Context, query string, results []tools.Result, profile budget.Profile) []string {
	rendered := make([]string, len(results))
	items := make([]rerank.Item, len(results))
	for i, res := range results {
		if !res.OK() {
			rendered[i] = failureExcerpt(res)
			items[i] = rerank.Item{ID: res.CallID, Text: rendered[i]}
			continue
		}
		rendered[i] = excerpt.Compact(res.Payload, profile.ExcerptChars).Render()
		items[i] = rerank.Item{ID: res.CallID, Text: rendered[i]}
	}

	if o.reranker != nil && o.reranker.NeedsRerank(items, profile.MaxResultChars) {
		ranked := o.reranker.Rank(ctx, query, items, profile.MaxResultChars)
		byID := make(map[string]string, len(ranked))
		for _, item := range ranked {
			byID[item.ID] = item.Text
		}
		for i, res := range results {
			if text, ok := byID[res.CallID]; ok {
				rendered[i] = text
			}
		}
	}
	return rendered
}

func (o *Orchestrator) toolDefsForDomains(domains []string) []llm.ToolDef {
	if o.registry == nil {
		return nil
	}
	allowed := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		allowed[d] = struct{}{}
	}
	var out []llm.ToolDef
	for _, def := range o.registry.Definitions() {
		if _, ok := allowed[def.Domain]; !ok {
			continue
		}
		out = append(out, llm.ToolDef{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return out
}

func assistantCallMessage(turn llm.TurnResult) llm.Message {
	return llm.Message{
		Role:      "assistant",
		Content:   turn.Text,
		ToolCalls: turn.ToolCalls,
	}
}

func toolMessageContent(res tools.Result, excerptText string) string {
	if res.OK() {
		return excerptText
	}
	return failureExcerpt(res)
}

func failureExcerpt(res tools.Result) string {
	if res.Err == nil {
		return "tool " + res.ToolName + " failed (" + res.Status + ")"
	}
	sb := strings.Builder{}
	sb.WriteString("tool ")
	sb.WriteString(res.ToolName)
	sb.WriteString(" failed: ")
	sb.WriteString(res.Err.Code)
	sb.WriteString(": ")
	sb.WriteString(res.Err.Message)
	if res.Err.Retryable {
		sb.WriteString(" (retryable)")
	}
	return sb.String()
}

func anySuccess(results []tools.Result) bool {
	for _, res := range results {
		if res.OK() {
			return true
		}
	}
	return false
}

var redactedArgKeys = map[string]struct{}{
	"api_key":       {},
	"token":         {},
	"password":      {},
	"secret":        {},
	"authorization": {},
}

// redactArgs masks credential-shaped argument values before they reach logs.
func redactArgs(args map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if _, sensitive := redactedArgKeys[strings.ToLower(k)]; sensitive {
			out[k] = "[redacted]"
			continue
		}
		out[k] = v
	}
	return out
}

func describeCall(call tools.Call) string {
	if len(call.Args) == 0 {
		return "Calling " + call.Name
	}
	parts := make([]string, 0, 2)
	for _, key := range []string{"query", "case_number", "law_id", "edrpou", "document_id"} {
		if v, ok := call.Args[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 2 {
			break
		}
	}
	if len(parts) == 0 {
		return "Calling " + call.Name
	}
	return "Calling " + call.Name + ": " + strings.Join(parts, ", ")
}

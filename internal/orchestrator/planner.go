package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/overthelex/secondlayer-sub006/internal/llm"
)

const (
	plannerPromptMarker = "RESEARCH_PLANNER_V1"
	maxPlanSteps        = 5
)

// PlanStep is one planned tool invocation. Steps are ordered; DependsOn
// names earlier step ids whose output this step builds on.
type PlanStep struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params,omitempty"`
	Purpose   string         `json:"purpose"`
	DependsOn []string       `json:"depends_on,omitempty"`
}

// plan is the optional up-front research outline. An empty plan is a valid
// outcome: simple queries go straight to the tool loop.
type plan struct {
	Goal  string
	Steps []PlanStep
}

func (p plan) empty() bool { return len(p.Steps) == 0 }

func (p plan) render() string {
	if p.empty() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Goal: ")
	sb.WriteString(p.Goal)
	for i, step := range p.Steps {
		fmt.Fprintf(&sb, "\n%d. %s: %s", i+1, step.Tool, step.Purpose)
	}
	return sb.String()
}

// buildPlan asks the fast model for a short research outline. Malformed
// output is discarded, never repaired; the loop runs unplanned instead.
func (o *Orchestrator) buildPlan(ctx context.Context, req Request, query string, domains []string) (plan, llm.Usage) {
	if o.client == nil {
		return plan{}, llm.Usage{}
	}
	toolNames := make([]string, 0, 16)
	for _, def := range o.toolDefsForDomains(domains) {
		toolNames = append(toolNames, def.Name)
	}
	system := strings.Join([]string{
		plannerPromptMarker,
		"Plan the research steps for a legal query, or decide none are needed.",
		"Available tools: " + strings.Join(toolNames, ", ") + ".",
		`Respond with one JSON object: {"goal": "...", "steps": [{"id": "s1", "tool": "...", "params": {}, "purpose": "...", "depends_on": []}]}.`,
		fmt.Sprintf("At most %d steps. Return {} when the query is simple enough to answer with one or two tool calls.", maxPlanSteps),
	}, "\n")

	result, err := llm.Complete(ctx, o.client, llm.TurnRequest{
		Model: o.fastModel,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: strings.TrimSpace(query)},
		},
		MaxOutputTokens: 600,
		ResponseFormat:  "json_object",
	})
	o.costs.record(req.RequestID, req.ConversationID, o.fastModel, "plan", result.Usage, err != nil)
	if err != nil {
		log.Debug().Err(err).Msg("planner call failed, proceeding without a plan")
		return plan{}, result.Usage
	}
	return parsePlan(result.Text), result.Usage
}

// parsePlan accepts {"goal", "steps": [{id, tool, params, purpose,
// depends_on}]}. A plan missing its goal, or any step missing its tool or
// purpose, is discarded whole. Steps past the cap are dropped.
func parsePlan(raw string) plan {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return plan{}
	}
	if !strings.HasPrefix(candidate, "{") {
		candidate = extractFirstJSONObject(candidate)
		if candidate == "" {
			return plan{}
		}
	}

	var payload struct {
		Goal  string `json:"goal"`
		Steps []struct {
			ID         string         `json:"id"`
			Tool       string         `json:"tool"`
			Params     map[string]any `json:"params"`
			Parameters map[string]any `json:"parameters"`
			Purpose    string         `json:"purpose"`
			DependsOn  []string       `json:"depends_on"`
		} `json:"steps"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return plan{}
	}
	goal := strings.TrimSpace(payload.Goal)
	if goal == "" || len(payload.Steps) == 0 {
		return plan{}
	}

	steps := make([]PlanStep, 0, maxPlanSteps)
	for i, raw := range payload.Steps {
		tool := strings.TrimSpace(raw.Tool)
		purpose := strings.TrimSpace(raw.Purpose)
		if tool == "" || purpose == "" {
			return plan{}
		}
		if len(steps) == maxPlanSteps {
			break
		}
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			id = fmt.Sprintf("s%d", i+1)
		}
		params := raw.Params
		if len(params) == 0 {
			params = raw.Parameters
		}
		steps = append(steps, PlanStep{
			ID:        id,
			Tool:      tool,
			Params:    params,
			Purpose:   purpose,
			DependsOn: raw.DependsOn,
		})
	}
	return plan{Goal: goal, Steps: steps}
}

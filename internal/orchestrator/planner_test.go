package orchestrator

import (
	"strings"
	"testing"
)

func TestParsePlanStructured(t *testing.T) {
	t.Parallel()

	got := parsePlan(`{"goal": "З'ясувати практику стягнення неустойки",
		"steps": [
			{"id": "s1", "tool": "court_decision_search", "params": {"query": "неустойка"}, "purpose": "знайти практику"},
			{"tool": "legislation_search", "purpose": "перевірити чинну норму", "depends_on": ["s1"]}
		]}`)
	if got.Goal == "" || len(got.Steps) != 2 {
		t.Fatalf("unexpected plan: %+v", got)
	}
	if got.Steps[0].Tool != "court_decision_search" || got.Steps[0].Params["query"] != "неустойка" {
		t.Fatalf("unexpected first step: %+v", got.Steps[0])
	}
	if got.Steps[1].ID != "s2" {
		t.Fatalf("missing step id must default to its position, got %q", got.Steps[1].ID)
	}
	if len(got.Steps[1].DependsOn) != 1 || got.Steps[1].DependsOn[0] != "s1" {
		t.Fatalf("unexpected dependencies: %+v", got.Steps[1])
	}
}

func TestParsePlanDiscardsInvalid(t *testing.T) {
	t.Parallel()

	if got := parsePlan(`{}`); !got.empty() {
		t.Fatalf("empty object should mean no plan, got %+v", got)
	}
	if got := parsePlan(""); !got.empty() {
		t.Fatalf("empty response should mean no plan, got %+v", got)
	}
	if got := parsePlan(`{"steps": [{"tool": "court_decision_search", "purpose": "x"}]}`); !got.empty() {
		t.Fatalf("plan without a goal must be discarded, got %+v", got)
	}
	if got := parsePlan(`{"goal": "г", "steps": [{"purpose": "без інструмента"}]}`); !got.empty() {
		t.Fatalf("step without a tool must discard the plan, got %+v", got)
	}
	if got := parsePlan(`{"goal": "г", "steps": [{"tool": "court_decision_search"}]}`); !got.empty() {
		t.Fatalf("step without a purpose must discard the plan, got %+v", got)
	}
	if got := parsePlan(`{"goal": "г", "steps": "not a list"}`); !got.empty() {
		t.Fatalf("malformed plan must be discarded, got %+v", got)
	}
	if got := parsePlan("total garbage"); !got.empty() {
		t.Fatalf("non-JSON plan must be discarded, got %+v", got)
	}
}

func TestParsePlanCapsSteps(t *testing.T) {
	t.Parallel()
	var sb strings.Builder
	sb.WriteString(`{"goal": "велике дослідження", "steps": [`)
	for i := 0; i < 7; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"tool": "court_decision_search", "purpose": "крок"}`)
	}
	sb.WriteString(`]}`)

	got := parsePlan(sb.String())
	if len(got.Steps) != maxPlanSteps {
		t.Fatalf("expected %d steps, got %d", maxPlanSteps, len(got.Steps))
	}
}

func TestPlanRender(t *testing.T) {
	t.Parallel()
	p := plan{
		Goal: "Оцінити перспективи позову",
		Steps: []PlanStep{
			{ID: "s1", Tool: "court_decision_search", Purpose: "знайти практику"},
			{ID: "s2", Tool: "legislation_search", Purpose: "перевірити норму"},
		},
	}
	got := p.render()
	if !strings.HasPrefix(got, "Goal: Оцінити перспективи позову") {
		t.Fatalf("render must lead with the goal: %q", got)
	}
	if !strings.Contains(got, "1. court_decision_search: знайти практику") ||
		!strings.Contains(got, "2. legislation_search: перевірити норму") {
		t.Fatalf("render missing numbered steps: %q", got)
	}
	if got := (plan{}).render(); got != "" {
		t.Fatalf("empty plan should render empty, got %q", got)
	}
}

// Package orchestrator drives one research request end to end: intent
// classification, optional planning, the budgeted tool-call loop, answer
// streaming and citation verification, all surfaced as one ordered event
// stream.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/overthelex/secondlayer-sub006/internal/background"
	"github.com/overthelex/secondlayer-sub006/internal/budget"
	"github.com/overthelex/secondlayer-sub006/internal/cache"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/model"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/packer"
	"github.com/overthelex/secondlayer-sub006/internal/contextpack/rerank"
	"github.com/overthelex/secondlayer-sub006/internal/llm"
	"github.com/overthelex/secondlayer-sub006/internal/logging"
	"github.com/overthelex/secondlayer-sub006/internal/store"
	"github.com/overthelex/secondlayer-sub006/internal/tools"
)

const defaultInstructions = `You are a legal research assistant for Ukrainian law.
Ground every claim in tool results. Cite case numbers and statute articles you actually retrieved.
When the retrieved material does not answer the question, say so instead of guessing.
Answer in the language of the question.`

// Orchestrator wires the research pipeline. Construct once, share across
// requests.
type Orchestrator struct {
	client    llm.Client
	model     string
	fastModel string

	registry    *tools.Registry
	packer      *packer.Builder
	reranker    *rerank.Reranker
	resultCache cache.ResultCache
	costs       *costRecorder
	store       *store.Store
	queue       *background.Queue

	citationCheck bool
	instructions  string
}

// Config collects the orchestrator's collaborators. Zero-value optional
// fields degrade gracefully: no cache means no caching, no store means no
// persistence.
type Config struct {
	Client    llm.Client
	Model     string
	FastModel string

	Registry    *tools.Registry
	Packer      *packer.Builder
	Reranker    *rerank.Reranker
	ResultCache cache.ResultCache
	Store       *store.Store
	Queue       *background.Queue

	CitationCheck bool
	Instructions  string
}

func New(cfg Config) *Orchestrator {
	instructions := strings.TrimSpace(cfg.Instructions)
	if instructions == "" {
		instructions = defaultInstructions
	}
	resultCache := cfg.ResultCache
	if resultCache == nil {
		resultCache = cache.Nop()
	}
	fastModel := strings.TrimSpace(cfg.FastModel)
	if fastModel == "" {
		fastModel = cfg.Model
	}
	return &Orchestrator{
		client:        cfg.Client,
		model:         cfg.Model,
		fastModel:     fastModel,
		registry:      cfg.Registry,
		packer:        cfg.Packer,
		reranker:      cfg.Reranker,
		resultCache:   resultCache,
		costs:         newCostRecorder(cfg.Queue, cfg.Store),
		store:         cfg.Store,
		queue:         cfg.Queue,
		citationCheck: cfg.CitationCheck,
		instructions:  instructions,
	}
}

const prefetchTool = "court_decision_fetch"

// prefetchDecisions warms the result cache for case numbers the query names;
// the model almost always fetches them. Best effort off the request path.
func (o *Orchestrator) prefetchDecisions(caseNumbers []string) {
	if o.queue == nil || o.registry == nil || len(caseNumbers) == 0 {
		return
	}
	if _, ok := o.registry.Lookup(prefetchTool); !ok {
		return
	}
	if len(caseNumbers) > 2 {
		caseNumbers = caseNumbers[:2]
	}
	for _, number := range caseNumbers {
		call := tools.Call{
			ID:   "prefetch-" + strings.TrimSpace(number),
			Name: prefetchTool,
			Args: map[string]any{"case_number": number},
		}
		o.queue.Submit("prefetch_decision", func(ctx context.Context) error {
			result := o.executeOne(ctx, call)
			if !result.OK() && result.Err != nil {
				return errors.New(result.Err.Message)
			}
			return nil
		})
	}
}

// Request is one research invocation.
type Request struct {
	RequestID      string
	ConversationID string
	Query          string
	Tier           string
	History        []model.Turn
}

// Run starts the request and returns its event stream. The stream closes
// after a terminal complete or error event, or silently on cancellation.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Stream {
	s := newStream()
	go func() {
		defer s.close()
		o.run(ctx, req, s)
	}()
	return s
}

func (o *Orchestrator) run(ctx context.Context, req Request, s *Stream) {
	started := time.Now()
	logger := logging.ForRequest(req.RequestID, req.ConversationID)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.emit(ctx, ChatEvent{Type: EventError, Message: "empty query"})
		return
	}

	tier := budget.ParseTier(req.Tier)
	classified, classifyUsage := o.classifyIntent(ctx, req, query)
	if ctx.Err() != nil {
		return
	}
	o.prefetchDecisions(classified.CaseNumbers)
	researchPlan, planUsage := o.buildPlan(ctx, req, query, classified.Domains)
	if ctx.Err() != nil {
		return
	}

	// A broad plan or a long case-specific query earns one extra tier.
	escalated := false
	if len(researchPlan.Steps) >= 3 || (len(classified.CaseNumbers) > 0 && len([]rune(query)) > 100) {
		if next := tier.Escalate(); next != tier {
			tier = next
			escalated = true
		}
	}
	profile := budget.ForTier(tier)
	logger.Info().
		Str("tier", string(tier)).
		Bool("escalated", escalated).
		Strs("domains", classified.Domains).
		Int("plan_steps", len(researchPlan.Steps)).
		Msg("research request started")

	if !researchPlan.empty() {
		s.emit(ctx, ChatEvent{
			Type:  EventPlan,
			Goal:  researchPlan.Goal,
			Steps: researchPlan.Steps,
			// One reasoning pass per step plus the synthesis pass.
			ExpectedIterations: len(researchPlan.Steps) + 1,
		})
	}

	messages, err := o.packer.Build(ctx, profile, packer.Input{
		Instructions:   o.instructions,
		Plan:           researchPlan.render(),
		ConversationID: req.ConversationID,
		History:        req.History,
		Query:          query,
	})
	if err != nil {
		logger.Error().Err(err).Msg("context assembly failed")
		s.emit(ctx, ChatEvent{Type: EventError, Message: "context assembly failed: " + err.Error()})
		return
	}

	toolDefs := o.toolDefsForDomains(classified.Domains)
	loop, ok := o.toolLoop(ctx, req, s, logger, profile, messages, toolDefs)
	if !ok {
		return
	}

	s.emit(ctx, ChatEvent{
		Type:     EventAnswer,
		Answer:   loop.answer,
		Provider: o.client.Provider(),
		Model:    o.model,
	})

	if o.citationCheck {
		for _, warning := range o.verifyCitations(ctx, loop.answer, loop.fetchedCases) {
			s.emit(ctx, ChatEvent{
				Type:               EventCitationWarning,
				CaseNumber:         warning.CaseNumber,
				Status:             warning.Status,
				Confidence:         warning.Confidence,
				AffectingDecisions: warning.AffectingDecisions,
				Message:            warning.Message,
			})
		}
	}

	if ctx.Err() == nil && o.store != nil {
		persistCtx := context.Background()
		if err := o.store.AppendTurn(persistCtx, req.ConversationID, model.Turn{Role: "user", Content: query}); err != nil {
			logger.Warn().Err(err).Msg("failed to persist user turn")
		} else if err := o.store.AppendTurn(persistCtx, req.ConversationID, model.Turn{Role: "assistant", Content: loop.answer}); err != nil {
			logger.Warn().Err(err).Msg("failed to persist answer turn")
		}
	}

	totalCost := loop.costUSD +
		llm.ComputeCost(o.fastModel, classifyUsage) +
		llm.ComputeCost(o.fastModel, planUsage)

	s.emit(ctx, ChatEvent{
		Type:          EventComplete,
		ToolCallsUsed: loop.toolCallsUsed,
		Iterations:    loop.iterations,
		ElapsedMS:     time.Since(started).Milliseconds(),
		TotalCostUSD:  totalCost,
		Tier:          string(tier),
		Escalated:     escalated,
	})
}

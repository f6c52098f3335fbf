package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/TripForge/internal/domain"
	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/port/llm"
	"github.com/Strob0t/TripForge/internal/tokenizer"
)

// Agent is one specialist run during fan-out.
type Agent interface {
	Name() trip.AgentName
	Run(ctx context.Context, task trip.AgentTask) trip.AgentResult
}

// Retriever is implemented by agents that want local-guide passages in
// their task. The orchestrator queries the index with the returned text.
type Retriever interface {
	RetrievalQuery(req trip.Request) string
}

// AgentConfig holds generation parameters shared by the specialists.
type AgentConfig struct {
	MaxTokens    int64
	Temperature  float64
	SnippetChars int
}

// NewAgents returns the research, budget, and local agents in fan-out order.
func NewAgents(client *ProviderClient, ws *WebSearch, cfg AgentConfig) []Agent {
	return []Agent{
		&ResearchAgent{client: client, search: ws, cfg: cfg},
		&BudgetAgent{client: client, cfg: cfg},
		&LocalAgent{client: client, search: ws, cfg: cfg},
	}
}

// ResearchAgent gathers destination essentials from web search and the model.
type ResearchAgent struct {
	client *ProviderClient
	search *WebSearch
	cfg    AgentConfig
}

// Name implements Agent.
func (a *ResearchAgent) Name() trip.AgentName { return trip.AgentResearch }

// Run implements Agent.
func (a *ResearchAgent) Run(ctx context.Context, task trip.AgentTask) trip.AgentResult {
	findings, calls := runTools(ctx, a.search, trip.AgentResearch, ResearchTools, task.Input, a.cfg.SnippetChars)
	in := ResearchInput{Request: task.Input, Findings: findings}

	comp, err := a.client.Complete(ctx, CallRequest{
		System:      systemResearch,
		Prompt:      in.Prompt(),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Offline:     offlineResearch(task.Input),
	})
	return agentResult(ctx, trip.AgentResearch, comp, err, calls)
}

// BudgetAgent estimates costs from the request fields alone.
type BudgetAgent struct {
	client *ProviderClient
	cfg    AgentConfig
}

// Name implements Agent.
func (a *BudgetAgent) Name() trip.AgentName { return trip.AgentBudget }

// Run implements Agent.
func (a *BudgetAgent) Run(ctx context.Context, task trip.AgentTask) trip.AgentResult {
	days, _ := task.Input.ParseDays()
	in := BudgetInput{Request: task.Input, Days: days}

	comp, err := a.client.Complete(ctx, CallRequest{
		System:      systemBudget,
		Prompt:      in.Prompt(),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Offline:     offlineBudget(task.Input),
	})
	return agentResult(ctx, trip.AgentBudget, comp, err, nil)
}

// LocalAgent recommends local experiences from the guide corpus and web search.
type LocalAgent struct {
	client *ProviderClient
	search *WebSearch
	cfg    AgentConfig
}

// Name implements Agent.
func (a *LocalAgent) Name() trip.AgentName { return trip.AgentLocal }

// RetrievalQuery implements Retriever.
func (a *LocalAgent) RetrievalQuery(req trip.Request) string {
	return req.Destination + " " + req.Interests
}

// Run implements Agent.
func (a *LocalAgent) Run(ctx context.Context, task trip.AgentTask) trip.AgentResult {
	findings, calls := runTools(ctx, a.search, trip.AgentLocal, LocalTools, task.Input, a.cfg.SnippetChars)
	in := LocalInput{Request: task.Input, Passages: task.RetrievedContext, Findings: findings}

	comp, err := a.client.Complete(ctx, CallRequest{
		System:      systemLocal,
		Prompt:      in.Prompt(),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Offline:     offlineLocal(task.Input, task.RetrievedContext),
	})
	return agentResult(ctx, trip.AgentLocal, comp, err, calls)
}

// agentResult converts a completion outcome into a terminal result. Latency
// is filled by the orchestrator.
func agentResult(ctx context.Context, name trip.AgentName, comp Completion, err error, calls []trip.ToolCall) trip.AgentResult {
	res := trip.AgentResult{
		Name:      name,
		Provider:  comp.Provider,
		Model:     comp.Model,
		Degraded:  comp.Degraded,
		ToolCalls: calls,
	}
	switch {
	case err == nil:
		res.Status = trip.StatusOK
		res.Text = comp.Text
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Status = trip.StatusTimedOut
		res.ErrorDetail = "deadline exceeded"
	default:
		res.Status = trip.StatusFailed
		res.ErrorDetail = describeError(err)
	}
	return res
}

// describeError summarizes a provider failure without endpoint details.
func describeError(err error) string {
	kind := llm.KindOf(err)
	if errors.Is(err, domain.ErrNoProviders) {
		return fmt.Sprintf("all providers failed (last: %s)", kind)
	}
	return string(kind)
}

// SynthesisConfig holds synthesis prompt and generation parameters.
type SynthesisConfig struct {
	MaxTokens     int64
	Temperature   float64
	ExcerptChars  int
	ContextBudget int // prompt token budget; 0 disables budgeting
}

// SynthesisAgent merges the specialist results into the itinerary. It never
// calls retrieval or search.
type SynthesisAgent struct {
	client  *ProviderClient
	cfg     SynthesisConfig
	counter *tokenizer.Counter
}

// NewSynthesisAgent creates a synthesis agent. counter may be nil, in which
// case token counts are estimated.
func NewSynthesisAgent(client *ProviderClient, cfg SynthesisConfig, counter *tokenizer.Counter) *SynthesisAgent {
	return &SynthesisAgent{client: client, cfg: cfg, counter: counter}
}

// Name returns trip.AgentSynthesis.
func (a *SynthesisAgent) Name() trip.AgentName { return trip.AgentSynthesis }

// Request builds the call for in, trimming excerpts when the prompt exceeds
// the token budget.
func (a *SynthesisAgent) Request(in trip.SynthesisInput) CallRequest {
	p := NewSynthesisPrompt(in, a.cfg.ExcerptChars)
	prompt := p.Prompt()

	if budget := a.cfg.ContextBudget; budget > 0 && a.counter.Count(prompt) > budget {
		perExcerpt := budget / (2 * len(p.Excerpts))
		for i := range p.Excerpts {
			p.Excerpts[i].Text = a.counter.Truncate(p.Excerpts[i].Text, perExcerpt)
		}
		prompt = p.Prompt()
	}

	return CallRequest{
		System:      systemSynthesis,
		Prompt:      prompt,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Offline:     offlineItinerary(p),
	}
}

// PromptTokens returns the token count of req's prompt.
func (a *SynthesisAgent) PromptTokens(req CallRequest) int {
	return a.counter.Count(req.System) + a.counter.Count(req.Prompt)
}

// Complete runs synthesis in buffered mode.
func (a *SynthesisAgent) Complete(ctx context.Context, req CallRequest) (Completion, error) {
	return a.client.Complete(ctx, req)
}

// Stream runs synthesis in streaming mode.
func (a *SynthesisAgent) Stream(ctx context.Context, req CallRequest) (*CompletionStream, error) {
	return a.client.Stream(ctx, req)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/TripForge/internal/domain"
	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/port/tracing"
)

// Default orchestration timeouts.
const (
	DefaultAgentTimeout     = 30 * time.Second
	DefaultSynthesisTimeout = 60 * time.Second
)

// OrchestratorConfig holds fan-out parameters.
type OrchestratorConfig struct {
	AgentTimeout     time.Duration
	SynthesisTimeout time.Duration
	TopK             int
}

// Orchestrator runs the specialist agents in parallel, joins their results,
// and hands them to the synthesis agent. It is safe for concurrent use; no
// state is shared between plans.
type Orchestrator struct {
	cfg       OrchestratorConfig
	agents    []Agent
	synthesis *SynthesisAgent
	index     *RetrievalIndex
	sink      tracing.Sink
}

// NewOrchestrator creates an Orchestrator over agents and synthesis.
func NewOrchestrator(cfg OrchestratorConfig, agents []Agent, synthesis *SynthesisAgent) *Orchestrator {
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = DefaultAgentTimeout
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = DefaultSynthesisTimeout
	}
	if cfg.TopK < 1 {
		cfg.TopK = 3
	}
	return &Orchestrator{cfg: cfg, agents: agents, synthesis: synthesis, sink: tracing.Nop{}}
}

// SetRetrieval attaches the local-guide index used by Retriever agents.
func (o *Orchestrator) SetRetrieval(ix *RetrievalIndex) {
	o.index = ix
}

// SetTraceSink sets the sink receiving one span per agent and synthesis.
func (o *Orchestrator) SetTraceSink(s tracing.Sink) {
	if s == nil {
		s = tracing.Nop{}
	}
	o.sink = s
}

// Plan produces a complete itinerary. Invalid requests fail with
// domain.ErrValidation before any agent runs; a failed synthesis fails with
// domain.ErrSynthesisFailed. Specialist failures only degrade the result.
func (o *Orchestrator) Plan(ctx context.Context, req trip.Request) (*trip.Itinerary, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	planID := uuid.NewString()
	log := slog.With("plan_id", planID)
	log.InfoContext(ctx, "plan started", "destination", req.Destination, "streaming", false)

	in, results := o.fanOut(ctx, planID, req)

	call := o.synthesis.Request(in)
	sctx, cancel := context.WithTimeout(ctx, o.cfg.SynthesisTimeout)
	defer cancel()

	start := time.Now()
	comp, err := o.synthesis.Complete(sctx, call)
	latency := time.Since(start)

	synth := agentResult(sctx, trip.AgentSynthesis, comp, err, nil)
	synth.Latency = latency
	o.recordSpan(ctx, planID, synth, map[string]string{
		"prompt_tokens": strconv.Itoa(o.synthesis.PromptTokens(call)),
		"attempts":      strconv.Itoa(comp.Attempts),
	})

	if err != nil {
		log.ErrorContext(ctx, "synthesis failed", "status", synth.Status, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	}

	log.InfoContext(ctx, "plan completed", "degraded", comp.Degraded, "latency_ms", latency.Milliseconds())
	return &trip.Itinerary{
		ID:        planID,
		Text:      comp.Text,
		Degraded:  comp.Degraded,
		Provider:  comp.Provider,
		Model:     comp.Model,
		Agents:    results,
		ToolCalls: collectToolCalls(results),
	}, nil
}

// PlanStream validates req and returns a lazy itinerary stream. Fan-out and
// synthesis start on the first call to Next.
func (o *Orchestrator) PlanStream(ctx context.Context, req trip.Request) (*ItineraryStream, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &ItineraryStream{o: o, ctx: ctx, req: req, id: uuid.NewString()}, nil
}

// fanOut runs every agent concurrently and waits for all of them to reach a
// terminal state. Each agent gets its own deadline detached from the
// caller's cancellation so one agent never cancels a sibling.
func (o *Orchestrator) fanOut(ctx context.Context, planID string, req trip.Request) (trip.SynthesisInput, []trip.AgentResult) {
	results := make([]trip.AgentResult, len(o.agents))

	var g errgroup.Group
	for i, agent := range o.agents {
		g.Go(func() error {
			results[i] = o.runAgent(ctx, planID, agent, req)
			return nil
		})
	}
	_ = g.Wait()

	in := trip.SynthesisInput{Request: req, Results: make(map[trip.AgentName]trip.AgentResult, len(results))}
	for _, r := range results {
		in.Results[r.Name] = r
	}
	return in, results
}

// runAgent runs one agent task under its deadline. The result is returned
// when the deadline passes even if the agent has not yet returned.
func (o *Orchestrator) runAgent(ctx context.Context, planID string, agent Agent, req trip.Request) trip.AgentResult {
	start := time.Now()
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.AgentTimeout)
	defer cancel()

	name := agent.Name()
	deadline, _ := actx.Deadline()
	done := make(chan trip.AgentResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "agent panicked", "plan_id", planID, "agent", name, "panic", r)
				done <- trip.AgentResult{Name: name, Status: trip.StatusFailed, ErrorDetail: "internal error"}
			}
		}()

		task := trip.AgentTask{Name: name, Input: req, StartedAt: start, Deadline: deadline}
		var calls []trip.ToolCall
		if r, ok := agent.(Retriever); ok && o.index.Enabled() {
			query := r.RetrievalQuery(req)
			task.RetrievedContext = o.index.Query(actx, query, o.cfg.TopK)
			calls = append(calls, trip.ToolCall{Agent: name, Tool: "local_guides", Args: map[string]string{
				"query": query,
				"k":     strconv.Itoa(o.cfg.TopK),
			}})
		}

		res := agent.Run(actx, task)
		res.ToolCalls = append(calls, res.ToolCalls...)
		done <- res
	}()

	var res trip.AgentResult
	select {
	case res = <-done:
	case <-actx.Done():
		res = trip.AgentResult{Status: trip.StatusTimedOut, ErrorDetail: "deadline exceeded"}
	}
	res.Name = name
	res.Latency = time.Since(start)
	if !res.OK() {
		res.Text = ""
		slog.WarnContext(ctx, "agent degraded", "plan_id", planID, "agent", name, "status", res.Status, "detail", res.ErrorDetail)
	}

	o.recordSpan(ctx, planID, res, map[string]string{
		"tool_calls": strconv.Itoa(len(res.ToolCalls)),
	})
	return res
}

func (o *Orchestrator) recordSpan(ctx context.Context, planID string, res trip.AgentResult, extra map[string]string) {
	attrs := map[string]string{
		"agent":    string(res.Name),
		"degraded": strconv.FormatBool(res.Degraded),
	}
	if res.Provider != "" {
		attrs["provider"] = res.Provider
		attrs["model"] = res.Model
	}
	if res.ErrorDetail != "" {
		attrs["error"] = res.ErrorDetail
	}
	for k, v := range extra {
		attrs[k] = v
	}
	o.sink.RecordSpan(ctx, tracing.Span{
		Name:       "agent." + string(res.Name),
		TraceID:    planID,
		Status:     string(res.Status),
		Start:      time.Now().Add(-res.Latency),
		Latency:    res.Latency,
		Attributes: attrs,
	})
}

func collectToolCalls(results []trip.AgentResult) []trip.ToolCall {
	calls := []trip.ToolCall{}
	for _, r := range results {
		calls = append(calls, r.ToolCalls...)
	}
	return calls
}

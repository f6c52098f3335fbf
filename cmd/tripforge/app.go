package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/TripForge/internal/adapter/corpus"
	tfnats "github.com/Strob0t/TripForge/internal/adapter/nats"
	"github.com/Strob0t/TripForge/internal/adapter/natskv"
	"github.com/Strob0t/TripForge/internal/adapter/openai"
	tfotel "github.com/Strob0t/TripForge/internal/adapter/otel"
	"github.com/Strob0t/TripForge/internal/adapter/ristretto"
	"github.com/Strob0t/TripForge/internal/adapter/tiered"
	"github.com/Strob0t/TripForge/internal/adapter/tracesink"
	"github.com/Strob0t/TripForge/internal/adapter/websearch"
	"github.com/Strob0t/TripForge/internal/config"
	"github.com/Strob0t/TripForge/internal/domain/guide"
	"github.com/Strob0t/TripForge/internal/limiter"
	"github.com/Strob0t/TripForge/internal/port/cache"
	"github.com/Strob0t/TripForge/internal/port/embedding"
	"github.com/Strob0t/TripForge/internal/port/search"
	"github.com/Strob0t/TripForge/internal/port/tracing"
	"github.com/Strob0t/TripForge/internal/resilience"
	"github.com/Strob0t/TripForge/internal/service"
	"github.com/Strob0t/TripForge/internal/tokenizer"
)

// app holds the planning core shared by the serve and plan commands.
type app struct {
	client       *service.ProviderClient
	orchestrator *service.Orchestrator
	index        *service.RetrievalIndex
	guides       []guide.Entry

	nats    *tfnats.SpanPublisher
	closers []func()
}

// buildApp wires providers, tools, retrieval, and tracing into an
// orchestrator. Optional collaborators that fail to start are logged and
// skipped.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	// --- Telemetry ---
	shutdownOTel, err := tfotel.Setup(ctx, cfg.OTel)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	a.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	})
	sink := a.buildTraceSink(ctx, cfg)

	// --- Providers ---
	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		slog.Warn("no LLM provider credentials configured, serving offline itineraries")
	}
	a.client = service.NewProviderClient(chain, limiter.NewPool(cfg.LLM.MaxConcurrent))

	// --- Tools ---
	ws, err := a.buildWebSearch(ctx, cfg)
	if err != nil {
		return nil, err
	}

	guides, err := corpus.LoadGuides(cfg.Retrieval.GuidesPath)
	if err != nil {
		slog.Warn("local guides unavailable", "path", cfg.Retrieval.GuidesPath, "error", err)
	}
	a.guides = guides
	a.index, err = service.NewRetrievalIndex(ctx, guides, buildEmbedder(cfg), cfg.Retrieval.Enabled)
	if err != nil {
		slog.Warn("retrieval index build failed, continuing without retrieval", "error", err)
		a.index, _ = service.NewRetrievalIndex(ctx, nil, nil, false)
	}
	slog.Info("retrieval index ready", "enabled", a.index.Enabled(), "entries", a.index.Len())

	counter, err := tokenizer.NewCounter()
	if err != nil {
		slog.Warn("tokenizer unavailable, using length estimates", "error", err)
	}

	// --- Agents ---
	agents := service.NewAgents(a.client, ws, service.AgentConfig{
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		SnippetChars: cfg.Orchestrator.SnippetChars,
	})
	synthesis := service.NewSynthesisAgent(a.client, service.SynthesisConfig{
		MaxTokens:     cfg.LLM.SynthesisMaxTokens,
		Temperature:   cfg.LLM.Temperature,
		ExcerptChars:  cfg.Orchestrator.ExcerptChars,
		ContextBudget: cfg.Orchestrator.ContextBudget,
	}, counter)

	a.orchestrator = service.NewOrchestrator(service.OrchestratorConfig{
		AgentTimeout:     cfg.Orchestrator.AgentTimeout,
		SynthesisTimeout: cfg.Orchestrator.SynthesisTimeout,
		TopK:             cfg.Retrieval.TopK,
	}, agents, synthesis)
	a.orchestrator.SetRetrieval(a.index)
	a.orchestrator.SetTraceSink(sink)

	return a, nil
}

// buildTraceSink assembles the enabled span exporters behind one async queue.
func (a *app) buildTraceSink(ctx context.Context, cfg *config.Config) tracing.Sink {
	var sinks tracesink.Multi
	if cfg.Trace.Log {
		sinks = append(sinks, tracesink.Log{Logger: slog.Default()})
	}
	if cfg.OTel.Enabled {
		sinks = append(sinks, tfotel.NewSpanSink(nil))
		m, err := tfotel.NewMetrics()
		if err != nil {
			slog.Warn("otel metrics unavailable", "error", err)
		} else {
			sinks = append(sinks, m)
		}
	}
	if cfg.NATS.URL != "" {
		pub, err := tfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.SubjectPrefix)
		if err != nil {
			slog.Warn("nats span publisher disabled", "error", err)
		} else {
			a.onClose(func() { _ = pub.Close() })
			a.nats = pub
			sinks = append(sinks, pub)
		}
	}
	if len(sinks) == 0 {
		return tracing.Nop{}
	}

	async := tracesink.NewAsync(sinks, cfg.Trace.Buffer, cfg.Trace.Workers)
	a.onClose(func() {
		async.Close()
		if n := async.Dropped(); n > 0 {
			slog.Warn("trace spans dropped", "count", n)
		}
	})
	return async
}

// buildWebSearch returns the search tool. Without a configured provider the
// tool degrades every query.
func (a *app) buildWebSearch(ctx context.Context, cfg *config.Config) (*service.WebSearch, error) {
	var provider search.Provider
	switch cfg.Search.Provider {
	case "tavily":
		if cfg.Search.TavilyAPIKey == "" {
			break
		}
		t := websearch.NewTavily(cfg.Search.TavilyURL, cfg.Search.TavilyAPIKey, cfg.Search.Timeout)
		t.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		provider = t
	case "brave":
		if cfg.Search.BraveAPIKey == "" {
			break
		}
		b := websearch.NewBrave(cfg.Search.BraveURL, cfg.Search.BraveAPIKey, cfg.Search.Timeout)
		b.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		provider = b
	}
	if provider == nil {
		slog.Info("web search disabled, agents will elaborate from model knowledge")
		return service.NewWebSearch(nil, cfg.Search.Timeout, cfg.Search.MaxResults), nil
	}

	if cfg.Search.CacheTTL > 0 {
		l1, err := ristretto.New(cfg.Search.CacheMaxMB)
		if err != nil {
			return nil, fmt.Errorf("search cache: %w", err)
		}
		a.onClose(l1.Close)
		var c cache.Cache = l1
		if a.nats != nil && cfg.NATS.SearchBucket != "" {
			l2, err := natskv.Open(ctx, a.nats.JetStream(), cfg.NATS.SearchBucket, cfg.Search.CacheTTL)
			if err != nil {
				slog.Warn("shared search cache disabled", "error", err)
			} else {
				c = tiered.New(l1, l2, cfg.Search.CacheTTL)
				slog.Info("shared search cache enabled", "bucket", cfg.NATS.SearchBucket)
			}
		}
		provider = websearch.NewCached(provider, c, cfg.Search.CacheTTL, cfg.Search.Timeout)
	}
	slog.Info("web search enabled", "provider", provider.Name())
	return service.NewWebSearch(provider, cfg.Search.Timeout, cfg.Search.MaxResults), nil
}

// buildEmbedder returns the configured retrieval embedder. The openai
// embedder borrows the credential of the first openai-kind provider and
// falls back to hashing when none has a key.
func buildEmbedder(cfg *config.Config) embedding.Embedder {
	if cfg.Retrieval.Embedder == "openai" {
		for _, p := range cfg.Providers {
			if p.Kind != config.KindOpenAI || p.APIKey == "" {
				continue
			}
			c := openai.NewClient(openai.Config{Name: p.Name, BaseURL: p.BaseURL, APIKey: p.APIKey})
			return openai.NewEmbedder(c, cfg.Retrieval.EmbeddingModel)
		}
		slog.Warn("openai embedder requested without an openai credential, using hash embedder")
	}
	return service.NewHashEmbedder(cfg.Retrieval.Dimensions)
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

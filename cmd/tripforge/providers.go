package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/TripForge/internal/adapter/anthropic"
	"github.com/Strob0t/TripForge/internal/adapter/gemini"
	"github.com/Strob0t/TripForge/internal/adapter/ollama"
	"github.com/Strob0t/TripForge/internal/adapter/openai"
	"github.com/Strob0t/TripForge/internal/config"
	"github.com/Strob0t/TripForge/internal/port/llm"
	"github.com/Strob0t/TripForge/internal/resilience"
	"github.com/Strob0t/TripForge/internal/service"
)

// buildChain expands the configured providers into the ordered fallback
// chain, one entry per model. Providers that need a credential and have
// none are skipped, so a keyless deployment yields an empty chain.
func buildChain(ctx context.Context, cfg *config.Config) ([]service.ChainEntry, error) {
	var chain []service.ChainEntry
	for _, p := range cfg.Providers {
		if p.RequiresKey() && p.APIKey == "" {
			slog.Info("provider skipped: no credential", "provider", p.Name, "key_env", p.APIKeyEnv)
			continue
		}
		provider, err := newProvider(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		for _, model := range p.Models {
			chain = append(chain, service.ChainEntry{
				Provider: provider,
				Model:    model,
				Breaker:  resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
			})
		}
	}
	for i, e := range chain {
		slog.Info("chain entry", "position", i, "provider", e.Provider.Name(), "model", e.Model)
	}
	return chain, nil
}

func newProvider(ctx context.Context, p config.Provider) (llm.Provider, error) {
	switch p.Kind {
	case config.KindOpenAI:
		oc := openai.Config{Name: p.Name, BaseURL: p.BaseURL, APIKey: p.APIKey}
		if strings.Contains(p.BaseURL, "openrouter.ai") {
			oc.Headers = map[string]string{
				"HTTP-Referer": "https://github.com/Strob0t/TripForge",
				"X-Title":      "TripForge",
			}
		}
		return openai.NewClient(oc), nil
	case config.KindAnthropic:
		return anthropic.NewClient(anthropic.Config{Name: p.Name, BaseURL: p.BaseURL, APIKey: p.APIKey}), nil
	case config.KindGemini:
		return gemini.NewClient(ctx, gemini.Config{Name: p.Name, BaseURL: p.BaseURL, APIKey: p.APIKey})
	case config.KindOllama:
		return ollama.NewClient(ollama.Config{Name: p.Name, BaseURL: p.BaseURL})
	default:
		return nil, fmt.Errorf("unknown kind %q", p.Kind)
	}
}

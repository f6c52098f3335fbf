package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8000" {
		t.Errorf("expected port 8000, got %s", cfg.Server.Port)
	}
	if cfg.LLM.MaxTokens != 2000 {
		t.Errorf("expected max_tokens 2000, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", cfg.LLM.Temperature)
	}
	if len(cfg.Providers) != 1 || len(cfg.Providers[0].Models) != 2 {
		t.Fatalf("expected one provider with two models, got %+v", cfg.Providers)
	}
	if cfg.Providers[0].Models[0] != "openai/gpt-oss-20b" {
		t.Errorf("expected primary model openai/gpt-oss-20b, got %s", cfg.Providers[0].Models[0])
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Retrieval.TopK)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
orchestrator:
  agent_timeout: 5s
providers:
  - name: claude
    kind: anthropic
    api_key_env: ANTHROPIC_API_KEY
    models: ["claude-3-5-haiku-latest"]
  - name: local
    kind: ollama
    base_url: http://localhost:11434
    models: ["llama3.2"]
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Orchestrator.AgentTimeout != 5*time.Second {
		t.Errorf("expected agent timeout 5s, got %v", cfg.Orchestrator.AgentTimeout)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("expected YAML chain to replace defaults, got %d providers", len(cfg.Providers))
	}
	if cfg.Providers[0].Kind != KindAnthropic || cfg.Providers[1].Kind != KindOllama {
		t.Errorf("unexpected chain order: %+v", cfg.Providers)
	}
	// Unchanged fields keep defaults
	if cfg.Orchestrator.SynthesisTimeout != 60*time.Second {
		t.Errorf("expected default synthesis timeout, got %v", cfg.Orchestrator.SynthesisTimeout)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	if err := loadYAML(&cfg, path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("TRIPFORGE_PORT", "7070")
	t.Setenv("TRIPFORGE_LOG_LEVEL", "warn")
	t.Setenv("TRIPFORGE_AGENT_TIMEOUT", "12s")
	t.Setenv("TRIPFORGE_TEMPERATURE", "0.2")
	t.Setenv("TRIPFORGE_MODELS", "a/model, b/model")
	t.Setenv("ENABLE_RAG", "true")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Orchestrator.AgentTimeout != 12*time.Second {
		t.Errorf("expected agent timeout 12s, got %v", cfg.Orchestrator.AgentTimeout)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.LLM.Temperature)
	}
	if got := strings.Join(cfg.Providers[0].Models, "|"); got != "a/model|b/model" {
		t.Errorf("expected models from env, got %s", got)
	}
	if !cfg.Retrieval.Enabled {
		t.Error("expected retrieval enabled via ENABLE_RAG")
	}
	if cfg.Search.Provider != "tavily" {
		t.Errorf("expected search provider inferred from key, got %q", cfg.Search.Provider)
	}
}

func TestEnvIgnoresUnparseable(t *testing.T) {
	cfg := Defaults()
	t.Setenv("TRIPFORGE_AGENT_TIMEOUT", "soon")
	loadEnv(&cfg)
	if cfg.Orchestrator.AgentTimeout != 30*time.Second {
		t.Errorf("expected default timeout to survive bad env, got %v", cfg.Orchestrator.AgentTimeout)
	}
}

func TestResolveKeys(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")

	cfg := Defaults()
	resolveKeys(&cfg)

	if cfg.Providers[0].APIKey != "sk-or-test" {
		t.Errorf("expected key resolved from env, got %q", cfg.Providers[0].APIKey)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "zero agent timeout",
			modify: func(c *Config) { c.Orchestrator.AgentTimeout = 0 },
			errMsg: "orchestrator.agent_timeout must be > 0",
		},
		{
			name:   "zero synthesis timeout",
			modify: func(c *Config) { c.Orchestrator.SynthesisTimeout = 0 },
			errMsg: "orchestrator.synthesis_timeout must be > 0",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "unknown provider kind",
			modify: func(c *Config) { c.Providers[0].Kind = "cohere" },
			errMsg: `providers[0]: unknown kind "cohere"`,
		},
		{
			name:   "provider without models",
			modify: func(c *Config) { c.Providers[0].Models = nil },
			errMsg: "providers[0]: at least one model is required",
		},
		{
			name:   "unknown search provider",
			modify: func(c *Config) { c.Search.Provider = "bing" },
			errMsg: `search.provider: unknown provider "bing"`,
		},
		{
			name:   "unknown embedder",
			modify: func(c *Config) { c.Retrieval.Embedder = "bert" },
			errMsg: `retrieval.embedder: unknown embedder "bert"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}
}

func TestLoadFromAppliesHierarchy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripforge.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9191\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRIPFORGE_PORT", "9292")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "9292" {
		t.Errorf("expected env to win over YAML, got %s", cfg.Server.Port)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "tripforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("TRIPFORGE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	resolveKeys(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist. A providers list in YAML replaces
// the default chain entirely.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var probe struct {
		Providers []Provider `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if probe.Providers != nil {
		cfg.Providers = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Port, "TRIPFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "TRIPFORGE_CORS_ORIGIN")
	setDuration(&cfg.Server.WriteTimeout, "TRIPFORGE_WRITE_TIMEOUT")

	setString(&cfg.Logging.Level, "TRIPFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TRIPFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TRIPFORGE_LOG_ASYNC")

	// LLM
	setInt64(&cfg.LLM.MaxTokens, "TRIPFORGE_MAX_TOKENS")
	setInt64(&cfg.LLM.SynthesisMaxTokens, "TRIPFORGE_SYNTHESIS_MAX_TOKENS")
	setFloat64(&cfg.LLM.Temperature, "TRIPFORGE_TEMPERATURE")
	setInt(&cfg.LLM.MaxConcurrent, "TRIPFORGE_LLM_MAX_CONCURRENT")
	if models := os.Getenv("TRIPFORGE_MODELS"); models != "" && len(cfg.Providers) > 0 {
		cfg.Providers[0].Models = splitList(models)
	}

	// Orchestrator
	setDuration(&cfg.Orchestrator.AgentTimeout, "TRIPFORGE_AGENT_TIMEOUT")
	setDuration(&cfg.Orchestrator.SynthesisTimeout, "TRIPFORGE_SYNTHESIS_TIMEOUT")
	setInt(&cfg.Orchestrator.ExcerptChars, "TRIPFORGE_EXCERPT_CHARS")
	setInt(&cfg.Orchestrator.ContextBudget, "TRIPFORGE_CONTEXT_BUDGET")

	setInt(&cfg.Breaker.MaxFailures, "TRIPFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TRIPFORGE_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "TRIPFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "TRIPFORGE_RATE_BURST")

	// Search
	setString(&cfg.Search.Provider, "TRIPFORGE_SEARCH_PROVIDER")
	setString(&cfg.Search.TavilyAPIKey, "TAVILY_API_KEY")
	setString(&cfg.Search.BraveAPIKey, "BRAVE_API_KEY")
	setDuration(&cfg.Search.Timeout, "TRIPFORGE_SEARCH_TIMEOUT")
	setInt(&cfg.Search.MaxResults, "TRIPFORGE_SEARCH_MAX_RESULTS")
	if cfg.Search.Provider == "" {
		switch {
		case cfg.Search.TavilyAPIKey != "":
			cfg.Search.Provider = "tavily"
		case cfg.Search.BraveAPIKey != "":
			cfg.Search.Provider = "brave"
		}
	}

	// Retrieval
	setBool(&cfg.Retrieval.Enabled, "ENABLE_RAG")
	setBool(&cfg.Retrieval.Enabled, "TRIPFORGE_RAG_ENABLED")
	setString(&cfg.Retrieval.GuidesPath, "TRIPFORGE_GUIDES_PATH")
	setInt(&cfg.Retrieval.TopK, "TRIPFORGE_RAG_TOP_K")
	setString(&cfg.Retrieval.Embedder, "TRIPFORGE_RAG_EMBEDDER")

	// Telemetry and collaborators
	setBool(&cfg.OTel.Enabled, "TRIPFORGE_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SearchBucket, "TRIPFORGE_NATS_SEARCH_BUCKET")
	setBool(&cfg.MCP.Enabled, "TRIPFORGE_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "TRIPFORGE_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "TRIPFORGE_MCP_API_KEY")
}

// resolveKeys fills provider API keys from their named environment variables.
func resolveKeys(cfg *Config) {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKeyEnv != "" {
			setString(&p.APIKey, p.APIKeyEnv)
		}
		if p.Name == "" {
			p.Name = p.Kind
		}
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Orchestrator.AgentTimeout <= 0 {
		return errors.New("orchestrator.agent_timeout must be > 0")
	}
	if cfg.Orchestrator.SynthesisTimeout <= 0 {
		return errors.New("orchestrator.synthesis_timeout must be > 0")
	}
	if cfg.LLM.MaxTokens < 1 {
		return errors.New("llm.max_tokens must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Retrieval.TopK < 1 {
		return errors.New("retrieval.top_k must be >= 1")
	}
	for i, p := range cfg.Providers {
		switch p.Kind {
		case KindOpenAI, KindAnthropic, KindGemini, KindOllama:
		default:
			return fmt.Errorf("providers[%d]: unknown kind %q", i, p.Kind)
		}
		if len(p.Models) == 0 {
			return fmt.Errorf("providers[%d]: at least one model is required", i)
		}
	}
	switch cfg.Search.Provider {
	case "", "tavily", "brave":
	default:
		return fmt.Errorf("search.provider: unknown provider %q", cfg.Search.Provider)
	}
	switch cfg.Retrieval.Embedder {
	case "hash", "openai":
	default:
		return fmt.Errorf("retrieval.embedder: unknown embedder %q", cfg.Retrieval.Embedder)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

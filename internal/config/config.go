// Package config provides hierarchical configuration loading for TripForge.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Provider kinds understood by the chain builder.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGemini    = "gemini"
	KindOllama    = "ollama"
)

// Config holds all runtime configuration for the TripForge service.
type Config struct {
	Server       Server       `yaml:"server"`
	Logging      Logging      `yaml:"logging"`
	LLM          LLM          `yaml:"llm"`
	Providers    []Provider   `yaml:"providers"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Breaker      Breaker      `yaml:"breaker"`
	Rate         Rate         `yaml:"rate"`
	Search       Search       `yaml:"search"`
	Retrieval    Retrieval    `yaml:"retrieval"`
	OTel         OTel         `yaml:"otel"`
	NATS         NATS         `yaml:"nats"`
	MCP          MCP          `yaml:"mcp"`
	Trace        Trace        `yaml:"trace"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port         string        `yaml:"port"`
	CORSOrigin   string        `yaml:"cors_origin"`
	BodyLimit    int64         `yaml:"body_limit"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // must exceed agent + synthesis timeouts for streaming
}

// Logging holds structured logging configuration.
type Logging struct {
	Level       string `yaml:"level"`
	Service     string `yaml:"service"`
	Async       bool   `yaml:"async"`
	AsyncBuffer int    `yaml:"async_buffer"`
}

// LLM holds generation parameters shared by every agent.
type LLM struct {
	MaxTokens          int64   `yaml:"max_tokens"`
	SynthesisMaxTokens int64   `yaml:"synthesis_max_tokens"`
	Temperature        float64 `yaml:"temperature"`
	MaxConcurrent      int     `yaml:"max_concurrent"` // outbound provider calls across all requests
}

// Provider is one entry of the ordered fallback chain. Each model in Models
// becomes its own chain position.
type Provider struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	APIKeyEnv string   `yaml:"api_key_env"`
	Models    []string `yaml:"models"`
}

// RequiresKey reports whether the provider kind needs a credential.
func (p Provider) RequiresKey() bool {
	return p.Kind != KindOllama
}

// Orchestrator holds fan-out and synthesis configuration.
type Orchestrator struct {
	AgentTimeout     time.Duration `yaml:"agent_timeout"`
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout"`
	ExcerptChars     int           `yaml:"excerpt_chars"`  // per-agent excerpt in the synthesis prompt
	SnippetChars     int           `yaml:"snippet_chars"`  // per-tool compaction of search snippets
	ContextBudget    int           `yaml:"context_budget"` // max prompt tokens for the synthesis prompt
}

// Breaker holds circuit breaker configuration, applied per chain entry.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Search holds web search tool configuration.
type Search struct {
	Provider     string        `yaml:"provider"` // "tavily" | "brave" | "" (disabled)
	TavilyAPIKey string        `yaml:"tavily_api_key"`
	TavilyURL    string        `yaml:"tavily_url"`
	BraveAPIKey  string        `yaml:"brave_api_key"`
	BraveURL     string        `yaml:"brave_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxResults   int           `yaml:"max_results"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheMaxMB   int64         `yaml:"cache_max_mb"`
}

// Retrieval holds local guide retrieval configuration.
type Retrieval struct {
	Enabled        bool   `yaml:"enabled"`
	GuidesPath     string `yaml:"guides_path"`
	TopK           int    `yaml:"top_k"`
	Embedder       string `yaml:"embedder"` // "hash" | "openai"
	EmbeddingModel string `yaml:"embedding_model"`
	Dimensions     int    `yaml:"dimensions"`
}

// OTel holds OpenTelemetry exporter configuration.
type OTel struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// NATS holds the optional span publisher configuration. Empty URL disables it.
type NATS struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
	SearchBucket  string `yaml:"search_bucket"` // shared L2 search cache; empty disables
}

// MCP holds the optional MCP tool server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	APIKey  string `yaml:"api_key"` // empty disables bearer auth
}

// Trace holds the asynchronous trace sink configuration.
type Trace struct {
	Buffer  int  `yaml:"buffer"`
	Workers int  `yaml:"workers"`
	Log     bool `yaml:"log"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:         "8000",
			CORSOrigin:   "*",
			BodyLimit:    64 << 10,
			WriteTimeout: 3 * time.Minute,
		},
		Logging: Logging{
			Level:       "info",
			Service:     "tripforge",
			AsyncBuffer: 4096,
		},
		LLM: LLM{
			MaxTokens:          2000,
			SynthesisMaxTokens: 2000,
			Temperature:        0.7,
			MaxConcurrent:      32,
		},
		Providers: []Provider{
			{
				Name:      "openrouter",
				Kind:      KindOpenAI,
				BaseURL:   "https://openrouter.ai/api/v1",
				APIKeyEnv: "OPENROUTER_API_KEY",
				Models:    []string{"openai/gpt-oss-20b", "google/gemini-flash-1.5-8b"},
			},
		},
		Orchestrator: Orchestrator{
			AgentTimeout:     30 * time.Second,
			SynthesisTimeout: 60 * time.Second,
			ExcerptChars:     400,
			SnippetChars:     200,
			ContextBudget:    6000,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 2,
			Burst:             10,
			CleanupInterval:   5 * time.Minute,
			MaxIdleTime:       10 * time.Minute,
		},
		Search: Search{
			TavilyURL:  "https://api.tavily.com",
			BraveURL:   "https://api.search.brave.com",
			Timeout:    8 * time.Second,
			MaxResults: 5,
			CacheTTL:   30 * time.Minute,
			CacheMaxMB: 16,
		},
		Retrieval: Retrieval{
			Enabled:        false,
			GuidesPath:     "data/local_guides.json",
			TopK:           3,
			Embedder:       "hash",
			EmbeddingModel: "text-embedding-3-small",
			Dimensions:     256,
		},
		OTel: OTel{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "tripforge",
		},
		NATS: NATS{
			Stream:        "TRIPFORGE",
			SubjectPrefix: "tripforge.spans",
			SearchBucket:  "tripforge_search",
		},
		MCP: MCP{
			Addr: ":3001",
		},
		Trace: Trace{
			Buffer:  1024,
			Workers: 2,
		},
	}
}

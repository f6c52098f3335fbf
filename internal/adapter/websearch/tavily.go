package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Strob0t/TripForge/internal/port/search"
	"github.com/Strob0t/TripForge/internal/resilience"
)

// Tavily queries the Tavily search API.
type Tavily struct {
	http   httpClient
	apiKey string
}

// NewTavily creates a Tavily provider.
func NewTavily(baseURL, apiKey string, timeout time.Duration) *Tavily {
	return &Tavily{http: newHTTPClient(baseURL, timeout), apiKey: apiKey}
}

// SetBreaker attaches a circuit breaker to outbound requests.
func (t *Tavily) SetBreaker(b *resilience.Breaker) { t.http.breaker = b }

// Name implements search.Provider.
func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results,omitempty"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements search.Provider.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	body, err := json.Marshal(tavilyRequest{Query: query, MaxResults: maxResults, SearchDepth: "basic"})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	data, err := t.http.doRequest(ctx, t.Name(), http.MethodPost, "/search", body, map[string]string{
		"Authorization": "Bearer " + t.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var resp tavilyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	out := make([]search.Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, search.Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return limit(out, maxResults), nil
}

func limit(results []search.Result, n int) []search.Result {
	if n > 0 && len(results) > n {
		return results[:n]
	}
	return results
}

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Strob0t/TripForge/internal/port/search"
	"github.com/Strob0t/TripForge/internal/resilience"
)

// Brave queries the Brave Search web endpoint.
type Brave struct {
	http   httpClient
	apiKey string
}

// NewBrave creates a Brave provider.
func NewBrave(baseURL, apiKey string, timeout time.Duration) *Brave {
	return &Brave{http: newHTTPClient(baseURL, timeout), apiKey: apiKey}
}

// SetBreaker attaches a circuit breaker to outbound requests.
func (b *Brave) SetBreaker(br *resilience.Breaker) { b.http.breaker = br }

// Name implements search.Provider.
func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements search.Provider.
func (b *Brave) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	q := url.Values{}
	q.Set("q", query)
	if maxResults > 0 {
		q.Set("count", strconv.Itoa(maxResults))
	}

	data, err := b.http.doRequest(ctx, b.Name(), http.MethodGet, "/res/v1/web/search?"+q.Encode(), nil, map[string]string{
		"X-Subscription-Token": b.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var resp braveResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	out := make([]search.Result, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		out = append(out, search.Result{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return limit(out, maxResults), nil
}

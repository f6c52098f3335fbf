// Package websearch implements the search.Provider port for hosted web
// search APIs (Tavily, Brave) plus a caching decorator.
package websearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/TripForge/internal/resilience"
)

const defaultTimeout = 8 * time.Second

// maxErrorBody bounds how much of an error response is kept in the message.
const maxErrorBody = 256

// StatusError is returned when the search API answers with a non-2xx status.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Status, e.Body)
}

// httpClient holds the transport shared by the provider implementations.
type httpClient struct {
	baseURL string
	hc      *http.Client
	breaker *resilience.Breaker
}

func newHTTPClient(baseURL string, timeout time.Duration) httpClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

// doRequest sends a request and returns the body of a 2xx response.
func (c *httpClient) doRequest(ctx context.Context, provider, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			msg := string(data)
			if len(msg) > maxErrorBody {
				msg = msg[:maxErrorBody]
			}
			return &StatusError{Provider: provider, Status: resp.StatusCode, Body: msg}
		}

		result = data
		return nil
	}

	if err := c.breaker.Execute(call); err != nil {
		return nil, err
	}
	return result, nil
}

package websearch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/TripForge/internal/port/cache"
	"github.com/Strob0t/TripForge/internal/port/search"
)

// Cached decorates a search.Provider with a response cache. Concurrent
// identical queries share one upstream request, which runs detached from any
// single caller and is bounded by timeout instead.
type Cached struct {
	inner   search.Provider
	cache   cache.Cache
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
}

// NewCached wraps inner with c. A shared upstream request is cancelled after
// timeout; zero means no limit.
func NewCached(inner search.Provider, c cache.Cache, ttl, timeout time.Duration) *Cached {
	return &Cached{inner: inner, cache: c, ttl: ttl, timeout: timeout}
}

// Name implements search.Provider.
func (c *Cached) Name() string { return c.inner.Name() }

// Search implements search.Provider. Only successful responses are cached.
// Each caller stops waiting when its own context ends.
func (c *Cached) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	key := c.key(query, maxResults)

	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var results []search.Result
		if err := json.Unmarshal(data, &results); err == nil {
			return results, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			sctx, cancel = context.WithTimeout(sctx, c.timeout)
			defer cancel()
		}
		results, err := c.inner.Search(sctx, query, maxResults)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(results); err == nil {
			if err := c.cache.Set(sctx, key, data, c.ttl); err != nil {
				slog.Warn("search cache set failed", "provider", c.inner.Name(), "error", err)
			}
		}
		return results, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]search.Result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cached) key(query string, maxResults int) string {
	return c.inner.Name() + ":" + strconv.Itoa(maxResults) + ":" + strings.ToLower(strings.TrimSpace(query))
}

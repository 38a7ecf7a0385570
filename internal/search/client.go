// Package search implements the web search capability: an API-key search
// endpoint returning ranked snippets, with result caching and a circuit
// breaker in front of the remote service.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/normalize"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// ErrMissingAPIKey is a configuration error: the search endpoint requires a key.
var ErrMissingAPIKey = errors.New("search API key is not configured")

// DefaultEndpoint is a Serper-compatible search endpoint.
const DefaultEndpoint = "https://google.serper.dev/search"

const (
	defaultResultCount = 5
	maxResultCount     = 20
)

// Config contains configuration for a search Client.
type Config struct {
	// Endpoint is the search API URL. Defaults to DefaultEndpoint.
	Endpoint string
	// APIKey is sent in the X-API-KEY header. Required.
	APIKey string
	// HTTPClient performs requests. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// Cache stores results by query. Optional.
	Cache *Cache
	// BreakerName names the circuit breaker in logs.
	BreakerName string
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Defaults to 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open. Defaults to 60s.
	OpenTimeout time.Duration
	// Logger receives breaker transitions and cache misses.
	Logger *zap.Logger
	// CacheMetrics counts cache lookups. Optional.
	CacheMetrics CacheRecorder
}

// CacheRecorder counts cache lookups.
type CacheRecorder interface {
	CacheLookup(hit bool)
}

// Client queries the search API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	cache    *Cache
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
	metrics  CacheRecorder
}

// New creates a search client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	name := cfg.BreakerName
	if name == "" {
		name = "web-search"
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		http:     httpClient,
		cache:    cfg.Cache,
		breaker:  breaker,
		logger:   logger,
		metrics:  cfg.CacheMetrics,
	}
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search returns up to count ranked snippets for query. A missing API key is
// reported as ErrMissingAPIKey without contacting the service.
func (c *Client) Search(ctx context.Context, query string, count int) ([]models.Snippet, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if count <= 0 {
		count = defaultResultCount
	}
	if count > maxResultCount {
		count = maxResultCount
	}

	cacheKey := fmt.Sprintf("%d|%s", count, normalize.Key(query))
	if c.cache != nil {
		cached, ok := c.cache.Get(cacheKey)
		if c.metrics != nil {
			c.metrics.CacheLookup(ok)
		}
		if ok {
			c.logger.Debug("search cache hit", zap.String("query", query))
			return cached, nil
		}
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, query, count)
	})
	if err != nil {
		return nil, err
	}
	snippets := out.([]models.Snippet)

	if c.cache != nil {
		if err := c.cache.Put(cacheKey, snippets); err != nil {
			c.logger.Debug("search cache write failed", zap.Error(err))
		}
	}
	return snippets, nil
}

func (c *Client) do(ctx context.Context, query string, count int) ([]models.Snippet, error) {
	body, err := json.Marshal(searchRequest{Query: query, Num: count})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search HTTP %d: %s", resp.StatusCode, preview(data))
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	snippets := make([]models.Snippet, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		if r.Link == "" {
			continue
		}
		snippets = append(snippets, models.Snippet{
			Title:   CleanText(r.Title),
			Link:    r.Link,
			Snippet: CleanText(r.Snippet),
		})
		if len(snippets) == count {
			break
		}
	}
	return snippets, nil
}

func preview(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}

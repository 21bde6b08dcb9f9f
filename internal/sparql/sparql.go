// Package sparql runs read-only queries against the Wikidata Query Service
// and flattens the JSON result bindings into rows of strings.
package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wikimovimentobrasil/wikimotivos/internal/cache"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
	"github.com/wikimovimentobrasil/wikimotivos/internal/util"
	"github.com/wikimovimentobrasil/wikimotivos/internal/wikibase"
)

// EntityPrefix is the concept URI prefix of Wikidata entities.
const EntityPrefix = "http://www.wikidata.org/entity/"

// Row maps a variable name to the value bound to it.
// Unbound variables are absent.
type Row map[string]string

// Client queries a SPARQL endpoint.
type Client struct {
	endpoint   string
	httpClient wikibase.Doer
	userAgent  string
	timeout    time.Duration
	maxBytes   int64
	limiter    wikibase.RateLimiter
	observer   wikibase.UpstreamObserver
	cache      cache.Cache
	ttl        time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter rate limits every query.
func WithLimiter(l wikibase.RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithObserver records every query.
func WithObserver(o wikibase.UpstreamObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithCache caches result rows per query text.
func WithCache(cc cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cc
		c.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, httpClient wikibase.Doer, cfg model.HTTPConfig, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		maxBytes:   cfg.MaxBodyBytes,
		cache:      cache.Nop{},
		logger:     slog.Default(),
	}
	if c.maxBytes <= 0 {
		c.maxBytes = 5_000_000
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type binding struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type response struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

// Query runs query and returns its rows.
func (c *Client) Query(ctx context.Context, query string) (rows []Row, err error) {
	key := cache.Key("sparql", query)
	if cache.GetJSON(c.cache, key, &rows) {
		return rows, nil
	}

	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream("sparql", "query", time.Since(start).Seconds(), err)
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.endpoint); err != nil {
			return nil, err
		}
	}

	form := url.Values{}
	form.Set("query", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparql query: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("sparql query: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sparql query: unexpected status %d: %s", resp.StatusCode, util.ErrorText(body, 300))
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("sparql query: decode response: %w", err)
	}

	rows = make([]Row, 0, len(decoded.Results.Bindings))
	for _, b := range decoded.Results.Bindings {
		row := make(Row, len(b))
		for name, v := range b {
			row[name] = v.Value
		}
		rows = append(rows, row)
	}

	if err := cache.SetJSON(c.cache, key, rows, c.ttl); err != nil {
		c.logger.Debug("sparql cache write failed", "error", err)
	}
	return rows, nil
}

// EntityID strips the concept URI prefix, turning
// "http://www.wikidata.org/entity/Q42" into "Q42". Other values are
// returned unchanged.
func EntityID(value string) string {
	return strings.TrimPrefix(value, EntityPrefix)
}

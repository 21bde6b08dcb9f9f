// Package wikibase talks to the MediaWiki/Wikibase action API: the signed
// write calls used to create and edit claims, and the read calls used to
// reconcile claim handles and to search for entities.
package wikibase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
	"github.com/wikimovimentobrasil/wikimotivos/internal/util"
)

// Doer executes HTTP requests. *http.Client and OAuth-signing clients satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimiter delays outbound calls per host.
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// UpstreamObserver records outbound call outcomes.
type UpstreamObserver interface {
	ObserveUpstream(service, action string, seconds float64, err error)
}

// EditToken is a CSRF token together with the signing client of the
// session it was issued to. Writes must be sent through that client.
type EditToken struct {
	Value  string
	Signer Doer
}

// APIError is an error reported in the body of an API response.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Info)
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("unexpected status: %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Client is a Wikibase API client.
type Client struct {
	apiURL     string
	httpClient Doer
	userAgent  string
	timeout    time.Duration
	maxBytes   int64
	limiter    RateLimiter
	observer   UpstreamObserver
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter rate limits every call.
func WithLimiter(l RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithObserver records every call.
func WithObserver(o UpstreamObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for apiURL. httpClient is used for unsigned reads.
func NewClient(apiURL string, httpClient Doer, cfg model.HTTPConfig, opts ...Option) *Client {
	c := &Client{
		apiURL:     apiURL,
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		maxBytes:   cfg.MaxBodyBytes,
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

// get performs an unsigned read.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	return c.call(ctx, c.httpClient, http.MethodGet, params, out)
}

// post performs a signed write.
func (c *Client) post(ctx context.Context, signer Doer, params url.Values, out any) error {
	if signer == nil {
		return fmt.Errorf("no signing client")
	}
	return c.call(ctx, signer, http.MethodPost, params, out)
}

// call sends one API request and decodes the JSON body into out.
// API-level errors in the body are returned as *APIError.
func (c *Client) call(ctx context.Context, doer Doer, method string, params url.Values, out any) (err error) {
	action := params.Get("action")
	if action == "" {
		action = "query"
	}
	params.Set("format", "json")

	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream("wikibase", action, time.Since(start).Seconds(), err)
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.apiURL); err != nil {
			return err
		}
	}

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL+"?"+params.Encode(), nil)
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Body: util.ErrorText(body, 300)}
	}

	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", action, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", action, err)
	}
	return nil
}

// upstreamMessage extracts the message to attach to a rejected write.
func upstreamMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Info
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return ""
}

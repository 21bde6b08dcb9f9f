// Package oauth implements the three-legged OAuth 1.0a login against the
// Wikimedia authorization server and derives the signing client, user name
// and edit token of a logged-in session.
package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/wikimovimentobrasil/wikimotivos/internal/apperr"
	"github.com/wikimovimentobrasil/wikimotivos/internal/cache"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
	"github.com/wikimovimentobrasil/wikimotivos/internal/wikibase"
)

// Session keys
const (
	KeyRequestToken  = "request_token"
	KeyRequestSecret = "request_secret"
	KeyOwnerKey      = "owner_key"
	KeyOwnerSecret   = "owner_secret"
	KeyAfterLogin    = "after_login"
)

// Session is the per-user store the credentials live in.
type Session interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// Identity resolves the user and edit token behind a signing client.
// *wikibase.Client implements it.
type Identity interface {
	UserName(ctx context.Context, signer wikibase.Doer) (string, error)
	CSRFToken(ctx context.Context, signer wikibase.Doer) (string, error)
}

// Client drives the login exchange and hands out per-session credentials.
type Client struct {
	config     *oauth1.Config
	consumer   string
	httpClient *http.Client
	identity   Identity
	limiter    wikibase.RateLimiter
	observer   wikibase.UpstreamObserver
	users      cache.Cache
	userTTL    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithUserCache caches resolved user names per access token.
func WithUserCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.users = c
		cl.userTTL = ttl
	}
}

// WithLimiter rate limits the token endpoint calls.
func WithLimiter(l wikibase.RateLimiter) Option {
	return func(cl *Client) { cl.limiter = l }
}

// WithObserver records token endpoint calls.
func WithObserver(o wikibase.UpstreamObserver) Option {
	return func(cl *Client) { cl.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient creates a login client for the consumer in cfg. httpClient is
// used for the token endpoints and as the transport of signing clients.
func NewClient(cfg model.OAuthConfig, httpClient *http.Client, identity Identity, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		config: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    "oob",
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: cfg.RequestTokenURL,
				AuthorizeURL:    cfg.AuthorizeURL,
				AccessTokenURL:  cfg.AccessTokenURL,
			},
			HTTPClient: httpClient,
		},
		consumer:   cfg.ConsumerKey,
		httpClient: httpClient,
		identity:   identity,
		users:      cache.Nop{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginLogin obtains a request token, stores it in the session together
// with returnPath and returns the URL the user must visit to authorize.
func (c *Client) BeginLogin(ctx context.Context, sess Session, returnPath string) (string, error) {
	const op = "oauth.begin_login"

	var token, secret string
	err := c.exchange(ctx, "request_token", c.config.Endpoint.RequestTokenURL, func() error {
		var err error
		token, secret, err = c.config.RequestToken()
		return err
	})
	if err != nil {
		return "", apperr.UpstreamAuth(op, err)
	}

	authURL, err := c.config.AuthorizationURL(token)
	if err != nil {
		return "", apperr.UpstreamAuth(op, err)
	}
	// MediaWiki needs the consumer key alongside the request token
	q := authURL.Query()
	q.Set("oauth_consumer_key", c.consumer)
	authURL.RawQuery = q.Encode()

	sess.Set(KeyRequestToken, token)
	sess.Set(KeyRequestSecret, secret)
	if returnPath != "" {
		sess.Set(KeyAfterLogin, returnPath)
	} else {
		sess.Delete(KeyAfterLogin)
	}
	return authURL.String(), nil
}

// CompleteLogin exchanges the pending request token and the verifier in
// the callback request for an access token, stores it in the session and
// returns the path saved by BeginLogin ("/" when none was saved).
func (c *Client) CompleteLogin(ctx context.Context, sess Session, req *http.Request) (string, error) {
	const op = "oauth.complete_login"

	reqToken, reqSecret := sess.Get(KeyRequestToken), sess.Get(KeyRequestSecret)
	if reqToken == "" || reqSecret == "" {
		return "", apperr.UpstreamAuth(op, apperr.ErrNoPendingLogin)
	}

	callbackToken, verifier, err := oauth1.ParseAuthorizationCallback(req)
	if err != nil {
		return "", apperr.UpstreamAuth(op, err)
	}
	if callbackToken != reqToken {
		return "", apperr.UpstreamAuth(op, fmt.Errorf("callback token does not match the pending request token"))
	}

	var accessToken, accessSecret string
	err = c.exchange(ctx, "access_token", c.config.Endpoint.AccessTokenURL, func() error {
		var err error
		accessToken, accessSecret, err = c.config.AccessToken(reqToken, reqSecret, verifier)
		return err
	})
	if err != nil {
		return "", apperr.UpstreamAuth(op, err)
	}

	sess.Delete(KeyRequestToken)
	sess.Delete(KeyRequestSecret)
	sess.Set(KeyOwnerKey, accessToken)
	sess.Set(KeyOwnerSecret, accessSecret)

	next := sess.Get(KeyAfterLogin)
	sess.Delete(KeyAfterLogin)
	return SafeRedirect(next), nil
}

// Logout forgets every credential held by the session.
func (c *Client) Logout(sess Session) {
	if key := sess.Get(KeyOwnerKey); key != "" {
		_ = c.users.Delete(userCacheKey(key))
	}
	for _, k := range []string{KeyRequestToken, KeyRequestSecret, KeyOwnerKey, KeyOwnerSecret, KeyAfterLogin} {
		sess.Delete(k)
	}
}

// LoggedIn reports whether the session holds an access token.
func LoggedIn(sess Session) bool {
	return sess.Get(KeyOwnerKey) != "" && sess.Get(KeyOwnerSecret) != ""
}

// Signer returns an HTTP client that signs requests with the session's
// access token.
func (c *Client) Signer(ctx context.Context, sess Session) (wikibase.Doer, error) {
	if !LoggedIn(sess) {
		return nil, apperr.ErrNotLoggedIn
	}
	ctx = context.WithValue(ctx, oauth1.HTTPClient, c.httpClient)
	return c.config.Client(ctx, oauth1.NewToken(sess.Get(KeyOwnerKey), sess.Get(KeyOwnerSecret))), nil
}

// CurrentUser returns the name of the logged-in user, or "" for anonymous
// sessions and failed lookups.
func (c *Client) CurrentUser(ctx context.Context, sess Session) string {
	signer, err := c.Signer(ctx, sess)
	if err != nil {
		return ""
	}

	key := userCacheKey(sess.Get(KeyOwnerKey))
	if name, ok := c.users.Get(key); ok {
		return string(name)
	}

	name, err := c.identity.UserName(ctx, signer)
	if err != nil {
		c.logger.Warn("user lookup failed", "error", err)
		return ""
	}
	if name != "" {
		if err := c.users.Set(key, []byte(name), c.userTTL); err != nil {
			c.logger.Debug("user cache write failed", "error", err)
		}
	}
	return name
}

// CurrentToken fetches a fresh edit token for the session.
func (c *Client) CurrentToken(ctx context.Context, sess Session) (wikibase.EditToken, error) {
	const op = "oauth.current_token"

	signer, err := c.Signer(ctx, sess)
	if err != nil {
		return wikibase.EditToken{}, apperr.UpstreamAuth(op, err)
	}
	token, err := c.identity.CSRFToken(ctx, signer)
	if err != nil {
		return wikibase.EditToken{}, apperr.UpstreamAuth(op, err)
	}
	return wikibase.EditToken{Value: token, Signer: signer}, nil
}

// exchange runs one token endpoint call with rate limiting and metrics.
// The oauth1 calls take no context, so cancellation is checked up front
// and the deadline comes from the HTTP client's timeout.
func (c *Client) exchange(ctx context.Context, action, endpoint string, call func() error) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream("oauth", action, time.Since(start).Seconds(), err)
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return call()
}

// SafeRedirect keeps local absolute paths and maps everything else to "/".
func SafeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func userCacheKey(accessToken string) string {
	return cache.Key("user", accessToken)
}

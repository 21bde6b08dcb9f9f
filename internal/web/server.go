// Package web exposes the submission, search, login and read-only page
// endpoints over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/wikimovimentobrasil/wikimotivos/internal/catalog"
	"github.com/wikimovimentobrasil/wikimotivos/internal/metric"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
	"github.com/wikimovimentobrasil/wikimotivos/internal/oauth"
	"github.com/wikimovimentobrasil/wikimotivos/internal/submit"
)

// Authenticator runs the login exchange and identifies sessions.
type Authenticator interface {
	BeginLogin(ctx context.Context, sess oauth.Session, returnPath string) (string, error)
	CompleteLogin(ctx context.Context, sess oauth.Session, req *http.Request) (string, error)
	CurrentUser(ctx context.Context, sess oauth.Session) string
	Logout(sess oauth.Session)
}

// Submitter applies statement submissions.
type Submitter interface {
	Submit(ctx context.Context, sess oauth.Session, sub model.Submission) (submit.Outcome, error)
}

// Searcher answers candidate searches.
type Searcher interface {
	Search(ctx context.Context, term, category, lang string) []model.SearchResult
}

// Browser answers the read-only page queries.
type Browser interface {
	Collection(ctx context.Context, name, lang string) (catalog.Collection, error)
	Item(ctx context.Context, qid, lang string) (catalog.Item, error)
	WorkCount(ctx context.Context) (int, error)
}

// Deps are the components the server dispatches to.
type Deps struct {
	Auth    Authenticator
	Submit  Submitter
	Search  Searcher
	Browser Browser
	Store   sessions.Store
	Metrics *metric.Metrics
	Logger  *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	auth        Authenticator
	submitter   Submitter
	searcher    Searcher
	browser     Browser
	store       sessions.Store
	cookieName  string
	defaultLang string
	maxBody     int64
	metrics     *metric.Metrics
	logger      *slog.Logger
}

// NewServer creates a server for cfg.
func NewServer(cfg model.ServerConfig, deps Deps) *Server {
	s := &Server{
		auth:        deps.Auth,
		submitter:   deps.Submit,
		searcher:    deps.Search,
		browser:     deps.Browser,
		store:       deps.Store,
		cookieName:  cfg.CookieName,
		defaultLang: cfg.DefaultLang,
		maxBody:     1 << 20,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
	if s.cookieName == "" {
		s.cookieName = "session"
	}
	if s.defaultLang == "" {
		s.defaultLang = "pt"
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.HandleFunc("/add_stat", s.handleAddStatement)
		r.HandleFunc("/search", s.handleSearch)

		r.Get("/login", s.handleLogin)
		r.Get("/oauth-callback", s.handleOAuthCallback)
		r.Post("/logout", s.handleLogout)
		r.Get("/set_locale", s.handleSetLocale)

		r.Route("/api", func(r chi.Router) {
			r.Get("/user", s.handleUser)
			r.Get("/colecao/{type}", s.handleCollection)
			r.Get("/item/{qid}", s.handleItem)
			r.Get("/sobre", s.handleAbout)
		})
	})

	return r
}

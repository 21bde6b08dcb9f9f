// Package search looks up candidate motif entities in Portuguese and
// English, keeps those that belong to the requested vocabulary and labels
// them in the reader's language.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/wikimovimentobrasil/wikimotivos/internal/cache"
	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
	"github.com/wikimovimentobrasil/wikimotivos/internal/wikibase"
	"github.com/wikimovimentobrasil/wikimotivos/internal/worker"
)

// Languages searched, in merge order.
var searchLanguages = []string{"pt", "en"}

// Languages fetched for every candidate.
var labelLanguages = []string{"pt", "pt-br", "en"}

// EntityAPI is the read side of the knowledge base used by search.
type EntityAPI interface {
	SearchEntities(ctx context.Context, term, lang string, limit int) ([]wikibase.SearchHit, error)
	GetEntities(ctx context.Context, ids, languages []string) (map[string]wikibase.Entity, error)
}

// Observer records result sizes.
type Observer interface {
	ObserveSearch(n int)
}

// Service answers search requests.
type Service struct {
	api        EntityAPI
	categories map[string]model.CategoryFilter
	limit      int
	cache      cache.Cache
	ttl        time.Duration
	observer   Observer
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches projected results for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithObserver records result sizes.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a search service with the categories in cfg.
func NewService(api EntityAPI, cfg model.SearchConfig, opts ...Option) *Service {
	s := &Service{
		api:        api,
		categories: cfg.Categories,
		limit:      cfg.Limit,
		cache:      cache.Nop{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns the candidates for term in category, labelled for lang.
// An empty category or "all" accepts every candidate; an unknown category
// matches nothing. Failures are logged and yield an empty list.
func (s *Service) Search(ctx context.Context, term, category, lang string) []model.SearchResult {
	term = strings.TrimSpace(term)
	results := []model.SearchResult{}
	if term == "" {
		return results
	}

	filter, ok := s.filter(category)
	if !ok {
		s.logger.Debug("unknown search category", "category", category)
		return results
	}

	key := cache.Key("search", term, category, lang)
	if cache.GetJSON(s.cache, key, &results) {
		return results
	}

	candidates, err := s.candidates(ctx, term)
	if err != nil {
		s.logger.Warn("search failed", "term", term, "error", err)
		return []model.SearchResult{}
	}

	for _, c := range candidates {
		if !matches(c, filter) {
			continue
		}
		results = append(results, c.Project(lang))
	}

	if s.observer != nil {
		s.observer.ObserveSearch(len(results))
	}
	if err := cache.SetJSON(s.cache, key, results, s.ttl); err != nil {
		s.logger.Debug("search cache write failed", "error", err)
	}
	return results
}

func (s *Service) filter(category string) (model.CategoryFilter, bool) {
	if category == "" {
		return model.CategoryFilter{}, true
	}
	f, ok := s.categories[category]
	if !ok && category == "all" {
		return model.CategoryFilter{}, true
	}
	return f, ok
}

// lookupJob runs one language-specific entity search.
type lookupJob struct {
	api   EntityAPI
	term  string
	lang  string
	limit int
}

type lookupResult struct {
	lang string
	hits []wikibase.SearchHit
	err  error
}

func (r lookupResult) GetError() error { return r.err }

func (j lookupJob) Execute(ctx context.Context) worker.Result {
	hits, err := j.api.SearchEntities(ctx, j.term, j.lang, j.limit)
	return lookupResult{lang: j.lang, hits: hits, err: err}
}

// candidates runs the lookups in parallel and merges them by id. A
// language whose lookup failed is left out unless every lookup failed.
func (s *Service) candidates(ctx context.Context, term string) ([]model.Candidate, error) {
	jobs := make([]worker.Job, 0, len(searchLanguages))
	for _, lang := range searchLanguages {
		jobs = append(jobs, lookupJob{api: s.api, term: term, lang: lang, limit: s.limit})
	}

	var (
		order    []string
		seen     = map[string]bool{}
		fallback = map[string]*model.Candidate{}
		firstErr error
		failed   int
	)
	for _, r := range worker.RunAll(ctx, len(jobs), jobs...) {
		if r == nil {
			failed++
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			continue
		}
		res := r.(lookupResult)
		if res.err != nil {
			failed++
			if firstErr == nil {
				firstErr = res.err
			}
			s.logger.Warn("search lookup failed", "lang", res.lang, "error", res.err)
			continue
		}
		for _, hit := range res.hits {
			c, ok := fallback[hit.ID]
			if !ok {
				c = &model.Candidate{ID: hit.ID}
				fallback[hit.ID] = c
			}
			if !seen[hit.ID] {
				seen[hit.ID] = true
				order = append(order, hit.ID)
			}
			switch res.lang {
			case "pt":
				c.LabelPT, c.DescriptionPT = hit.Label, hit.Description
			case "en":
				c.LabelEN, c.DescriptionEN = hit.Label, hit.Description
			}
		}
	}
	if failed == len(jobs) {
		return nil, firstErr
	}
	if len(order) == 0 {
		return nil, nil
	}

	entities, err := s.api.GetEntities(ctx, order, labelLanguages)
	if err != nil {
		return nil, err
	}

	out := make([]model.Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, merge(*fallback[id], entities[id]))
	}
	return out, nil
}

// merge fills c from the entity record, keeping the search hit text where
// the entity has none.
func merge(c model.Candidate, e wikibase.Entity) model.Candidate {
	pick := func(m map[string]string, lang, current string) string {
		if v := m[lang]; v != "" {
			return v
		}
		return current
	}
	c.LabelPT = pick(e.Labels, "pt", c.LabelPT)
	c.LabelPTBR = pick(e.Labels, "pt-br", c.LabelPTBR)
	c.LabelEN = pick(e.Labels, "en", c.LabelEN)
	c.DescriptionPT = pick(e.Descriptions, "pt", c.DescriptionPT)
	c.DescriptionPTBR = pick(e.Descriptions, "pt-br", c.DescriptionPTBR)
	c.DescriptionEN = pick(e.Descriptions, "en", c.DescriptionEN)

	c.Properties = make(map[string]bool, len(e.Claims))
	for p := range e.Claims {
		c.Properties[p] = true
	}
	c.Classes = map[string]bool{}
	for _, q := range e.InstanceOf() {
		c.Classes[q] = true
	}
	return c
}

// matches reports whether c carries any of the filter's properties or is
// an instance of any of its classes.
func matches(c model.Candidate, f model.CategoryFilter) bool {
	if f.IsOpen() {
		return true
	}
	for _, p := range f.Properties {
		if c.Properties[p] {
			return true
		}
	}
	for _, q := range f.Classes {
		if c.Classes[q] {
			return true
		}
	}
	return false
}

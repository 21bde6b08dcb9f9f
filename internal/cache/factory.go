package cache

import (
	"time"

	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// Set groups the caches the service uses.
type Set struct {
	// Memory holds short-lived values: search results and usernames
	Memory Cache
	// Queries holds SPARQL rows, kept on disk across restarts
	Queries Cache
}

// NewSet builds the caches described by cfg. A disabled cache yields no-op caches.
func NewSet(cfg model.CacheConfig) Set {
	if !cfg.Enabled {
		return Set{Memory: Nop{}, Queries: Nop{}}
	}
	return Set{
		Memory:  NewMemoryCache(cfg.MemoryTTL, 10*time.Minute),
		Queries: NewLayeredCache(cfg.MemoryTTL, cfg.DiskDir, cfg.DiskTTL),
	}
}

// Prune removes the expired entries of the persistent query cache.
func (s Set) Prune() (int, error) {
	if p, ok := s.Queries.(interface{ Prune() (int, error) }); ok {
		return p.Prune()
	}
	return 0, nil
}

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/wikimovimentobrasil/wikimotivos/internal/model"
)

// ready reports whether a token for rawURL is available without a real wait.
func ready(l *Limiter, rawURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, rawURL) == nil
}

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://www.wikidata.org/w/api.php"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	if err := limiter.Wait(ctx, "https://query.wikidata.org/sparql"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_NilNeverWaits(t *testing.T) {
	var limiter *Limiter
	if err := limiter.Wait(context.Background(), "https://www.wikidata.org"); err != nil {
		t.Errorf("nil limiter should not fail: %v", err)
	}
}

func TestLimiter_ZeroRateIsUnlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 20; i++ {
		if !ready(limiter, "https://www.wikidata.org") {
			t.Fatalf("request %d held back by unlimited limiter", i)
		}
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	url := "https://www.wikidata.org/w/api.php"

	if err := limiter.Wait(context.Background(), url); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// burst 1 is consumed
	if ready(limiter, url) {
		t.Errorf("expected second request to be held back")
	}

	if !ready(limiter, "https://query.wikidata.org/sparql") {
		t.Errorf("expected other host to pass")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	url := "https://www.wikidata.org/w/api.php"
	_ = limiter.Wait(context.Background(), url)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, url); err == nil {
		t.Error("expected wait to fail once the context deadline is shorter than the next token")
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10)

	if err := limiter.SetHostRate("https://query.wikidata.org/sparql", 0.1, 1); err != nil {
		t.Fatalf("set host rate: %v", err)
	}

	if !ready(limiter, "https://query.wikidata.org/sparql?query=x") {
		t.Errorf("first request should pass")
	}
	if ready(limiter, "https://query.wikidata.org/sparql?query=y") {
		t.Errorf("second request should be held back")
	}
	if !ready(limiter, "https://www.wikidata.org/w/api.php") {
		t.Errorf("other host should pass")
	}

	if err := limiter.SetHostRate("not a url", 1, 1); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestNewLimiterFromConfig(t *testing.T) {
	cfg := model.DefaultConfig().RateLimiting
	if len(cfg.Hosts) == 0 {
		t.Fatal("expected a default SPARQL override")
	}
	cfg.Hosts = []model.HostRate{{URL: "https://query.wikidata.org/sparql", RequestsPerSecond: 0.1, BurstSize: 1}}

	limiter, err := NewLimiterFromConfig(cfg)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if !ready(limiter, "https://query.wikidata.org/sparql") {
		t.Errorf("first SPARQL request should pass")
	}
	if ready(limiter, "https://query.wikidata.org/sparql") {
		t.Errorf("SPARQL override should hold back the second request")
	}
	for i := 0; i < 5; i++ {
		if !ready(limiter, "https://www.wikidata.org/w/api.php") {
			t.Fatalf("API request %d should use the default burst", i)
		}
	}

	cfg.Hosts = []model.HostRate{{URL: "://bad", RequestsPerSecond: 1}}
	if _, err := NewLimiterFromConfig(cfg); err == nil {
		t.Error("expected error for invalid host URL")
	}
}

package model

import (
	"fmt"
	"time"
)

// Config is the complete, immutable service configuration.
// It is built once at startup and handed to every component.
type Config struct {
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Wikidata     WikidataConfig     `yaml:"wikidata" mapstructure:"wikidata"`
	OAuth        OAuthConfig        `yaml:"oauth" mapstructure:"oauth"`
	Ledger       LedgerConfig       `yaml:"ledger" mapstructure:"ledger"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Catalog      CatalogConfig      `yaml:"catalog" mapstructure:"catalog"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the inbound HTTP listener and the session cookie.
type ServerConfig struct {
	Addr          string        `yaml:"addr" mapstructure:"addr"`
	SessionSecret string        `yaml:"session_secret" mapstructure:"session_secret"`
	CookieName    string        `yaml:"cookie_name" mapstructure:"cookie_name"`
	SecureCookie  bool          `yaml:"secure_cookie" mapstructure:"secure_cookie"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	DefaultLang   string        `yaml:"default_lang" mapstructure:"default_lang"`
}

// HTTPConfig applies to every outbound call (authorization server, read API, write API, SPARQL).
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// WikidataConfig names the knowledge-base endpoints and the fixed entities this tool writes.
type WikidataConfig struct {
	APIURL             string `yaml:"api_url" mapstructure:"api_url"`
	SPARQLURL          string `yaml:"sparql_url" mapstructure:"sparql_url"`
	CommonsAPIURL      string `yaml:"commons_api_url" mapstructure:"commons_api_url"`
	DepictsProperty    string `yaml:"depicts_property" mapstructure:"depicts_property"`
	ProvenanceProperty string `yaml:"provenance_property" mapstructure:"provenance_property"`
	ProvenanceEntity   string `yaml:"provenance_entity" mapstructure:"provenance_entity"`
}

// OAuthConfig holds the consumer credentials and the three-legged endpoints.
type OAuthConfig struct {
	ConsumerKey     string `yaml:"consumer_key" mapstructure:"consumer_key"`
	ConsumerSecret  string `yaml:"consumer_secret" mapstructure:"consumer_secret"`
	RequestTokenURL string `yaml:"request_token_url" mapstructure:"request_token_url"`
	AuthorizeURL    string `yaml:"authorize_url" mapstructure:"authorize_url"`
	AccessTokenURL  string `yaml:"access_token_url" mapstructure:"access_token_url"`
}

// LedgerConfig selects where vote logs are persisted.
type LedgerConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // json or sqlite
	Dir         string `yaml:"dir" mapstructure:"dir"`
	NoMotifFile string `yaml:"no_motif_file" mapstructure:"no_motif_file"`
	UnknownFile string `yaml:"unknown_motif_file" mapstructure:"unknown_motif_file"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// CacheConfig controls read caching of search results, usernames and SPARQL rows.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	DiskDir   string        `yaml:"disk_dir" mapstructure:"disk_dir"`
	UserTTL   time.Duration `yaml:"user_ttl" mapstructure:"user_ttl"`
}

// RateLimitingConfig bounds the request rate per upstream host.
// Hosts override the default rate for the host of each URL.
type RateLimitingConfig struct {
	RequestsPerSecond float64    `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int        `yaml:"burst_size" mapstructure:"burst_size"`
	Hosts             []HostRate `yaml:"hosts,omitempty" mapstructure:"hosts"`
}

// HostRate is the rate limit of one upstream endpoint.
type HostRate struct {
	URL               string  `yaml:"url" mapstructure:"url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// SearchConfig defines the search result size and the category filters.
type SearchConfig struct {
	Limit      int                       `yaml:"limit" mapstructure:"limit"`
	Categories map[string]CategoryFilter `yaml:"categories" mapstructure:"categories"`
}

// CategoryFilter describes membership in a vocabulary.
// A candidate matches when it carries any of the thesaurus properties
// or is an instance of any of the classes.
type CategoryFilter struct {
	Properties []string `yaml:"properties,omitempty" mapstructure:"properties"`
	Classes    []string `yaml:"classes,omitempty" mapstructure:"classes"`
}

// IsOpen reports whether the filter accepts every candidate.
func (f CategoryFilter) IsOpen() bool {
	return len(f.Properties) == 0 && len(f.Classes) == 0
}

// CatalogConfig points at the collection-query catalog.
// MaxCategoryImages caps the category files listed on an item page; zero disables the lookup.
type CatalogConfig struct {
	Path              string `yaml:"path" mapstructure:"path"`
	MaxCategoryImages int    `yaml:"max_category_images" mapstructure:"max_category_images"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or text
}

// Ledger backends
const (
	LedgerBackendJSON   = "json"
	LedgerBackendSQLite = "sqlite"
)

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			CookieName:   "session",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			DefaultLang:  "pt",
		},
		HTTP: HTTPConfig{
			Timeout:      20 * time.Second,
			UserAgent:    "Wikimotivos/1.0 (https://github.com/WikiMovimentoBrasil/wikimotivos)",
			MaxBodyBytes: 5_000_000,
		},
		Wikidata: WikidataConfig{
			APIURL:             "https://www.wikidata.org/w/api.php",
			SPARQLURL:          "https://query.wikidata.org/sparql",
			CommonsAPIURL:      "https://commons.wikimedia.org/w/api.php",
			DepictsProperty:    "P180",
			ProvenanceProperty: "P3831",
			ProvenanceEntity:   "Q1229071",
		},
		OAuth: OAuthConfig{
			RequestTokenURL: "https://www.wikidata.org/w/index.php?title=Special%3aOAuth%2finitiate",
			AuthorizeURL:    "https://www.wikidata.org/wiki/Special:OAuth/authorize",
			AccessTokenURL:  "https://www.wikidata.org/w/index.php?title=Special%3aOAuth%2ftoken",
		},
		Ledger: LedgerConfig{
			Backend:     LedgerBackendJSON,
			Dir:         "./static",
			NoMotifFile: "nomotifs.json",
			UnknownFile: "unknownmotifs.json",
			SQLitePath:  "./data/ledger.db",
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
			DiskDir:   ".wikimotivos-cache",
			UserTTL:   5 * time.Minute,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         10,
			Hosts: []HostRate{
				{URL: "https://query.wikidata.org/sparql", RequestsPerSecond: 1, BurstSize: 5},
			},
		},
		Search: SearchConfig{
			Limit: 20,
			Categories: map[string]CategoryFilter{
				"all": {},
				// Iconclass, Getty AAT and YSO identifiers
				"motifs": {Properties: []string{"P1256", "P1014", "P2347"}},
			},
		},
		Catalog: CatalogConfig{
			Path:              "./static/queries.json",
			MaxCategoryImages: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the settings required to serve requests.
func (c *Config) Validate() error {
	if c.OAuth.ConsumerKey == "" || c.OAuth.ConsumerSecret == "" {
		return fmt.Errorf("oauth consumer key and secret are required")
	}
	if len(c.Server.SessionSecret) < 32 {
		return fmt.Errorf("server.session_secret must be at least 32 bytes")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	switch c.Ledger.Backend {
	case LedgerBackendJSON, LedgerBackendSQLite:
	default:
		return fmt.Errorf("unknown ledger backend: %s (supported: json, sqlite)", c.Ledger.Backend)
	}
	if c.Wikidata.APIURL == "" {
		return fmt.Errorf("wikidata.api_url is required")
	}
	return nil
}

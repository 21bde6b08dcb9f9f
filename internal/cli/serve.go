package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wikimovimentobrasil/wikimotivos/internal/cache"
	"github.com/wikimovimentobrasil/wikimotivos/internal/catalog"
	"github.com/wikimovimentobrasil/wikimotivos/internal/ledger"
	"github.com/wikimovimentobrasil/wikimotivos/internal/metric"
	"github.com/wikimovimentobrasil/wikimotivos/internal/oauth"
	"github.com/wikimovimentobrasil/wikimotivos/internal/search"
	"github.com/wikimovimentobrasil/wikimotivos/internal/sparql"
	"github.com/wikimovimentobrasil/wikimotivos/internal/submit"
	"github.com/wikimovimentobrasil/wikimotivos/internal/util"
	"github.com/wikimovimentobrasil/wikimotivos/internal/web"
	"github.com/wikimovimentobrasil/wikimotivos/internal/wikibase"
	"github.com/wikimovimentobrasil/wikimotivos/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web service",
	Long: `Serve the submission, search, login and collection endpoints.

Example:
  WIKIMOTIVOS_OAUTH_CONSUMER_KEY=... \
  WIKIMOTIVOS_OAUTH_CONSUMER_SECRET=... \
  WIKIMOTIVOS_SERVER_SESSION_SECRET=... \
  wikimotivos serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	serveCmd.Flags().String("ledger-backend", "", "vote ledger backend: json or sqlite")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("log.level", serveCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("ledger.backend", serveCmd.Flags().Lookup("ledger-backend"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	metrics := metric.New()
	httpClient := util.NewHTTPClient(cfg.HTTP)
	limiter, err := worker.NewLimiterFromConfig(cfg.RateLimiting)
	if err != nil {
		return err
	}
	caches := cache.NewSet(cfg.Cache)
	if n, err := caches.Prune(); err != nil {
		logger.Warn("prune query cache", "error", err)
	} else if n > 0 {
		logger.Info("pruned query cache", "entries", n)
	}

	api := wikibase.NewClient(cfg.Wikidata.APIURL, httpClient, cfg.HTTP,
		wikibase.WithLimiter(limiter),
		wikibase.WithObserver(metrics),
		wikibase.WithLogger(logger.With("component", "wikibase")),
	)

	auth := oauth.NewClient(cfg.OAuth, httpClient, api,
		oauth.WithUserCache(caches.Memory, cfg.Cache.UserTTL),
		oauth.WithLimiter(limiter),
		oauth.WithObserver(metrics),
		oauth.WithLogger(logger.With("component", "oauth")),
	)

	store, err := ledger.Open(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	votes := ledger.New(store, metrics, logger.With("component", "ledger"))
	defer func() {
		if err := votes.Close(); err != nil {
			logger.Warn("close ledger", "error", err)
		}
	}()

	submitter := submit.NewService(auth, api, votes, cfg.Wikidata,
		submit.WithObserver(metrics),
		submit.WithLogger(logger.With("component", "submit")),
	)

	searcher := search.NewService(api, cfg.Search,
		search.WithCache(caches.Memory, cfg.Cache.MemoryTTL),
		search.WithObserver(metrics),
		search.WithLogger(logger.With("component", "search")),
	)

	queries := sparql.NewClient(cfg.Wikidata.SPARQLURL, httpClient, cfg.HTTP,
		sparql.WithLimiter(limiter),
		sparql.WithObserver(metrics),
		sparql.WithCache(caches.Queries, cfg.Cache.DiskTTL),
		sparql.WithLogger(logger.With("component", "sparql")),
	)
	queryCatalog, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	browserOpts := []catalog.Option{catalog.WithLogger(logger.With("component", "catalog"))}
	if cfg.Wikidata.CommonsAPIURL != "" && cfg.Catalog.MaxCategoryImages > 0 {
		commons := wikibase.NewClient(cfg.Wikidata.CommonsAPIURL, httpClient, cfg.HTTP,
			wikibase.WithLimiter(limiter),
			wikibase.WithObserver(metrics),
			wikibase.WithLogger(logger.With("component", "commons")),
		)
		browserOpts = append(browserOpts, catalog.WithGallery(commons, cfg.Catalog.MaxCategoryImages))
	}

	server := web.NewServer(cfg.Server, web.Deps{
		Auth:    auth,
		Submit:  submitter,
		Search:  searcher,
		Browser: catalog.NewBrowser(queryCatalog, queries, browserOpts...),
		Store:   web.NewSessionStore(cfg.Server),
		Metrics: metrics,
		Logger:  logger.With("component", "web"),
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "ledger", cfg.Ledger.Backend,
			"collections", len(queryCatalog.Collections()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

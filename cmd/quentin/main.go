// Command quentin runs the media acquisition orchestrator daemon: it
// wires the config, telemetry, store, catalog, searcher, torrent client,
// text brain, pipeline, broadcaster and orchestrator packages together
// and serves the REST/WebSocket API described in SPEC_FULL.md §6.
//
// Grounded on the teacher's cmd/torrent-engine/main.go: configuration
// load → slog setup → prometheus registration → telemetry init → Mongo
// connect+ping → repositories → engine/service construction → HTTP
// server → signal.NotifyContext-driven graceful shutdown is kept; the
// torrent-engine-specific restore/session wiring is replaced with the
// ticket/orchestrator/pipeline wiring this daemon needs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	apihttp "github.com/lelloman/quentin-torrentino-sub000/internal/api/http"
	"github.com/lelloman/quentin-torrentino-sub000/internal/broadcast"
	"github.com/lelloman/quentin-torrentino-sub000/internal/catalog"
	"github.com/lelloman/quentin-torrentino-sub000/internal/config"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/domain/ports"
	"github.com/lelloman/quentin-torrentino-sub000/internal/metrics"
	"github.com/lelloman/quentin-torrentino-sub000/internal/orchestrator"
	"github.com/lelloman/quentin-torrentino-sub000/internal/pipeline"
	"github.com/lelloman/quentin-torrentino-sub000/internal/pipeline/converter"
	"github.com/lelloman/quentin-torrentino-sub000/internal/pipeline/placer"
	"github.com/lelloman/quentin-torrentino-sub000/internal/searcher/torznab"
	"github.com/lelloman/quentin-torrentino-sub000/internal/notifier"
	mongostore "github.com/lelloman/quentin-torrentino-sub000/internal/store/mongo"
	"github.com/lelloman/quentin-torrentino-sub000/internal/telemetry"
	"github.com/lelloman/quentin-torrentino-sub000/internal/textbrain"
	"github.com/lelloman/quentin-torrentino-sub000/internal/torrentclient/anacrolix"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "quentin")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "quentin"),
		slog.String("serverAddr", cfg.Server.Host),
		slog.Int("serverPort", cfg.Server.Port),
		slog.String("authMethod", cfg.Auth.Method),
		slog.String("searcherBackend", cfg.Searcher.Backend),
		slog.Int("indexerCount", len(cfg.Searcher.Indexers)),
		slog.String("torrentClientBackend", cfg.TorrentClient.Backend),
		slog.String("textBrainMode", cfg.TextBrain.Mode),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	mongoOpts := otelmongo.NewMonitor()
	mongoClient, err := mongostore.Connect(ctx, cfg.Database.URI, options.Client().SetMonitor(mongoOpts))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tickets := mongostore.NewTicketStore(mongoClient, cfg.Database.Path, "tickets")
	catalogStore := mongostore.NewCatalogStore(mongoClient, cfg.Database.Path, "catalog")
	audit := mongostore.NewAuditSink(mongoClient, cfg.Database.Path, logger)

	if err := tickets.EnsureIndexes(ctx); err != nil {
		logger.Warn("ticket index setup failed", slog.String("error", err.Error()))
	}
	if err := catalogStore.EnsureIndexes(ctx); err != nil {
		logger.Warn("catalog index setup failed", slog.String("error", err.Error()))
	}
	if err := audit.EnsureIndexes(ctx); err != nil {
		logger.Warn("audit index setup failed", slog.String("error", err.Error()))
	}

	var redisClient *redis.Client
	if cfg.CatalogCache.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.CatalogCache.RedisAddr})
	}
	cachedCatalog := catalog.New(catalogStore, redisClient, catalog.Config{
		CacheTTL:        cfg.CatalogCache.CacheTTL,
		StaleTTL:        cfg.CatalogCache.StaleTTL,
		CacheMaxEntries: cfg.CatalogCache.CacheMaxEntries,
	})

	searcherSvc, err := buildSearcher(cfg.Searcher)
	if err != nil {
		logger.Error("searcher init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	torrentClient, err := anacrolix.New(anacrolix.Config{
		DataDir:         cfg.TorrentClient.DownloadPath,
		EnableDHT:       cfg.TorrentClient.EnableDHT,
		ListenPort:      cfg.TorrentClient.ListenPort,
		PersistencePath: cfg.TorrentClient.PersistencePath,
	})
	if err != nil {
		logger.Error("torrent client init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	brain := buildTextBrain(cfg.TextBrain)

	pipelineProc := pipeline.New(tickets, audit, converter.New(), placer.New(), pipeline.Config{}, logger)
	pipelineProc.SetMediaNotifier(notifier.New(logger), domain.MediaServerConfig{
		Enabled: cfg.MediaServer.Enabled,
		URL:     cfg.MediaServer.URL,
		APIKey:  cfg.MediaServer.APIKey,
	})
	if err := pipelineProc.Start(rootCtx); err != nil {
		logger.Error("pipeline start failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hub := broadcast.New(logger)

	acquisitionSearcher := &catalogingSearcher{underlying: searcherSvc, catalog: cachedCatalog, log: logger}

	orch := orchestrator.New(tickets, torrentClient, pipelineProc, audit, hub, brain, acquisitionSearcher, orchestrator.Config{
		AcquisitionPollInterval: cfg.Orchestrator.AcquisitionPollInterval,
		DownloadPollInterval:    cfg.Orchestrator.DownloadPollInterval,
		AutoApproveThreshold:    cfg.Orchestrator.AutoApproveThreshold,
		MaxConcurrentDownloads:  cfg.Orchestrator.MaxConcurrentDownloads,
		MaxFailoverCandidates:   cfg.Orchestrator.MaxFailoverCandidates,
		StallTimeoutRound1:      cfg.Orchestrator.StallTimeoutRound1,
		StallTimeoutRound2:      cfg.Orchestrator.StallTimeoutRound2,
		StallTimeoutRound3:      cfg.Orchestrator.StallTimeoutRound3,
	}, logger)
	if cfg.Orchestrator.Enabled {
		if err := orch.Start(rootCtx); err != nil {
			logger.Error("orchestrator start failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Info("orchestrator disabled by configuration")
	}

	apiServer := apihttp.NewServer(tickets,
		apihttp.WithLogger(logger),
		apihttp.WithAudit(audit),
		apihttp.WithBroadcaster(hub),
		apihttp.WithAuth(apihttp.AuthConfig{Method: cfg.Auth.Method, APIKey: cfg.Auth.APIKey}),
		apihttp.WithCORSAllowedOrigins(cfg.Server.CORSAllowedOrigins),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           apiServer,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", srv.Addr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if err := orch.Stop(shutdownCtx); err != nil {
		logger.Warn("orchestrator stop error", slog.String("error", err.Error()))
	}
	if err := pipelineProc.Stop(shutdownCtx); err != nil {
		logger.Warn("pipeline stop error", slog.String("error", err.Error()))
	}
	hub.Close()
	audit.Close()
	if err := torrentClient.Close(); err != nil {
		logger.Warn("torrent client close error", slog.String("error", err.Error()))
	}
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// buildSearcher constructs a torznab.Searcher from the configured
// indexer list, §11 DOMAIN STACK.
func buildSearcher(cfg config.SearcherConfig) (*torznab.Searcher, error) {
	providers := make([]*torznab.Provider, 0, len(cfg.Indexers))
	for _, idx := range cfg.Indexers {
		providers = append(providers, torznab.NewProvider(torznab.IndexerConfig{
			Name:              idx.Name,
			Endpoint:          idx.Endpoint,
			APIKey:            idx.APIKey,
			RequestsPerMinute: idx.RequestsPerMinute,
		}))
	}
	return torznab.New(providers...), nil
}

// catalogingSearcher decorates a ports.Searcher so every search result
// also feeds the catalog, keeping it observation-monotonic (§4.2,
// §8 invariant 4) without requiring the orchestrator to know about
// ports.Catalog. The catalog write is best-effort: a failure is logged,
// never surfaced to the acquisition loop.
type catalogingSearcher struct {
	underlying ports.Searcher
	catalog    ports.Catalog
	log        *slog.Logger
}

func (c *catalogingSearcher) Search(ctx context.Context, query string, limit int) ([]domain.TorrentCandidate, error) {
	candidates, err := c.underlying.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if _, storeErr := c.catalog.Store(ctx, candidates); storeErr != nil {
		c.log.Warn("catalog store failed", slog.String("query", query), slog.String("error", storeErr.Error()))
	}
	return candidates, nil
}

// buildTextBrain wires the heuristic query builder/matcher always, and
// the LLM-backed pair only when an LLMClient implementation is
// available. LLM provider SDKs are out of scope (§1), so llmBuilder/
// llmMatcher stay nil regardless of cfg.LLM: Coordinator already
// degrades DumbOnly/DumbFirst gracefully, falls back to the heuristic
// pair for LlmFirst, and returns ErrLLMUnconfigured for LlmOnly, per
// textbrain's own doc comment.
func buildTextBrain(cfg config.TextBrainConfig) *textbrain.Coordinator {
	heuristicBuilder := textbrain.NewHeuristicQueryBuilder(cfg.MaxQueries)
	heuristicMatcher := textbrain.NewHeuristicMatcher()
	return textbrain.New(textbrain.Config{
		Mode:                 textbrain.Mode(cfg.Mode),
		ConfidenceThreshold:  cfg.ConfidenceThreshold,
		MaxQueries:           cfg.MaxQueries,
		AutoApproveThreshold: cfg.AutoApproveThreshold,
	}, heuristicBuilder, nil, heuristicMatcher, nil)
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

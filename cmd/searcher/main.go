package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/internal/searcher/scoring"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/redis"
)

func main() {
	configPath := pflag.String("config", "configs/development.yaml", "path to config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	slog.Info("starting search service", "port", cfg.Server.Port, "cache_dir", cfg.Index.CacheDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		m = metrics.New(reg)
		metricsServer := metrics.NewServer(cfg.Metrics.Port, reg)
		metricsServer.Start()
		defer metricsServer.Shutdown(context.Background())
	}

	tok, err := loader.Tokenizer(cfg.Index.StopWordsPath)
	if err != nil {
		slog.Error("failed to load stop words", "error", err)
		os.Exit(1)
	}
	opts := []indexer.Option{indexer.WithParams(scoring.Params{K1: cfg.Search.K1, B: cfg.Search.B})}
	if m != nil {
		opts = append(opts, indexer.WithMetrics(m))
	}
	engine := indexer.NewEngine(cfg.Index.CacheDir, tok, opts...)
	if err := engine.Load(); err != nil {
		if !apperrors.IsRecoverableLoad(err) {
			slog.Error("failed to load index", "error", err)
			os.Exit(1)
		}
		slog.Warn("serving an empty index until the next reload", "error", err)
	}

	var (
		queryCache  *cache.QueryCache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var reloader *reload.Reloader
	if queryCache != nil {
		reloader = reload.New(engine, queryCache)
	} else {
		reloader = reload.New(engine, nil)
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, reloader.Handle)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index.complete consumer error", "error", err)
			}
		}()
		slog.Info("listening for index builds", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := engine.Stats()
		if stats.Documents == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, generation %d", stats.Documents, stats.Generation),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
	}

	h := handler.New(engine, queryCache, reloader, m, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		TitleMatches: cfg.Search.TitleMatches,
	})
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m, middleware.MuxRoute(mux))(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

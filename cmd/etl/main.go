package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/gemini"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/groundwater-etl/internal/adapter/kafka"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/narrativecache"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/storage"
	"github.com/couchcryptid/groundwater-etl/internal/config"
	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
	"github.com/couchcryptid/groundwater-etl/internal/pipeline"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := storage.Open(ctx, cfg, nil)
	if err != nil {
		logger.Error("failed to open site store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	logger.Info("site store opened", "driver", cfg.StoreDriver)

	annotator, closeAnnotator, err := newAnnotator(ctx, cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to initialize annotator", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, pipeline.NewTransformer(), store, writer, logger, metrics, cfg.BatchSize)
	enricher := pipeline.NewEnricher(store, store, annotator, cfg.AnnotatorTimeout, logger)

	api := httpadapter.NewAPI(store, store, enricher, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(store, p), api, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return p.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
	}

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := closeAnnotator(); err != nil {
		logger.Error("redis close error", "error", err)
	}
	if err := closeStore(); err != nil {
		logger.Error("site store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// newAnnotator builds the Gemini annotator behind the narrative caches:
// in-process LRU first, then Redis when REDIS_ADDR is set. Returns a nil
// annotator when enrichment is disabled.
func newAnnotator(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.Annotator, func() error, error) {
	noop := func() error { return nil }
	if !cfg.AnnotatorEnabled {
		metrics.AnnotatorEnabled.Set(0)
		logger.Info("narrative annotator disabled")
		return nil, noop, nil
	}

	client, err := gemini.NewClient(ctx, gemini.Options{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel}, metrics, logger)
	if err != nil {
		return nil, nil, err
	}
	var annotator domain.Annotator = client

	closeFn := noop
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		annotator = narrativecache.NewRedis(annotator, rdb, cfg.RedisTTL, metrics, logger)
		closeFn = rdb.Close
		logger.Info("redis narrative cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
	}

	lru, err := narrativecache.NewLRU(annotator, cfg.NarrativeCacheSize, metrics)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	metrics.AnnotatorEnabled.Set(1)
	logger.Info("narrative annotator enabled", "model", cfg.GeminiModel, "cache_size", cfg.NarrativeCacheSize, "timeout", cfg.AnnotatorTimeout)
	return lru, closeFn, nil
}

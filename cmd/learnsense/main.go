package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/learnsense/internal/api"
	"github.com/miradorstack/learnsense/internal/cache"
	"github.com/miradorstack/learnsense/internal/config"
	"github.com/miradorstack/learnsense/internal/engine"
	"github.com/miradorstack/learnsense/internal/metrics"
	"github.com/miradorstack/learnsense/internal/monitor"
	"github.com/miradorstack/learnsense/internal/realtime"
	"github.com/miradorstack/learnsense/internal/repo"
	"github.com/miradorstack/learnsense/internal/services"
	"github.com/miradorstack/learnsense/internal/store"
	"github.com/miradorstack/learnsense/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, utils.LogFile{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	slog.SetDefault(logger)
	logger.Info("starting learnsense",
		slog.String("grpc_address", cfg.Server.Address),
		slog.String("http_address", cfg.Server.HTTPAddress))

	if err := run(cfg, logger); err != nil {
		logger.Error("learnsense exited", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("learnsense stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN, cfg.Store.AutoMigrate, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	pack, err := engine.LoadModelPack(cfg.Model.Path, logger)
	if err != nil {
		return err
	}
	policy := engine.PolicyConfig{
		MinConfidence:        cfg.Policy.MinConfidence,
		UncertaintyThreshold: cfg.Policy.UncertaintyThreshold,
		Default:              engine.Thresholds{High: cfg.Policy.HighThreshold, Medium: cfg.Policy.MediumThreshold},
	}
	pipeline := engine.NewPipeline(logger, pack, policy)

	review := services.DefaultReviewCriteria()
	review.UncertaintyThreshold = cfg.Policy.UncertaintyThreshold
	predictionOpts := []services.PredictionOption{services.WithReviewCriteria(review)}
	if cfg.Consent.BaseURL != "" {
		registry := repo.NewConsentRegistryClient(cfg.Consent.BaseURL, cfg.Consent.Path, cfg.Consent.Timeout, cacheProvider, cfg.Consent.CacheTTL, logger)
		predictionOpts = append(predictionOpts, services.WithConsentRegistry(registry))
	}
	predictions := services.NewPredictionService(logger, pipeline, db, db, predictionOpts...)
	cases := services.NewCaseService(logger, db)

	aggregator := realtime.NewAggregator(logger, db, cacheProvider, cfg.Cache.SummaryTTL)
	collector := realtime.NewCollector(logger, db, realtime.CollectorConfig{
		FlushInterval: cfg.Realtime.FlushInterval,
		BufferSize:    cfg.Realtime.BufferSize,
		WriteTimeout:  cfg.Realtime.WriteTimeout,
	}, realtime.WithFlushHook(aggregator.Invalidate))
	collector.Start(context.Background())
	realtimeSvc := services.NewRealtimeService(collector, aggregator)

	monitoring := monitor.NewMonitor(logger, db, db, monitor.Config{}, monitor.WithLatencySource(predictions))

	grpcServer, err := api.NewServer(cfg.Server, logger, api.NewGRPCService(logger, predictions, realtimeSvc))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddress,
		Handler: api.NewRouter(api.RouterConfig{
			Logger:      logger,
			Predictions: predictions,
			Cases:       cases,
			Realtime:    realtimeSvc,
			Monitor:     monitoring,
			Health:      db.Ping,
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(grpcServer.Start)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
		grpcServer.Shutdown(shutdownCtx)
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", slog.Any("error", err))
			}
		}
		return nil
	})

	serveErr := g.Wait()

	// Servers are down, so no new points arrive during the final flush.
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := collector.Stop(stopCtx); err != nil {
		logger.Error("collector stop", slog.Any("error", err))
	}
	return serveErr
}

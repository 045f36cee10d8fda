// cmd/build-service/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pcbuild-service/internal/audit"
	"pcbuild-service/internal/catalog"
	"pcbuild-service/internal/common/camunda"
	"pcbuild-service/internal/common/config"
	commonhttp "pcbuild-service/internal/common/http"
	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/common/metrics"
	"pcbuild-service/internal/common/observability"
	"pcbuild-service/internal/fps"
	"pcbuild-service/internal/negotiator"
	"pcbuild-service/internal/oracle"
	"pcbuild-service/internal/resolver"
	"pcbuild-service/internal/server"
	ef "pcbuild-service/internal/workers/build/estimate-fps"
	gb "pcbuild-service/internal/workers/build/generate-build"
	"pcbuild-service/pkg/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog, _ := zap.NewProduction()
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		zapLog = zap.NewExample()
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting build service...",
		zap.String("version", cfg.App.Version),
		zap.String("oracle", cfg.Oracle.Provider),
		zap.String("catalog", cfg.Catalog.Source),
	)

	obs := observability.New(cfg.App.Name, log)
	tracing, err := observability.NewTracing(cfg.App.Name, cfg.App.Version, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio)
	if err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	}
	obs.AttachTracing(tracing)
	defer obs.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackends(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("backend initialization failed", zap.Error(err))
	}
	defer be.Close()

	// --- Catalog ---
	loader, err := be.catalogLoader(cfg, log)
	if err != nil {
		zapLog.Fatal("catalog loader", zap.Error(err))
	}
	cat, err := catalog.Load(ctx, loader)
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err))
	}
	metrics.CatalogProducts.Set(float64(cat.Len()))
	zapLog.Info("Catalog loaded", zap.Int("products", cat.Len()))

	// --- Resolver ---
	metric, err := resolver.MetricByName(cfg.Negotiation.SimilarityMetric)
	if err != nil {
		zapLog.Fatal("similarity metric", zap.Error(err))
	}
	filter := resolver.NewCategoryFilter(categoryKeywords(cfg.Negotiation.CategoryKeywords))
	var resolverOpts []resolver.Option
	if cfg.Negotiation.RestrictToCategory {
		resolverOpts = append(resolverOpts, resolver.WithCategoryFilter(filter))
	}
	res := resolver.New(metric, cfg.Negotiation.MatchThreshold, resolverOpts...)

	// --- Oracle ---
	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Oracle.Timeout))
	o, err := oracle.New(ctx, cfg.Oracle, httpClient.Standard())
	if err != nil {
		zapLog.Fatal("oracle initialization failed", zap.Error(err))
	}

	// --- Audit ---
	sink, err := audit.New(ctx, cfg.Audit, audit.Deps{Postgres: be.postgres, Redis: be.redisClient()})
	if err != nil {
		zapLog.Fatal("audit sink initialization failed", zap.Error(err))
	}
	if _, discard := sink.(audit.Nop); !discard {
		sink = audit.NewQueue(sink, cfg.Audit.QueueSize, log)
	}
	if c, ok := sink.(audit.Closer); ok {
		defer c.Close()
	}

	// --- Negotiator & FPS ---
	negCfg, err := negotiator.ConfigFrom(cfg.Negotiation)
	if err != nil {
		zapLog.Fatal("negotiation config", zap.Error(err))
	}
	generator := &observedGenerator{
		next: negotiator.New(negCfg, cat, res, o, sink, log),
		obs:  obs,
	}
	estimator := fps.NewEstimator(o, log)

	zapLog.Info("Negotiator ready",
		zap.Int("maxAttempts", negCfg.MaxAttempts),
		zap.String("tolerance", negCfg.Tolerance.String()),
		zap.String("historyMode", negCfg.HistoryMode),
		zap.String("priceField", string(negCfg.PriceField)),
		zap.Float64("matchThreshold", res.Threshold()),
	)

	checks := be.checks()

	// --- Zeebe workers ---
	anyWorker := config.IsWorkerEnabled(cfg, gb.TaskType) || config.IsWorkerEnabled(cfg, ef.TaskType)
	if cfg.Camunda.Enabled && !anyWorker {
		zapLog.Warn("Camunda enabled but every worker is disabled, not connecting to Zeebe")
	}
	if cfg.Camunda.Enabled && anyWorker {
		reg, err := registry.LoadRegistry(cfg.Registry.Path)
		if err != nil {
			zapLog.Fatal("task registry load failed", zap.Error(err))
		}
		validator, err := registry.NewValidator(reg)
		if err != nil {
			zapLog.Fatal("task registry invalid", zap.Error(err))
		}

		zeebe, err := camunda.NewClient(ctx, camunda.ClientConfigFrom(cfg.Camunda))
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck

		workers := camunda.NewWorkers(zeebe.Raw(), log)
		defer workers.Stop()

		workers.Start(gb.TaskType, config.GetWorkerConfig(cfg, gb.TaskType), &observedJob{
			taskType: gb.TaskType,
			next:     gb.NewHandler(gb.LoadConfig(cfg), generator, validator, log),
			obs:      obs,
		})
		workers.Start(ef.TaskType, config.GetWorkerConfig(cfg, ef.TaskType), &observedJob{
			taskType: ef.TaskType,
			next:     ef.NewHandler(ef.LoadConfig(cfg), estimator, validator, log),
			obs:      obs,
		})
		zapLog.Info("Zeebe workers registered", zap.Strings("taskTypes", workers.Running()))
	}

	// --- HTTP API ---
	api := server.New(generator, estimator, server.Options{
		Timeout: config.GetDuration(cfg.Negotiation.Timeout),
		Stats:   func() catalog.Stats { return cat.Stats(filter.Coverage) },
		Checks:  checks,
		Version: cfg.App.Version,
	}, log)

	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.Handle("/", api.Routes())

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// --- Graceful Shutdown ---
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, stopping...")
	case err := <-serverErr:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Build service stopped gracefully")
}

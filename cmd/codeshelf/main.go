package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codeshelf/codeshelf/internal/classify"
	"github.com/codeshelf/codeshelf/internal/config"
	"github.com/codeshelf/codeshelf/internal/executor"
	"github.com/codeshelf/codeshelf/internal/health"
	"github.com/codeshelf/codeshelf/internal/inference"
	"github.com/codeshelf/codeshelf/internal/metrics"
	"github.com/codeshelf/codeshelf/internal/organizer"
	"github.com/codeshelf/codeshelf/internal/plan"
	"github.com/codeshelf/codeshelf/internal/retry"
	"github.com/codeshelf/codeshelf/internal/scanner"
	"github.com/codeshelf/codeshelf/internal/server"
	"github.com/codeshelf/codeshelf/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("ollama_url", cfg.OllamaBaseURL).
		Str("default_model", cfg.DefaultModel).
		Msg("starting codeshelf")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Taxonomy (optionally overridden from file)
	taxonomy := classify.DefaultTaxonomy()
	if cfg.TaxonomyFile != "" {
		taxonomy, err = classify.LoadTaxonomy(cfg.TaxonomyFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.TaxonomyFile).Msg("failed to load taxonomy")
		}
		logger.Info().Str("version", taxonomy.Version).Msg("taxonomy override loaded")
	}

	// Audit store
	auditStore, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open audit store")
	}
	defer auditStore.Close()
	auditStore.StartRetentionLoop(ctx, time.Hour)

	// Inference client
	infClient := inference.New(logger,
		inference.WithBaseURL(cfg.OllamaBaseURL),
		inference.WithTimeout(cfg.InferenceTimeout),
	)

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := auditStore.DB().PingContext(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("inference", func(ctx context.Context) health.Status {
		// Inference is optional: the heuristic path keeps working without it.
		if err := infClient.Ping(ctx); err != nil {
			return health.StatusDegraded
		}
		return health.StatusOK
	})

	// Metrics
	metricsCollector := metrics.New()

	// Pipeline components
	scn := scanner.New(scanner.Config{
		MaxFiles:         cfg.MaxScanFiles,
		Workers:          cfg.ScanWorkers,
		ReadmeExcerptLen: cfg.ReadmeExcerptLen,
	}, logger)

	retryCfg := retry.DefaultConfig()
	if cfg.InferenceRetries > 0 {
		retryCfg.MaxAttempts = cfg.InferenceRetries + 1
	}

	svc := organizer.New(organizer.Deps{
		Scanner:   scn,
		Heuristic: classify.NewHeuristicClassifier(taxonomy),
		Model:     classify.NewModelClassifier(infClient, taxonomy, logger),
		Inference: infClient,
		Generator: plan.NewGenerator(taxonomy, logger),
		Executor:  executor.New(logger),
		Store:     auditStore,
		Metrics:   metricsCollector,
	}, organizer.Config{
		DefaultModel:        cfg.DefaultModel,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		OrganizeRoot:        cfg.OrganizeRoot,
		ScanCacheSize:       cfg.ScanCacheSize,
		Retry:               retryCfg,
	}, logger)

	// HTTP API server
	srv := server.New(server.Config{
		ListenAddr: cfg.ListenAddr,
		AuthConfig: server.AuthConfig{
			Mode:   cfg.AuthMode,
			APIKey: cfg.APIKey,
		},
		RateLimit: server.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, svc, checker, metricsCollector, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	cancel()
	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("codeshelf stopped")
}

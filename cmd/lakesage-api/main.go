package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lakesage/lakesage/internal/api"
	"github.com/lakesage/lakesage/internal/auth"
	"github.com/lakesage/lakesage/internal/config"
	"github.com/lakesage/lakesage/internal/history"
	historypostgres "github.com/lakesage/lakesage/internal/history/postgres"
	"github.com/lakesage/lakesage/internal/llm"
	"github.com/lakesage/lakesage/internal/observability"
	"github.com/lakesage/lakesage/internal/pipeline"
	"github.com/lakesage/lakesage/internal/schema"
	s3store "github.com/lakesage/lakesage/internal/storage/s3"
	duckdbengine "github.com/lakesage/lakesage/internal/warehouse/duckdb"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("lakesage-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	catalog, err := schema.Load(cfg.Schema.CatalogPath)
	if err != nil {
		logger.Error("failed to load schema catalog", slog.Any("error", err))
		os.Exit(1)
	}

	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	model, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}

	readinessChecks := []api.ReadinessCheck{
		api.CheckObjectStoreConfig(cfg),
		api.CheckLLMConfig(cfg),
	}

	var historyRepo history.Repository
	if cfg.History.Enabled {
		historyDB, err := historypostgres.Open(context.Background(), historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()

		repo := historypostgres.NewRepository(historyDB)
		historyRepo = repo
		readinessChecks = append(readinessChecks, repo.HealthCheck)
	}

	engine := duckdbengine.NewEngine(objectStore)
	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewGenerator(model, catalog),
		pipeline.NewValidator(catalog),
		pipeline.NewExecutor(engine, cfg.Pipeline.ExecTimeout, cfg.Pipeline.RowLimit),
		pipeline.NewComposer(model, cfg.Pipeline.PromptRowLimit),
		pipeline.OrchestratorConfig{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			Logger:      logger,
			History:     historyRepo,
		},
	)

	deps := api.Dependencies{
		Logger:            logger,
		Catalog:           catalog,
		Orchestrator:      orchestrator,
		History:           historyRepo,
		Readiness:         api.CombineReadinessChecks(readinessChecks...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

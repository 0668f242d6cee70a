package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/adapter/agents"
	handlers "github.com/wekeepgrowing/research-agent/internal/adapter/handler/http"
	"github.com/wekeepgrowing/research-agent/internal/adapter/repository"
	"github.com/wekeepgrowing/research-agent/internal/config"
	domainagent "github.com/wekeepgrowing/research-agent/internal/domain/agent"
	domainrepo "github.com/wekeepgrowing/research-agent/internal/domain/repository"
	"github.com/wekeepgrowing/research-agent/internal/infrastructure/db"
	httpServer "github.com/wekeepgrowing/research-agent/internal/infrastructure/http"
	"github.com/wekeepgrowing/research-agent/internal/usecase"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := cfg.Logger
	defer logger.Sync()

	database, err := db.NewSQLiteDB(db.Config{Path: cfg.Database.Path}, logger)
	if err != nil {
		logger.Fatal("Failed to open task database", zap.Error(err))
	}

	taskRepo := repository.NewTaskRepository(database, logger)
	cache := newCache(cfg, logger)

	llm, err := agents.NewOllamaClient(cfg.LLM.Host, logger)
	if err != nil {
		logger.Fatal("Failed to build llm client", zap.Error(err))
	}

	stages := usecase.Agents{
		Router:       agents.NewRouter(llm, cfg.LLM.RouterModel, logger),
		Clarifier:    agents.NewClarifier(llm, cfg.LLM.ClarifierModel, logger),
		Researcher:   agents.NewResearcher(llm, cfg.LLM.WriterModel, logger),
		Writer:       agents.NewWriter(llm, cfg.LLM.WriterModel, logger),
		FactChecker:  agents.NewFactChecker(llm, cfg.LLM.CheckerModel, logger),
		DeepOperator: newDeepOperator(cfg, logger),
	}

	pipelineCfg := usecase.PipelineConfig{
		MaxAttempts:      cfg.Pipeline.MaxAttempts,
		RetryBackoff:     cfg.Pipeline.RetryBackoff,
		SyncTimeout:      cfg.Pipeline.SyncTimeout,
		BackgroundBudget: cfg.Pipeline.BackgroundBudget,
		PollInterval:     cfg.Pipeline.PollInterval,
		CacheTTL:         cfg.Cache.TTL,
	}

	publisher := usecase.NewPublisher(logger)
	lifecycle := usecase.NewLifecycle(taskRepo, publisher, logger)
	orchestrator := usecase.NewOrchestrator(stages, taskRepo, cache, lifecycle, publisher, pipelineCfg, logger)
	executor := usecase.NewExecutor(orchestrator, taskRepo, lifecycle, pipelineCfg, logger)
	orchestrator.AttachExecutor(executor)

	// Re-dispatch tasks interrupted by the previous run before serving.
	if err := executor.Recover(context.Background()); err != nil {
		logger.Fatal("Failed to recover interrupted tasks", zap.Error(err))
	}

	handler := handlers.NewResearchHandler(orchestrator, logger)
	server := httpServer.NewServer(cfg, logger, handler)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}
	if err := executor.Shutdown(ctx); err != nil {
		logger.Warn("Tasks still running at shutdown, will be recovered on restart", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func newCache(cfg *config.Config, logger *zap.Logger) domainrepo.CacheRepository {
	if cfg.Cache.Backend == "redis" {
		cache, err := repository.NewRedisCache(repository.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Warn("Redis unreachable, using in-memory cache", zap.Error(err))
			return repository.NewMemoryCache()
		}
		return cache
	}
	return repository.NewMemoryCache()
}

func newDeepOperator(cfg *config.Config, logger *zap.Logger) domainagent.BackgroundOperator {
	if cfg.DeepResearch.BaseURL == "" {
		logger.Warn("No deep research service configured, using stub operator")
		return agents.NewStubOperator(3)
	}
	return agents.NewDeepResearchOperator(cfg.DeepResearch.BaseURL, cfg.DeepResearch.APIKey, cfg.DeepResearch.Model, logger)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/dago-adapters/pkg/llm"
	"github.com/aescanero/dago-libs/pkg/ports"
	"github.com/aescanero/dago-node-relnotes/internal/config"
	"github.com/aescanero/dago-node-relnotes/internal/polish"
	"github.com/aescanero/dago-node-relnotes/internal/render"
	"github.com/aescanero/dago-node-relnotes/internal/store"
	"github.com/aescanero/dago-node-relnotes/internal/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

var (
	_ ports.StateStorage = (*store.RedisStateStore)(nil)
	_ worker.StateSource = (*store.RedisStateStore)(nil)
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("release notes worker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting release notes worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("config", cfg.String()),
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis connection", zap.Error(err))
		}
	}()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	w := worker.NewWorker(cfg, redisClient,
		newRenderer(cfg, logger),
		polish.NewPolisher(newLLMClient(cfg, logger), cfg.LLMModel, logger),
		store.NewTemplateStore(redisClient, cfg.TemplatePrefix, logger),
		store.NewRedisStateStore(redisClient, cfg.StatePrefix, logger),
		logger,
	)
	if err := w.Start(); err != nil {
		return err
	}

	health := worker.NewHealthServer(cfg.HealthPort, redisClient, logger)
	if err := health.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := health.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}
	if err := w.Stop(cfg.RenderTimeout); err != nil {
		logger.Error("failed to stop worker", zap.Error(err))
	}
	return nil
}

func newRenderer(cfg *config.Config, logger *zap.Logger) *render.Renderer {
	if cfg.UnsafeExpressions {
		logger.Warn("unsafe expressions enabled: predicates run as Go code with the privileges of the worker")
	}
	if cfg.CustomHelpersEnabled {
		logger.Warn("custom helpers enabled: request helpers run as Go code with the privileges of the worker")
	}
	return render.NewRenderer(
		render.WithLogger(logger),
		render.WithUnsafeExpressions(cfg.UnsafeExpressions),
		render.WithCustomHelpers(cfg.CustomHelpersEnabled),
	)
}

// newLLMClient returns nil when polishing is not configured or the client
// cannot be created; the worker then renders without polishing
func newLLMClient(cfg *config.Config, logger *zap.Logger) ports.LLMClient {
	if !cfg.PolishEnabled() {
		logger.Info("llm api key not provided, polishing disabled")
		return nil
	}

	client, err := llm.NewClient(&llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Logger:   logger.Named("llm"),
	})
	if err != nil {
		logger.Warn("failed to initialize llm client, polishing disabled", zap.Error(err))
		return nil
	}

	logger.Info("llm client initialized",
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.LLMModel),
	)
	return client
}

func newLogger(level string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.OutputPaths = []string{"stdout"}
	return config.Build()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/suara/adapters/audio"
	"github.com/satriahrh/suara/adapters/llm"
	"github.com/satriahrh/suara/adapters/stt"
	"github.com/satriahrh/suara/domain"
	"github.com/satriahrh/suara/domain/repositories"
	"github.com/satriahrh/suara/internal/api"
	"github.com/satriahrh/suara/internal/config"
	"github.com/satriahrh/suara/internal/logging"
	"github.com/satriahrh/suara/internal/websocket"
	"github.com/satriahrh/suara/internal/worker"
	"github.com/satriahrh/suara/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		var startupErr *domain.StartupError
		if errors.As(err, &startupErr) {
			logger.Error("Refusing to start", zap.String("key", startupErr.Key), zap.Error(err))
		} else {
			logger.Error("Server failed", zap.Error(err))
		}
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()

	// Initialize adapters
	normalizer := audio.NewNormalizer(audio.Config{FFmpegPath: cfg.Audio.FFmpegPath}, logger)

	speechToText, closeSTT, err := newSpeechToText(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSTT()

	model, err := newLanguageModel(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Initialize usecase services
	pool := worker.NewPool(cfg.Worker.PoolSize, logger)
	conversationService := usecase.NewConversationService(normalizer, speechToText, pool, cfg.ASR.Timeout, logger)
	chatService := usecase.NewChatService(model, pool, cfg.LLM.SystemPrompt, cfg.LLM.Timeout, logger)

	// Initialize websocket sessions
	registry := websocket.NewRegistry(logger)
	handler := websocket.NewHandler(registry, conversationService, chatService, websocket.Options{
		ReadLimit:  cfg.Server.ReadLimitBytes,
		WriteWait:  cfg.Server.WriteWait,
		PongWait:   cfg.Server.PongWait,
		SendBuffer: cfg.Server.SendBuffer,
	}, logger)

	stats := websocket.NewStatsReporter(registry, cfg.Stats.Interval, logger)
	stats.Start()
	defer stats.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, cfg.Server.WSPath, handler, registry)

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("wsPath", cfg.Server.WSPath),
		zap.String("asrProvider", cfg.ASR.Provider),
		zap.String("llmProvider", cfg.LLM.Provider),
		zap.Int("workerPoolSize", pool.Size()))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited", zap.Int("activeConnections", registry.Count()))
	return nil
}

func newSpeechToText(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.SpeechToText, func(), error) {
	switch cfg.ASR.Provider {
	case config.ProviderMock:
		logger.Warn("Using mock speech recognition")
		return stt.NewMockSpeechToText(logger), func() {}, nil
	default:
		google, err := stt.NewGoogleSpeechToText(ctx, stt.GoogleConfig{
			APIKey:   cfg.ASRKey(),
			Language: cfg.ASR.Language,
		}, logger)
		if err != nil {
			return nil, nil, &domain.StartupError{Key: "asr.provider", Reason: err.Error()}
		}
		return google, func() {
			if err := google.Close(); err != nil {
				logger.Warn("Failed to close speech client", zap.Error(err))
			}
		}, nil
	}
}

func newLanguageModel(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.LLM.Provider {
	case config.ProviderMock:
		logger.Warn("Using mock language model")
		return llm.NewMockLLM(), nil
	case config.ProviderOpenAI:
		model, err := llm.NewOpenAILLM(llm.OpenAIConfig{
			APIKey:         cfg.LLMKey(),
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			MaxRetries:     cfg.LLM.MaxRetries,
			RequestTimeout: cfg.LLM.Timeout,
		}, logger)
		if err != nil {
			return nil, &domain.StartupError{Key: "llm.provider", Reason: err.Error()}
		}
		return model, nil
	default:
		model, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey:     cfg.LLMKey(),
			Model:      cfg.LLM.Model,
			MaxRetries: cfg.LLM.MaxRetries,
		}, logger)
		if err != nil {
			return nil, &domain.StartupError{Key: "llm.provider", Reason: err.Error()}
		}
		return model, nil
	}
}

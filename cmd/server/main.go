// Package main implements the entry point for the Recall API server, which
// serves spaced-repetition review sessions over generated flashcard decks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recallhq/recall-api/internal/api"
	"github.com/recallhq/recall-api/internal/config"
	"github.com/recallhq/recall-api/internal/domain/srs"
	"github.com/recallhq/recall-api/internal/events"
	"github.com/recallhq/recall-api/internal/generation"
	"github.com/recallhq/recall-api/internal/platform/gemini"
	"github.com/recallhq/recall-api/internal/platform/logger"
	"github.com/recallhq/recall-api/internal/platform/postgres"
	"github.com/recallhq/recall-api/internal/service/review"
	"github.com/recallhq/recall-api/internal/session"
	"github.com/recallhq/recall-api/internal/task"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel))

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	if err := runMigrations(db, appLogger); err != nil {
		return err
	}

	// Content generation is optional. Without an API key the server still
	// runs; every deck request is answered with the fallback deck.
	var generator generation.Generator
	if cfg.Generation.GeminiAPIKey != "" {
		geminiGen, err := gemini.NewGeminiGenerator(context.Background(), appLogger, cfg.Generation)
		if err != nil {
			return fmt.Errorf("failed to create generator: %w", err)
		}
		generator = geminiGen
	} else {
		appLogger.Warn("no Gemini API key configured, serving fallback decks only")
	}

	queue := task.NewQueue(task.QueueConfig{
		Size:        cfg.Review.PersistQueueSize,
		WorkerCount: cfg.Review.PersistWorkerCount,
	}, appLogger)
	queue.Start()

	reviews := review.NewStore(review.Config{
		Generator:       generator,
		Flashcards:      postgres.NewPostgresFlashcardStore(db, appLogger),
		States:          postgres.NewPostgresSchedulingStateStore(db, appLogger),
		Ratings:         postgres.NewPostgresRatingEventStore(db, appLogger),
		DB:              db,
		Queue:           queue,
		CacheTTL:        time.Duration(cfg.Review.DeckCacheTTLMinutes) * time.Minute,
		DefaultDeckSize: cfg.Review.DefaultDeckSize,
		MaxDeckSize:     cfg.Review.MaxDeckSize,
		Logger:          appLogger,
	})

	emitter := events.NewInMemoryProgressEmitter(appLogger)
	emitter.RegisterHandler(events.NewLoggingProgressHandler(appLogger))

	controller := session.NewController(session.ControllerConfig{
		Reviews:   reviews,
		Scheduler: srs.NewDefaultService(),
		Emitter:   emitter,
		Logger:    appLogger,
	})

	router := newRouter(
		api.NewSessionHandler(controller, appLogger),
		api.NewReviewHandler(reviews, appLogger),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serverErrCh := make(chan error, 1)
	go func() {
		appLogger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	select {
	case sig := <-shutdownCh:
		appLogger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed", slog.String("error", err.Error()))
	}

	// Drain the write queue before the database goes away so queued outcomes
	// have their chance to land.
	if err := queue.Stop(shutdownCtx); err != nil {
		appLogger.Error("write queue drain incomplete", slog.String("error", err.Error()))
	}

	appLogger.Info("server stopped")
	return nil
}

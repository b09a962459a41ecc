package events

import (
	"context"
	"log/slog"

	"github.com/recallhq/recall-api/internal/platform/logger"
)

// LoggingProgressHandler writes each progress event to the structured log.
// It doubles as an audit trail when no richer consumer is registered.
type LoggingProgressHandler struct {
	logger *slog.Logger
}

// Ensure LoggingProgressHandler implements ProgressHandler
var _ ProgressHandler = (*LoggingProgressHandler)(nil)

// NewLoggingProgressHandler creates a new LoggingProgressHandler.
// A nil logger falls back to slog.Default().
func NewLoggingProgressHandler(log *slog.Logger) *LoggingProgressHandler {
	if log == nil {
		log = slog.Default()
	}

	return &LoggingProgressHandler{
		logger: log.With(slog.String("component", "progress_log")),
	}
}

// HandleProgress implements the ProgressHandler interface.
func (h *LoggingProgressHandler) HandleProgress(ctx context.Context, progress ReviewProgress) {
	log := logger.FromContextOrDefault(ctx, h.logger)
	log.Info("card reviewed",
		slog.String("session_id", progress.SessionID.String()),
		slog.String("flashcard_id", progress.FlashcardID.String()),
		slog.String("rating", string(progress.Rating)),
		slog.Bool("is_correct", progress.IsCorrect))
}

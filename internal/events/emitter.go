package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryProgressEmitter is a simple implementation of the ProgressEmitter
// interface that stores registered handlers in memory and dispatches events
// to them in registration order.
type InMemoryProgressEmitter struct {
	handlers []ProgressHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// Ensure InMemoryProgressEmitter implements ProgressEmitter
var _ ProgressEmitter = (*InMemoryProgressEmitter)(nil)

// NewInMemoryProgressEmitter creates a new InMemoryProgressEmitter.
// A nil logger falls back to slog.Default().
func NewInMemoryProgressEmitter(logger *slog.Logger) *InMemoryProgressEmitter {
	if logger == nil {
		logger = slog.Default()
	}

	return &InMemoryProgressEmitter{
		handlers: make([]ProgressHandler, 0),
		logger:   logger.With(slog.String("component", "progress_emitter")),
	}
}

// RegisterHandler adds a new handler to receive progress events.
func (e *InMemoryProgressEmitter) RegisterHandler(handler ProgressHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered progress handler",
		slog.Int("handler_count", len(e.handlers)))
}

// EmitProgress publishes the given event to all registered handlers. Having
// no handlers is fine; progress display is optional.
func (e *InMemoryProgressEmitter) EmitProgress(ctx context.Context, progress ReviewProgress) {
	e.mu.RLock()
	handlers := make([]ProgressHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler.HandleProgress(ctx, progress)
	}
}

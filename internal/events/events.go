package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/domain"
)

// ReviewProgress is emitted once per rated card, as it happens, so a caller
// can keep a live display current without polling the session.
type ReviewProgress struct {
	// SessionID identifies the session the rating belongs to.
	SessionID uuid.UUID `json:"session_id"`

	// FlashcardID is the card that was rated.
	FlashcardID uuid.UUID `json:"flashcard_id"`

	// Rating is the learner's self-reported recall quality.
	Rating domain.Rating `json:"rating"`

	// IsCorrect is false only for an "again" rating.
	IsCorrect bool `json:"is_correct"`

	// OccurredAt is when the rating was accepted.
	OccurredAt time.Time `json:"occurred_at"`
}

// ProgressHandler is implemented by components that want to observe review
// progress. Handlers run synchronously on the rating path and must be cheap.
type ProgressHandler interface {
	// HandleProgress processes one progress event.
	HandleProgress(ctx context.Context, progress ReviewProgress)
}

// ProgressEmitter is implemented by components that publish review progress.
type ProgressEmitter interface {
	// EmitProgress publishes the given event to all registered handlers.
	EmitProgress(ctx context.Context, progress ReviewProgress)
}

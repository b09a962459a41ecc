package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/domain"
)

// SchedulingStateStore defines the interface for scheduling state persistence.
// There is at most one state row per learner+flashcard pair.
type SchedulingStateStore interface {
	// Get retrieves the scheduling state for a learner+flashcard pair.
	// Returns ErrSchedulingStateNotFound if no state exists yet; callers
	// substitute domain.NewSchedulingState in that case.
	Get(ctx context.Context, learnerID, flashcardID uuid.UUID) (domain.SchedulingState, error)

	// GetForCards bulk-loads the states a learner has for the given cards.
	// Cards without a state are simply absent from the returned map; that is
	// not an error.
	GetForCards(
		ctx context.Context,
		learnerID uuid.UUID,
		flashcardIDs []uuid.UUID,
	) (map[uuid.UUID]domain.SchedulingState, error)

	// Upsert creates or replaces the state for its learner+flashcard pair.
	Upsert(ctx context.Context, state domain.SchedulingState) error

	// WithTx returns a SchedulingStateStore bound to the provided transaction.
	WithTx(tx *sql.Tx) SchedulingStateStore
}

// RatingEventStore defines the interface for the append-only rating log.
type RatingEventStore interface {
	// Create appends a rating event. Events are immutable facts; there is no
	// update or delete.
	Create(ctx context.Context, event domain.RatingEvent) error

	// WithTx returns a RatingEventStore bound to the provided transaction.
	WithTx(tx *sql.Tx) RatingEventStore
}

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/domain"
)

// FlashcardStore defines the interface for flashcard persistence.
type FlashcardStore interface {
	// SaveDeck persists a generated deck under its subject. Cards that already
	// exist (same ID) are left untouched. Fallback cards must never be passed
	// here; they are synthetic and have no place in stored content.
	//
	// This method MUST be run within a transaction for atomicity; use WithTx
	// together with store.RunInTransaction.
	SaveDeck(ctx context.Context, subjectID string, cards []*domain.Flashcard) error

	// GetByID retrieves a flashcard by its unique ID.
	// Returns ErrFlashcardNotFound if the flashcard does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error)

	// GetDue retrieves flashcards whose scheduling state for the learner has
	// next_due_at <= now, ordered ascending by next_due_at (most overdue
	// first), capped at limit.
	GetDue(ctx context.Context, learnerID uuid.UUID, now time.Time, limit int) ([]*domain.Flashcard, error)

	// WithTx returns a FlashcardStore bound to the provided transaction.
	WithTx(tx *sql.Tx) FlashcardStore
}

package generation

import (
	"context"

	"github.com/recallhq/recall-api/internal/domain"
)

// Request describes one deck generation call.
type Request struct {
	// SubjectID names the subject to generate recall items for. It is opaque
	// to this package; implementations pass it through to the model prompt.
	SubjectID string

	// Count is the number of flashcards requested. Implementations may return
	// fewer; they must not return more.
	Count int

	// DifficultyMix selects the difficulty the cards are aimed at.
	DifficultyMix domain.Difficulty
}

// Generator defines the interface for producing flashcards for a subject.
// Implementations may fail in many ways (timeout, quota, malformed response);
// callers must treat any error as "generation unavailable" and degrade.
type Generator interface {
	// Generate creates flashcards for the given request.
	// The returned cards are freshly minted: new IDs, IsFallback unset.
	Generate(ctx context.Context, req Request) ([]*domain.Flashcard, error)
}

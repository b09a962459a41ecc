package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Flashcard-specific validation errors
var (
	// ErrFlashcardIDEmpty is returned when a flashcard ID is empty or nil.
	ErrFlashcardIDEmpty = errors.New("flashcard ID cannot be empty")

	// ErrFlashcardPromptEmpty is returned when a flashcard's prompt is empty.
	ErrFlashcardPromptEmpty = errors.New("flashcard prompt cannot be empty")

	// ErrFlashcardAnswerEmpty is returned when a flashcard's answer is empty.
	ErrFlashcardAnswerEmpty = errors.New("flashcard answer cannot be empty")

	// ErrInvalidDifficulty is returned when a source difficulty is not one of
	// the recognized values.
	ErrInvalidDifficulty = errors.New("invalid source difficulty")
)

// Difficulty describes the difficulty mix a flashcard was generated for.
type Difficulty string

// Possible source difficulty values
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyMixed  Difficulty = "mixed"
)

// IsValid reports whether d is a recognized difficulty value.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyMixed:
		return true
	default:
		return false
	}
}

// Flashcard is an immutable recall item. Sessions reference flashcards but
// never mutate them; the Review Store owns their lifecycle.
type Flashcard struct {
	ID               uuid.UUID  `json:"id"`
	Prompt           string     `json:"prompt"`
	Answer           string     `json:"answer"`
	TopicTags        []string   `json:"topic_tags,omitempty"`
	SourceDifficulty Difficulty `json:"source_difficulty"`
	IsFallback       bool       `json:"is_fallback"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewFlashcard creates a Flashcard with a fresh ID and creation timestamp.
// Returns an error if validation fails.
func NewFlashcard(prompt, answer string, tags []string, difficulty Difficulty) (*Flashcard, error) {
	card := &Flashcard{
		ID:               uuid.New(),
		Prompt:           prompt,
		Answer:           answer,
		TopicTags:        tags,
		SourceDifficulty: difficulty,
		CreatedAt:        time.Now().UTC(),
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the Flashcard has valid data.
// Returns an error if any field fails validation.
func (c *Flashcard) Validate() error {
	if c.ID == uuid.Nil {
		return ErrFlashcardIDEmpty
	}

	if c.Prompt == "" {
		return ErrFlashcardPromptEmpty
	}

	if c.Answer == "" {
		return ErrFlashcardAnswerEmpty
	}

	if !c.SourceDifficulty.IsValid() {
		return ErrInvalidDifficulty
	}

	return nil
}

// HasTag reports whether the flashcard carries the given topic tag.
func (c *Flashcard) HasTag(tag string) bool {
	for _, t := range c.TopicTags {
		if t == tag {
			return true
		}
	}
	return false
}

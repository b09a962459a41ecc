package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Rating represents the learner's self-reported recall quality for a card.
type Rating string

// Possible rating values
const (
	RatingAgain  Rating = "again"
	RatingHard   Rating = "hard"
	RatingMedium Rating = "medium"
	RatingEasy   Rating = "easy"
)

// IsValid reports whether r is a recognized rating value.
func (r Rating) IsValid() bool {
	switch r {
	case RatingAgain, RatingHard, RatingMedium, RatingEasy:
		return true
	default:
		return false
	}
}

// IsCorrect reports whether the rating counts as a successful recall.
// Only "again" is a failure; hard, medium and easy all count as correct.
func (r Rating) IsCorrect() bool {
	return r != RatingAgain
}

// Common validation errors for scheduling entities
var (
	ErrEmptyStateLearnerID   = errors.New("scheduling state learner ID cannot be empty")
	ErrEmptyStateFlashcardID = errors.New("scheduling state flashcard ID cannot be empty")
	ErrInvalidInterval       = errors.New("interval days must be greater than or equal to 0")
	ErrInvalidEaseFactor     = errors.New("ease factor must be at least 1.3")
	ErrInvalidRepetitions    = errors.New("repetition count must be greater than or equal to 0")
	ErrInvalidRating         = errors.New("invalid rating")
	ErrInvalidLatency        = errors.New("response latency must be greater than or equal to 0")
)

// DefaultEaseFactor is the ease factor assigned to a card that has never
// been reviewed. The SM-2 floor of 1.3 is enforced by the scheduler.
const DefaultEaseFactor = 2.5

// SchedulingState tracks a learner's spaced repetition schedule for one
// flashcard. There is at most one state per learner+flashcard pair. States
// are value types: the scheduler derives a new state from a prior one and
// never mutates its input.
type SchedulingState struct {
	LearnerID       uuid.UUID `json:"learner_id"`
	FlashcardID     uuid.UUID `json:"flashcard_id"`
	EaseFactor      float64   `json:"ease_factor"`      // Growth multiplier, floor 1.3
	IntervalDays    float64   `json:"interval_days"`    // Fractional days permitted
	RepetitionCount int       `json:"repetition_count"` // Consecutive successful reviews
	NextDueAt       time.Time `json:"next_due_at"`
	LastRating      *Rating   `json:"last_rating,omitempty"` // nil before first review
}

// NewSchedulingState creates the default state for a card that has never been
// reviewed: ease factor 2.5, zero interval, due immediately.
func NewSchedulingState(learnerID, flashcardID uuid.UUID, now time.Time) SchedulingState {
	return SchedulingState{
		LearnerID:       learnerID,
		FlashcardID:     flashcardID,
		EaseFactor:      DefaultEaseFactor,
		IntervalDays:    0,
		RepetitionCount: 0,
		NextDueAt:       now,
		LastRating:      nil,
	}
}

// Validate checks if the SchedulingState has valid data.
// Returns an error if any field fails validation.
func (s *SchedulingState) Validate() error {
	if s.LearnerID == uuid.Nil {
		return ErrEmptyStateLearnerID
	}

	if s.FlashcardID == uuid.Nil {
		return ErrEmptyStateFlashcardID
	}

	if s.IntervalDays < 0 {
		return ErrInvalidInterval
	}

	if s.EaseFactor < 1.3 {
		return ErrInvalidEaseFactor
	}

	if s.RepetitionCount < 0 {
		return ErrInvalidRepetitions
	}

	if s.LastRating != nil && !s.LastRating.IsValid() {
		return ErrInvalidRating
	}

	return nil
}

// RatingEvent is an immutable fact: one learner rated one flashcard once.
// Produced by the Session Controller, consumed by the scheduler and persisted
// best-effort by the Review Store.
type RatingEvent struct {
	ID                uuid.UUID `json:"id"`
	LearnerID         uuid.UUID `json:"learner_id"`
	FlashcardID       uuid.UUID `json:"flashcard_id"`
	Rating            Rating    `json:"rating"`
	ResponseLatencyMs int64     `json:"response_latency_ms"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// NewRatingEvent creates a RatingEvent with a fresh ID.
// Returns an error if validation fails.
func NewRatingEvent(
	learnerID, flashcardID uuid.UUID,
	rating Rating,
	responseLatencyMs int64,
	occurredAt time.Time,
) (RatingEvent, error) {
	event := RatingEvent{
		ID:                uuid.New(),
		LearnerID:         learnerID,
		FlashcardID:       flashcardID,
		Rating:            rating,
		ResponseLatencyMs: responseLatencyMs,
		OccurredAt:        occurredAt,
	}

	if err := event.Validate(); err != nil {
		return RatingEvent{}, err
	}

	return event, nil
}

// Validate checks if the RatingEvent has valid data.
// Returns an error if any field fails validation.
func (e *RatingEvent) Validate() error {
	if e.LearnerID == uuid.Nil {
		return ErrEmptyStateLearnerID
	}

	if e.FlashcardID == uuid.Nil {
		return ErrEmptyStateFlashcardID
	}

	if !e.Rating.IsValid() {
		return ErrInvalidRating
	}

	if e.ResponseLatencyMs < 0 {
		return ErrInvalidLatency
	}

	return nil
}

package srs

import (
	"github.com/recallhq/recall-api/internal/domain"
)

// Params defines all configurable parameters for the SM-2 variant.
type Params struct {
	// QualityScores maps each rating to its SM-2 quality score (0-5).
	QualityScores map[domain.Rating]int

	// MinEaseFactor is the floor applied after every ease factor update.
	MinEaseFactor float64

	// AgainIntervalDays is the sub-day interval assigned on a failed recall,
	// so the card reappears the same day.
	AgainIntervalDays float64

	// FirstIntervalDays is the interval after the first successful review.
	FirstIntervalDays float64

	// SecondIntervalDays is the interval after the second successful review.
	SecondIntervalDays float64
}

// NewDefaultParams creates a new Params instance with the standard values.
func NewDefaultParams() *Params {
	return &Params{
		QualityScores: map[domain.Rating]int{
			domain.RatingAgain:  0,
			domain.RatingHard:   3,
			domain.RatingMedium: 4,
			domain.RatingEasy:   5,
		},
		MinEaseFactor:      1.3,
		AgainIntervalDays:  0.1, // ≈2.4 hours
		FirstIntervalDays:  1,
		SecondIntervalDays: 6,
	}
}

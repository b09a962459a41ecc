package srs

import (
	"math"
	"time"

	"github.com/recallhq/recall-api/internal/domain"
)

// nextEaseFactor applies the SM-2 ease factor update for the given quality
// score, clamps the result to the configured floor, and rounds it to two
// decimal places. Rounding happens after clamping so the floor itself is
// never rounded away.
func nextEaseFactor(currentEF float64, quality int, params *Params) float64 {
	q := float64(quality)
	newEF := currentEF + (0.1 - (5-q)*(0.08+(5-q)*0.02))

	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}

	return math.Round(newEF*100) / 100
}

// nextInterval computes the interval in days for a successful review at the
// given repetition count. The first two repetitions use fixed intervals;
// later ones grow the prior interval by the prior ease factor, rounded to
// whole days.
func nextInterval(priorIntervalDays, priorEF float64, repetitionCount int, params *Params) float64 {
	switch repetitionCount {
	case 1:
		return params.FirstIntervalDays
	case 2:
		return params.SecondIntervalDays
	default:
		return math.Round(priorIntervalDays * priorEF)
	}
}

// daysToDuration converts a fractional day count to a time.Duration.
func daysToDuration(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}

// computeNextState derives the scheduling state that follows priorState after
// the learner reports the given rating at time now. priorState is not
// mutated; the result is a fresh value.
//
// An "again" rating resets the repetition count and schedules the card back
// the same day without touching the ease factor. Any other rating increments
// the repetition count, derives the next interval, and then updates the ease
// factor from the rating's quality score. Interval growth deliberately uses
// the ease factor as it stood before this review.
func computeNextState(
	priorState domain.SchedulingState,
	rating domain.Rating,
	now time.Time,
	params *Params,
) domain.SchedulingState {
	newState := priorState

	if rating == domain.RatingAgain {
		newState.RepetitionCount = 0
		newState.IntervalDays = params.AgainIntervalDays
	} else {
		newState.RepetitionCount = priorState.RepetitionCount + 1
		newState.IntervalDays = nextInterval(
			priorState.IntervalDays,
			priorState.EaseFactor,
			newState.RepetitionCount,
			params,
		)
		newState.EaseFactor = nextEaseFactor(
			priorState.EaseFactor,
			params.QualityScores[rating],
			params,
		)
	}

	newState.NextDueAt = now.Add(daysToDuration(newState.IntervalDays))
	r := rating
	newState.LastRating = &r

	return newState
}

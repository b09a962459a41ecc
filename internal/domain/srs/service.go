package srs

import (
	"errors"
	"time"

	"github.com/recallhq/recall-api/internal/domain"
)

// Common errors
var (
	ErrInvalidRating = errors.New("invalid rating")
	ErrInvalidDays   = errors.New("postpone days must be at least 1")
)

// Service defines the interface for scheduling operations. Implementations
// must be pure: the only clock they may consult is the now argument.
type Service interface {
	// ComputeNextState derives new scheduling state from a review rating.
	ComputeNextState(
		prior domain.SchedulingState,
		rating domain.Rating,
		now time.Time,
	) (domain.SchedulingState, error)

	// PostponeReview pushes the next due time forward by a number of days
	// without consuming a rating.
	PostponeReview(
		state domain.SchedulingState,
		days int,
		now time.Time,
	) (domain.SchedulingState, error)
}

// defaultService is the standard implementation of the Service interface.
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new scheduler with default parameters.
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new scheduler with custom parameters.
func NewServiceWithParams(params *Params) Service {
	return &defaultService{
		params: params,
	}
}

// ComputeNextState implements the Service interface.
func (s *defaultService) ComputeNextState(
	prior domain.SchedulingState,
	rating domain.Rating,
	now time.Time,
) (domain.SchedulingState, error) {
	// Rating is a string type, so a malformed value can still arrive through
	// deserialization; reject it here rather than scheduling nonsense.
	if !rating.IsValid() {
		return domain.SchedulingState{}, ErrInvalidRating
	}

	return computeNextState(prior, rating, now, s.params), nil
}

// PostponeReview implements the Service interface.
func (s *defaultService) PostponeReview(
	state domain.SchedulingState,
	days int,
	now time.Time,
) (domain.SchedulingState, error) {
	if days < 1 {
		return domain.SchedulingState{}, ErrInvalidDays
	}

	newState := state
	newState.NextDueAt = state.NextDueAt.AddDate(0, 0, days)

	return newState, nil
}

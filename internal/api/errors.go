package api

import (
	"errors"
	"net/http"

	"github.com/recallhq/recall-api/internal/domain/srs"
	"github.com/recallhq/recall-api/internal/service/review"
	"github.com/recallhq/recall-api/internal/session"
	"github.com/recallhq/recall-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, store.ErrFlashcardNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, session.ErrNoDueCards):
		return http.StatusNoContent

	case errors.Is(err, srs.ErrInvalidRating),
		errors.Is(err, srs.ErrInvalidDays),
		errors.Is(err, review.ErrInvalidOutcome),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly message for the
// given error.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "Session not found"

	case errors.Is(err, store.ErrFlashcardNotFound), errors.Is(err, store.ErrNotFound):
		return "Flashcard not found"

	case errors.Is(err, srs.ErrInvalidRating):
		return "Invalid rating"

	case errors.Is(err, srs.ErrInvalidDays):
		return "Postpone days must be at least 1"

	case errors.Is(err, review.ErrInvalidOutcome), errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

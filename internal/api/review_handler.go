package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/api/shared"
	"github.com/recallhq/recall-api/internal/platform/logger"
	"github.com/recallhq/recall-api/internal/service/review"
)

// Bounds for a due-queue listing: the default when the client does not say,
// and the hard cap on what it may ask for.
const (
	defaultDueLimit = 50
	maxDueLimit     = 200
)

// ReviewHandler handles due-queue HTTP requests.
type ReviewHandler struct {
	reviews  review.Store
	validate *validator.Validate
	logger   *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviews review.Store, log *slog.Logger) *ReviewHandler {
	if reviews == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("review store cannot be nil for ReviewHandler")
	}
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}

	return &ReviewHandler{
		reviews:  reviews,
		validate: validator.New(),
		logger:   log.With(slog.String("component", "review_handler")),
	}
}

// Postpone handles POST /learners/{id}/cards/{cardId}/postpone requests.
func (h *ReviewHandler) Postpone(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid learner ID")
		return
	}

	flashcardID, err := uuid.Parse(chi.URLParam(r, "cardId"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid flashcard ID")
		return
	}

	var req PostponeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	state, result, err := h.reviews.Postpone(r.Context(), learnerID, flashcardID, req.Days)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("card postponed",
		slog.String("learner_id", learnerID.String()),
		slog.String("flashcard_id", flashcardID.String()),
		slog.Int("days", req.Days))

	shared.RespondWithJSON(w, r, http.StatusOK, PostponeResponse{
		FlashcardID: flashcardID.String(),
		NextDueAt:   state.NextDueAt,
		Persisted:   result.Persisted,
	})
}

// GetDueCards handles GET /learners/{id}/due requests. A backend failure
// reads as an empty queue; the UnsyncedCount field lets clients show a
// "not saved" indicator alongside.
func (h *ReviewHandler) GetDueCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid learner ID")
		return
	}

	limit := defaultDueLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	if limit > maxDueLimit {
		limit = maxDueLimit
	}

	cards, err := h.reviews.GetDueCards(r.Context(), learnerID, limit)
	if err != nil {
		log.Warn("due card lookup degraded to empty",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		cards = nil
	}

	resp := DueCardsResponse{
		Cards:         make([]FlashcardResponse, 0, len(cards)),
		UnsyncedCount: h.reviews.UnsyncedCount(),
	}
	for _, card := range cards {
		resp.Cards = append(resp.Cards, cardToResponse(card))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

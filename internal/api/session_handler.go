// Package api provides HTTP handlers for the review API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/api/shared"
	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/platform/logger"
	"github.com/recallhq/recall-api/internal/service/review"
	"github.com/recallhq/recall-api/internal/session"
)

// SessionHandler handles session lifecycle HTTP requests.
type SessionHandler struct {
	controller *session.Controller
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(controller *session.Controller, log *slog.Logger) *SessionHandler {
	if controller == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("controller cannot be nil for SessionHandler")
	}
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SessionHandler")
	}

	return &SessionHandler{
		controller: controller,
		validate:   validator.New(),
		logger:     log.With(slog.String("component", "session_handler")),
	}
}

// Create handles POST /sessions requests.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	learnerID, err := uuid.Parse(req.LearnerID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid learner ID")
		return
	}

	if req.Source == "due" {
		view, err := h.controller.StartDue(r.Context(), learnerID, req.Limit)
		if errors.Is(err, session.ErrNoDueCards) {
			log.Debug("no cards due", slog.String("learner_id", learnerID.String()))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to start session", err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusCreated, viewToResponse(view))
		return
	}

	view := h.controller.Start(r.Context(), learnerID, req.SubjectID, review.DeckOptions{
		Count:         req.Count,
		DifficultyMix: domain.Difficulty(req.DifficultyMix),
	})

	log.Debug("session created",
		slog.String("session_id", view.SessionID.String()),
		slog.String("learner_id", learnerID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, viewToResponse(view))
}

// Get handles GET /sessions/{id} requests.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.pathSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.controller.Get(sessionID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, viewToResponse(view))
}

// Flip handles POST /sessions/{id}/flip requests. Flipping an already
// flipped or finished session is a no-op that still returns the session.
func (h *SessionHandler) Flip(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.pathSessionID(w, r)
	if !ok {
		return
	}

	view, err := h.controller.Flip(sessionID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, viewToResponse(view))
}

// Rate handles POST /sessions/{id}/rate requests.
func (h *SessionHandler) Rate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := h.pathSessionID(w, r)
	if !ok {
		return
	}

	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.controller.Rate(r.Context(), sessionID, domain.Rating(req.Rating))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if result.Applied && !result.Persisted {
		log.Debug("rating accepted without persistence",
			slog.String("session_id", sessionID.String()))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RateResponse{
		Applied:   result.Applied,
		Persisted: result.Persisted,
		Session:   viewToResponse(result.View),
	})
}

// Navigate handles POST /sessions/{id}/navigate requests.
func (h *SessionHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.pathSessionID(w, r)
	if !ok {
		return
	}

	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	view, err := h.controller.Navigate(sessionID, req.Delta)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, viewToResponse(view))
}

// End handles DELETE /sessions/{id} requests. The session is removed and its
// summary returned.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.pathSessionID(w, r)
	if !ok {
		return
	}

	summary, err := h.controller.End(sessionID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summaryToResponse(summary))
}

// pathSessionID extracts the session UUID from the URL, writing a 400 on
// failure.
func (h *SessionHandler) pathSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid session ID")
		return uuid.Nil, false
	}
	return sessionID, true
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/domain/srs"
	"github.com/recallhq/recall-api/internal/service/review"
	"github.com/recallhq/recall-api/internal/session"
)

// fakeReviewStore serves a canned deck for handler tests.
type fakeReviewStore struct {
	deck         []*domain.Flashcard
	due          []*domain.Flashcard
	dueErr       error
	lastDueLimit int
	unsynced     int64
}

func (f *fakeReviewStore) GetDeck(
	_ context.Context, _ string, _ review.DeckOptions,
) []*domain.Flashcard {
	return f.deck
}

func (f *fakeReviewStore) GetDueCards(
	_ context.Context, _ uuid.UUID, limit int,
) ([]*domain.Flashcard, error) {
	f.lastDueLimit = limit
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	if limit < len(f.due) {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeReviewStore) LoadStates(
	_ context.Context, learnerID uuid.UUID, cards []*domain.Flashcard,
) map[uuid.UUID]domain.SchedulingState {
	states := make(map[uuid.UUID]domain.SchedulingState, len(cards))
	for _, card := range cards {
		states[card.ID] = domain.NewSchedulingState(learnerID, card.ID, time.Now().UTC())
	}
	return states
}

func (f *fakeReviewStore) RecordOutcome(
	_ context.Context, _ domain.RatingEvent, _ domain.SchedulingState,
) review.PersistResult {
	return review.PersistResult{Persisted: true}
}

func (f *fakeReviewStore) Postpone(
	_ context.Context, learnerID, flashcardID uuid.UUID, days int,
) (domain.SchedulingState, review.PersistResult, error) {
	if days < 1 {
		return domain.SchedulingState{}, review.PersistResult{}, srs.ErrInvalidDays
	}
	state := domain.NewSchedulingState(learnerID, flashcardID, time.Now().UTC())
	state.NextDueAt = state.NextDueAt.AddDate(0, 0, days)
	return state, review.PersistResult{Persisted: true}, nil
}

func (f *fakeReviewStore) UnsyncedCount() int64 { return f.unsynced }

func testDeck(n int) []*domain.Flashcard {
	deck := make([]*domain.Flashcard, 0, n)
	for i := 0; i < n; i++ {
		deck = append(deck, &domain.Flashcard{
			ID:               uuid.New(),
			Prompt:           fmt.Sprintf("prompt %d", i),
			Answer:           fmt.Sprintf("answer %d", i),
			SourceDifficulty: domain.DifficultyMedium,
			CreatedAt:        time.Now().UTC(),
		})
	}
	return deck
}

func newTestRouter(reviews review.Store) *chi.Mux {
	ctrl := session.NewController(session.ControllerConfig{
		Reviews:   reviews,
		Scheduler: srs.NewDefaultService(),
	})

	log := slog.Default()
	sessions := NewSessionHandler(ctrl, log)
	reviewsHandler := NewReviewHandler(reviews, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", sessions.Create)
		r.Get("/sessions/{id}", sessions.Get)
		r.Post("/sessions/{id}/flip", sessions.Flip)
		r.Post("/sessions/{id}/rate", sessions.Rate)
		r.Post("/sessions/{id}/navigate", sessions.Navigate)
		r.Delete("/sessions/{id}", sessions.End)
		r.Get("/learners/{id}/due", reviewsHandler.GetDueCards)
		r.Post("/learners/{id}/cards/{cardId}/postpone", reviewsHandler.Postpone)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{deck: testDeck(3)})

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{
		LearnerID: uuid.New().String(),
		SubjectID: "go-basics",
		Count:     3,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeSession(t, rec)
	assert.Equal(t, "active", resp.State)
	assert.Equal(t, 3, resp.TotalCards)
	assert.Equal(t, "prompt 0", resp.Prompt)
	assert.Empty(t, resp.Answer)
}

func TestCreateSession_Validation(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{deck: testDeck(1)})

	tests := []struct {
		name string
		body CreateSessionRequest
	}{
		{name: "missing learner", body: CreateSessionRequest{SubjectID: "s"}},
		{name: "bad learner id", body: CreateSessionRequest{LearnerID: "not-a-uuid", SubjectID: "s"}},
		{name: "missing subject", body: CreateSessionRequest{LearnerID: uuid.New().String()}},
		{
			name: "bad difficulty",
			body: CreateSessionRequest{
				LearnerID:     uuid.New().String(),
				SubjectID:     "s",
				DifficultyMix: "impossible",
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(t, router, http.MethodPost, "/api/sessions", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateSession_DueSourceOmittedLimit(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{due: testDeck(3)})

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{
		LearnerID: uuid.New().String(),
		Source:    "due",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeSession(t, rec)
	assert.Equal(t, 3, resp.TotalCards)
	assert.Equal(t, "active", resp.State)
}

func TestCreateSession_DueSourceEmpty(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{})

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{
		LearnerID: uuid.New().String(),
		Source:    "due",
		Limit:     10,
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{deck: testDeck(2)})

	created := doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{
		LearnerID: uuid.New().String(),
		SubjectID: "go-basics",
	})
	require.Equal(t, http.StatusCreated, created.Code)
	id := decodeSession(t, created).SessionID

	// Rating before flip is ignored.
	rec := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/rate", RateRequest{Rating: "easy"})
	require.Equal(t, http.StatusOK, rec.Code)
	var rated RateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rated))
	assert.False(t, rated.Applied)

	// Flip reveals the answer.
	rec = doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/flip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "answer 0", decodeSession(t, rec).Answer)

	// Now the rating lands and the session advances.
	rec = doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/rate", RateRequest{Rating: "again"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rated))
	assert.True(t, rated.Applied)
	assert.Equal(t, 1, rated.Session.CardIndex)
	assert.Equal(t, "active", rated.Session.State)

	// Finish the second card.
	doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/flip", nil)
	rec = doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/rate", RateRequest{Rating: "easy"})
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rated))
	assert.Equal(t, "complete", rated.Session.State)

	// End and check the tally.
	rec = doJSON(t, router, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary SummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 2, summary.TotalCards)
	assert.Equal(t, 1, summary.CorrectCount)
	assert.InDelta(t, 0.5, summary.Accuracy, 1e-9)

	// The session is gone afterwards.
	rec = doJSON(t, router, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNavigateOverHTTP(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{deck: testDeck(3)})

	created := doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{
		LearnerID: uuid.New().String(),
		SubjectID: "go-basics",
	})
	id := decodeSession(t, created).SessionID

	rec := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/navigate", NavigateRequest{Delta: 99})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeSession(t, rec).CardIndex)

	rec = doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/navigate", NavigateRequest{Delta: -1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeSession(t, rec).CardIndex)
}

func TestSessionEndpoints_BadIDs(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{deck: testDeck(1)})

	rec := doJSON(t, router, http.MethodGet, "/api/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/sessions/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRate_InvalidRatingRejected(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{deck: testDeck(1)})

	created := doJSON(t, router, http.MethodPost, "/api/sessions", CreateSessionRequest{
		LearnerID: uuid.New().String(),
		SubjectID: "go-basics",
	})
	id := decodeSession(t, created).SessionID

	rec := doJSON(t, router, http.MethodPost, "/api/sessions/"+id+"/rate", RateRequest{Rating: "brilliant"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

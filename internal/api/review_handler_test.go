package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDueCards(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{due: testDeck(2), unsynced: 3}
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodGet, "/api/learners/"+uuid.New().String()+"/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DueCardsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Cards, 2)
	assert.Equal(t, int64(3), resp.UnsyncedCount)
	assert.Equal(t, "prompt 0", resp.Cards[0].Prompt)
}

func TestGetDueCards_LimitApplied(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{due: testDeck(5)}
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodGet, "/api/learners/"+uuid.New().String()+"/due?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DueCardsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Cards, 2)
}

func TestGetDueCards_BackendFailureReadsEmpty(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{dueErr: errors.New("connection refused")}
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodGet, "/api/learners/"+uuid.New().String()+"/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DueCardsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Cards)
}

func TestGetDueCards_OversizedLimitCapped(t *testing.T) {
	t.Parallel()

	store := &fakeReviewStore{due: testDeck(3)}
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodGet,
		"/api/learners/"+uuid.New().String()+"/due?limit=1000000", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, maxDueLimit, store.lastDueLimit)
}

func TestPostponeCard(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{})
	path := "/api/learners/" + uuid.New().String() + "/cards/" + uuid.New().String() + "/postpone"

	rec := doJSON(t, router, http.MethodPost, path, PostponeRequest{Days: 3})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PostponeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Persisted)
	assert.False(t, resp.NextDueAt.IsZero())
}

func TestPostponeCard_BadInput(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{})
	path := "/api/learners/" + uuid.New().String() + "/cards/" + uuid.New().String() + "/postpone"

	rec := doJSON(t, router, http.MethodPost, path, PostponeRequest{Days: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost,
		"/api/learners/not-a-uuid/cards/"+uuid.New().String()+"/postpone", PostponeRequest{Days: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDueCards_BadInput(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeReviewStore{})

	rec := doJSON(t, router, http.MethodGet, "/api/learners/not-a-uuid/due", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/learners/"+uuid.New().String()+"/due?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

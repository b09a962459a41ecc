package review

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/domain/srs"
	"github.com/recallhq/recall-api/internal/generation"
	"github.com/recallhq/recall-api/internal/store"
	"github.com/recallhq/recall-api/internal/task"
)

// stubGenerator returns a canned deck or error and counts calls.
type stubGenerator struct {
	cards []*domain.Flashcard
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, req generation.Request) ([]*domain.Flashcard, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.cards, nil
}

// stubFlashcardStore serves due cards from a fixed slice.
type stubFlashcardStore struct {
	due    []*domain.Flashcard
	dueErr error
	saved  int
}

func (s *stubFlashcardStore) SaveDeck(_ context.Context, _ string, cards []*domain.Flashcard) error {
	s.saved += len(cards)
	return nil
}

func (s *stubFlashcardStore) GetByID(_ context.Context, _ uuid.UUID) (*domain.Flashcard, error) {
	return nil, store.ErrFlashcardNotFound
}

func (s *stubFlashcardStore) GetDue(
	_ context.Context, _ uuid.UUID, _ time.Time, limit int,
) ([]*domain.Flashcard, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	if limit < len(s.due) {
		return s.due[:limit], nil
	}
	return s.due, nil
}

func (s *stubFlashcardStore) WithTx(_ *sql.Tx) store.FlashcardStore { return s }

// stubStateStore serves scheduling states from a map.
type stubStateStore struct {
	states map[uuid.UUID]domain.SchedulingState
	err    error
}

func (s *stubStateStore) Get(
	_ context.Context, learnerID, flashcardID uuid.UUID,
) (domain.SchedulingState, error) {
	if s.err != nil {
		return domain.SchedulingState{}, s.err
	}
	state, ok := s.states[flashcardID]
	if !ok {
		return domain.SchedulingState{}, store.ErrSchedulingStateNotFound
	}
	return state, nil
}

func (s *stubStateStore) GetForCards(
	_ context.Context, _ uuid.UUID, ids []uuid.UUID,
) (map[uuid.UUID]domain.SchedulingState, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[uuid.UUID]domain.SchedulingState)
	for _, id := range ids {
		if state, ok := s.states[id]; ok {
			out[id] = state
		}
	}
	return out, nil
}

func (s *stubStateStore) Upsert(_ context.Context, _ domain.SchedulingState) error { return nil }

func (s *stubStateStore) WithTx(_ *sql.Tx) store.SchedulingStateStore { return s }

type stubRatingStore struct{}

func (s *stubRatingStore) Create(_ context.Context, _ domain.RatingEvent) error { return nil }

func (s *stubRatingStore) WithTx(_ *sql.Tx) store.RatingEventStore { return s }

func testCard(prompt string) *domain.Flashcard {
	return &domain.Flashcard{
		ID:               uuid.New(),
		Prompt:           prompt,
		Answer:           "answer",
		TopicTags:        []string{"test"},
		SourceDifficulty: domain.DifficultyMedium,
		CreatedAt:        time.Now().UTC(),
	}
}

func newTestStore(t *testing.T, cfg Config) Store {
	t.Helper()
	if cfg.Flashcards == nil {
		cfg.Flashcards = &stubFlashcardStore{}
	}
	if cfg.States == nil {
		cfg.States = &stubStateStore{}
	}
	if cfg.Ratings == nil {
		cfg.Ratings = &stubRatingStore{}
	}
	return NewStore(cfg)
}

func TestGetDeck_NeverEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		generator generation.Generator
	}{
		{name: "no generator configured", generator: nil},
		{name: "generator fails", generator: &stubGenerator{err: generation.ErrGenerationFailed}},
		{name: "generator returns empty deck", generator: &stubGenerator{cards: nil}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t, Config{Generator: tc.generator})
			deck := s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 5})

			require.NotEmpty(t, deck)
			assert.Len(t, deck, 5)
			for _, card := range deck {
				assert.True(t, card.IsFallback)
				assert.True(t, card.HasTag(FallbackTag))
			}
		})
	}
}

func TestGetDeck_SizeDefaultsAndCaps(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Config{DefaultDeckSize: 4, MaxDeckSize: 6})

	deck := s.GetDeck(context.Background(), "go-basics", DeckOptions{})
	assert.Len(t, deck, 4, "unspecified count uses the default size")

	deck = s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 100})
	assert.Len(t, deck, 6, "oversized requests are capped")
}

func TestGetDeck_CachesGeneratedDecks(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{cards: []*domain.Flashcard{testCard("a"), testCard("b")}}
	s := newTestStore(t, Config{Generator: gen})

	first := s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 2})
	second := s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 2})

	assert.Equal(t, 1, gen.calls, "second fetch should hit the cache")
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestGetDeck_CacheExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	gen := &stubGenerator{cards: []*domain.Flashcard{testCard("a")}}
	s := newTestStore(t, Config{
		Generator: gen,
		CacheTTL:  10 * time.Minute,
		Now:       func() time.Time { return clock() },
	})

	s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 1})

	now = now.Add(11 * time.Minute)
	s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 1})

	assert.Equal(t, 2, gen.calls, "expired entry should trigger regeneration")
}

func TestGetDeck_DistinctOptionsCachedSeparately(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{cards: []*domain.Flashcard{testCard("a")}}
	s := newTestStore(t, Config{Generator: gen})

	s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 1, DifficultyMix: domain.DifficultyEasy})
	s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 1, DifficultyMix: domain.DifficultyHard})

	assert.Equal(t, 2, gen.calls)
}

func TestGetDeck_FallbackDecksAreNotCached(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: generation.ErrGenerationFailed}
	s := newTestStore(t, Config{Generator: gen})

	first := s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 3})
	require.True(t, first[0].IsFallback)

	// Generator recovers. The next fetch must consult it again rather than
	// replay a cached fallback deck.
	gen.err = nil
	gen.cards = []*domain.Flashcard{testCard("real")}

	second := s.GetDeck(context.Background(), "go-basics", DeckOptions{Count: 3})
	assert.False(t, second[0].IsFallback)
	assert.Equal(t, 2, gen.calls)
}

func TestGetDueCards_ReturnsStoreOrder(t *testing.T) {
	t.Parallel()

	cards := []*domain.Flashcard{testCard("oldest"), testCard("newer")}
	fc := &stubFlashcardStore{due: cards}
	s := newTestStore(t, Config{Flashcards: fc})

	got, err := s.GetDueCards(context.Background(), uuid.New(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "oldest", got[0].Prompt)
}

func TestGetDueCards_PropagatesBackendError(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("connection refused")
	fc := &stubFlashcardStore{dueErr: backendErr}
	s := newTestStore(t, Config{Flashcards: fc})

	got, err := s.GetDueCards(context.Background(), uuid.New(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, backendErr)
	assert.Nil(t, got)
}

func TestLoadStates_DefaultsForUnseenCards(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seen := testCard("seen")
	unseen := testCard("unseen")

	existing := domain.SchedulingState{
		LearnerID:       learnerID,
		FlashcardID:     seen.ID,
		EaseFactor:      2.2,
		IntervalDays:    6,
		RepetitionCount: 2,
		NextDueAt:       now.Add(24 * time.Hour),
	}

	ss := &stubStateStore{states: map[uuid.UUID]domain.SchedulingState{seen.ID: existing}}
	s := newTestStore(t, Config{
		States: ss,
		Now:    func() time.Time { return now },
	})

	states := s.LoadStates(context.Background(), learnerID, []*domain.Flashcard{seen, unseen})

	require.Len(t, states, 2)
	assert.Equal(t, existing, states[seen.ID])

	fresh := states[unseen.ID]
	assert.Equal(t, domain.DefaultEaseFactor, fresh.EaseFactor)
	assert.Equal(t, 0, fresh.RepetitionCount)
	assert.Equal(t, now, fresh.NextDueAt)
}

func TestLoadStates_BackendFailureYieldsDefaults(t *testing.T) {
	t.Parallel()

	cards := []*domain.Flashcard{testCard("a"), testCard("b")}
	ss := &stubStateStore{err: errors.New("connection refused")}
	s := newTestStore(t, Config{States: ss})

	states := s.LoadStates(context.Background(), uuid.New(), cards)

	require.Len(t, states, 2)
	for _, card := range cards {
		assert.Equal(t, domain.DefaultEaseFactor, states[card.ID].EaseFactor)
	}
}

func TestRecordOutcome_RejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Config{})

	event := domain.RatingEvent{} // missing everything
	state := domain.NewSchedulingState(uuid.New(), uuid.New(), time.Now().UTC())

	result := s.RecordOutcome(context.Background(), event, state)

	assert.False(t, result.Persisted)
	assert.ErrorIs(t, result.Err, ErrInvalidOutcome)
	assert.Zero(t, s.UnsyncedCount())
}

func TestRecordOutcome_NoQueueMeansUnsynced(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Config{})

	event, err := domain.NewRatingEvent(uuid.New(), uuid.New(), domain.RatingEasy, 1200, time.Now().UTC())
	require.NoError(t, err)
	state := domain.NewSchedulingState(event.LearnerID, event.FlashcardID, time.Now().UTC())

	result := s.RecordOutcome(context.Background(), event, state)

	assert.False(t, result.Persisted)
	assert.ErrorIs(t, result.Err, ErrNotAccepted)
	assert.Equal(t, int64(1), s.UnsyncedCount())
}

func TestPostpone_FromExistingState(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	card := testCard("a")
	due := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	ss := &stubStateStore{states: map[uuid.UUID]domain.SchedulingState{
		card.ID: {
			LearnerID:       learnerID,
			FlashcardID:     card.ID,
			EaseFactor:      2.5,
			IntervalDays:    6,
			RepetitionCount: 2,
			NextDueAt:       due,
		},
	}}
	s := newTestStore(t, Config{States: ss})

	state, result, err := s.Postpone(context.Background(), learnerID, card.ID, 3)
	require.NoError(t, err)

	assert.Equal(t, due.AddDate(0, 0, 3), state.NextDueAt)
	assert.Equal(t, 2, state.RepetitionCount, "postponing consumes no rating")
	assert.False(t, result.Persisted, "no queue configured, so nothing was accepted")
}

func TestPostpone_NeverReviewedCard(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, Config{Now: func() time.Time { return now }})

	state, _, err := s.Postpone(context.Background(), uuid.New(), uuid.New(), 2)
	require.NoError(t, err)

	assert.Equal(t, now.AddDate(0, 0, 2), state.NextDueAt)
	assert.Equal(t, domain.DefaultEaseFactor, state.EaseFactor)
}

func TestPostpone_RejectsInvalidDays(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Config{})

	_, _, err := s.Postpone(context.Background(), uuid.New(), uuid.New(), 0)
	assert.ErrorIs(t, err, srs.ErrInvalidDays)
}

func TestRecordOutcome_QueueFullReportsNotPersisted(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("pgx", "postgres://localhost:1/unused")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// A queue that is never started: the first submit occupies the buffer,
	// the second is refused.
	queue := task.NewQueue(task.QueueConfig{Size: 1, WorkerCount: 1}, nil)

	s := newTestStore(t, Config{DB: db, Queue: queue})

	event, err := domain.NewRatingEvent(uuid.New(), uuid.New(), domain.RatingMedium, 800, time.Now().UTC())
	require.NoError(t, err)
	state := domain.NewSchedulingState(event.LearnerID, event.FlashcardID, time.Now().UTC())

	first := s.RecordOutcome(context.Background(), event, state)
	assert.True(t, first.Persisted)
	assert.NoError(t, first.Err)

	second := s.RecordOutcome(context.Background(), event, state)
	assert.False(t, second.Persisted)
	assert.ErrorIs(t, second.Err, ErrNotAccepted)
	assert.Equal(t, int64(1), s.UnsyncedCount())
}

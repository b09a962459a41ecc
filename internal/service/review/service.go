package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/domain/srs"
	"github.com/recallhq/recall-api/internal/generation"
	"github.com/recallhq/recall-api/internal/platform/logger"
	"github.com/recallhq/recall-api/internal/store"
	"github.com/recallhq/recall-api/internal/task"
)

// Common error types for the review store
var (
	// ErrInvalidOutcome indicates a rating event or scheduling state that
	// fails validation before it ever reaches the write queue.
	ErrInvalidOutcome = errors.New("invalid review outcome")

	// ErrNotAccepted indicates the write queue refused the outcome (full or
	// shut down). The outcome is lost unless the caller retries.
	ErrNotAccepted = errors.New("outcome not accepted for persistence")
)

// DeckOptions shapes a GetDeck request.
type DeckOptions struct {
	// Count is the number of cards wanted. Zero means the caller's default.
	Count int

	// DifficultyMix selects the difficulty spread of the generated cards.
	DifficultyMix domain.Difficulty
}

// PersistResult reports what happened to a recorded outcome. Persisted means
// the write was accepted onto the background queue, not that it has reached
// storage. Persisted=false is never fatal to the session; Err says why, for
// display or retry decisions.
type PersistResult struct {
	Persisted bool
	Err       error
}

// Store provides decks to review, the due-card queue, and best-effort
// outcome recording.
type Store interface {
	// GetDeck returns a deck for the subject: cached if fresh, generated
	// otherwise, and a fixed clearly-marked fallback deck when generation
	// fails. The returned deck is never empty.
	GetDeck(ctx context.Context, subjectID string, opts DeckOptions) []*domain.Flashcard

	// GetDueCards returns flashcards due for the learner at the time of the
	// call, most overdue first, capped at limit. An error means the backend
	// was unreachable; callers treat that as an empty queue.
	GetDueCards(ctx context.Context, learnerID uuid.UUID, limit int) ([]*domain.Flashcard, error)

	// LoadStates returns the learner's scheduling state for every given
	// card, substituting the default state where none exists or the backend
	// is unreachable. The result always has one entry per card.
	LoadStates(
		ctx context.Context,
		learnerID uuid.UUID,
		cards []*domain.Flashcard,
	) map[uuid.UUID]domain.SchedulingState

	// RecordOutcome queues the rating event and its computed scheduling
	// state for persistence and returns immediately. Review progress never
	// blocks on network availability.
	RecordOutcome(
		ctx context.Context,
		event domain.RatingEvent,
		state domain.SchedulingState,
	) PersistResult

	// Postpone pushes a card's next due time forward by the given number of
	// days without consuming a rating. The updated state is returned along
	// with the usual best-effort persistence verdict.
	Postpone(
		ctx context.Context,
		learnerID, flashcardID uuid.UUID,
		days int,
	) (domain.SchedulingState, PersistResult, error)

	// UnsyncedCount reports how many outcomes have failed to persist since
	// startup, for a non-blocking "not saved" indicator.
	UnsyncedCount() int64
}

// storeImpl implements the Store interface.
type storeImpl struct {
	scheduler  srs.Service
	generator  generation.Generator
	flashcards store.FlashcardStore
	states     store.SchedulingStateStore
	ratings    store.RatingEventStore
	db         *sql.DB
	queue      *task.Queue
	cache      *deckCache
	logger     *slog.Logger
	nowFn      func() time.Time

	defaultDeckSize int
	maxDeckSize     int

	unsynced atomic.Int64
}

// Config holds the dependencies and settings for NewStore.
type Config struct {
	// Scheduler provides the interval arithmetic for Postpone. Nil means
	// the default scheduler.
	Scheduler srs.Service

	// Generator may be nil, in which case every GetDeck serves the fallback
	// deck. This keeps the engine usable with no API key configured.
	Generator generation.Generator

	Flashcards store.FlashcardStore
	States     store.SchedulingStateStore
	Ratings    store.RatingEventStore

	// DB is used for transactional outcome writes. It may be nil only when
	// Queue is nil too (a fully offline store).
	DB *sql.DB

	// Queue is the background write queue. Nil disables persistence; every
	// RecordOutcome then reports Persisted=false.
	Queue *task.Queue

	// CacheTTL bounds deck cache entries. Zero means 30 minutes.
	CacheTTL time.Duration

	// DefaultDeckSize is used when a request does not say how many cards it
	// wants. Zero means 10.
	DefaultDeckSize int

	// MaxDeckSize caps requested deck sizes. Zero means 50.
	MaxDeckSize int

	// Logger may be nil; slog.Default() is then used.
	Logger *slog.Logger

	// Now may be nil; time.Now is then used. Tests inject a fixed clock.
	Now func() time.Time
}

// NewStore creates a review store.
func NewStore(cfg Config) Store {
	if cfg.Flashcards == nil {
		panic("flashcard store cannot be nil")
	}
	if cfg.States == nil {
		panic("scheduling state store cannot be nil")
	}
	if cfg.Ratings == nil {
		panic("rating event store cannot be nil")
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	defaultSize := cfg.DefaultDeckSize
	if defaultSize <= 0 {
		defaultSize = 10
	}
	maxSize := cfg.MaxDeckSize
	if maxSize < defaultSize {
		maxSize = 50
	}

	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = srs.NewDefaultService()
	}

	return &storeImpl{
		scheduler:       scheduler,
		generator:       cfg.Generator,
		flashcards:      cfg.Flashcards,
		states:          cfg.States,
		ratings:         cfg.Ratings,
		db:              cfg.DB,
		queue:           cfg.Queue,
		cache:           newDeckCache(ttl),
		logger:          log.With(slog.String("component", "review_store")),
		nowFn:           nowFn,
		defaultDeckSize: defaultSize,
		maxDeckSize:     maxSize,
	}
}

// Ensure storeImpl implements Store
var _ Store = (*storeImpl)(nil)

// GetDeck implements Store.GetDeck.
func (s *storeImpl) GetDeck(
	ctx context.Context,
	subjectID string,
	opts DeckOptions,
) []*domain.Flashcard {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.nowFn()

	opts = s.normalizeOptions(opts)
	key := cacheKey(subjectID, opts)
	if cards, ok := s.cache.get(key, now); ok {
		log.Debug("serving deck from cache",
			slog.String("subject_id", subjectID),
			slog.Int("card_count", len(cards)))
		return cards
	}

	cards, err := s.generate(ctx, subjectID, opts)
	if err != nil {
		// GenerationUnavailable: substitute the fallback deck and keep the
		// session alive. Fallback decks are not cached so a recovered
		// generator is consulted on the very next fetch.
		log.Warn("content generation unavailable, serving fallback deck",
			slog.String("subject_id", subjectID),
			slog.String("error", err.Error()))
		return newFallbackDeck(opts.Count, now)
	}

	s.cache.put(key, cards, now)
	s.persistDeck(subjectID, cards)

	log.Info("deck generated",
		slog.String("subject_id", subjectID),
		slog.Int("card_count", len(cards)))
	return cards
}

// normalizeOptions fills in the default deck size, caps oversized requests
// and defaults the difficulty mix. Normalizing before the cache lookup keeps
// "no preference" and the explicit default sharing one cache entry.
func (s *storeImpl) normalizeOptions(opts DeckOptions) DeckOptions {
	if opts.Count <= 0 {
		opts.Count = s.defaultDeckSize
	}
	if opts.Count > s.maxDeckSize {
		opts.Count = s.maxDeckSize
	}
	if !opts.DifficultyMix.IsValid() {
		opts.DifficultyMix = domain.DifficultyMixed
	}
	return opts
}

// generate calls the content generator, treating an absent generator the same
// as a failing one.
func (s *storeImpl) generate(
	ctx context.Context,
	subjectID string,
	opts DeckOptions,
) ([]*domain.Flashcard, error) {
	if s.generator == nil {
		return nil, generation.ErrGenerationFailed
	}

	cards, err := s.generator.Generate(ctx, generation.Request{
		SubjectID:     subjectID,
		Count:         opts.Count,
		DifficultyMix: opts.DifficultyMix,
	})
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: generator returned an empty deck", generation.ErrInvalidResponse)
	}

	return cards, nil
}

// persistDeck saves a generated deck in the background so due-card review
// works across restarts. Losing the write costs nothing but regeneration.
func (s *storeImpl) persistDeck(subjectID string, cards []*domain.Flashcard) {
	if s.queue == nil || s.db == nil {
		return
	}

	err := s.queue.Submit(task.Job{
		Kind: "save_deck",
		Run: func(ctx context.Context) error {
			return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
				return s.flashcards.WithTx(tx).SaveDeck(ctx, subjectID, cards)
			})
		},
	})
	if err != nil {
		s.logger.Warn("deck save not queued",
			slog.String("subject_id", subjectID),
			slog.String("error", err.Error()))
	}
}

// GetDueCards implements Store.GetDueCards.
func (s *storeImpl) GetDueCards(
	ctx context.Context,
	learnerID uuid.UUID,
	limit int,
) ([]*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cards, err := s.flashcards.GetDue(ctx, learnerID, s.nowFn(), limit)
	if err != nil {
		log.Warn("due card lookup failed",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}

	return cards, nil
}

// LoadStates implements Store.LoadStates.
func (s *storeImpl) LoadStates(
	ctx context.Context,
	learnerID uuid.UUID,
	cards []*domain.Flashcard,
) map[uuid.UUID]domain.SchedulingState {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.nowFn()

	ids := make([]uuid.UUID, 0, len(cards))
	for _, card := range cards {
		if !card.IsFallback {
			ids = append(ids, card.ID)
		}
	}

	loaded, err := s.states.GetForCards(ctx, learnerID, ids)
	if err != nil {
		// PersistenceUnavailable is recoverable: schedule from defaults.
		log.Warn("scheduling state load failed, using defaults",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		loaded = nil
	}

	states := make(map[uuid.UUID]domain.SchedulingState, len(cards))
	for _, card := range cards {
		if state, ok := loaded[card.ID]; ok {
			states[card.ID] = state
		} else {
			states[card.ID] = domain.NewSchedulingState(learnerID, card.ID, now)
		}
	}

	return states
}

// RecordOutcome implements Store.RecordOutcome.
func (s *storeImpl) RecordOutcome(
	ctx context.Context,
	event domain.RatingEvent,
	state domain.SchedulingState,
) PersistResult {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := event.Validate(); err != nil {
		return PersistResult{Persisted: false, Err: fmt.Errorf("%w: %v", ErrInvalidOutcome, err)}
	}
	if err := state.Validate(); err != nil {
		return PersistResult{Persisted: false, Err: fmt.Errorf("%w: %v", ErrInvalidOutcome, err)}
	}

	if s.queue == nil || s.db == nil {
		s.unsynced.Add(1)
		return PersistResult{Persisted: false, Err: ErrNotAccepted}
	}

	err := s.queue.Submit(task.Job{
		Kind: "record_outcome",
		Run: func(ctx context.Context) error {
			return s.writeOutcome(ctx, event, state)
		},
	})
	if err != nil {
		s.unsynced.Add(1)
		log.Warn("outcome not queued for persistence",
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()))
		return PersistResult{Persisted: false, Err: fmt.Errorf("%w: %v", ErrNotAccepted, err)}
	}

	return PersistResult{Persisted: true}
}

// writeOutcome stores one rating event and its scheduling state atomically.
// Runs on a queue worker; a failure here is counted, logged and otherwise
// dropped on the floor by policy.
func (s *storeImpl) writeOutcome(
	ctx context.Context,
	event domain.RatingEvent,
	state domain.SchedulingState,
) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ratings.WithTx(tx).Create(ctx, event); err != nil {
			// A duplicate means a retried write already landed; not a loss.
			if errors.Is(err, store.ErrDuplicate) {
				return nil
			}
			return err
		}
		return s.states.WithTx(tx).Upsert(ctx, state)
	})
	if err != nil {
		s.unsynced.Add(1)
		s.logger.Warn("outcome write failed",
			slog.String("event_id", event.ID.String()),
			slog.String("flashcard_id", event.FlashcardID.String()),
			slog.String("error", err.Error()))
		return err
	}

	return nil
}

// Postpone implements Store.Postpone. A card the learner has never reviewed
// postpones from a fresh default state, so "remind me in three days" works
// on new material too.
func (s *storeImpl) Postpone(
	ctx context.Context,
	learnerID, flashcardID uuid.UUID,
	days int,
) (domain.SchedulingState, PersistResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.nowFn()

	prior, err := s.states.Get(ctx, learnerID, flashcardID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Warn("scheduling state load failed, postponing from default",
				slog.String("learner_id", learnerID.String()),
				slog.String("flashcard_id", flashcardID.String()),
				slog.String("error", err.Error()))
		}
		prior = domain.NewSchedulingState(learnerID, flashcardID, now)
	}

	next, err := s.scheduler.PostponeReview(prior, days, now)
	if err != nil {
		return domain.SchedulingState{}, PersistResult{}, err
	}

	result := s.persistState(next)
	return next, result, nil
}

// persistState queues a scheduling state upsert on its own, outside any
// rating event.
func (s *storeImpl) persistState(state domain.SchedulingState) PersistResult {
	if s.queue == nil || s.db == nil {
		s.unsynced.Add(1)
		return PersistResult{Persisted: false, Err: ErrNotAccepted}
	}

	err := s.queue.Submit(task.Job{
		Kind: "upsert_state",
		Run: func(ctx context.Context) error {
			err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
				return s.states.WithTx(tx).Upsert(ctx, state)
			})
			if err != nil {
				s.unsynced.Add(1)
			}
			return err
		},
	})
	if err != nil {
		s.unsynced.Add(1)
		return PersistResult{Persisted: false, Err: fmt.Errorf("%w: %v", ErrNotAccepted, err)}
	}

	return PersistResult{Persisted: true}
}

// UnsyncedCount implements Store.UnsyncedCount.
func (s *storeImpl) UnsyncedCount() int64 {
	return s.unsynced.Load()
}

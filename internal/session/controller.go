package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/domain/srs"
	"github.com/recallhq/recall-api/internal/events"
	"github.com/recallhq/recall-api/internal/platform/logger"
	"github.com/recallhq/recall-api/internal/service/review"
)

// Common error types for session operations
var (
	// ErrSessionNotFound indicates no live session with the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoDueCards indicates a due-card session was requested but nothing
	// is due (or the backend was unreachable, which reads the same).
	ErrNoDueCards = errors.New("no cards due for review")
)

// Bounds for a due-queue session when the caller leaves the limit out or
// asks for too much.
const (
	defaultDueSessionLimit = 50
	maxDueSessionLimit     = 100
)

// RateResult reports the outcome of a rating attempt. Applied is false when
// the intent was ignored (wrong state, already-rated card); the session is
// unchanged in that case.
type RateResult struct {
	Applied   bool
	Persisted bool
	View      View
}

// Controller manages live review sessions. It is safe for concurrent use;
// each session serializes its own transitions.
type Controller struct {
	reviews   review.Store
	scheduler srs.Service
	emitter   events.ProgressEmitter
	logger    *slog.Logger
	nowFn     func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// ControllerConfig holds the dependencies for NewController.
type ControllerConfig struct {
	Reviews   review.Store
	Scheduler srs.Service

	// Emitter may be nil; progress events are then dropped.
	Emitter events.ProgressEmitter

	// Logger may be nil; slog.Default() is then used.
	Logger *slog.Logger

	// Now may be nil; time.Now is then used.
	Now func() time.Time
}

// NewController creates a session controller.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Reviews == nil {
		panic("review store cannot be nil")
	}
	if cfg.Scheduler == nil {
		panic("scheduler cannot be nil")
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	return &Controller{
		reviews:   cfg.Reviews,
		scheduler: cfg.Scheduler,
		emitter:   cfg.Emitter,
		logger:    log.With(slog.String("component", "session_controller")),
		nowFn:     nowFn,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Start opens a session over a fresh deck for the subject. The deck comes
// from the review store and is never empty, so the session begins Active on
// its first card.
func (c *Controller) Start(
	ctx context.Context,
	learnerID uuid.UUID,
	subjectID string,
	opts review.DeckOptions,
) View {
	log := logger.FromContextOrDefault(ctx, c.logger)
	now := c.nowFn()

	deck := c.reviews.GetDeck(ctx, subjectID, opts)
	states := c.reviews.LoadStates(ctx, learnerID, deck)

	s := newSession(learnerID, subjectID, deck, states, now)
	c.register(s)

	log.Info("session started",
		slog.String("session_id", s.id.String()),
		slog.String("learner_id", learnerID.String()),
		slog.String("subject_id", subjectID),
		slog.Int("card_count", len(deck)))

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// StartDue opens a session over the learner's due queue, most overdue first.
// An omitted or non-positive limit gets the default; oversized limits are
// capped.
func (c *Controller) StartDue(
	ctx context.Context,
	learnerID uuid.UUID,
	limit int,
) (View, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	now := c.nowFn()

	if limit <= 0 {
		limit = defaultDueSessionLimit
	}
	if limit > maxDueSessionLimit {
		limit = maxDueSessionLimit
	}

	deck, err := c.reviews.GetDueCards(ctx, learnerID, limit)
	if err != nil {
		// An unreachable backend reads as an empty queue; the learner can
		// still start a subject session instead.
		return View{}, fmt.Errorf("%w: %v", ErrNoDueCards, err)
	}
	if len(deck) == 0 {
		return View{}, ErrNoDueCards
	}

	states := c.reviews.LoadStates(ctx, learnerID, deck)

	s := newSession(learnerID, "", deck, states, now)
	c.register(s)

	log.Info("due session started",
		slog.String("session_id", s.id.String()),
		slog.String("learner_id", learnerID.String()),
		slog.Int("card_count", len(deck)))

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// Get returns a snapshot of a live session.
func (c *Controller) Get(sessionID uuid.UUID) (View, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// Flip reveals the current card's answer. Ignored unless the prompt is
// showing.
func (c *Controller) Flip(sessionID uuid.UUID) (View, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flip()
	return s.view(), nil
}

// Navigate moves the cursor by delta, clamped to the deck, hiding any
// revealed answer. Ignored when the session is complete.
func (c *Controller) Navigate(sessionID uuid.UUID, delta int) (View, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigate(delta, c.nowFn())
	return s.view(), nil
}

// Rate accepts a rating for the current card. The intent is ignored unless
// the answer is showing on the first unrated card, so revisited cards cannot
// be rated twice and a prompt cannot be rated unseen.
func (c *Controller) Rate(
	ctx context.Context,
	sessionID uuid.UUID,
	rating domain.Rating,
) (RateResult, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return RateResult{}, err
	}

	log := logger.FromContextOrDefault(ctx, c.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFlipped || !s.atUnratedFrontier() {
		return RateResult{View: s.view()}, nil
	}

	card := s.currentCard()
	if card == nil {
		return RateResult{View: s.view()}, nil
	}

	now := c.nowFn()
	latency := now.Sub(s.cardShownAt).Milliseconds()
	if latency < 0 {
		latency = 0
	}

	prior, ok := s.states[card.ID]
	if !ok {
		prior = domain.NewSchedulingState(s.learnerID, card.ID, now)
	}

	next, err := c.scheduler.ComputeNextState(prior, rating, now)
	if err != nil {
		return RateResult{View: s.view()}, fmt.Errorf("failed to compute next state: %w", err)
	}

	event, err := domain.NewRatingEvent(s.learnerID, card.ID, rating, latency, now)
	if err != nil {
		return RateResult{View: s.view()}, fmt.Errorf("failed to build rating event: %w", err)
	}

	// Fallback cards exist only to keep a session going while generation is
	// down; their outcomes carry no long-term scheduling value.
	persisted := true
	if !card.IsFallback {
		result := c.reviews.RecordOutcome(ctx, event, next)
		persisted = result.Persisted
		if result.Err != nil {
			log.Warn("rating outcome not persisted",
				slog.String("session_id", s.id.String()),
				slog.String("flashcard_id", card.ID.String()),
				slog.String("error", result.Err.Error()))
		}
	}

	outcome := Outcome{
		FlashcardID: card.ID,
		Rating:      rating,
		IsCorrect:   rating.IsCorrect(),
		Persisted:   persisted,
		RatedAt:     now,
	}
	s.applyOutcome(outcome, next, now)

	if c.emitter != nil {
		c.emitter.EmitProgress(ctx, events.ReviewProgress{
			SessionID:   s.id,
			FlashcardID: card.ID,
			Rating:      rating,
			IsCorrect:   outcome.IsCorrect,
			OccurredAt:  now,
		})
	}

	return RateResult{Applied: true, Persisted: persisted, View: s.view()}, nil
}

// End removes the session and returns its summary. A session ended before
// the last rating keeps the outcomes it has.
func (c *Controller) End(sessionID uuid.UUID) (Summary, error) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if ok {
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()

	if !ok {
		return Summary{}, ErrSessionNotFound
	}

	now := c.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		s.state = StateComplete
		s.completedAt = now
	}

	summary := s.summary(now)

	c.logger.Info("session ended",
		slog.String("session_id", s.id.String()),
		slog.Int("total_cards", summary.TotalCards),
		slog.Int("correct_count", summary.CorrectCount))

	return summary, nil
}

// Summary returns the tally for a live session without ending it.
func (c *Controller) Summary(sessionID uuid.UUID) (Summary, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return Summary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary(c.nowFn()), nil
}

func (c *Controller) register(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.id] = s
}

func (c *Controller) lookup(sessionID uuid.UUID) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

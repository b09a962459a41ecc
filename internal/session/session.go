// Package session implements the review session state machine: one learner
// working through one deck, card by card. The controller owns all transitions;
// invalid intents are ignored rather than treated as errors, since a stale
// button press is normal interactive behavior, not a fault.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/domain"
)

// State identifies where a session is in its lifecycle.
type State string

const (
	// StateActive means a card's prompt is showing, answer hidden.
	StateActive State = "active"

	// StateFlipped means the current card's answer is revealed.
	StateFlipped State = "flipped"

	// StateComplete means every card has been rated or the session was ended.
	StateComplete State = "complete"
)

// Outcome records one accepted rating within a session.
type Outcome struct {
	FlashcardID uuid.UUID     `json:"flashcard_id"`
	Rating      domain.Rating `json:"rating"`
	IsCorrect   bool          `json:"is_correct"`
	Persisted   bool          `json:"persisted"`
	RatedAt     time.Time     `json:"rated_at"`
}

// Summary describes a finished session.
type Summary struct {
	SessionID    uuid.UUID `json:"session_id"`
	TotalCards   int       `json:"total_cards"`
	CorrectCount int       `json:"correct_count"`
	Accuracy     float64   `json:"accuracy"`
	DurationMs   int64     `json:"duration_ms"`
}

// View is a read snapshot of a session, safe to hand to transport layers.
// Answer is populated only while the current card is flipped.
type View struct {
	SessionID  uuid.UUID `json:"session_id"`
	LearnerID  uuid.UUID `json:"learner_id"`
	State      State     `json:"state"`
	CardIndex  int       `json:"card_index"`
	TotalCards int       `json:"total_cards"`
	RatedCount int       `json:"rated_count"`

	Prompt     string   `json:"prompt,omitempty"`
	Answer     string   `json:"answer,omitempty"`
	TopicTags  []string `json:"topic_tags,omitempty"`
	IsFallback bool     `json:"is_fallback,omitempty"`
}

// Session holds the state of one in-progress review. All mutation goes
// through the Controller; the embedded mutex serializes it.
type Session struct {
	mu sync.Mutex

	id        uuid.UUID
	learnerID uuid.UUID
	subjectID string

	deck   []*domain.Flashcard
	states map[uuid.UUID]domain.SchedulingState

	state    State
	cursor   int
	outcomes []Outcome

	startedAt   time.Time
	cardShownAt time.Time
	completedAt time.Time
}

func newSession(
	learnerID uuid.UUID,
	subjectID string,
	deck []*domain.Flashcard,
	states map[uuid.UUID]domain.SchedulingState,
	now time.Time,
) *Session {
	s := &Session{
		id:          uuid.New(),
		learnerID:   learnerID,
		subjectID:   subjectID,
		deck:        deck,
		states:      states,
		state:       StateActive,
		outcomes:    make([]Outcome, 0, len(deck)),
		startedAt:   now,
		cardShownAt: now,
	}
	if len(deck) == 0 {
		s.state = StateComplete
		s.completedAt = now
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// currentCard returns the card under the cursor. Callers hold s.mu.
func (s *Session) currentCard() *domain.Flashcard {
	if s.cursor < 0 || s.cursor >= len(s.deck) {
		return nil
	}
	return s.deck[s.cursor]
}

// atUnratedFrontier reports whether the cursor sits on the first card that
// has not been rated yet. Rating is only legal there; a card the learner
// navigated back to has already consumed its one rating. Callers hold s.mu.
func (s *Session) atUnratedFrontier() bool {
	return s.cursor == len(s.outcomes)
}

// flip reveals the answer. No-op unless a prompt is currently showing.
// Callers hold s.mu.
func (s *Session) flip() bool {
	if s.state != StateActive {
		return false
	}
	s.state = StateFlipped
	return true
}

// navigate moves the cursor by delta, clamped to the deck bounds, and hides
// the answer again. Callers hold s.mu.
func (s *Session) navigate(delta int, now time.Time) bool {
	if s.state != StateActive && s.state != StateFlipped {
		return false
	}

	target := s.cursor + delta
	if target < 0 {
		target = 0
	}
	if max := len(s.deck) - 1; target > max {
		target = max
	}

	moved := target != s.cursor
	flippedBack := s.state == StateFlipped

	if !moved && !flippedBack {
		return false
	}

	s.cursor = target
	s.state = StateActive
	if moved {
		s.cardShownAt = now
	}
	return true
}

// applyOutcome records a rating, advances past the rated card and completes
// the session on the last one. Callers hold s.mu and have already checked
// the transition is legal.
func (s *Session) applyOutcome(outcome Outcome, nextState domain.SchedulingState, now time.Time) {
	s.outcomes = append(s.outcomes, outcome)
	s.states[outcome.FlashcardID] = nextState

	if len(s.outcomes) == len(s.deck) {
		s.state = StateComplete
		s.completedAt = now
		return
	}

	s.cursor = len(s.outcomes)
	s.state = StateActive
	s.cardShownAt = now
}

// view builds a snapshot. Callers hold s.mu.
func (s *Session) view() View {
	v := View{
		SessionID:  s.id,
		LearnerID:  s.learnerID,
		State:      s.state,
		CardIndex:  s.cursor,
		TotalCards: len(s.deck),
		RatedCount: len(s.outcomes),
	}

	card := s.currentCard()
	if card == nil || s.state == StateComplete {
		return v
	}

	v.Prompt = card.Prompt
	v.TopicTags = card.TopicTags
	v.IsFallback = card.IsFallback
	if s.state == StateFlipped {
		v.Answer = card.Answer
	}
	return v
}

// summary computes the final tally. Accuracy is the share of rated cards not
// rated "again", zero when nothing was rated. Callers hold s.mu.
func (s *Session) summary(now time.Time) Summary {
	end := s.completedAt
	if end.IsZero() {
		end = now
	}

	correct := 0
	for _, o := range s.outcomes {
		if o.IsCorrect {
			correct++
		}
	}

	total := len(s.outcomes)
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}

	return Summary{
		SessionID:    s.id,
		TotalCards:   total,
		CorrectCount: correct,
		Accuracy:     accuracy,
		DurationMs:   end.Sub(s.startedAt).Milliseconds(),
	}
}

package api

import (
	"time"

	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/session"
)

// CreateSessionRequest represents the request body for starting a session.
// Source selects where the deck comes from: "subject" generates (or reuses)
// a deck for SubjectID, "due" reviews the learner's due queue.
type CreateSessionRequest struct {
	LearnerID     string `json:"learner_id"     validate:"required,uuid"`
	Source        string `json:"source"         validate:"omitempty,oneof=subject due"`
	SubjectID     string `json:"subject_id"     validate:"required_unless=Source due,omitempty,max=200"`
	Count         int    `json:"count"          validate:"omitempty,min=1,max=100"`
	DifficultyMix string `json:"difficulty_mix" validate:"omitempty,oneof=easy medium hard mixed"`
	Limit         int    `json:"limit"          validate:"omitempty,min=1,max=100"`
}

// RateRequest represents the request body for rating the current card.
type RateRequest struct {
	Rating string `json:"rating" validate:"required,oneof=again hard medium easy"`
}

// PostponeRequest represents the request body for postponing a card.
type PostponeRequest struct {
	Days int `json:"days" validate:"required,min=1,max=365"`
}

// PostponeResponse represents the rescheduled card state.
type PostponeResponse struct {
	FlashcardID string    `json:"flashcard_id"`
	NextDueAt   time.Time `json:"next_due_at"`
	Persisted   bool      `json:"persisted"`
}

// NavigateRequest represents the request body for moving through the deck.
type NavigateRequest struct {
	Delta int `json:"delta" validate:"required,min=-100,max=100"`
}

// SessionResponse represents the session state returned to clients.
type SessionResponse struct {
	SessionID  string   `json:"session_id"`
	LearnerID  string   `json:"learner_id"`
	State      string   `json:"state"`
	CardIndex  int      `json:"card_index"`
	TotalCards int      `json:"total_cards"`
	RatedCount int      `json:"rated_count"`
	Prompt     string   `json:"prompt,omitempty"`
	Answer     string   `json:"answer,omitempty"`
	TopicTags  []string `json:"topic_tags,omitempty"`
	IsFallback bool     `json:"is_fallback,omitempty"`
}

// RateResponse represents the result of a rating attempt.
type RateResponse struct {
	Applied   bool            `json:"applied"`
	Persisted bool            `json:"persisted"`
	Session   SessionResponse `json:"session"`
}

// SummaryResponse represents the final tally of a finished session.
type SummaryResponse struct {
	SessionID    string  `json:"session_id"`
	TotalCards   int     `json:"total_cards"`
	CorrectCount int     `json:"correct_count"`
	Accuracy     float64 `json:"accuracy"`
	DurationMs   int64   `json:"duration_ms"`
}

// FlashcardResponse represents one card in a due-queue listing.
type FlashcardResponse struct {
	ID               string    `json:"id"`
	Prompt           string    `json:"prompt"`
	Answer           string    `json:"answer"`
	TopicTags        []string  `json:"topic_tags,omitempty"`
	SourceDifficulty string    `json:"source_difficulty"`
	CreatedAt        time.Time `json:"created_at"`
}

// DueCardsResponse represents the learner's due queue.
type DueCardsResponse struct {
	Cards         []FlashcardResponse `json:"cards"`
	UnsyncedCount int64               `json:"unsynced_count"`
}

func viewToResponse(v session.View) SessionResponse {
	return SessionResponse{
		SessionID:  v.SessionID.String(),
		LearnerID:  v.LearnerID.String(),
		State:      string(v.State),
		CardIndex:  v.CardIndex,
		TotalCards: v.TotalCards,
		RatedCount: v.RatedCount,
		Prompt:     v.Prompt,
		Answer:     v.Answer,
		TopicTags:  v.TopicTags,
		IsFallback: v.IsFallback,
	}
}

func summaryToResponse(s session.Summary) SummaryResponse {
	return SummaryResponse{
		SessionID:    s.SessionID.String(),
		TotalCards:   s.TotalCards,
		CorrectCount: s.CorrectCount,
		Accuracy:     s.Accuracy,
		DurationMs:   s.DurationMs,
	}
}

func cardToResponse(card *domain.Flashcard) FlashcardResponse {
	return FlashcardResponse{
		ID:               card.ID.String(),
		Prompt:           card.Prompt,
		Answer:           card.Answer,
		TopicTags:        card.TopicTags,
		SourceDifficulty: string(card.SourceDifficulty),
		CreatedAt:        card.CreatedAt,
	}
}

package review

import (
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/domain"
)

// FallbackTag is the topic tag carried by every fallback card, in addition to
// the IsFallback marker, so even a tag-only display distinguishes them.
const FallbackTag = "fallback"

// fallbackCardContent is the fixed set of generic study-skills cards served
// when the content generator is unavailable. Deliberately subject-agnostic.
var fallbackCardContent = []struct {
	prompt string
	answer string
}{
	{
		prompt: "What is active recall?",
		answer: "Retrieving information from memory without looking at the source, which strengthens retention far more than re-reading.",
	},
	{
		prompt: "Why are review intervals spaced further and further apart?",
		answer: "Each successful recall slows forgetting, so the next review can wait longer while still arriving before the memory fades.",
	},
	{
		prompt: "What should you do when you cannot recall an answer?",
		answer: "Rate it honestly as a failure. The card returns sooner, which is exactly what the memory needs.",
	},
	{
		prompt: "Is it better to study in one long session or several short ones?",
		answer: "Several short ones. Distributing practice across days beats massed practice of the same total duration.",
	},
	{
		prompt: "Why rate a card 'hard' instead of 'again' when you eventually recalled it?",
		answer: "A slow or effortful recall is still a recall. 'Again' is for failures; 'hard' keeps the schedule honest without resetting progress.",
	},
	{
		prompt: "Does reviewing a card slightly late ruin the schedule?",
		answer: "No. A late successful recall is a strong signal, and the schedule adapts from whenever the review actually happens.",
	},
}

// newFallbackDeck builds a deck of the requested size from the fixed fallback
// set, cycling when count exceeds it. Every card is explicitly marked so the
// UI can never present fallback content as generated content.
func newFallbackDeck(count int, now time.Time) []*domain.Flashcard {
	if count <= 0 {
		count = len(fallbackCardContent)
	}

	cards := make([]*domain.Flashcard, 0, count)
	for i := 0; i < count; i++ {
		content := fallbackCardContent[i%len(fallbackCardContent)]
		cards = append(cards, &domain.Flashcard{
			ID:               uuid.New(),
			Prompt:           content.prompt,
			Answer:           content.answer,
			TopicTags:        []string{FallbackTag},
			SourceDifficulty: domain.DifficultyMixed,
			IsFallback:       true,
			CreatedAt:        now,
		})
	}

	return cards
}

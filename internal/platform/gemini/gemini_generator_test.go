package gemini

import (
	"io"
	"log/slog"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-api/internal/config"
	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/generation"
)

// newTestGenerator builds a generator without a live client, enough to
// exercise prompt rendering and response parsing.
func newTestGenerator(t *testing.T) *GeminiGenerator {
	t.Helper()

	promptTemplate, err := template.New("flashcards").Parse(defaultPromptTemplate)
	require.NoError(t, err)

	return &GeminiGenerator{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		config:         config.GenerationConfig{ModelName: "test-model"},
		promptTemplate: promptTemplate,
		model:          "test-model",
	}
}

func TestCreatePrompt(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	prompt, err := g.createPrompt(generation.Request{
		SubjectID:     "cell biology",
		Count:         5,
		DifficultyMix: domain.DifficultyHard,
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "cell biology")
	assert.Contains(t, prompt, "Number of cards: 5")
	assert.Contains(t, prompt, "hard")

	_, err = g.createPrompt(generation.Request{Count: 5})
	assert.ErrorIs(t, err, ErrEmptySubjectID)

	_, err = g.createPrompt(generation.Request{SubjectID: "x", Count: 0})
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestCreatePromptDefaultsUnknownDifficultyToMixed(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	prompt, err := g.createPrompt(generation.Request{SubjectID: "x", Count: 1})
	require.NoError(t, err)
	assert.Contains(t, prompt, "mixed")
}

func TestParseResponse(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	response := &ResponseSchema{
		Cards: []CardSchema{
			{Prompt: "What is a ribosome?", Answer: "The cell's protein factory.", Tags: []string{"organelles"}},
			{Prompt: "What is ATP?", Answer: "The cell's energy currency."},
			{Prompt: "Extra card", Answer: "Beyond the requested count."},
		},
	}

	cards, err := g.parseResponse(response, generation.Request{
		SubjectID:     "cell biology",
		Count:         2,
		DifficultyMix: domain.DifficultyMedium,
	})
	require.NoError(t, err)
	require.Len(t, cards, 2, "result is capped at the requested count")
	assert.Equal(t, "What is a ribosome?", cards[0].Prompt)
	assert.Equal(t, domain.DifficultyMedium, cards[0].SourceDifficulty)
	assert.False(t, cards[0].IsFallback)
}

func TestParseResponseRejectsBadCards(t *testing.T) {
	t.Parallel()
	g := newTestGenerator(t)

	_, err := g.parseResponse(&ResponseSchema{}, generation.Request{SubjectID: "x", Count: 1})
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)

	_, err = g.parseResponse(&ResponseSchema{
		Cards: []CardSchema{{Prompt: "", Answer: "orphan answer"}},
	}, generation.Request{SubjectID: "x", Count: 1})
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
}

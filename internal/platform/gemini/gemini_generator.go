package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/recallhq/recall-api/internal/config"
	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/generation"
)

// defaultPromptTemplate asks the model for strict JSON matching ResponseSchema.
const defaultPromptTemplate = `You are generating study flashcards.

Subject: {{.SubjectID}}
Number of cards: {{.Count}}
Difficulty: {{.DifficultyMix}}

Produce exactly {{.Count}} flashcards about the subject at the requested
difficulty ("mixed" means a spread from easy to hard). Respond with JSON only,
no prose, in the form:
{"cards":[{"prompt":"...","answer":"...","tags":["..."]}]}
`

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API to generate flashcards for a subject.
type GeminiGenerator struct {
	logger         *slog.Logger
	config         config.GenerationConfig
	promptTemplate *template.Template
	client         *genai.Client
	model          string
}

// Ensure GeminiGenerator implements generation.Generator
var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a new GeminiGenerator with the provided
// dependencies. Returns an error wrapping generation.ErrInvalidConfig if the
// configuration is unusable.
func NewGeminiGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.GenerationConfig,
) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	promptTemplate, err := template.New("flashcards").Parse(defaultPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger:         logger.With(slog.String("component", "gemini_generator")),
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.ModelName,
	}, nil
}

// Generate implements generation.Generator. It renders the prompt, calls the
// Gemini API with retry, and maps the response to domain flashcards.
func (g *GeminiGenerator) Generate(
	ctx context.Context,
	req generation.Request,
) ([]*domain.Flashcard, error) {
	prompt, err := g.createPrompt(req)
	if err != nil {
		return nil, err
	}

	response, err := g.callGeminiWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return g.parseResponse(response, req)
}

// createPrompt renders the prompt template for a generation request.
func (g *GeminiGenerator) createPrompt(req generation.Request) (string, error) {
	if req.SubjectID == "" {
		return "", ErrEmptySubjectID
	}
	if req.Count <= 0 {
		return "", ErrInvalidCount
	}

	mix := req.DifficultyMix
	if !mix.IsValid() {
		mix = domain.DifficultyMixed
	}

	var promptBuffer bytes.Buffer
	data := promptData{
		SubjectID:     req.SubjectID,
		Count:         req.Count,
		DifficultyMix: string(mix),
	}
	if err := g.promptTemplate.Execute(&promptBuffer, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return promptBuffer.String(), nil
}

// callGeminiWithRetry makes a call to the Gemini API with exponential backoff
// retry logic. Transient API errors are retried up to config.MaxRetries times;
// permanent errors (blocked content, malformed response) are returned
// immediately.
func (g *GeminiGenerator) callGeminiWithRetry(
	ctx context.Context,
	prompt string,
) (*ResponseSchema, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}

	baseDelaySeconds := g.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		g.logger.WarnContext(ctx, "invalid retry delay value, using default", "base_delay_seconds", 2)
		baseDelaySeconds = 2
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	generateConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1 // 1-based for logging
		g.logger.DebugContext(ctx, "making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		response, transient, err := g.callOnce(ctx, prompt, generateConfig)
		if err == nil {
			g.logger.DebugContext(ctx, "Gemini API call successful", "attempt", attemptNum)
			return response, nil
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		if !transient {
			return nil, err
		}

		if attempt >= maxRetries {
			g.logger.WarnContext(ctx, "maximum retry attempts reached", "max_retries", maxRetries)
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d)",
				generation.ErrTransientFailure, maxRetries)
		}

		// Exponential backoff with jitter:
		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			g.logger.WarnContext(ctx, "API call cancelled during retry delay",
				"attempt", attemptNum,
				"ctx_err", ctx.Err())
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callOnce performs a single Gemini call and classifies any failure as
// transient (retryable) or permanent.
func (g *GeminiGenerator) callOnce(
	ctx context.Context,
	prompt string,
	generateConfig *genai.GenerateContentConfig,
) (*ResponseSchema, bool, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), generateConfig)
	if err != nil {
		// Network and quota errors are worth retrying.
		return nil, true, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, false, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, false, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}

	text := resp.Text()
	if text == "" {
		return nil, false, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false, fmt.Errorf("%w: failed to parse JSON response: %v",
			generation.ErrInvalidResponse, err)
	}

	return &parsed, false, nil
}

// parseResponse converts a ResponseSchema into domain flashcards, validating
// each card and capping the result at the requested count.
func (g *GeminiGenerator) parseResponse(
	response *ResponseSchema,
	req generation.Request,
) ([]*domain.Flashcard, error) {
	if len(response.Cards) == 0 {
		return nil, fmt.Errorf("%w: response contained no cards", generation.ErrInvalidResponse)
	}

	difficulty := req.DifficultyMix
	if !difficulty.IsValid() {
		difficulty = domain.DifficultyMixed
	}

	cards := make([]*domain.Flashcard, 0, len(response.Cards))
	for i, schema := range response.Cards {
		card, err := domain.NewFlashcard(schema.Prompt, schema.Answer, schema.Tags, difficulty)
		if err != nil {
			return nil, fmt.Errorf("%w: card %d invalid: %v", generation.ErrInvalidResponse, i, err)
		}
		cards = append(cards, card)

		if len(cards) == req.Count {
			break
		}
	}

	g.logger.Debug("parsed generated deck",
		slog.String("subject_id", req.SubjectID),
		slog.Int("requested", req.Count),
		slog.Int("returned", len(cards)))
	return cards, nil
}

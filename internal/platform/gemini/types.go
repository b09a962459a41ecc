// Package gemini implements the generation interface using Google's Gemini API.
package gemini

// promptData represents the data passed to the prompt template
type promptData struct {
	SubjectID     string
	Count         int
	DifficultyMix string
}

// ResponseSchema represents the expected structure of the Gemini API response
type ResponseSchema struct {
	// Cards is the array of flashcards generated for the subject
	Cards []CardSchema `json:"cards"`
}

// CardSchema represents a single flashcard in the API response
type CardSchema struct {
	// Prompt is the question side of the flashcard
	Prompt string `json:"prompt"`

	// Answer is the answer side of the flashcard
	Answer string `json:"answer"`

	// Tags are optional topic labels for the flashcard
	Tags []string `json:"tags,omitempty"`
}

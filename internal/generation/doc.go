// Package generation defines the boundary to the external content generator
// that produces flashcards for a subject. It abstracts the details of LLM API
// integration (Gemini), allowing the review store to request decks without
// coupling to a specific external service.
package generation

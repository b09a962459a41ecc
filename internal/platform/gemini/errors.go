package gemini

import "errors"

// Errors specific to the Gemini generator
var (
	// ErrEmptySubjectID is returned when a generation request names no subject.
	ErrEmptySubjectID = errors.New("subject ID cannot be empty")

	// ErrInvalidCount is returned when a generation request asks for a
	// non-positive number of cards.
	ErrInvalidCount = errors.New("card count must be positive")
)

// Package domain defines the core business entities of the review engine:
// flashcards, per-learner scheduling state, and rating events.
package domain

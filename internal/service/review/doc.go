// Package review implements the review store: it supplies decks (generated,
// cached, or fallback), serves the due-card queue, and records review
// outcomes with a deliberately best-effort persistence policy. A learner must
// be able to finish a review session with zero network connectivity.
package review

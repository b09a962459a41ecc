package review

import (
	"fmt"
	"sync"
	"time"

	"github.com/recallhq/recall-api/internal/domain"
)

// deckCache holds generated decks keyed by subject and request shape, each
// entry valid for a fixed TTL. Entries are invalidated lazily on read; at the
// expected read volume a background sweep would be pure overhead.
type deckCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]deckEntry
}

type deckEntry struct {
	cards    []*domain.Flashcard
	storedAt time.Time
}

func newDeckCache(ttl time.Duration) *deckCache {
	return &deckCache{
		ttl:     ttl,
		entries: make(map[string]deckEntry),
	}
}

// cacheKey includes the request shape: a ten-card easy deck and a fifty-card
// hard deck for the same subject are different decks.
func cacheKey(subjectID string, opts DeckOptions) string {
	return fmt.Sprintf("%s|%d|%s", subjectID, opts.Count, opts.DifficultyMix)
}

// get returns the cached deck for key if present and unexpired. An expired
// entry is deleted on the spot.
func (c *deckCache) get(key string, now time.Time) ([]*domain.Flashcard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if now.Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}

	// Hand out a copied slice so callers can reorder without corrupting the
	// cached deck. The cards themselves are immutable.
	cards := make([]*domain.Flashcard, len(entry.cards))
	copy(cards, entry.cards)
	return cards, true
}

// put stores a deck under key.
func (c *deckCache) put(key string, cards []*domain.Flashcard, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]*domain.Flashcard, len(cards))
	copy(stored, cards)
	c.entries[key] = deckEntry{cards: stored, storedAt: now}
}

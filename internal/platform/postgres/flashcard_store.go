// Package postgres implements the store interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/platform/logger"
	"github.com/recallhq/recall-api/internal/store"
)

// PostgreSQL error codes
const (
	pgUniqueViolationCode     = "23505"
	pgForeignKeyViolationCode = "23503"
)

// PostgresFlashcardStore implements the store.FlashcardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresFlashcardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFlashcardStore creates a new PostgreSQL implementation of the
// FlashcardStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresFlashcardStore(db store.DBTX, logger *slog.Logger) *PostgresFlashcardStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresFlashcardStore{
		db:     db,
		logger: logger.With(slog.String("component", "flashcard_store")),
	}
}

// Ensure PostgresFlashcardStore implements store.FlashcardStore interface
var _ store.FlashcardStore = (*PostgresFlashcardStore)(nil)

// SaveDeck implements store.FlashcardStore.SaveDeck.
// Cards that already exist are left untouched (ON CONFLICT DO NOTHING);
// a regenerated deck may legitimately repeat IDs it produced earlier.
func (s *PostgresFlashcardStore) SaveDeck(
	ctx context.Context,
	subjectID string,
	cards []*domain.Flashcard,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO flashcards (id, subject_id, prompt, answer, topic_tags, source_difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	for _, card := range cards {
		if card.IsFallback {
			return fmt.Errorf("%w: fallback cards are not persisted", store.ErrInvalidEntity)
		}
		if err := card.Validate(); err != nil {
			log.Warn("flashcard validation failed during save",
				slog.String("error", err.Error()),
				slog.String("flashcard_id", card.ID.String()))
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		tags, err := json.Marshal(card.TopicTags)
		if err != nil {
			return fmt.Errorf("%w: failed to encode topic tags: %v", store.ErrInvalidEntity, err)
		}

		if _, err := s.db.ExecContext(
			ctx,
			query,
			card.ID,
			subjectID,
			card.Prompt,
			card.Answer,
			tags,
			card.SourceDifficulty,
			card.CreatedAt,
		); err != nil {
			log.Error("failed to save flashcard",
				slog.String("error", err.Error()),
				slog.String("flashcard_id", card.ID.String()),
				slog.String("subject_id", subjectID))
			return err
		}
	}

	log.Debug("deck saved",
		slog.String("subject_id", subjectID),
		slog.Int("card_count", len(cards)))
	return nil
}

// GetByID implements store.FlashcardStore.GetByID.
// Returns store.ErrFlashcardNotFound if the flashcard does not exist.
func (s *PostgresFlashcardStore) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, prompt, answer, topic_tags, source_difficulty, created_at
		FROM flashcards
		WHERE id = $1
	`

	card, err := scanFlashcard(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrFlashcardNotFound
		}
		log.Error("failed to get flashcard",
			slog.String("error", err.Error()),
			slog.String("flashcard_id", id.String()))
		return nil, err
	}

	return card, nil
}

// GetDue implements store.FlashcardStore.GetDue. Cards are due when their
// scheduling state for the learner has next_due_at at or before now; the most
// overdue card is returned first.
func (s *PostgresFlashcardStore) GetDue(
	ctx context.Context,
	learnerID uuid.UUID,
	now time.Time,
	limit int,
) ([]*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT f.id, f.prompt, f.answer, f.topic_tags, f.source_difficulty, f.created_at
		FROM flashcards f
		JOIN scheduling_states s ON s.flashcard_id = f.id
		WHERE s.learner_id = $1 AND s.next_due_at <= $2
		ORDER BY s.next_due_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, learnerID, now, limit)
	if err != nil {
		log.Error("failed to query due flashcards",
			slog.String("error", err.Error()),
			slog.String("learner_id", learnerID.String()))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cards := make([]*domain.Flashcard, 0, limit)
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug("due flashcards retrieved",
		slog.String("learner_id", learnerID.String()),
		slog.Int("count", len(cards)))
	return cards, nil
}

// WithTx implements store.FlashcardStore.WithTx.
func (s *PostgresFlashcardStore) WithTx(tx *sql.Tx) store.FlashcardStore {
	return &PostgresFlashcardStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanFlashcard reads one flashcard row, decoding the jsonb tag column.
func scanFlashcard(row rowScanner) (*domain.Flashcard, error) {
	var card domain.Flashcard
	var tags []byte

	if err := row.Scan(
		&card.ID,
		&card.Prompt,
		&card.Answer,
		&tags,
		&card.SourceDifficulty,
		&card.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &card.TopicTags); err != nil {
			return nil, fmt.Errorf("failed to decode topic tags: %w", err)
		}
	}

	return &card, nil
}

// isForeignKeyViolation reports whether err is a postgres FK violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolationCode
}

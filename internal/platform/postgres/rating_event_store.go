package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/platform/logger"
	"github.com/recallhq/recall-api/internal/store"
)

// PostgresRatingEventStore implements the store.RatingEventStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRatingEventStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRatingEventStore creates a new PostgreSQL implementation of the
// RatingEventStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresRatingEventStore(db store.DBTX, logger *slog.Logger) *PostgresRatingEventStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRatingEventStore{
		db:     db,
		logger: logger.With(slog.String("component", "rating_event_store")),
	}
}

// Ensure PostgresRatingEventStore implements store.RatingEventStore
var _ store.RatingEventStore = (*PostgresRatingEventStore)(nil)

// Create implements store.RatingEventStore.Create.
// Returns store.ErrDuplicate if the event ID was already recorded, which lets
// the persist queue retry a write without double-logging an outcome.
func (s *PostgresRatingEventStore) Create(ctx context.Context, event domain.RatingEvent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := event.Validate(); err != nil {
		log.Warn("rating event validation failed during create",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO rating_events (id, learner_id, flashcard_id, rating, response_latency_ms, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		event.ID,
		event.LearnerID,
		event.FlashcardID,
		event.Rating,
		event.ResponseLatencyMs,
		event.OccurredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return fmt.Errorf("%w: rating event %s", store.ErrDuplicate, event.ID)
		}

		log.Error("failed to create rating event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()),
			slog.String("flashcard_id", event.FlashcardID.String()))
		return err
	}

	return nil
}

// WithTx implements store.RatingEventStore.WithTx.
func (s *PostgresRatingEventStore) WithTx(tx *sql.Tx) store.RatingEventStore {
	return &PostgresRatingEventStore{
		db:     tx,
		logger: s.logger,
	}
}

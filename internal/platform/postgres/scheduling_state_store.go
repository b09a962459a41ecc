package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/recallhq/recall-api/internal/domain"
	"github.com/recallhq/recall-api/internal/platform/logger"
	"github.com/recallhq/recall-api/internal/store"
)

// PostgresSchedulingStateStore implements the store.SchedulingStateStore
// interface using a PostgreSQL database as the storage backend.
type PostgresSchedulingStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSchedulingStateStore creates a new PostgreSQL implementation of
// the SchedulingStateStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresSchedulingStateStore(db store.DBTX, logger *slog.Logger) *PostgresSchedulingStateStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSchedulingStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "scheduling_state_store")),
	}
}

// Ensure PostgresSchedulingStateStore implements store.SchedulingStateStore
var _ store.SchedulingStateStore = (*PostgresSchedulingStateStore)(nil)

// Get implements store.SchedulingStateStore.Get.
// Returns store.ErrSchedulingStateNotFound if no state exists for the pair.
func (s *PostgresSchedulingStateStore) Get(
	ctx context.Context,
	learnerID, flashcardID uuid.UUID,
) (domain.SchedulingState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT learner_id, flashcard_id, ease_factor, interval_days, repetition_count, next_due_at, last_rating
		FROM scheduling_states
		WHERE learner_id = $1 AND flashcard_id = $2
	`

	state, err := scanSchedulingState(s.db.QueryRowContext(ctx, query, learnerID, flashcardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SchedulingState{}, store.ErrSchedulingStateNotFound
		}
		log.Error("failed to get scheduling state",
			slog.String("error", err.Error()),
			slog.String("learner_id", learnerID.String()),
			slog.String("flashcard_id", flashcardID.String()))
		return domain.SchedulingState{}, err
	}

	return state, nil
}

// GetForCards implements store.SchedulingStateStore.GetForCards.
// Cards without a state are absent from the returned map.
func (s *PostgresSchedulingStateStore) GetForCards(
	ctx context.Context,
	learnerID uuid.UUID,
	flashcardIDs []uuid.UUID,
) (map[uuid.UUID]domain.SchedulingState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	states := make(map[uuid.UUID]domain.SchedulingState, len(flashcardIDs))
	if len(flashcardIDs) == 0 {
		return states, nil
	}

	query := `
		SELECT learner_id, flashcard_id, ease_factor, interval_days, repetition_count, next_due_at, last_rating
		FROM scheduling_states
		WHERE learner_id = $1 AND flashcard_id = ANY($2)
	`

	rows, err := s.db.QueryContext(ctx, query, learnerID, flashcardIDs)
	if err != nil {
		log.Error("failed to bulk-load scheduling states",
			slog.String("error", err.Error()),
			slog.String("learner_id", learnerID.String()),
			slog.Int("card_count", len(flashcardIDs)))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		state, err := scanSchedulingState(rows)
		if err != nil {
			return nil, err
		}
		states[state.FlashcardID] = state
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return states, nil
}

// Upsert implements store.SchedulingStateStore.Upsert.
// Returns store.ErrInvalidEntity on validation failure or when the flashcard
// the state refers to does not exist.
func (s *PostgresSchedulingStateStore) Upsert(
	ctx context.Context,
	state domain.SchedulingState,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(); err != nil {
		log.Warn("scheduling state validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("learner_id", state.LearnerID.String()),
			slog.String("flashcard_id", state.FlashcardID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO scheduling_states
			(learner_id, flashcard_id, ease_factor, interval_days, repetition_count, next_due_at, last_rating, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (learner_id, flashcard_id) DO UPDATE SET
			ease_factor = EXCLUDED.ease_factor,
			interval_days = EXCLUDED.interval_days,
			repetition_count = EXCLUDED.repetition_count,
			next_due_at = EXCLUDED.next_due_at,
			last_rating = EXCLUDED.last_rating,
			updated_at = now()
	`

	var lastRating *string
	if state.LastRating != nil {
		r := string(*state.LastRating)
		lastRating = &r
	}

	_, err := s.db.ExecContext(
		ctx,
		query,
		state.LearnerID,
		state.FlashcardID,
		state.EaseFactor,
		state.IntervalDays,
		state.RepetitionCount,
		state.NextDueAt,
		lastRating,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during scheduling state upsert",
				slog.String("error", err.Error()),
				slog.String("flashcard_id", state.FlashcardID.String()))
			return fmt.Errorf("%w: flashcard %s not found",
				store.ErrInvalidEntity, state.FlashcardID)
		}

		log.Error("failed to upsert scheduling state",
			slog.String("error", err.Error()),
			slog.String("learner_id", state.LearnerID.String()),
			slog.String("flashcard_id", state.FlashcardID.String()))
		return err
	}

	return nil
}

// WithTx implements store.SchedulingStateStore.WithTx.
func (s *PostgresSchedulingStateStore) WithTx(tx *sql.Tx) store.SchedulingStateStore {
	return &PostgresSchedulingStateStore{
		db:     tx,
		logger: s.logger,
	}
}

// scanSchedulingState reads one scheduling state row.
func scanSchedulingState(row rowScanner) (domain.SchedulingState, error) {
	var state domain.SchedulingState
	var lastRating sql.NullString

	if err := row.Scan(
		&state.LearnerID,
		&state.FlashcardID,
		&state.EaseFactor,
		&state.IntervalDays,
		&state.RepetitionCount,
		&state.NextDueAt,
		&lastRating,
	); err != nil {
		return domain.SchedulingState{}, err
	}

	if lastRating.Valid {
		r := domain.Rating(lastRating.String)
		state.LastRating = &r
	}

	return state, nil
}

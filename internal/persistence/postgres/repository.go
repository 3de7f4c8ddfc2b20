// Package postgres provides pgx-backed persistence for users, exercises, and
// the transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tracker/internal/domain"
	"example.com/tracker/internal/observability"
	"example.com/tracker/internal/outbox"
)

// Repository implements domain.Repository on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts the user and records a user.registered outbox event in
// the same transaction.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO users (user_id, username, created_at) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, stmt, user.ID, user.Username, user.CreatedAt); err != nil {
		return err
	}

	event := outbox.UserRegistered{
		UserID:     user.ID,
		Username:   user.Username,
		OccurredAt: user.CreatedAt,
	}
	if err := insertOutbox(ctx, tx, "user", user.ID, outbox.EventUserRegistered, user.ID, event); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordUserRegistered()
	return nil
}

// GetUser returns the user with the given identifier, or nil when absent.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT user_id, username, created_at FROM users WHERE user_id = $1`

	var user domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users in registration order.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT user_id, username, created_at FROM users ORDER BY created_at, user_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Username, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateExercise inserts the entry and records an exercise.appended outbox
// event in the same transaction.
func (r *Repository) CreateExercise(ctx context.Context, exercise domain.Exercise) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO exercises (exercise_id, user_id, description, duration, exercise_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, stmt,
		exercise.ID,
		exercise.UserID,
		exercise.Description,
		exercise.Duration,
		exercise.Date,
		exercise.CreatedAt,
	); err != nil {
		return err
	}

	event := outbox.ExerciseAppended{
		ExerciseID:  exercise.ID,
		UserID:      exercise.UserID,
		Description: exercise.Description,
		Duration:    exercise.Duration,
		Date:        exercise.Date.Format(domain.DateInputFormat),
		OccurredAt:  exercise.CreatedAt,
	}
	if err := insertOutbox(ctx, tx, "exercise", exercise.ID, outbox.EventExerciseAppended, exercise.UserID, event); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordExercisePersisted(exercise.CreatedAt)
	return nil
}

// ListExercises returns a user's entries matching the filter, ordered by
// calendar date ascending with insertion order breaking ties.
func (r *Repository) ListExercises(ctx context.Context, filter domain.ExerciseFilter) ([]domain.Exercise, error) {
	query := `SELECT exercise_id, user_id, description, duration, exercise_date, created_at
        FROM exercises WHERE user_id = $1`
	args := []interface{}{filter.UserID}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND exercise_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND exercise_date <= $%d", len(args))
	}

	query += " ORDER BY exercise_date, created_at, exercise_id"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exercises := make([]domain.Exercise, 0)
	for rows.Next() {
		var exercise domain.Exercise
		if err := rows.Scan(
			&exercise.ID,
			&exercise.UserID,
			&exercise.Description,
			&exercise.Duration,
			&exercise.Date,
			&exercise.CreatedAt,
		); err != nil {
			return nil, err
		}
		exercise.Date = domain.DateOnly(exercise.Date)
		exercises = append(exercises, exercise)
	}
	return exercises, rows.Err()
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	topic, ok := topicCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.Exec(ctx, stmt, aggregateType, aggregateID, eventType, topic, partitionKey, body)
	return err
}

var topicCatalog = map[string]string{
	outbox.EventUserRegistered:   outbox.TopicUserEvents,
	outbox.EventExerciseAppended: outbox.TopicExerciseEvents,
}

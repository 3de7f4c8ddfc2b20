package consumer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tracker/internal/domain"
	"example.com/tracker/internal/outbox"
)

// TotalsHandler maintains the exercise_daily_totals projection from
// exercise.appended events.
type TotalsHandler struct {
	pool *pgxpool.Pool
}

// NewTotalsHandler constructs a handler backed by the provided pool.
func NewTotalsHandler(pool *pgxpool.Pool) *TotalsHandler {
	return &TotalsHandler{pool: pool}
}

// Handle folds the event into the per-user daily totals. The last_event_id
// watermark makes redelivered events no-ops, so the projection never
// double-counts.
func (h *TotalsHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != outbox.EventExerciseAppended {
		return nil
	}

	var event outbox.ExerciseAppended
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// A payload that never parses would retry forever; skip it.
		log.Printf("totals: skipping unparseable payload (event_id=%d): %v", msg.EventID, err)
		return nil
	}

	day, err := domain.ParseDate(event.Date)
	if err != nil {
		log.Printf("totals: skipping event with bad date %q (event_id=%d)", event.Date, msg.EventID)
		return nil
	}

	const stmt = `INSERT INTO exercise_daily_totals (user_id, day, entry_count, total_duration, last_event_id)
        VALUES ($1, $2, 1, $3, $4)
        ON CONFLICT (user_id, day) DO UPDATE
        SET entry_count    = exercise_daily_totals.entry_count + 1,
            total_duration = exercise_daily_totals.total_duration + EXCLUDED.total_duration,
            last_event_id  = EXCLUDED.last_event_id
        WHERE exercise_daily_totals.last_event_id < EXCLUDED.last_event_id`

	_, err = h.pool.Exec(ctx, stmt, event.UserID, day, event.Duration, msg.EventID)
	return err
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL is idempotent: every statement guards with IF NOT EXISTS so the
// bootstrap can run on every process start.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
    user_id    UUID PRIMARY KEY,
    username   TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS exercises (
    exercise_id   UUID PRIMARY KEY,
    user_id       UUID NOT NULL REFERENCES users(user_id),
    description   TEXT NOT NULL,
    duration      INTEGER NOT NULL CHECK (duration > 0),
    exercise_date DATE NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_exercises_user_date
    ON exercises (user_id, exercise_date, created_at);

CREATE TABLE IF NOT EXISTS outbox (
    event_id       BIGSERIAL PRIMARY KEY,
    aggregate_type TEXT NOT NULL,
    aggregate_id   TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    topic          TEXT NOT NULL,
    partition_key  TEXT NOT NULL,
    payload        JSONB NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    claimed_at     TIMESTAMPTZ,
    published_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
    ON outbox (event_id) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS exercise_daily_totals (
    user_id        UUID NOT NULL,
    day            DATE NOT NULL,
    entry_count    INTEGER NOT NULL DEFAULT 0,
    total_duration INTEGER NOT NULL DEFAULT 0,
    last_event_id  BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, day)
);
`

// EnsureSchema applies the table definitions at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

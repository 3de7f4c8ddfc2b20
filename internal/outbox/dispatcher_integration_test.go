//go:build integration

package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Mirrors the outbox table the repository maintains; kept local so this
// package's tests stay independent of the persistence package.
const outboxDDL = `
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
`

type producerWrite struct {
	topic    string
	messages []kafka.Message
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []producerWrite
}

func (p *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.writes = append(p.writes, producerWrite{topic: topic, messages: msgs})
	return nil
}

func setupOutboxPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("tracker"),
		postgrescontainer.WithUsername("tracker"),
		postgrescontainer.WithPassword("tracker"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	deadline := time.Now().Add(30 * time.Second)
	var pool *pgxpool.Pool
	for {
		pool, err = pgxpool.New(ctx, connStr)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		require.False(t, time.Now().After(deadline), "postgres did not become ready: %v", err)
		time.Sleep(time.Second)
	}
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, outboxDDL)
	require.NoError(t, err)
	return pool
}

func seedOutboxEvent(t *testing.T, ctx context.Context, pool *pgxpool.Pool, eventType, topic string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
         VALUES ('exercise', $1, $2, $3, $4, '{"duration":30}') RETURNING event_id`,
		uuid.NewString(), eventType, topic, uuid.NewString()).Scan(&id))
	return id
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestDispatcherPublishesAndMarksRows(t *testing.T) {
	ctx := context.Background()
	pool := setupOutboxPostgres(t, ctx)

	eventID := seedOutboxEvent(t, ctx, pool, EventExerciseAppended, TopicExerciseEvents)
	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, TopicExerciseEvents, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)

	msg := producer.writes[0].messages[0]
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, EventExerciseAppended, headers["event_type"])
	require.Equal(t, formatEventID(eventID), headers["event_id"])
	require.JSONEq(t, `{"duration":30}`, string(msg.Value))

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherRetriesFailedBatches(t *testing.T) {
	ctx := context.Background()
	pool := setupOutboxPostgres(t, ctx)

	seedOutboxEvent(t, ctx, pool, EventExerciseAppended, TopicExerciseEvents)
	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Zero(t, published, "failed rows must stay unpublished for retry")

	// The broker recovers; the next batch drains the row.
	producer.mu.Lock()
	producer.err = nil
	producer.mu.Unlock()

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)

	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherGroupsByTopic(t *testing.T) {
	ctx := context.Background()
	pool := setupOutboxPostgres(t, ctx)

	seedOutboxEvent(t, ctx, pool, EventExerciseAppended, TopicExerciseEvents)
	seedOutboxEvent(t, ctx, pool, EventExerciseAppended, TopicExerciseEvents)
	seedOutboxEvent(t, ctx, pool, EventUserRegistered, TopicUserEvents)

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5)

	require.NoError(t, dispatcher.processBatch(ctx))

	byTopic := map[string]int{}
	for _, write := range producer.writes {
		byTopic[write.topic] += len(write.messages)
	}
	require.Equal(t, 2, byTopic[TopicExerciseEvents])
	require.Equal(t, 1, byTopic[TopicUserEvents])
}

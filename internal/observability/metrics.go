// Package observability exposes Prometheus metrics for the tracker service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	usersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "persistence",
		Name:      "users_registered_total",
		Help:      "Number of users successfully registered.",
	})
	exercisesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "persistence",
		Name:      "exercises_appended_total",
		Help:      "Number of exercise entries successfully persisted.",
	})
	lastExercisePersisted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "persistence",
		Name:      "last_exercise_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent exercise persisted to Postgres.",
	})
	logQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "query",
		Name:      "log_queries_total",
		Help:      "Number of log queries served, labeled by outcome.",
	}, []string{"outcome"})
)

// RecordUserRegistered increments the registration counter.
func RecordUserRegistered() {
	usersRegistered.Inc()
}

// RecordExercisePersisted updates the persistence counters and watermark gauge.
func RecordExercisePersisted(ts time.Time) {
	exercisesAppended.Inc()
	if ts.IsZero() {
		return
	}
	lastExercisePersisted.Set(float64(ts.Unix()))
}

// RecordLogQuery counts a served log query by outcome ("ok", "not_found",
// "invalid", "error").
func RecordLogQuery(outcome string) {
	logQueries.WithLabelValues(outcome).Inc()
}

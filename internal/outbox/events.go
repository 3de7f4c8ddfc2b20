package outbox

import "time"

// Event types recorded by the repository and routed by the dispatcher.
const (
	EventUserRegistered   = "user.registered"
	EventExerciseAppended = "exercise.appended"
)

// Kafka topics the dispatcher publishes to.
const (
	TopicUserEvents     = "user_events"
	TopicExerciseEvents = "exercise_events"
)

// UserRegistered is emitted when a user is created.
type UserRegistered struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ExerciseAppended is emitted when an exercise entry is persisted. Date is
// the entry's calendar date in YYYY-MM-DD form.
type ExerciseAppended struct {
	ExerciseID  string    `json:"exercise_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Duration    int       `json:"duration"`
	Date        string    `json:"date"`
	OccurredAt  time.Time `json:"occurred_at"`
}

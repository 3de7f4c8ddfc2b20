// Package domain defines the business logic for the tracker service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when a user identifier does not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidDate indicates a caller-supplied date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
	// ErrEmptyUsername rejects registration without a display name.
	ErrEmptyUsername = errors.New("username is required")
	// ErrEmptyDescription rejects exercises without a description.
	ErrEmptyDescription = errors.New("description is required")
	// ErrInvalidDuration rejects non-positive durations.
	ErrInvalidDuration = errors.New("duration must be a positive integer")
)

// ExerciseFilter selects a user's entries. Bounds are inclusive; a nil bound
// leaves that side unbounded. Limit <= 0 applies no ceiling.
type ExerciseFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// Repository captures persistence operations for users and exercises.
type Repository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateExercise(ctx context.Context, exercise Exercise) error
	ListExercises(ctx context.Context, filter ExerciseFilter) ([]Exercise, error)
}

// UserLookup resolves users by identifier. The repository satisfies it; a
// read-through cache may wrap it.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*User, error)
}

// Service orchestrates registration, appends, and log queries.
type Service struct {
	repo  Repository
	users UserLookup
	now   func() time.Time
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithUserLookup substitutes the lookup used to resolve users, typically a
// cache wrapping the repository.
func WithUserLookup(lookup UserLookup) Option {
	return func(s *Service) {
		s.users = lookup
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, users: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterUser inserts a user with the given display name. Usernames are not
// required to be unique.
func (s *Service) RegisterUser(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	user := User{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// ListUsers returns every registered user.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// AppendExerciseInput captures the payload from the API layer. Date is
// optional YYYY-MM-DD text; empty means "today".
type AppendExerciseInput struct {
	UserID      string
	Description string
	Duration    int
	Date        string
}

// AppendedExercise combines the resolved user with the stored entry's fields.
type AppendedExercise struct {
	Username    string
	Description string
	Duration    int
	Date        string
	UserID      string
}

// AppendExercise records an entry for an existing user. The user is always
// resolved first so an orphan entry can never be created.
func (s *Service) AppendExercise(ctx context.Context, input AppendExerciseInput) (*AppendedExercise, error) {
	user, err := s.lookupUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if input.Duration <= 0 {
		return nil, ErrInvalidDuration
	}

	date := DateOnly(s.now())
	if strings.TrimSpace(input.Date) != "" {
		date, err = ParseDate(input.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, input.Date)
		}
	}

	exercise := Exercise{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Description: description,
		Duration:    input.Duration,
		Date:        date,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateExercise(ctx, exercise); err != nil {
		return nil, fmt.Errorf("create exercise: %w", err)
	}

	return &AppendedExercise{
		Username:    user.Username,
		Description: exercise.Description,
		Duration:    exercise.Duration,
		Date:        FormatDate(exercise.Date),
		UserID:      user.ID,
	}, nil
}

// LogEntry is the shaped projection of a stored exercise.
type LogEntry struct {
	Description string
	Duration    int
	Date        string
}

// Log bundles a user's filtered, bounded entries. Count always equals
// len(Entries), never the pre-limit total.
type Log struct {
	Username string
	UserID   string
	Count    int
	Entries  []LogEntry
}

// GetLog returns a user's entries, optionally bounded by an inclusive
// from/to calendar-date range and a result ceiling. Unparseable bounds are
// rejected rather than silently dropped; limit <= 0 means no ceiling.
// Entries come back ordered by date ascending, insertion order on ties.
func (s *Service) GetLog(ctx context.Context, userID, from, to string, limit int) (*Log, error) {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	filter := ExerciseFilter{UserID: user.ID, Limit: limit}
	if strings.TrimSpace(from) != "" {
		bound, err := ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("%w: from=%q", ErrInvalidDate, from)
		}
		filter.From = &bound
	}
	if strings.TrimSpace(to) != "" {
		bound, err := ParseDate(to)
		if err != nil {
			return nil, fmt.Errorf("%w: to=%q", ErrInvalidDate, to)
		}
		filter.To = &bound
	}

	exercises, err := s.repo.ListExercises(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}

	entries := make([]LogEntry, 0, len(exercises))
	for _, exercise := range exercises {
		entries = append(entries, LogEntry{
			Description: exercise.Description,
			Duration:    exercise.Duration,
			Date:        FormatDate(exercise.Date),
		})
	}

	return &Log{
		Username: user.Username,
		UserID:   user.ID,
		Count:    len(entries),
		Entries:  entries,
	}, nil
}

func (s *Service) lookupUser(ctx context.Context, id string) (*User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Package api exposes the HTTP surface of the tracker service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"example.com/tracker/internal/domain"
	"example.com/tracker/internal/observability"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", h.createUser)
	mux.HandleFunc("GET /api/users", h.listUsers)
	mux.HandleFunc("POST /api/users/{id}/exercises", h.appendExercise)
	mux.HandleFunc("GET /api/users/{id}/logs", h.getLog)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.RegisterUser(r.Context(), r.FormValue("username"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]UserView, 0, len(users))
	for _, user := range users {
		views = append(views, toUserView(user))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) appendExercise(w http.ResponseWriter, r *http.Request) {
	duration, err := strconv.Atoi(r.FormValue("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration must be a positive integer")
		return
	}

	appended, err := h.service.AppendExercise(r.Context(), domain.AppendExerciseInput{
		UserID:      r.PathValue("id"),
		Description: r.FormValue("description"),
		Duration:    duration,
		Date:        r.FormValue("date"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ExerciseView{
		Username:    appended.Username,
		Description: appended.Description,
		Duration:    appended.Duration,
		Date:        appended.Date,
		ID:          appended.UserID,
	})
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	// A limit that does not parse as a positive integer applies no ceiling;
	// the caller still gets a complete, correct result set.
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	logResult, err := h.service.GetLog(
		r.Context(),
		r.PathValue("id"),
		r.URL.Query().Get("from"),
		r.URL.Query().Get("to"),
		limit,
	)
	if err != nil {
		observability.RecordLogQuery(outcomeFor(err))
		writeDomainError(w, err)
		return
	}
	observability.RecordLogQuery("ok")

	entries := make([]LogEntryView, 0, len(logResult.Entries))
	for _, entry := range logResult.Entries {
		entries = append(entries, LogEntryView{
			Description: entry.Description,
			Duration:    entry.Duration,
			Date:        entry.Date,
		})
	}

	writeJSON(w, http.StatusOK, LogView{
		Username: logResult.Username,
		Count:    logResult.Count,
		ID:       logResult.UserID,
		Log:      entries,
	})
}

// UserView is the wire shape of a registered user.
type UserView struct {
	Username string `json:"username"`
	ID       string `json:"_id"`
}

// ExerciseView is the wire shape of a freshly appended exercise, combining
// the resolved user with the entry's fields.
type ExerciseView struct {
	Username    string `json:"username"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        string `json:"date"`
	ID          string `json:"_id"`
}

// LogEntryView is one shaped entry in a log response.
type LogEntryView struct {
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        string `json:"date"`
}

// LogView packages a user's filtered log. Count always equals len(Log).
type LogView struct {
	Username string         `json:"username"`
	Count    int            `json:"count"`
	ID       string         `json:"_id"`
	Log      []LogEntryView `json:"log"`
}

func toUserView(user domain.User) UserView {
	return UserView{Username: user.Username, ID: user.ID}
}

// writeDomainError translates the error taxonomy uniformly: 404 for an
// unresolved user, 400 for rejected input, 500 for store failures.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrEmptyUsername),
		errors.Is(err, domain.ErrEmptyDescription),
		errors.Is(err, domain.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "operation failed")
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidDate):
		return "invalid"
	default:
		return "error"
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

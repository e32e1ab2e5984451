package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/study-hall/studyhall-school/internal/attempt"
	authmw "github.com/study-hall/studyhall-school/internal/auth/middleware"
	"github.com/study-hall/studyhall-school/internal/quiz"
	"github.com/study-hall/studyhall-school/internal/rbac"
	"github.com/study-hall/studyhall-school/internal/roster"
)

// validate checks request DTO struct tags before they reach the services.
var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain sentinels onto HTTP statuses. Anything unmapped is
// an internal error; the message still goes to the client because this
// deployment is LAN-only.
func writeError(w http.ResponseWriter, err error) {
	var fe *attempt.FieldError
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation_failed", "field": fe.Field, "message": fe.Message,
		})
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation_failed", "message": ve.Error(),
		})
	case errors.Is(err, attempt.ErrNotFound),
		errors.Is(err, quiz.ErrNotFound),
		errors.Is(err, roster.ErrSubjectNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, attempt.ErrAccessDenied):
		respondJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, attempt.ErrNotAvailable),
		errors.Is(err, attempt.ErrAttemptLimitReached),
		errors.Is(err, attempt.ErrAttemptClosed),
		errors.Is(err, attempt.ErrAttemptInProgress):
		respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// principalFrom rebuilds the caller identity the JWT middleware stashed in
// the request context.
func principalFrom(r *http.Request) attempt.Principal {
	return attempt.Principal{
		ID:   authmw.SubjectFromContext(r.Context()),
		Role: rbac.RoleFromContext(r.Context()),
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

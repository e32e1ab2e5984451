package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/study-hall/studyhall-school/internal/auth/middleware"
	"github.com/study-hall/studyhall-school/internal/roster"
)

type createSubjectReq struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// POST /subjects
func CreateSubjectHandler(rst *roster.SQLRoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSubjectReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, err)
			return
		}
		s := roster.Subject{
			ID:        strings.TrimSpace(req.ID),
			Name:      strings.TrimSpace(req.Name),
			CreatedBy: authmw.SubjectFromContext(r.Context()),
			CreatedAt: time.Now().Unix(),
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if err := rst.CreateSubject(r.Context(), s); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, s)
	}
}

// GET /subjects?limit=50&offset=0
func ListSubjectsHandler(rst *roster.SQLRoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rst.ListSubjects(r.Context(),
			parseIntDefault(r.URL.Query().Get("limit"), 50),
			parseIntDefault(r.URL.Query().Get("offset"), 0))
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

type enrollReq struct {
	UserID string `json:"user_id" validate:"required"`
}

// POST /subjects/{subjectID}/enrollments
//
// Idempotent: enrolling an already-enrolled student succeeds quietly.
func EnrollHandler(rst *roster.SQLRoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID := chi.URLParam(r, "subjectID")
		var req enrollReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, err)
			return
		}
		if err := rst.Enroll(r.Context(), req.UserID, subjectID); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "enrolled"})
	}
}

// DELETE /subjects/{subjectID}/enrollments/{userID}
func UnenrollHandler(rst *roster.SQLRoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID := chi.URLParam(r, "subjectID")
		userID := chi.URLParam(r, "userID")
		if err := rst.Unenroll(r.Context(), userID, subjectID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /subjects/{subjectID}/enrollments
func ListEnrolledHandler(rst *roster.SQLRoster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID := chi.URLParam(r, "subjectID")
		ids, err := rst.ListEnrolled(r.Context(), subjectID)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"subject_id": subjectID, "user_ids": ids})
	}
}

package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/study-hall/studyhall-school/internal/quiz"
)

// GET /quizzes?q=...&subject_id=...&limit=50&offset=0
//
// Scoping happens in the catalog: students see published quizzes for
// subjects they are enrolled in, teachers their own, admins everything.
func ListQuizzesHandler(catalog quiz.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r)
		list, err := catalog.List(r.Context(), quiz.ListOpts{
			Q:          strings.TrimSpace(r.URL.Query().Get("q")),
			SubjectID:  strings.TrimSpace(r.URL.Query().Get("subject_id")),
			Limit:      parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:     parseIntDefault(r.URL.Query().Get("offset"), 0),
			ViewerID:   p.ID,
			ViewerRole: p.Role,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// POST /quizzes
//
// Full-definition ingest. The catalog validates before anything is written,
// so a quiz with a malformed answer key never becomes attemptable.
func UploadQuizHandler(catalog quiz.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var z quiz.Quiz
		if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		p := principalFrom(r)
		if z.AuthorID == "" || p.Role != "admin" {
			z.AuthorID = p.ID
		}
		if err := catalog.Put(r.Context(), z); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": z.ID})
	}
}

// GET /quizzes/{quizID}
//
// The author and admins get the authoring view with the answer key; everyone
// else gets the learner-safe view with correctness flags stripped.
func GetQuizHandler(catalog quiz.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		p := principalFrom(r)

		z, err := catalog.GetAuthoring(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if p.Role != "admin" && z.AuthorID != p.ID {
			z, err = catalog.Get(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
		}
		respondJSON(w, http.StatusOK, z)
	}
}

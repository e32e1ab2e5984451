package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/study-hall/studyhall-school/internal/attempt"
)

// POST /quizzes/{quizID}/attempts
//
// Returns the learner's open attempt when one exists, so a crashed client
// can just hit this again and resume.
func StartAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := strings.TrimSpace(chi.URLParam(r, "quizID"))
		if quizID == "" {
			http.Error(w, "quizID required", http.StatusBadRequest)
			return
		}
		a, err := svc.Start(r.Context(), principalFrom(r), quizID)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, a)
	}
}

// GET /attempts/{attemptID}
//
// One endpoint for both attempt states: an in_progress attempt renders the
// working view (questions in display order, saved responses, timer), a
// completed one renders the result view. Clients never get an error for
// asking "the wrong one".
func GetAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		working, result, err := svc.View(r.Context(), principalFrom(r), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		if working != nil {
			respondJSON(w, http.StatusOK, working)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// PUT /attempts/{attemptID}/responses
func SaveResponseHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var in attempt.ResponseInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(in); err != nil {
			writeError(w, err)
			return
		}
		resp, err := svc.SaveResponse(r.Context(), principalFrom(r), attemptID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

type submitReq struct {
	// Responses not yet saved individually; applied before grading in the
	// same transaction.
	Responses []attempt.ResponseInput `json:"responses,omitempty"`
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req submitReq
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		}
		for _, in := range req.Responses {
			if err := validate.Struct(in); err != nil {
				writeError(w, err)
				return
			}
		}
		a, err := svc.Submit(r.Context(), principalFrom(r), attemptID, req.Responses)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, a)
	}
}

package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/study-hall/studyhall-school/internal/attempt"
)

// GET /attempts/{attemptID}/grading
//
// Worksheet for the grader: every response on the completed attempt, with
// subjective ones flagged needs_manual until points land.
func GetAttemptGradingHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		if attemptID == "" {
			http.Error(w, "attemptID required", http.StatusBadRequest)
			return
		}
		items, err := svc.GradingView(r.Context(), principalFrom(r), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, items)
	}
}

type applyGradesReq struct {
	Items []attempt.ManualGradeInput `json:"items"`
}

// POST /attempts/{attemptID}/grading
func ApplyManualGradesHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
		if attemptID == "" {
			http.Error(w, "attemptID required", http.StatusBadRequest)
			return
		}
		var req applyGradesReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Items) == 0 {
			http.Error(w, "items required", http.StatusBadRequest)
			return
		}
		a, err := svc.ManualGrade(r.Context(), principalFrom(r), attemptID, req.Items)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, a)
	}
}

package http

import (
	"net/http"
	"strings"

	"github.com/study-hall/studyhall-school/internal/attempt"
)

// GET /attempts?quiz_id=...&user_id=...&status=...&limit=50&offset=0&sort=started_at+desc
//
// Students only ever see their own attempts; the user_id filter is forced to
// the caller for anyone without attempt:view-all.
func ListAttemptsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r)
		if p.ID == "" || p.Role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		opts := attempt.ListOpts{
			QuizID: strings.TrimSpace(r.URL.Query().Get("quiz_id")),
			UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Sort:   strings.TrimSpace(r.URL.Query().Get("sort")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		if p.Role != "admin" && p.Role != "teacher" {
			opts.UserID = p.ID
		}

		list, err := svc.List(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

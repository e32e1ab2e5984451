package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/study-hall/studyhall-school/internal/storage"
)

// -----------------------------
// Admin: Compliance & Audit
// -----------------------------

// HandleAdminPIIExport returns all stored data for a given user (admin-only)
// as a downloadable JSON file.
func HandleAdminPIIExport(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}

		row := db.QueryRowContext(r.Context(),
			`SELECT id, username, role, created_at FROM users WHERE id=$1 OR username=$1`,
			req.UserID)

		var id, username, role string
		var createdAt int64
		if err := row.Scan(&id, &username, &role, &createdAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "user not found", http.StatusNotFound)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}

		subjects, err := userSubjectIDs(r, db, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		attempts, err := userAttemptSummaries(r, db, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp := map[string]any{
			"id":         id,
			"username":   username,
			"role":       role,
			"created_at": createdAt,
			"subjects":   subjects,
			"attempts":   attempts,
		}

		filename := fmt.Sprintf("pii_%s.json", id)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func userSubjectIDs(r *http.Request, db *sql.DB, userID string) ([]string, error) {
	rows, err := db.QueryContext(r.Context(),
		`SELECT subject_id FROM enrollments WHERE user_id=$1 ORDER BY subject_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func userAttemptSummaries(r *http.Request, db *sql.DB, userID string) ([]map[string]any, error) {
	rows, err := db.QueryContext(r.Context(),
		`SELECT id, quiz_id, attempt_number, status, started_at FROM attempts
		 WHERE user_id=$1 ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var id, quizID, status string
		var num int
		var startedAt int64
		if err := rows.Scan(&id, &quizID, &num, &status, &startedAt); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"id": id, "quiz_id": quizID, "attempt_number": num,
			"status": status, "started_at": startedAt,
		})
	}
	return out, rows.Err()
}

// HandleAdminPIIDelete removes all user data for GDPR-style compliance.
// Responses go first so nothing dangles off a deleted attempt; uploaded
// attachments are purged from the blob store after the rows commit.
func HandleAdminPIIDelete(db *sql.DB, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			http.Error(w, "user_id required", http.StatusBadRequest)
			return
		}

		attachmentKeys, err := userAttachmentKeys(r, db, req.UserID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		tx, err := db.BeginTx(r.Context(), nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(r.Context(),
			`DELETE FROM responses WHERE attempt_id IN (SELECT id FROM attempts WHERE user_id=$1)`,
			req.UserID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := tx.ExecContext(r.Context(),
			`DELETE FROM attempts WHERE user_id=$1`, req.UserID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := tx.ExecContext(r.Context(),
			`DELETE FROM enrollments WHERE user_id=$1`, req.UserID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := tx.ExecContext(r.Context(),
			`DELETE FROM users WHERE id=$1 OR username=$1`, req.UserID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := tx.Commit(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		purged := 0
		for _, key := range attachmentKeys {
			if err := bs.Delete(key); err != nil {
				log.Printf("pii delete: blob %s: %v", key, err)
				continue
			}
			purged++
		}

		respondJSON(w, http.StatusOK, map[string]any{"status": "deleted", "attachments_purged": purged})
	}
}

func userAttachmentKeys(r *http.Request, db *sql.DB, userID string) ([]string, error) {
	rows, err := db.QueryContext(r.Context(),
		`SELECT attachment_key FROM responses
		 WHERE attachment_key IS NOT NULL
		   AND attempt_id IN (SELECT id FROM attempts WHERE user_id=$1)`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// HandleAdminAuditSearch queries the event_log for recent lifecycle events,
// filtered by q against the event type or the attempt key.
func HandleAdminAuditSearch(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")

		rows, err := db.QueryContext(r.Context(),
			`SELECT typ, key, data, created_at FROM event_log
			 WHERE typ LIKE '%'||$1||'%' OR key LIKE '%'||$1||'%'
			 ORDER BY created_at DESC LIMIT 100`, q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		var out []map[string]any
		for rows.Next() {
			var typ, key, data string
			var createdAt int64
			if err := rows.Scan(&typ, &key, &data, &createdAt); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, map[string]any{
				"typ":        typ,
				"key":        key,
				"data":       data,
				"created_at": time.Unix(createdAt, 0),
			})
		}

		respondJSON(w, http.StatusOK, out)
	}
}

package http

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/study-hall/studyhall-school/internal/roster"
)

// rosterRow is one line of a school roster import: who the person is, and
// which subjects to enroll them in. The id is optional; new users without
// one get a generated id, existing users are matched by username.
type rosterRow struct {
	ID       string   `json:"id,omitempty"`
	Username string   `json:"username"`
	Role     string   `json:"role"`               // defaults to "student"
	Password string   `json:"password,omitempty"` // plaintext optional (LAN-only)
	Subjects []string `json:"subjects,omitempty"` // subject ids to enroll into
}

type rosterImportResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Enrolled int `json:"enrolled"`
}

// BulkUpsertUsersHandler loads a class roster in one shot: a JSON array in
// the body, or a multipart CSV/JSON file upload from the office spreadsheet.
// Users and their subject enrollments land in a single transaction.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := decodeRosterRows(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(rows) == 0 {
			respondJSON(w, http.StatusOK, rosterImportResult{})
			return
		}

		res, err := importRoster(r.Context(), db, rows)
		if err != nil {
			if errors.Is(err, roster.ErrSubjectNotFound) || errors.As(err, new(*importError)) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func decodeRosterRows(r *http.Request) ([]rosterRow, error) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "multipart/form-data") {
		var rows []rosterRow
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			return nil, errors.New("expected JSON array or multipart file")
		}
		return rows, nil
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file required")
	}
	defer f.Close()

	// Sniff CSV vs JSON by the first non-space byte.
	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil {
		return nil, errors.New("empty file")
	}
	if _, err := f.(io.Seeker).Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if buf[0] == '[' || buf[0] == '{' {
		var rows []rosterRow
		if err := json.NewDecoder(f).Decode(&rows); err != nil {
			return nil, errors.New("bad json")
		}
		return rows, nil
	}
	rows, err := parseRosterCSV(f)
	if err != nil {
		return nil, errors.New("bad csv: " + err.Error())
	}
	return rows, nil
}

// parseRosterCSV reads the office export format: a header line naming at
// least username and role, with optional id, password, and subjects
// (semicolon-separated subject ids) columns.
func parseRosterCSV(r io.Reader) ([]rosterRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"username", "role"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}

	var rows []rosterRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := rosterRow{
			Username: strings.TrimSpace(rec[idx["username"]]),
			Role:     strings.ToLower(strings.TrimSpace(rec[idx["role"]])),
		}
		if i, ok := idx["id"]; ok {
			row.ID = strings.TrimSpace(rec[i])
		}
		if i, ok := idx["password"]; ok {
			row.Password = rec[i]
		}
		if i, ok := idx["subjects"]; ok {
			for _, s := range strings.Split(rec[i], ";") {
				if s = strings.TrimSpace(s); s != "" {
					row.Subjects = append(row.Subjects, s)
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// importError marks a bad roster row; it reads as a 400, not a 500.
type importError struct{ msg string }

func (e *importError) Error() string { return e.msg }

func importRoster(ctx context.Context, db *sql.DB, rows []rosterRow) (res rosterImportResult, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	for _, row := range rows {
		if row.Username == "" {
			return res, &importError{"username required"}
		}
		if row.Role == "" {
			row.Role = "student"
		}
		if !knownRoles[row.Role] {
			return res, &importError{"invalid role: " + row.Role}
		}
		var phash string
		if row.Password != "" {
			b, e := bcrypt.GenerateFromPassword([]byte(row.Password), bcryptCost)
			if e != nil {
				return res, e
			}
			phash = string(b)
		}

		// Existing users are matched by username so a re-import of the same
		// spreadsheet updates rather than duplicates.
		userID := row.ID
		var existingID string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE username=$1`, row.Username).Scan(&existingID)
		switch {
		case err == nil:
			userID = existingID
			if phash != "" {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET role=$1, password_hash=$2 WHERE id=$3`,
					row.Role, phash, userID)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET role=$1 WHERE id=$2`, row.Role, userID)
			}
			if err != nil {
				return res, err
			}
			res.Updated++
		case errors.Is(err, sql.ErrNoRows):
			if phash == "" {
				return res, &importError{"password required for new user: " + row.Username}
			}
			if userID == "" {
				userID = uuid.NewString()
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
				userID, row.Username, phash, row.Role, now); err != nil {
				return res, err
			}
			res.Inserted++
		default:
			return res, err
		}

		for _, subjectID := range row.Subjects {
			if err = roster.EnrollTx(ctx, tx, userID, subjectID); err != nil {
				if errors.Is(err, roster.ErrSubjectNotFound) {
					err = &importError{"unknown subject for " + row.Username + ": " + subjectID}
				}
				return res, err
			}
			res.Enrolled++
		}
	}
	return res, nil
}

func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(), `SELECT id,username,role FROM users ORDER BY username`)
		} else {
			rows, err = db.QueryContext(r.Context(), `SELECT id,username,role FROM users WHERE role=$1 ORDER BY username`, role)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []map[string]string{}
		for rows.Next() {
			var id, u, role string
			if err := rows.Scan(&id, &u, &role); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, map[string]string{"id": id, "username": u, "role": role})
		}
		respondJSON(w, http.StatusOK, out)
	}
}

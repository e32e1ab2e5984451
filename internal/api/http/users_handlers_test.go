package http_test

import (
	"bytes"
	"context"
	"database/sql"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	api "github.com/study-hall/studyhall-school/internal/api/http"
	authmw "github.com/study-hall/studyhall-school/internal/auth/middleware"
	"github.com/study-hall/studyhall-school/internal/db"
	"github.com/study-hall/studyhall-school/internal/roster"
)

func newHandlerDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	if err := db.EnsureSchema(context.Background(), dbh, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedSubject(t *testing.T, dbh *sql.DB, id string) {
	t.Helper()
	rst := roster.NewSQLRoster(dbh)
	if err := rst.CreateSubject(context.Background(), roster.Subject{ID: id, Name: id, CreatedBy: "t1"}); err != nil {
		t.Fatalf("seed subject %s: %v", id, err)
	}
}

func countRows(t *testing.T, dbh *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := dbh.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestBulkUpsertEnrollsIntoSubjects(t *testing.T) {
	dbh := newHandlerDB(t)
	seedSubject(t, dbh, "math")
	seedSubject(t, dbh, "bio")
	h := api.BulkUpsertUsersHandler(dbh)

	body := `[
		{"username":"ana","role":"student","password":"pw123456","subjects":["math","bio"]},
		{"username":"ben","role":"student","password":"pw123456","subjects":["math"]}
	]`
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/users/bulk", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if got := countRows(t, dbh, `SELECT COUNT(*) FROM users`); got != 2 {
		t.Errorf("%d users", got)
	}
	if got := countRows(t, dbh, `SELECT COUNT(*) FROM enrollments`); got != 3 {
		t.Errorf("%d enrollments", got)
	}

	// Re-importing the same sheet updates by username instead of duplicating,
	// and re-enrollment is a no-op.
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/users/bulk", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("reimport status %d: %s", rec.Code, rec.Body)
	}
	if got := countRows(t, dbh, `SELECT COUNT(*) FROM users`); got != 2 {
		t.Errorf("reimport duplicated users: %d", got)
	}
	if got := countRows(t, dbh, `SELECT COUNT(*) FROM enrollments`); got != 3 {
		t.Errorf("reimport duplicated enrollments: %d", got)
	}
}

func TestBulkUpsertUnknownSubjectRollsBack(t *testing.T) {
	dbh := newHandlerDB(t)
	seedSubject(t, dbh, "math")
	h := api.BulkUpsertUsersHandler(dbh)

	body := `[{"username":"ana","role":"student","password":"pw123456","subjects":["math","astrology"]}]`
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/users/bulk", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	// The whole import is one unit: the user row did not land either.
	if got := countRows(t, dbh, `SELECT COUNT(*) FROM users`); got != 0 {
		t.Errorf("partial import visible: %d users", got)
	}
}

func TestBulkUpsertRejectsUnknownRole(t *testing.T) {
	dbh := newHandlerDB(t)
	h := api.BulkUpsertUsersHandler(dbh)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/users/bulk",
		strings.NewReader(`[{"username":"ana","role":"principal","password":"pw123456"}]`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
}

func TestBulkUpsertCSVWithSubjectsColumn(t *testing.T) {
	dbh := newHandlerDB(t)
	seedSubject(t, dbh, "math")
	seedSubject(t, dbh, "bio")
	h := api.BulkUpsertUsersHandler(dbh)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "roster.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("username,role,password,subjects\nana,student,pw123456,math;bio\ncarl,teacher,pw123456,\n"))
	mw.Close()

	req := httptest.NewRequest("POST", "/users/bulk", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if got := countRows(t, dbh, `SELECT COUNT(*) FROM users`); got != 2 {
		t.Errorf("%d users", got)
	}
	if got := countRows(t, dbh, `SELECT COUNT(*) FROM enrollments WHERE user_id=(SELECT id FROM users WHERE username='ana')`); got != 2 {
		t.Errorf("ana enrolled in %d subjects", got)
	}
	if got := countRows(t, dbh, `SELECT COUNT(*) FROM users WHERE role='teacher'`); got != 1 {
		t.Errorf("%d teachers", got)
	}
}

func TestChangePasswordPolicy(t *testing.T) {
	dbh := newHandlerDB(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("oldpassword"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dbh.Exec(
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ('u1','u1',$1,'student',0)`,
		string(hash)); err != nil {
		t.Fatal(err)
	}
	h := api.ChangePasswordHandler(dbh)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/users/change-password", strings.NewReader(body))
		req = req.WithContext(authmw.WithSubject(req.Context(), "u1"))
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	// Under eight characters.
	if rec := send(`{"old_password":"oldpassword","new_password":"short"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("short password: status %d", rec.Code)
	}
	// Unchanged password.
	if rec := send(`{"old_password":"oldpassword","new_password":"oldpassword"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unchanged password: status %d", rec.Code)
	}
	// Wrong old password.
	if rec := send(`{"old_password":"nope","new_password":"newpassword"}`); rec.Code != http.StatusForbidden {
		t.Errorf("wrong old password: status %d", rec.Code)
	}
	// Valid rotation.
	if rec := send(`{"old_password":"oldpassword","new_password":"newpassword"}`); rec.Code != http.StatusNoContent {
		t.Errorf("valid change: status %d", rec.Code)
	}
	var stored string
	if err := dbh.QueryRow(`SELECT password_hash FROM users WHERE id='u1'`).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte("newpassword")) != nil {
		t.Error("new password not stored")
	}
}

package quiz_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/study-hall/studyhall-school/internal/db"
	"github.com/study-hall/studyhall-school/internal/quiz"
)

func validQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:          "q-alg",
		SubjectID:   "math",
		AuthorID:    "t1",
		Title:       "Algebra basics",
		MaxAttempts: 1,
		IsPublished: true,
		IsActive:    true,
		Questions: []quiz.Question{
			{ID: "qq1", Type: quiz.TypeMultipleChoice, Prompt: "2x=4, x=?", Points: 5, Position: 1,
				Answers: []quiz.Answer{
					{ID: "a1", Body: "1", Position: 1},
					{ID: "a2", Body: "2", IsCorrect: true, Position: 2},
				}},
			{ID: "qq2", Type: quiz.TypeEssay, Prompt: "Prove it.", Points: 5, Position: 2},
		},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*quiz.Quiz)
		wantErr string
	}{
		{"valid", func(z *quiz.Quiz) {}, ""},
		{"missing title", func(z *quiz.Quiz) { z.Title = "" }, "title"},
		{"missing subject", func(z *quiz.Quiz) { z.SubjectID = "" }, "subject_id"},
		{"zero max attempts", func(z *quiz.Quiz) { z.MaxAttempts = 0 }, "max_attempts"},
		{"negative time limit", func(z *quiz.Quiz) { v := -5; z.TimeLimitMin = &v }, "time_limit_min"},
		{"no questions", func(z *quiz.Quiz) { z.Questions = nil }, "question"},
		{"zero points", func(z *quiz.Quiz) { z.Questions[0].Points = 0 }, "points"},
		{"unknown type", func(z *quiz.Quiz) { z.Questions[0].Type = "matching" }, "type"},
		{"no correct answer", func(z *quiz.Quiz) { z.Questions[0].Answers[1].IsCorrect = false }, "correct"},
		{"two correct answers", func(z *quiz.Quiz) { z.Questions[0].Answers[0].IsCorrect = true }, "correct"},
		{"one answer only", func(z *quiz.Quiz) {
			z.Questions[0].Answers = z.Questions[0].Answers[1:]
		}, "answers"},
		{"answers on essay", func(z *quiz.Quiz) {
			z.Questions[1].Answers = []quiz.Answer{{ID: "x", Body: "no"}}
		}, "answer options"},
		{"true_false with three answers", func(z *quiz.Quiz) {
			z.Questions[0].Type = quiz.TypeTrueFalse
			z.Questions[0].Answers = append(z.Questions[0].Answers, quiz.Answer{ID: "a3", Body: "maybe"})
		}, "true_false"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			z := validQuiz()
			tc.mutate(&z)
			err := quiz.Validate(z)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCorrectAnswerIDFirstWins(t *testing.T) {
	q := quiz.Question{Answers: []quiz.Answer{
		{ID: "a1"},
		{ID: "a2", IsCorrect: true},
		{ID: "a3", IsCorrect: true},
	}}
	if got := q.CorrectAnswerID(); got != "a2" {
		t.Errorf("CorrectAnswerID = %q, want a2", got)
	}
}

func newCatalogDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	ctx := context.Background()
	if err := db.EnsureSchema(ctx, dbh, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	seed := []string{
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ('s1','s1','x','student',0)`,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ('t1','t1','x','teacher',0)`,
		`INSERT INTO subjects (id, name, created_by, created_at) VALUES ('math','Mathematics','t1',0)`,
		`INSERT INTO subjects (id, name, created_by, created_at) VALUES ('bio','Biology','t1',0)`,
		`INSERT INTO enrollments (user_id, subject_id, created_at) VALUES ('s1','math',0)`,
	}
	for _, q := range seed {
		if _, err := dbh.Exec(q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func TestCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := quiz.NewSQLCatalog(newCatalogDB(t))

	if err := c.Put(ctx, validQuiz()); err != nil {
		t.Fatalf("put: %v", err)
	}

	full, err := c.GetAuthoring(ctx, "q-alg")
	if err != nil {
		t.Fatalf("get authoring: %v", err)
	}
	if full.Questions[0].CorrectAnswerID() != "a2" {
		t.Error("answer key missing from authoring view")
	}

	safe, err := c.Get(ctx, "q-alg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, q := range safe.Questions {
		for _, a := range q.Answers {
			if a.IsCorrect {
				t.Fatalf("answer key leaked into learner view: %+v", a)
			}
		}
	}

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestCatalogPutReplacesQuestions(t *testing.T) {
	ctx := context.Background()
	c := quiz.NewSQLCatalog(newCatalogDB(t))

	if err := c.Put(ctx, validQuiz()); err != nil {
		t.Fatal(err)
	}

	z := validQuiz()
	z.Title = "Algebra basics v2"
	z.Questions = z.Questions[:1] // drop the essay
	if err := c.Put(ctx, z); err != nil {
		t.Fatalf("re-put: %v", err)
	}

	got, err := c.GetAuthoring(ctx, "q-alg")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Algebra basics v2" {
		t.Errorf("title = %q", got.Title)
	}
	if len(got.Questions) != 1 {
		t.Errorf("stale questions survived the rewrite: %d", len(got.Questions))
	}
}

func TestCatalogPutRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	c := quiz.NewSQLCatalog(newCatalogDB(t))

	z := validQuiz()
	z.Questions[0].Answers[1].IsCorrect = false
	if err := c.Put(ctx, z); err == nil {
		t.Fatal("quiz without an answer key accepted")
	}
}

// rescope derives question and answer ids from the quiz id so multiple
// validQuiz() copies can coexist under the globally-unique id columns.
func rescope(z quiz.Quiz, id string) quiz.Quiz {
	z.ID = id
	for i := range z.Questions {
		z.Questions[i].ID = id + "-" + z.Questions[i].ID
		for j := range z.Questions[i].Answers {
			z.Questions[i].Answers[j].ID = id + "-" + z.Questions[i].Answers[j].ID
		}
	}
	return z
}

func TestCatalogListScoping(t *testing.T) {
	ctx := context.Background()
	c := quiz.NewSQLCatalog(newCatalogDB(t))

	published := validQuiz()
	if err := c.Put(ctx, published); err != nil {
		t.Fatal(err)
	}

	draft := rescope(validQuiz(), "q-draft")
	draft.Title = "Draft exam ideas"
	draft.IsPublished = false
	if err := c.Put(ctx, draft); err != nil {
		t.Fatal(err)
	}

	foreign := rescope(validQuiz(), "q-bio")
	foreign.SubjectID = "bio" // s1 is not enrolled
	if err := c.Put(ctx, foreign); err != nil {
		t.Fatal(err)
	}

	// Student: published + enrolled subject only.
	got, err := c.List(ctx, quiz.ListOpts{ViewerID: "s1", ViewerRole: "student"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "q-alg" {
		t.Errorf("student list = %+v", got)
	}

	// Author: everything they wrote, drafts included.
	got, err = c.List(ctx, quiz.ListOpts{ViewerID: "t1", ViewerRole: "teacher"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("teacher list = %d quizzes", len(got))
	}

	// Admin: everything.
	got, err = c.List(ctx, quiz.ListOpts{ViewerID: "root", ViewerRole: "admin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("admin list = %d quizzes", len(got))
	}

	// Title search.
	got, err = c.List(ctx, quiz.ListOpts{ViewerID: "root", ViewerRole: "admin", Q: "draft"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "q-draft" {
		t.Errorf("search list = %+v", got)
	}
}

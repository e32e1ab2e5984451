package grading_test

import (
	"context"
	"testing"

	"github.com/study-hall/studyhall-school/internal/grading"
	"github.com/study-hall/studyhall-school/internal/quiz"
)

func TestChoiceGrading(t *testing.T) {
	g := grading.NewDefaultGrader()

	q := grading.Q{Type: quiz.TypeMultipleChoice, Points: 4, CorrectAnswerID: "a2"}

	cases := []struct {
		name       string
		resp       grading.Response
		wantPoints float64
		wantRight  bool
	}{
		{"correct choice", grading.Response{AnswerID: "a2"}, 4, true},
		{"wrong choice", grading.Response{AnswerID: "a1"}, 0, false},
		{"no choice", grading.Response{}, 0, false},
		{"unknown choice", grading.Response{AnswerID: "zzz"}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := g.Grade(context.Background(), q, tc.resp)
			if err != nil {
				t.Fatalf("grade: %v", err)
			}
			if res.NeedsManual {
				t.Fatalf("objective question flagged manual")
			}
			if res.PointsEarned != tc.wantPoints {
				t.Errorf("points = %v, want %v", res.PointsEarned, tc.wantPoints)
			}
			if res.IsCorrect == nil || *res.IsCorrect != tc.wantRight {
				t.Errorf("is_correct = %v, want %v", res.IsCorrect, tc.wantRight)
			}
		})
	}
}

func TestChoiceGradingNoAnswerKey(t *testing.T) {
	g := grading.NewDefaultGrader()
	res, err := g.Grade(context.Background(), grading.Q{Type: quiz.TypeTrueFalse, Points: 2}, grading.Response{AnswerID: "a1"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.PointsEarned != 0 || res.IsCorrect == nil || *res.IsCorrect {
		t.Errorf("question without answer key graded as correct: %+v", res)
	}
}

func TestSubjectiveNeedsManual(t *testing.T) {
	g := grading.NewDefaultGrader()
	for _, typ := range []quiz.QuestionType{quiz.TypeShortAnswer, quiz.TypeEssay} {
		res, err := g.Grade(context.Background(), grading.Q{Type: typ, Points: 10}, grading.Response{Text: "my essay"})
		if err != nil {
			t.Fatalf("grade %s: %v", typ, err)
		}
		if !res.NeedsManual {
			t.Errorf("%s: expected needs manual", typ)
		}
		if res.IsCorrect != nil {
			t.Errorf("%s: correctness decided automatically", typ)
		}
		if res.PointsEarned != 0 {
			t.Errorf("%s: points awarded automatically", typ)
		}
	}
}

func TestUnknownTypeErrors(t *testing.T) {
	g := grading.NewDefaultGrader()
	if _, err := g.Grade(context.Background(), grading.Q{Type: "matching", Points: 1}, grading.Response{}); err == nil {
		t.Fatal("expected error for unregistered question type")
	}
}

func TestRound2(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{66.666666, 66.67},
		{33.333333, 33.33},
		{100, 100},
		{0.005, 0.01},
	}
	for _, tc := range cases {
		if got := grading.Round2(tc.in); got != tc.want {
			t.Errorf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPercentage(t *testing.T) {
	if got := grading.Percentage(2, 3); got != 66.67 {
		t.Errorf("Percentage(2,3) = %v, want 66.67", got)
	}
	if got := grading.Percentage(1, 0); got != 0 {
		t.Errorf("Percentage with zero total = %v, want 0", got)
	}
}

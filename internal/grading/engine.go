package grading

import (
	"context"
	"errors"

	"github.com/study-hall/studyhall-school/internal/quiz"
)

// Q is the minimal view of a question needed to grade one response.
type Q struct {
	Type            quiz.QuestionType
	Points          float64
	CorrectAnswerID string // objective types; "" when the author flagged none
}

// Response is a learner's captured answer: a chosen option for objective
// types, free text for subjective ones. The zero value represents an
// unanswered question.
type Response struct {
	AnswerID string
	Text     string
}

// Result is the outcome of grading a single response.
type Result struct {
	PointsEarned float64
	IsCorrect    *bool // nil while a human grade is pending
	NeedsManual  bool  // true when teacher review is required
}

// Strategy grades a single question variant.
type Strategy interface {
	Grade(ctx context.Context, q Q, resp Response) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, resp Response) (Result, error)
}

type defaultGrader struct {
	strategies map[quiz.QuestionType]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, resp Response) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, errors.New("no strategy for question type " + string(q.Type))
	}
	return s.Grade(ctx, q, resp)
}

// NewDefaultGrader installs a strategy per question type: the two objective
// variants auto-grade, the two subjective ones defer to a human.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[quiz.QuestionType]Strategy{
			quiz.TypeMultipleChoice: choiceStrategy{},
			quiz.TypeTrueFalse:      choiceStrategy{},
			quiz.TypeShortAnswer:    manualStrategy{},
			quiz.TypeEssay:          manualStrategy{},
		},
	}
}

// choiceStrategy compares the chosen answer to the flagged correct one by
// identity. A missing choice or a question with no flagged answer grades
// incorrect, zero points.
type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Q, resp Response) (Result, error) {
	correct := resp.AnswerID != "" && q.CorrectAnswerID != "" && resp.AnswerID == q.CorrectAnswerID
	res := Result{IsCorrect: &correct}
	if correct {
		res.PointsEarned = q.Points
	}
	return res, nil
}

// manualStrategy leaves correctness and points open for ManualGrade.
type manualStrategy struct{}

func (manualStrategy) Grade(_ context.Context, _ Q, _ Response) (Result, error) {
	return Result{NeedsManual: true}, nil
}

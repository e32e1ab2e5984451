package attempt

import "github.com/study-hall/studyhall-school/internal/quiz"

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

type Attempt struct {
	ID            string   `json:"id"`
	QuizID        string   `json:"quiz_id"`
	UserID        string   `json:"user_id"`
	AttemptNumber int      `json:"attempt_number"`
	Status        string   `json:"status"` // in_progress|completed
	StartedAt     int64    `json:"started_at"`
	CompletedAt   *int64   `json:"completed_at,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	TotalPoints   *float64 `json:"total_points,omitempty"`
	// Percentage stays null after Submit while any subjective question is
	// ungraded; ManualGrade resolves it.
	Percentage *float64 `json:"percentage,omitempty"`
}

type Response struct {
	ID            string   `json:"id"`
	AttemptID     string   `json:"attempt_id"`
	QuestionID    string   `json:"question_id"`
	AnswerID      *string  `json:"answer_id,omitempty"`
	TextAnswer    *string  `json:"text_answer,omitempty"`
	AttachmentKey *string  `json:"attachment_key,omitempty"`
	IsCorrect     *bool    `json:"is_correct,omitempty"`
	PointsEarned  *float64 `json:"points_earned,omitempty"`
	Feedback      *string  `json:"feedback,omitempty"`
	UpdatedAt     int64    `json:"updated_at"`
}

// ResponseInput is one incoming answer, either saved incrementally or
// carried with the submission call.
type ResponseInput struct {
	QuestionID    string `json:"question_id" validate:"required"`
	AnswerID      string `json:"answer_id,omitempty"`
	TextAnswer    string `json:"text_answer,omitempty"`
	AttachmentKey string `json:"attachment_key,omitempty"`
}

type ManualGradeInput struct {
	ResponseID   string  `json:"response_id" validate:"required"`
	PointsEarned float64 `json:"points_earned" validate:"gte=0"`
	Feedback     string  `json:"feedback,omitempty"`
}

// WorkingView is what an in-progress attempt renders from: display-ordered
// questions (learner-safe), prior responses by question id, and the advisory
// clock.
type WorkingView struct {
	Attempt          Attempt             `json:"attempt"`
	Questions        []quiz.Question     `json:"questions"`
	Responses        map[string]Response `json:"responses"`
	RemainingSeconds *int64              `json:"remaining_seconds,omitempty"`
}

// ResultQuestion pairs a question with the learner's response. The correct
// answer id and the answer bodies' correctness flags are present only when
// the quiz exposes them.
type ResultQuestion struct {
	QuestionID      string            `json:"question_id"`
	Type            quiz.QuestionType `json:"type"`
	Prompt          string            `json:"prompt"`
	Points          float64           `json:"points"`
	Answers         []quiz.Answer     `json:"answers,omitempty"`
	CorrectAnswerID string            `json:"correct_answer_id,omitempty"`
	Response        *Response         `json:"response,omitempty"`
}

type ResultView struct {
	Attempt   Attempt          `json:"attempt"`
	Questions []ResultQuestion `json:"questions,omitempty"`
}

// GradingItem is one row of the grader's view of a completed attempt.
// NeedsManual stays true for every subjective row until a manual grading
// pass has run, including omitted questions that already hold a zero.
type GradingItem struct {
	ResponseID   string            `json:"response_id"`
	QuestionID   string            `json:"question_id"`
	Type         quiz.QuestionType `json:"type"`
	Prompt       string            `json:"prompt"`
	Points       float64           `json:"points"`
	AnswerID     *string           `json:"answer_id,omitempty"`
	TextAnswer   *string           `json:"text_answer,omitempty"`
	IsCorrect    *bool             `json:"is_correct,omitempty"`
	PointsEarned *float64          `json:"points_earned,omitempty"`
	Feedback     *string           `json:"feedback,omitempty"`
	NeedsManual  bool              `json:"needs_manual"`
}

type ListOpts struct {
	QuizID string
	UserID string
	Status string // optional: in_progress|completed
	Limit  int
	Offset int
	Sort   string // started_at|completed_at desc (default: started_at desc)
}

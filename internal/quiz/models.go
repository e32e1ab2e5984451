package quiz

import "time"

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeEssay          QuestionType = "essay"
)

// Objective reports whether the type is gradable by comparing the chosen
// answer against the flagged correct one. short_answer and essay need a
// human grader.
func (t QuestionType) Objective() bool {
	return t == TypeMultipleChoice || t == TypeTrueFalse
}

func (t QuestionType) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeShortAnswer, TypeEssay:
		return true
	}
	return false
}

type Answer struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	IsCorrect bool   `json:"is_correct,omitempty"` // stripped in learner views
	Position  int    `json:"position"`
}

type Question struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Prompt   string       `json:"prompt"`
	Points   float64      `json:"points"`
	Position int          `json:"position"`
	Answers  []Answer     `json:"answers,omitempty"` // objective types only
}

// CorrectAnswerID returns the first answer flagged correct, or "" when none.
// Malformed questions with zero or several flags resolve as first-match-wins;
// Put rejects new ones (see Validate).
func (q Question) CorrectAnswerID() string {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.ID
		}
	}
	return ""
}

type Quiz struct {
	ID                 string     `json:"id"`
	SubjectID          string     `json:"subject_id"`
	AuthorID           string     `json:"author_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	TimeLimitMin       *int       `json:"time_limit_min,omitempty"` // nil = untimed
	MaxAttempts        int        `json:"max_attempts"`
	ShuffleQuestions   bool       `json:"shuffle_questions"`
	ShuffleAnswers     bool       `json:"shuffle_answers"`
	ShowCorrectAnswers bool       `json:"show_correct_answers"`
	IsPublished        bool       `json:"is_published"`
	IsActive           bool       `json:"is_active"`
	AvailableFrom      *time.Time `json:"available_from,omitempty"`
	AvailableUntil     *time.Time `json:"available_until,omitempty"`
	Questions          []Question `json:"questions"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// AvailableAt reports whether learners may start attempts at the given
// instant: published, active, and inside the availability window.
func (z Quiz) AvailableAt(now time.Time) bool {
	if !z.IsPublished || !z.IsActive {
		return false
	}
	if z.AvailableFrom != nil && now.Before(*z.AvailableFrom) {
		return false
	}
	if z.AvailableUntil != nil && now.After(*z.AvailableUntil) {
		return false
	}
	return true
}

// TotalPoints sums the point values of every question.
func (z Quiz) TotalPoints() float64 {
	var sum float64
	for _, q := range z.Questions {
		sum += q.Points
	}
	return sum
}

// QuestionByID finds a question on the quiz, nil when absent.
func (z Quiz) QuestionByID(id string) *Question {
	for i := range z.Questions {
		if z.Questions[i].ID == id {
			return &z.Questions[i]
		}
	}
	return nil
}

type Summary struct {
	ID           string `json:"id"`
	SubjectID    string `json:"subject_id"`
	Title        string `json:"title"`
	TimeLimitMin *int   `json:"time_limit_min,omitempty"`
	MaxAttempts  int    `json:"max_attempts"`
	IsPublished  bool   `json:"is_published"`
	CreatedAt    int64  `json:"created_at"`
}

package quiz

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("quiz not found")

type ListOpts struct {
	Q          string
	SubjectID  string
	Limit      int
	Offset     int
	ViewerID   string
	ViewerRole string // "student" | "teacher" | "admin"
}

// Catalog is the read-mostly source of quiz definitions. The attempt core
// only ever reads; Put is the narrow ingest path authors feed it through.
type Catalog interface {
	// Get returns the learner-safe view: correctness flags stripped.
	Get(ctx context.Context, id string) (Quiz, error)
	// GetAuthoring returns the full definition including answer keys.
	GetAuthoring(ctx context.Context, id string) (Quiz, error)
	List(ctx context.Context, opts ListOpts) ([]Summary, error)
	Put(ctx context.Context, z Quiz) error
}

// Validate checks a definition before it enters the catalog. Objective
// questions must carry at least two answers with exactly one flagged correct;
// true_false exactly two.
func Validate(z Quiz) error {
	if z.ID == "" {
		return fmt.Errorf("id required")
	}
	if z.Title == "" {
		return fmt.Errorf("title required")
	}
	if z.SubjectID == "" {
		return fmt.Errorf("subject_id required")
	}
	if z.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1")
	}
	if z.TimeLimitMin != nil && *z.TimeLimitMin <= 0 {
		return fmt.Errorf("time_limit_min must be positive when set")
	}
	if len(z.Questions) == 0 {
		return fmt.Errorf("at least one question required")
	}
	for i, q := range z.Questions {
		if q.ID == "" {
			return fmt.Errorf("question %d: id required", i)
		}
		if !q.Type.Valid() {
			return fmt.Errorf("question %q: unknown type %q", q.ID, q.Type)
		}
		if q.Points <= 0 {
			return fmt.Errorf("question %q: points must be positive", q.ID)
		}
		if q.Type.Objective() {
			if len(q.Answers) < 2 {
				return fmt.Errorf("question %q: objective questions need at least two answers", q.ID)
			}
			if q.Type == TypeTrueFalse && len(q.Answers) != 2 {
				return fmt.Errorf("question %q: true_false needs exactly two answers", q.ID)
			}
			correct := 0
			for j, a := range q.Answers {
				if a.ID == "" {
					return fmt.Errorf("question %q: answer %d: id required", q.ID, j)
				}
				if a.IsCorrect {
					correct++
				}
			}
			if correct != 1 {
				return fmt.Errorf("question %q: exactly one answer must be flagged correct, got %d", q.ID, correct)
			}
		} else if len(q.Answers) > 0 {
			return fmt.Errorf("question %q: %s questions must not carry answer options", q.ID, q.Type)
		}
	}
	return nil
}

package roster

import "context"

// Roster answers the one question the attempt core asks of enrollment data:
// may this learner take quizzes for this subject.
type Roster interface {
	IsEnrolled(ctx context.Context, userID, subjectID string) (bool, error)
}

type Subject struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

package attempt

import (
	"time"

	"github.com/study-hall/studyhall-school/internal/quiz"
)

// RemainingSeconds computes the advisory clock for a timed attempt:
// max(0, limit - elapsed). Untimed quizzes return nil. The value is for
// display only; Submit never consults it, so a late submission still
// grades normally.
func RemainingSeconds(z quiz.Quiz, a Attempt, now time.Time) *int64 {
	if z.TimeLimitMin == nil {
		return nil
	}
	elapsed := now.Unix() - a.StartedAt
	remaining := int64(*z.TimeLimitMin)*60 - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

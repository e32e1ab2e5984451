package attempt

import (
	"math/rand"

	"github.com/study-hall/studyhall-school/internal/quiz"
)

// Shuffler produces a per-render presentation order. It permutes display
// order only; question and answer identities are untouched, so grading is
// unaffected. Each render re-shuffles, so the ordering is not stable across
// page loads of the same attempt.
type Shuffler struct {
	perm func(n int) []int
}

func NewShuffler() *Shuffler { return &Shuffler{perm: rand.Perm} }

// NewShufflerWithPerm injects the permutation source. Tests pass a
// deterministic one.
func NewShufflerWithPerm(perm func(n int) []int) *Shuffler {
	return &Shuffler{perm: perm}
}

// Order copies the quiz's questions into display order: questions permuted
// when shuffle_questions is set, each question's answers independently
// permuted when shuffle_answers is set. Without either flag the authored
// ordering comes back unchanged.
func (s *Shuffler) Order(z quiz.Quiz) []quiz.Question {
	out := make([]quiz.Question, len(z.Questions))
	if z.ShuffleQuestions {
		for i, j := range s.perm(len(z.Questions)) {
			out[i] = z.Questions[j]
		}
	} else {
		copy(out, z.Questions)
	}
	if z.ShuffleAnswers {
		for i := range out {
			if len(out[i].Answers) == 0 {
				continue
			}
			src := out[i].Answers
			shuffled := make([]quiz.Answer, len(src))
			for k, j := range s.perm(len(src)) {
				shuffled[k] = src[j]
			}
			out[i].Answers = shuffled
		}
	}
	return out
}

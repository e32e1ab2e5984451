package grading

import "math"

// Round2 rounds to two decimal places, the precision percentages are stored
// and reported at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percentage computes the 2-dp percentage of score over total. A zero-point
// quiz reports 0 rather than dividing by zero.
func Percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(score / total * 100)
}

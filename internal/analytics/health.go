// Package analytics derives dashboard view models from a store snapshot. Every
// function is pure: the same snapshot and clock give the same result.
package analytics

import (
	"math"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
)

// roundHalfUp rounds to the nearest integer with halves going up.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// scorable drops feedback whose understanding level is not recognised.
func scorable(feedback []models.Feedback) []models.Feedback {
	out := make([]models.Feedback, 0, len(feedback))
	for _, f := range feedback {
		if f.UnderstandingLevel.Valid() {
			out = append(out, f)
		}
	}
	return out
}

// meanScore is the rounded mean of 100/60/20 level scores, 0 when empty.
func meanScore(feedback []models.Feedback) int {
	sum, n := 0, 0
	for _, f := range feedback {
		score, ok := f.UnderstandingLevel.Score()
		if !ok {
			continue
		}
		sum += score
		n++
	}
	if n == 0 {
		return 0
	}
	return roundHalfUp(float64(sum) / float64(n))
}

// HealthOf scores a feedback collection 0..100. No feedback scores 0.
func HealthOf(feedback []models.Feedback) int {
	return meanScore(feedback)
}

// CourseHealth scores one course. A missing course scores 0.
func CourseHealth(s *store.Snapshot, courseID string) int {
	return HealthOf(s.FeedbackForCourse(courseID))
}

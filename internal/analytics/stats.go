package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/lecture-intel-api/internal/models"
	"github.com/noah-isme/lecture-intel-api/internal/store"
)

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return roundHalfUp(float64(part) * 100 / float64(total))
}

// Stats summarises a feedback collection as of now.
func Stats(feedback []models.Feedback, now time.Time) models.FeedbackStats {
	valid := scorable(feedback)
	stats := models.FeedbackStats{Total: len(valid)}
	today := dayKey(now)
	ratingSum := 0
	for _, f := range valid {
		switch f.UnderstandingLevel {
		case models.LevelFully:
			stats.Fully++
		case models.LevelPartial:
			stats.Partial++
		case models.LevelConfused:
			stats.Confused++
		}
		if f.Resolved() {
			stats.Resolved++
		} else {
			stats.Unresolved++
		}
		if dayKey(f.Timestamp) == today {
			stats.Today++
		}
		ratingSum += f.Rating()
	}

	stats.FullyPercent = percent(stats.Fully, stats.Total)
	stats.PartialPercent = percent(stats.Partial, stats.Total)
	stats.ConfusedPercent = percent(stats.Confused, stats.Total)
	if stats.Total > 0 {
		stats.AverageRating = math.Round(float64(ratingSum)/float64(stats.Total)*10) / 10
	}
	stats.Health = meanScore(valid)
	return stats
}

// SilentStudents lists enrolled students, in roster order, without any
// feedback for the course since now-window.
func SilentStudents(s *store.Snapshot, courseID string, window time.Duration, now time.Time) []models.SilentStudent {
	course, ok := s.Course(courseID)
	if !ok {
		return []models.SilentStudent{}
	}

	last := make(map[string]time.Time)
	for _, f := range s.FeedbackForCourse(courseID) {
		if prev, ok := last[f.StudentID]; !ok || f.Timestamp.After(prev) {
			last[f.StudentID] = f.Timestamp
		}
	}

	cutoff := now.Add(-window)
	out := make([]models.SilentStudent, 0)
	for _, sid := range course.StudentIDs {
		lastAt, seen := last[sid]
		if seen && lastAt.After(cutoff) {
			continue
		}
		silent := models.SilentStudent{StudentID: sid, Name: s.StudentName(sid)}
		if st, ok := s.Student(sid); ok {
			silent.RollNumber = st.RollNumber
		}
		if seen {
			at := lastAt
			days := int(now.Sub(lastAt).Hours() / 24)
			silent.LastFeedbackAt = &at
			silent.DaysSilent = &days
		}
		out = append(out, silent)
	}
	return out
}

// Recent returns the n newest views.
func Recent(views []models.FeedbackView, n int) []models.FeedbackView {
	sorted := make([]models.FeedbackView, len(views))
	copy(sorted, views)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

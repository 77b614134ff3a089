package analytics

import (
	"math"
	"sort"

	"github.com/noah-isme/lecture-intel-api/internal/models"
)

// MaxRankedTopics caps the difficulty ranking.
const MaxRankedTopics = 10

// TopicDifficulty ranks rated topics worst-understood first. Understanding is
// round(avg rating * 20); topics nobody rated are absent.
func TopicDifficulty(feedback []models.Feedback, nameOf func(topicID string) string) []models.TopicDifficulty {
	type acc struct{ sum, n int }
	totals := make(map[string]*acc)
	for _, f := range scorable(feedback) {
		for _, tr := range f.TopicRatings {
			a, ok := totals[tr.TopicID]
			if !ok {
				a = &acc{}
				totals[tr.TopicID] = a
			}
			a.sum += tr.Rating
			a.n++
		}
	}

	out := make([]models.TopicDifficulty, 0, len(totals))
	for id, a := range totals {
		avg := float64(a.sum) / float64(a.n)
		understanding := roundHalfUp(avg * 20)
		name := id
		if nameOf != nil {
			name = nameOf(id)
		}
		out = append(out, models.TopicDifficulty{
			TopicID:       id,
			Topic:         name,
			AverageRating: math.Round(avg*100) / 100,
			Understanding: understanding,
			ConfusionRate: 100 - understanding,
			Responses:     a.n,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Understanding != out[j].Understanding {
			return out[i].Understanding < out[j].Understanding
		}
		if out[i].Responses != out[j].Responses {
			return out[i].Responses > out[j].Responses
		}
		return out[i].TopicID < out[j].TopicID
	})

	if len(out) > MaxRankedTopics {
		out = out[:MaxRankedTopics]
	}
	return out
}

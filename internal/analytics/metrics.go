package analytics

import (
	"fmt"
	"time"

	"github.com/noah-isme/lecture-intel-api/internal/models"
)

const (
	dayLayout = "2006-01-02"

	firstHour = 8
	lastHour  = 18

	dailyEngagementFactor  = 10
	hourlyEngagementFactor = 5
	engagementCap          = 100
)

// Windows lists the supported daily metric windows, in days.
var Windows = []int{7, 14, 30, 90}

// ValidWindow reports whether days is a supported daily window.
func ValidWindow(days int) bool {
	for _, w := range Windows {
		if w == days {
			return true
		}
	}
	return false
}

func engagement(count, factor int) int {
	if v := count * factor; v < engagementCap {
		return v
	}
	return engagementCap
}

// dayKey is the UTC calendar date of t. Stored timestamps and "now" must
// agree on the zone or same-instant values land on different days.
func dayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// DailyMetrics buckets feedback into exactly days calendar days ending at now,
// oldest first. Empty days report zeros.
func DailyMetrics(feedback []models.Feedback, days int, now time.Time) []models.DailyMetric {
	if days <= 0 {
		return []models.DailyMetric{}
	}
	byDay := make(map[string][]models.Feedback)
	for _, f := range scorable(feedback) {
		key := dayKey(f.Timestamp)
		byDay[key] = append(byDay[key], f)
	}

	out := make([]models.DailyMetric, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := now.UTC().AddDate(0, 0, -i)
		key := dayKey(day)
		bucket := byDay[key]
		out = append(out, models.DailyMetric{
			Date:          key,
			Label:         day.Format("Jan 2"),
			Understanding: meanScore(bucket),
			Feedback:      len(bucket),
			Engagement:    engagement(len(bucket), dailyEngagementFactor),
		})
	}
	return out
}

// HourlyMetrics buckets feedback by clock hour from 08:00 to 18:00 inclusive.
// A non-empty day (YYYY-MM-DD) restricts the input to that date.
func HourlyMetrics(feedback []models.Feedback, day string) []models.HourlyMetric {
	byHour := make(map[int][]models.Feedback)
	for _, f := range scorable(feedback) {
		if day != "" && dayKey(f.Timestamp) != day {
			continue
		}
		h := f.Timestamp.UTC().Hour()
		byHour[h] = append(byHour[h], f)
	}

	out := make([]models.HourlyMetric, 0, lastHour-firstHour+1)
	for h := firstHour; h <= lastHour; h++ {
		bucket := byHour[h]
		out = append(out, models.HourlyMetric{
			Hour:          h,
			Label:         fmt.Sprintf("%02d:00", h),
			Understanding: meanScore(bucket),
			Feedback:      len(bucket),
			Engagement:    engagement(len(bucket), hourlyEngagementFactor),
		})
	}
	return out
}

package models

import "time"

// Insight sources.
const (
	InsightSourceLLM      = "llm"
	InsightSourceFallback = "fallback"
)

// InsightReport is the AI-generated teaching analysis for a course.
type InsightReport struct {
	CourseID           string    `json:"course_id"`
	TopConfusingTopics []string  `json:"top_confusing_topics"`
	RevisionPlan       []string  `json:"revision_plan"`
	SilentStudents     []string  `json:"silent_students"`
	TeachingInsights   []string  `json:"teaching_insights"`
	Source             string    `json:"source"`
	RequestToken       uint64    `json:"request_token"`
	GeneratedAt        time.Time `json:"generated_at"`
}

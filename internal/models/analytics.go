package models

import "time"

// DailyMetric is one calendar-day bucket of a course's feedback.
type DailyMetric struct {
	Date          string `json:"date"`
	Label         string `json:"label"`
	Understanding int    `json:"understanding"`
	Feedback      int    `json:"feedback"`
	Engagement    int    `json:"engagement"`
}

// HourlyMetric is one clock-hour bucket between 08:00 and 18:00.
type HourlyMetric struct {
	Hour          int    `json:"hour"`
	Label         string `json:"label"`
	Understanding int    `json:"understanding"`
	Feedback      int    `json:"feedback"`
	Engagement    int    `json:"engagement"`
}

// TopicDifficulty ranks a topic by how well it is understood.
type TopicDifficulty struct {
	TopicID       string  `json:"topic_id"`
	Topic         string  `json:"topic"`
	AverageRating float64 `json:"average_rating"`
	Understanding int     `json:"understanding"`
	ConfusionRate int     `json:"confusion_rate"`
	Responses     int     `json:"responses"`
}

// FeedbackStats summarises a feedback collection.
type FeedbackStats struct {
	Total           int     `json:"total"`
	Fully           int     `json:"fully"`
	Partial         int     `json:"partial"`
	Confused        int     `json:"confused"`
	FullyPercent    int     `json:"fully_percent"`
	PartialPercent  int     `json:"partial_percent"`
	ConfusedPercent int     `json:"confused_percent"`
	Resolved        int     `json:"resolved"`
	Unresolved      int     `json:"unresolved"`
	AverageRating   float64 `json:"average_rating"`
	Today           int     `json:"today"`
	Health          int     `json:"health"`
}

// SilentStudent is an enrolled student with no feedback inside the monitoring window.
type SilentStudent struct {
	StudentID      string     `json:"student_id"`
	Name           string     `json:"name"`
	RollNumber     string     `json:"roll_number"`
	LastFeedbackAt *time.Time `json:"last_feedback_at,omitempty"`
	DaysSilent     *int       `json:"days_silent,omitempty"`
}

// FeedbackView is a feedback record with resolved display labels.
type FeedbackView struct {
	Feedback
	LectureTitle string `json:"lecture_title"`
	CourseCode   string `json:"course_code"`
	StudentName  string `json:"student_name"`
	Rating       int    `json:"rating"`
	Resolved     bool   `json:"resolved"`
	Read         bool   `json:"read"`
}

// CourseHealthSummary is a course's headline numbers.
type CourseHealthSummary struct {
	CourseID      string `json:"course_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Health        int    `json:"health"`
	FeedbackCount int    `json:"feedback_count"`
	StudentCount  int    `json:"student_count"`
}

// SilentStudentAlert ties a silent student to a course.
type SilentStudentAlert struct {
	CourseID   string `json:"course_id"`
	CourseCode string `json:"course_code"`
	SilentStudent
}

// ProfessorDashboard aggregates every course a professor teaches.
type ProfessorDashboard struct {
	Courses          []CourseHealthSummary `json:"courses"`
	OverallHealth    int                   `json:"overall_health"`
	TotalFeedback    int                   `json:"total_feedback"`
	TotalStudents    int                   `json:"total_students"`
	LowHealthCourses []CourseHealthSummary `json:"low_health_courses"`
	SilentAlerts     []SilentStudentAlert  `json:"silent_alerts"`
	RecentFeedback   []FeedbackView        `json:"recent_feedback"`
	GeneratedAt      time.Time             `json:"generated_at"`
}

// LectureRef identifies a lecture in dashboard lists.
type LectureRef struct {
	LectureID string `json:"lecture_id"`
	Title     string `json:"title"`
}

// StudentCourseSummary is one enrolled course on the student dashboard.
type StudentCourseSummary struct {
	CourseID        string       `json:"course_id"`
	Code            string       `json:"code"`
	Name            string       `json:"name"`
	Health          int          `json:"health"`
	MyFeedback      int          `json:"my_feedback"`
	LastSubmittedAt *time.Time   `json:"last_submitted_at,omitempty"`
	PendingLectures []LectureRef `json:"pending_lectures"`
}

// StudentDashboard is a student's view of their courses.
type StudentDashboard struct {
	StudentID     string                 `json:"student_id"`
	Name          string                 `json:"name"`
	Courses       []StudentCourseSummary `json:"courses"`
	TotalFeedback int                    `json:"total_feedback"`
	GeneratedAt   time.Time              `json:"generated_at"`
}

// SystemMetrics represents system level figures captured from instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// Package store holds the in-memory view of courses, lectures, topics,
// students and feedback that every analytics derivation reads from.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/lecture-intel-api/internal/models"
)

// SchemaVersion is the current snapshot layout. Bump it whenever the encoded
// form changes and register an upgrade in upgrades.
const SchemaVersion = 2

const (
	UnknownLabel = "Unknown"
	MissingCode  = "N/A"
)

// ErrUnsupportedVersion is returned for snapshots newer than this build or
// without an upgrade path.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Snapshot is an immutable, versioned container of store entities with id
// indices. Derivations receive it by reference.
type Snapshot struct {
	Version  int               `json:"version"`
	LoadedAt time.Time         `json:"loaded_at"`
	Courses  []models.Course   `json:"courses"`
	Lectures []models.Lecture  `json:"lectures"`
	Topics   []models.Topic    `json:"topics"`
	Students []models.Student  `json:"students"`
	Feedback []models.Feedback `json:"feedback"`

	once             sync.Once
	courseIdx        map[string]int
	lectureIdx       map[string]int
	topicIdx         map[string]int
	studentIdx       map[string]int
	feedbackByCourse map[string][]int
}

// New builds a snapshot at the current schema version.
func New(courses []models.Course, lectures []models.Lecture, topics []models.Topic, students []models.Student, feedback []models.Feedback) *Snapshot {
	return &Snapshot{
		Version:  SchemaVersion,
		LoadedAt: time.Now().UTC(),
		Courses:  courses,
		Lectures: lectures,
		Topics:   topics,
		Students: students,
		Feedback: feedback,
	}
}

func (s *Snapshot) index() {
	s.once.Do(func() {
		s.courseIdx = make(map[string]int, len(s.Courses))
		for i, c := range s.Courses {
			s.courseIdx[c.ID] = i
		}
		s.lectureIdx = make(map[string]int, len(s.Lectures))
		for i, l := range s.Lectures {
			s.lectureIdx[l.ID] = i
		}
		s.topicIdx = make(map[string]int, len(s.Topics))
		for i, t := range s.Topics {
			s.topicIdx[t.ID] = i
		}
		s.studentIdx = make(map[string]int, len(s.Students))
		for i, st := range s.Students {
			s.studentIdx[st.ID] = i
		}
		s.feedbackByCourse = make(map[string][]int)
		for i, f := range s.Feedback {
			s.feedbackByCourse[f.CourseID] = append(s.feedbackByCourse[f.CourseID], i)
		}
	})
}

// Course returns a course by id.
func (s *Snapshot) Course(id string) (models.Course, bool) {
	s.index()
	i, ok := s.courseIdx[id]
	if !ok {
		return models.Course{}, false
	}
	return s.Courses[i], true
}

// Lecture returns a lecture by id.
func (s *Snapshot) Lecture(id string) (models.Lecture, bool) {
	s.index()
	i, ok := s.lectureIdx[id]
	if !ok {
		return models.Lecture{}, false
	}
	return s.Lectures[i], true
}

// Student returns a student by id.
func (s *Snapshot) Student(id string) (models.Student, bool) {
	s.index()
	i, ok := s.studentIdx[id]
	if !ok {
		return models.Student{}, false
	}
	return s.Students[i], true
}

// CourseCode resolves a course code, or N/A for a dangling reference.
func (s *Snapshot) CourseCode(id string) string {
	if c, ok := s.Course(id); ok {
		return c.Code
	}
	return MissingCode
}

// LectureTitle resolves a lecture title, or Unknown.
func (s *Snapshot) LectureTitle(id string) string {
	if l, ok := s.Lecture(id); ok {
		return l.Title
	}
	return UnknownLabel
}

// StudentName resolves a student name, or Unknown.
func (s *Snapshot) StudentName(id string) string {
	if st, ok := s.Student(id); ok {
		return st.Name
	}
	return UnknownLabel
}

// TopicName resolves a topic name, or Unknown.
func (s *Snapshot) TopicName(id string) string {
	s.index()
	if i, ok := s.topicIdx[id]; ok {
		return s.Topics[i].Name
	}
	return UnknownLabel
}

// FeedbackForCourse returns the course's feedback in stored order. A missing
// course yields an empty slice.
func (s *Snapshot) FeedbackForCourse(courseID string) []models.Feedback {
	s.index()
	idx := s.feedbackByCourse[courseID]
	out := make([]models.Feedback, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Feedback[i])
	}
	return out
}

// LecturesForCourse returns the course's lectures in schedule order.
func (s *Snapshot) LecturesForCourse(courseID string) []models.Lecture {
	c, ok := s.Course(courseID)
	if !ok {
		return []models.Lecture{}
	}
	out := make([]models.Lecture, 0, len(c.LectureIDs))
	for _, id := range c.LectureIDs {
		if l, ok := s.Lecture(id); ok {
			out = append(out, l)
		}
	}
	return out
}

// Encode serialises the snapshot for caching.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// upgrades moves an encoded snapshot from version k to k+1.
var upgrades = map[int]func(*Snapshot){
	// Version 1 carried rosters only on courses; student course lists are derived.
	1: func(s *Snapshot) {
		byStudent := make(map[string][]string)
		for _, c := range s.Courses {
			for _, sid := range c.StudentIDs {
				byStudent[sid] = append(byStudent[sid], c.ID)
			}
		}
		for i := range s.Students {
			if len(s.Students[i].CourseIDs) == 0 {
				s.Students[i].CourseIDs = byStudent[s.Students[i].ID]
			}
		}
	},
}

// Decode reads an encoded snapshot, upgrading older versions in place.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version > SchemaVersion || s.Version < 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	for s.Version < SchemaVersion {
		upgrade, ok := upgrades[s.Version]
		if !ok {
			return nil, fmt.Errorf("%w: no upgrade from %d", ErrUnsupportedVersion, s.Version)
		}
		upgrade(&s)
		s.Version++
	}
	return &s, nil
}

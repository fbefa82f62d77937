package models

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment is a learner's association with a course. Progress is never stored;
// it is derived from the course's current lessons whenever it is read, so
// completions of lessons later deleted stay recorded but stop counting.
type Enrollment struct {
	UserID           uuid.UUID      `json:"user_id"`
	CourseID         uuid.UUID      `json:"course_id"`
	CompletedLessons []string       `json:"completed_lessons"`
	QuizScores       map[string]int `json:"quiz_scores"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasCompleted reports whether lessonID is in the completed set.
func (e *Enrollment) HasCompleted(lessonID string) bool {
	for _, id := range e.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (e *Enrollment) Clone() *Enrollment {
	out := *e
	out.CompletedLessons = append([]string(nil), e.CompletedLessons...)
	out.QuizScores = make(map[string]int, len(e.QuizScores))
	for k, v := range e.QuizScores {
		out.QuizScores[k] = v
	}
	return &out
}

// EnrollmentView is an enrollment with its derived progress percentage.
// Progress counts only completed lessons still in the course, capped at 100.
type EnrollmentView struct {
	UserID           uuid.UUID      `json:"user_id"`
	CourseID         uuid.UUID      `json:"course_id"`
	Enrolled         bool           `json:"enrolled"`
	Progress         int            `json:"progress"`
	CompletedLessons []string       `json:"completed_lessons"`
	QuizScores       map[string]int `json:"quiz_scores"`
}

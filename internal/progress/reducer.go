// Package progress derives and maintains per-(user, course) enrollment state.
package progress

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

// NewEnrollment returns the initial state for a fresh enrollment.
func NewEnrollment(userID, courseID uuid.UUID, now time.Time) models.Enrollment {
	return models.Enrollment{
		UserID:           userID,
		CourseID:         courseID,
		CompletedLessons: []string{},
		QuizScores:       map[string]int{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ApplyCompletion adds lessonID to the completed set and, when score is given,
// raises the lesson's best score. Scores never decrease.
func ApplyCompletion(e *models.Enrollment, lessonID string, score *int, now time.Time) error {
	if lessonID == "" {
		return apperr.Validation("lesson id is required")
	}
	if score != nil && (*score < 0 || *score > 100) {
		return apperr.Validation("score %d outside 0-100", *score)
	}
	if !e.HasCompleted(lessonID) {
		e.CompletedLessons = append(e.CompletedLessons, lessonID)
	}
	if score != nil {
		if e.QuizScores == nil {
			e.QuizScores = map[string]int{}
		}
		if best, ok := e.QuizScores[lessonID]; !ok || *score > best {
			e.QuizScores[lessonID] = *score
		}
	}
	e.UpdatedAt = now
	return nil
}

// Percent is round(100 * completed / total), or 0 for an empty course.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(completed) / float64(total)))
	if p > 100 {
		return 100
	}
	return p
}

// Compute derives progress against the course's present lessons. Completions of
// lessons that have since been removed no longer count.
func Compute(e *models.Enrollment, course *models.Course) int {
	current := make(map[string]struct{}, len(course.Lessons))
	for _, l := range course.Lessons {
		current[l.ID] = struct{}{}
	}
	done := 0
	for _, id := range e.CompletedLessons {
		if _, ok := current[id]; ok {
			done++
		}
	}
	return Percent(done, len(course.Lessons))
}

// View joins an enrollment with its derived progress. A nil enrollment yields the
// zero state for the pair.
func View(userID uuid.UUID, course *models.Course, e *models.Enrollment) models.EnrollmentView {
	v := models.EnrollmentView{
		UserID:           userID,
		CourseID:         course.ID,
		CompletedLessons: []string{},
		QuizScores:       map[string]int{},
	}
	if e == nil {
		return v
	}
	c := e.Clone()
	v.Enrolled = true
	v.Progress = Compute(c, course)
	v.CompletedLessons = c.CompletedLessons
	v.QuizScores = c.QuizScores
	return v
}

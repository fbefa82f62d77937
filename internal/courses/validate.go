package courses

import (
	"strings"

	"github.com/google/uuid"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

const defaultCategory = "General"

func newLessonID() string { return "l-" + uuid.NewString()[:8] }

// normalizeLesson validates l in place and assigns missing lesson, quiz and
// question ids. existing holds the ids already used in the course. The pass mark
// is taken as given: 0 is legal, so the default is applied where the request is
// decoded and an absent field can still be told apart.
func normalizeLesson(l *models.Lesson, existing map[string]struct{}) error {
	l.Title = strings.TrimSpace(l.Title)
	if l.Title == "" {
		return apperr.Validation("lesson title is required")
	}
	if !l.Type.Valid() {
		return apperr.Validation("unknown lesson type %q", l.Type)
	}
	if l.ID == "" {
		l.ID = newLessonID()
	}
	if _, dup := existing[l.ID]; dup {
		return apperr.Conflict("lesson id %q already used in course", l.ID)
	}

	if l.Type != models.LessonQuiz {
		if l.Quiz != nil {
			return apperr.Validation("only quiz lessons carry a quiz")
		}
		return nil
	}
	if l.Quiz == nil {
		return apperr.Validation("quiz lesson %q has no quiz", l.Title)
	}
	return normalizeQuiz(l.Quiz)
}

func normalizeQuiz(q *models.Quiz) error {
	if len(q.Questions) == 0 {
		return apperr.Validation("quiz needs at least one question")
	}
	if q.PassMark < 0 || q.PassMark > 1 {
		return apperr.Validation("pass mark %.2f outside 0-1", q.PassMark)
	}
	if q.ID == "" {
		q.ID = "q-" + uuid.NewString()[:8]
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for i := range q.Questions {
		qq := &q.Questions[i]
		if strings.TrimSpace(qq.Text) == "" {
			return apperr.Validation("question %d has no text", i+1)
		}
		if len(qq.Options) < 2 {
			return apperr.Validation("question %d needs at least two options", i+1)
		}
		if qq.CorrectOptionIndex < 0 || qq.CorrectOptionIndex >= len(qq.Options) {
			return apperr.Validation("question %d correct option %d out of range", i+1, qq.CorrectOptionIndex)
		}
		if qq.ID == "" {
			qq.ID = "qq-" + uuid.NewString()[:8]
		}
		if _, dup := seen[qq.ID]; dup {
			return apperr.Validation("duplicate question id %q", qq.ID)
		}
		seen[qq.ID] = struct{}{}
	}
	return nil
}

func normalizeCourse(c *models.Course) error {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return apperr.Validation("title is required")
	}
	if strings.TrimSpace(c.Category) == "" {
		c.Category = defaultCategory
	}
	if c.EnrolledCount < 0 {
		return apperr.Validation("enrolled count cannot be negative")
	}
	ids := make(map[string]struct{}, len(c.Lessons))
	for i := range c.Lessons {
		if err := normalizeLesson(&c.Lessons[i], ids); err != nil {
			return err
		}
		ids[c.Lessons[i].ID] = struct{}{}
	}
	if c.Lessons == nil {
		c.Lessons = []models.Lesson{}
	}
	return nil
}

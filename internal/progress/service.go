package progress

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

// Service applies enrollment transitions through a Store.
type Service struct {
	store   Store
	courses CourseReader
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates a progress service.
func NewService(store Store, courses CourseReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, courses: courses, now: time.Now, logger: logger}
}

// Enroll creates the enrollment for the pair if it does not exist. created is
// false on the idempotent path; the caller bumps the course's enrolled count only
// when it is true.
func (s *Service) Enroll(ctx context.Context, userID, courseID uuid.UUID) (view models.EnrollmentView, created bool, err error) {
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return models.EnrollmentView{}, false, err
	}
	e := NewEnrollment(userID, courseID, s.now())
	created, err = s.store.Create(ctx, &e)
	if err != nil {
		return models.EnrollmentView{}, false, err
	}
	if created {
		s.logger.Info("enrolled", zap.String("user_id", userID.String()), zap.String("course_id", courseID.String()))
		return View(userID, course, &e), true, nil
	}
	existing, err := s.store.Get(ctx, userID, courseID)
	if err != nil {
		return models.EnrollmentView{}, false, err
	}
	return View(userID, course, existing), false, nil
}

// CompleteLesson records a completed lesson (and optional quiz score) for an
// enrolled learner.
func (s *Service) CompleteLesson(ctx context.Context, userID, courseID uuid.UUID, lessonID string, score *int) (models.EnrollmentView, error) {
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return models.EnrollmentView{}, err
	}
	if course.LessonIndex(lessonID) < 0 {
		return models.EnrollmentView{}, apperr.NotFound("lesson %q not found in course", lessonID)
	}
	e, err := s.store.Update(ctx, userID, courseID, func(e *models.Enrollment) error {
		return ApplyCompletion(e, lessonID, score, s.now())
	})
	if err != nil {
		return models.EnrollmentView{}, err
	}
	v := View(userID, course, e)
	s.logger.Debug("lesson completed",
		zap.String("user_id", userID.String()),
		zap.String("course_id", courseID.String()),
		zap.String("lesson_id", lessonID),
		zap.Int("progress", v.Progress))
	return v, nil
}

// ProgressOf returns the learner's state in a course, or the zero state when
// they are not enrolled.
func (s *Service) ProgressOf(ctx context.Context, userID, courseID uuid.UUID) (models.EnrollmentView, error) {
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return models.EnrollmentView{}, err
	}
	e, err := s.store.Get(ctx, userID, courseID)
	if errors.Is(err, apperr.ErrNotFound) {
		return View(userID, course, nil), nil
	}
	if err != nil {
		return models.EnrollmentView{}, err
	}
	return View(userID, course, e), nil
}

// IsEnrolled reports whether the pair has an enrollment.
func (s *Service) IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	_, err := s.store.Get(ctx, userID, courseID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListForUser returns every enrollment of a learner with derived progress.
// Enrollments whose course no longer exists are skipped.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.EnrollmentView, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.EnrollmentView, 0, len(list))
	for i := range list {
		course, err := s.courses.Get(ctx, list[i].CourseID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, View(userID, course, &list[i]))
	}
	return out, nil
}

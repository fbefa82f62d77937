package courses

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

// Broadcaster pushes catalog changes to connected clients.
type Broadcaster interface {
	CourseUpdated(c *models.Course)
	CourseDeleted(id uuid.UUID)
	EnrollmentCount(courseID uuid.UUID, count int)
}

// EnrollmentChecker answers whether a learner is enrolled in a course.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
}

type nopBroadcaster struct{}

func (nopBroadcaster) CourseUpdated(*models.Course)    {}
func (nopBroadcaster) CourseDeleted(uuid.UUID)         {}
func (nopBroadcaster) EnrollmentCount(uuid.UUID, int) {}

// CoursePatch holds the fields of a partial course update; nil means unchanged.
type CoursePatch struct {
	Title       *string
	Description *string
	Instructor  *string
	Category    *string
	Thumbnail   *string
}

// Service applies catalog operations through a Store.
type Service struct {
	store       Store
	enrollments EnrollmentChecker
	broadcast   Broadcaster
	afterDelete []func(ctx context.Context, id uuid.UUID)
	logger      *zap.Logger
}

// NewService creates a catalog service. broadcast may be nil.
func NewService(store Store, broadcast Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if broadcast == nil {
		broadcast = nopBroadcaster{}
	}
	return &Service{store: store, broadcast: broadcast, logger: logger}
}

// SetEnrollments wires the enrollment lookup used by the lesson access gate.
func (s *Service) SetEnrollments(e EnrollmentChecker) { s.enrollments = e }

// AfterDelete registers fn to run after a course is deleted.
func (s *Service) AfterDelete(fn func(ctx context.Context, id uuid.UUID)) {
	s.afterDelete = append(s.afterDelete, fn)
}

// List returns every course.
func (s *Service) List(ctx context.Context) ([]models.Course, error) {
	return s.store.List(ctx)
}

// Get returns one course.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return s.store.Get(ctx, id)
}

// Create validates c, assigns it an id and stores it.
func (s *Service) Create(ctx context.Context, c *models.Course) (*models.Course, error) {
	c = c.Clone()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := normalizeCourse(c); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("course created", zap.String("course_id", c.ID.String()), zap.String("title", c.Title))
	return c, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p CoursePatch) (*models.Course, error) {
	c, err := s.store.Mutate(ctx, id, func(c *models.Course) error {
		if p.Title != nil {
			c.Title = *p.Title
		}
		if p.Description != nil {
			c.Description = *p.Description
		}
		if p.Instructor != nil {
			c.Instructor = *p.Instructor
		}
		if p.Category != nil {
			c.Category = *p.Category
		}
		if p.Thumbnail != nil {
			c.Thumbnail = *p.Thumbnail
		}
		return normalizeCourse(c)
	})
	if err != nil {
		return nil, err
	}
	s.broadcast.CourseUpdated(c)
	return c, nil
}

// Delete removes a course.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	for _, fn := range s.afterDelete {
		fn(ctx, id)
	}
	s.broadcast.CourseDeleted(id)
	s.logger.Info("course deleted", zap.String("course_id", id.String()))
	return nil
}

// AddLesson appends a validated lesson and returns the updated course and the
// stored lesson.
func (s *Service) AddLesson(ctx context.Context, courseID uuid.UUID, l models.Lesson) (*models.Course, *models.Lesson, error) {
	var added models.Lesson
	c, err := s.store.Mutate(ctx, courseID, func(c *models.Course) error {
		ids := make(map[string]struct{}, len(c.Lessons))
		for _, existing := range c.Lessons {
			ids[existing.ID] = struct{}{}
		}
		if err := normalizeLesson(&l, ids); err != nil {
			return err
		}
		c.Lessons = append(c.Lessons, l)
		added = l
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.broadcast.CourseUpdated(c)
	return c, &added, nil
}

// DeleteLesson removes a lesson. Learners who completed it keep the record, but
// it no longer counts toward their progress.
func (s *Service) DeleteLesson(ctx context.Context, courseID uuid.UUID, lessonID string) (*models.Course, error) {
	c, err := s.store.Mutate(ctx, courseID, func(c *models.Course) error {
		i := c.LessonIndex(lessonID)
		if i < 0 {
			return apperr.NotFound("lesson %q not found in course", lessonID)
		}
		c.Lessons = append(c.Lessons[:i], c.Lessons[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.broadcast.CourseUpdated(c)
	return c, nil
}

// IncrementEnrolled bumps the course's enrolled count by one.
func (s *Service) IncrementEnrolled(ctx context.Context, courseID uuid.UUID) (*models.Course, error) {
	c, err := s.store.Mutate(ctx, courseID, func(c *models.Course) error {
		c.EnrolledCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.broadcast.EnrollmentCount(c.ID, c.EnrolledCount)
	return c, nil
}

// LessonFor returns the lesson as the viewer may see it. Admins see everything;
// a learner sees the first lesson of any course and the rest once enrolled.
// Learners never receive quiz answers.
func (s *Service) LessonFor(ctx context.Context, courseID uuid.UUID, lessonID string, userID uuid.UUID, admin bool) (models.Lesson, error) {
	c, err := s.store.Get(ctx, courseID)
	if err != nil {
		return models.Lesson{}, err
	}
	i := c.LessonIndex(lessonID)
	if i < 0 {
		return models.Lesson{}, apperr.NotFound("lesson %q not found in course", lessonID)
	}
	l := c.Lessons[i]
	if admin {
		return l, nil
	}
	if i == 0 {
		return l.ForLearner(), nil
	}
	if s.enrollments == nil {
		return models.Lesson{}, errors.New("courses: enrollment checker not configured")
	}
	ok, err := s.enrollments.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return models.Lesson{}, err
	}
	if !ok {
		return models.Lesson{}, apperr.Forbidden("enroll in the course to view this lesson")
	}
	return l.ForLearner(), nil
}

package progress

import (
	"context"

	"github.com/google/uuid"

	"github.com/reathuta/lms/internal/models"
)

// Store persists enrollments keyed by (user, course).
type Store interface {
	// Create inserts e unless the pair already exists; created reports which.
	Create(ctx context.Context, e *models.Enrollment) (created bool, err error)
	// Get returns an apperr NotFound error when the pair is not enrolled.
	Get(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)
	// Update applies fn as one atomic read-modify-write for the pair. Nothing is
	// written when fn returns an error.
	Update(ctx context.Context, userID, courseID uuid.UUID, fn func(e *models.Enrollment) error) (*models.Enrollment, error)
}

// CourseReader is the catalog surface the reducer needs.
type CourseReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

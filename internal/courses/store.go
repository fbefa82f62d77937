// Package courses is the course catalog: CRUD over courses and their lessons,
// the learner access gate, and sample-catalog seeding.
package courses

import (
	"context"

	"github.com/google/uuid"

	"github.com/reathuta/lms/internal/models"
)

// Store persists courses. Lessons are owned by their course and stored with it.
type Store interface {
	List(ctx context.Context) ([]models.Course, error)
	// Get returns an apperr NotFound error for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (*models.Course, error)
	Create(ctx context.Context, c *models.Course) error
	// Mutate applies fn as one atomic read-modify-write. Nothing is written when
	// fn returns an error.
	Mutate(ctx context.Context, id uuid.UUID, fn func(c *models.Course) error) (*models.Course, error)
	// Delete returns an apperr NotFound error for unknown ids.
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

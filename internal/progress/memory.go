package progress

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

type pairKey struct {
	userID   uuid.UUID
	courseID uuid.UUID
}

// MemoryStore keeps enrollments in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[pairKey]*models.Enrollment
}

// NewMemoryStore creates an empty in-memory enrollment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[pairKey]*models.Enrollment)}
}

func (m *MemoryStore) Create(_ context.Context, e *models.Enrollment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{e.UserID, e.CourseID}
	if _, ok := m.rows[k]; ok {
		return false, nil
	}
	m.rows[k] = e.Clone()
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[pairKey{userID, courseID}]
	if !ok {
		return nil, apperr.NotFound("not enrolled in course %s", courseID)
	}
	return e.Clone(), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for k, e := range m.rows {
		if k.userID == userID {
			out = append(out, *e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, userID, courseID uuid.UUID, fn func(e *models.Enrollment) error) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{userID, courseID}
	cur, ok := m.rows[k]
	if !ok {
		return nil, apperr.NotFound("not enrolled in course %s", courseID)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	m.rows[k] = next
	return next.Clone(), nil
}

// DeleteCourse drops every enrollment in a course, mirroring the cascade in Postgres.
func (m *MemoryStore) DeleteCourse(_ context.Context, courseID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.rows {
		if k.courseID == courseID {
			delete(m.rows, k)
		}
	}
}

package courses

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

// MemoryStore keeps the catalog in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	courses map[uuid.UUID]*models.Course
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{courses: make(map[uuid.UUID]*models.Course), now: time.Now}
}

func (m *MemoryStore) List(_ context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, apperr.NotFound("course %s not found", id)
	}
	return c.Clone(), nil
}

func (m *MemoryStore) Create(_ context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[c.ID]; ok {
		return apperr.Conflict("course %s already exists", c.ID)
	}
	now := m.now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.courses[c.ID] = c.Clone()
	return nil
}

func (m *MemoryStore) Mutate(_ context.Context, id uuid.UUID, fn func(c *models.Course) error) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.courses[id]
	if !ok {
		return nil, apperr.NotFound("course %s not found", id)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = m.now()
	m.courses[id] = next
	return next.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return apperr.NotFound("course %s not found", id)
	}
	delete(m.courses, id)
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.courses), nil
}

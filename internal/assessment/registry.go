package assessment

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

// learnerKey identifies the single live attempt a learner may have on a lesson.
type learnerKey struct {
	userID   uuid.UUID
	courseID uuid.UUID
	lessonID string
}

type entry struct {
	mu          sync.Mutex
	id          uuid.UUID
	key         learnerKey
	lessonTitle string
	session     *Session
	touched     time.Time
	gone        atomic.Bool
}

// Registry holds live quiz sessions in memory. Each session has its own mutex so
// transitions on one attempt are serialized without blocking other learners.
// Sessions are never persisted: abandoning one has no side effect.
type Registry struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*entry
	byLearner map[learnerKey]uuid.UUID
	now       func() time.Time
	logger    *zap.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries:   make(map[uuid.UUID]*entry),
		byLearner: make(map[learnerKey]uuid.UUID),
		now:       time.Now,
		logger:    logger,
	}
}

// Open starts a session for userID on a quiz lesson, discarding any attempt the
// learner already had open on the same lesson.
func (r *Registry) Open(userID, courseID uuid.UUID, lesson models.Lesson) (View, error) {
	if lesson.Type != models.LessonQuiz || lesson.Quiz == nil {
		return View{}, apperr.Validation("lesson %q is not a quiz", lesson.ID)
	}
	s, err := Start(lesson.Quiz)
	if err != nil {
		return View{}, err
	}
	e := &entry{
		id:          uuid.New(),
		key:         learnerKey{userID: userID, courseID: courseID, lessonID: lesson.ID},
		lessonTitle: lesson.Title,
		session:     s,
		touched:     r.now(),
	}

	r.mu.Lock()
	if prev, ok := r.byLearner[e.key]; ok {
		r.removeLocked(prev)
	}
	r.entries[e.id] = e
	r.byLearner[e.key] = e.id
	r.mu.Unlock()

	r.logger.Debug("quiz session opened",
		zap.String("session_id", e.id.String()),
		zap.String("user_id", userID.String()),
		zap.String("lesson_id", lesson.ID))
	return e.view(), nil
}

// Do runs fn against the caller's session while holding that session's lock.
// A session that ends up finalized is removed from the registry.
func (r *Registry) Do(id, userID uuid.UUID, fn func(s *Session) error) (View, error) {
	e, err := r.lookup(id, userID)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone.Load() {
		return View{}, apperr.NotFound("quiz session not found")
	}
	err = fn(e.session)
	e.touched = r.now()
	v := e.view()
	if e.session.State() == StateFinalized {
		r.remove(e)
	}
	return v, err
}

// Get returns the current view of the caller's session.
func (r *Registry) Get(id, userID uuid.UUID) (View, error) {
	return r.Do(id, userID, func(*Session) error { return nil })
}

// Discard abandons the caller's session.
func (r *Registry) Discard(id, userID uuid.UUID) error {
	e, err := r.lookup(id, userID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r.remove(e)
	return nil
}

// SweepIdle drops sessions untouched for longer than maxIdle and returns how many.
func (r *Registry) SweepIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	var stale []*entry
	for _, e := range r.entries {
		stale = append(stale, e)
	}
	r.mu.Unlock()

	n := 0
	for _, e := range stale {
		e.mu.Lock()
		if !e.gone.Load() && e.touched.Before(cutoff) {
			r.remove(e)
			n++
		}
		e.mu.Unlock()
	}
	if n > 0 {
		r.logger.Info("swept idle quiz sessions", zap.Int("count", n))
	}
	return n
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) lookup(id, userID uuid.UUID) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("quiz session not found")
	}
	if e.key.userID != userID {
		return nil, apperr.Forbidden("quiz session belongs to another user")
	}
	return e, nil
}

// remove must be called with e.mu held.
func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	r.removeLocked(e.id)
	r.mu.Unlock()
}

func (r *Registry) removeLocked(id uuid.UUID) {
	e, ok := r.entries[id]
	if !ok {
		return
	}
	e.gone.Store(true)
	delete(r.entries, id)
	if r.byLearner[e.key] == id {
		delete(r.byLearner, e.key)
	}
}

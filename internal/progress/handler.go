package progress

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/middleware"
	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
	"github.com/reathuta/lms/pkg/response"
)

// EnrollCounter bumps a course's enrolled count after a new enrollment.
type EnrollCounter interface {
	IncrementEnrolled(ctx context.Context, courseID uuid.UUID) (*models.Course, error)
}

// CompleteLessonRequest is the body for POST /courses/:id/lessons/:lessonId/complete.
type CompleteLessonRequest struct {
	Score *int `json:"score,omitempty" binding:"omitempty,min=0,max=100"`
}

// Handler handles enrollment and progress endpoints.
type Handler struct {
	svc     *Service
	courses CourseReader
	counter EnrollCounter
	logger  *zap.Logger
}

// NewHandler creates a progress handler.
func NewHandler(svc *Service, courses CourseReader, counter EnrollCounter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, courses: courses, counter: counter, logger: logger}
}

// Enroll handles POST /courses/:id/enroll. Enrolling twice returns the existing
// enrollment and leaves the course's count alone.
func (h *Handler) Enroll(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	view, created, err := h.svc.Enroll(c.Request.Context(), userID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !created {
		response.OK(c, view)
		return
	}
	if _, err := h.counter.IncrementEnrolled(c.Request.Context(), courseID); err != nil {
		// The enrollment stands; the count is advisory.
		h.logger.Error("increment enrolled count failed", zap.Error(err), zap.String("course_id", courseID.String()))
	}
	response.Created(c, view)
}

// Progress handles GET /courses/:id/progress.
func (h *Handler) Progress(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	view, err := h.svc.ProgressOf(c.Request.Context(), userID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// CompleteLesson handles POST /courses/:id/lessons/:lessonId/complete for
// non-quiz lessons. Quiz lessons complete through a finalized quiz session.
func (h *Handler) CompleteLesson(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	lessonID := c.Param("lessonId")

	var req CompleteLessonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	course, err := h.courses.Get(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	lesson, ok := course.Lesson(lessonID)
	if !ok {
		response.Error(c, apperr.NotFound("lesson %q not found in course", lessonID))
		return
	}
	if lesson.Type == models.LessonQuiz {
		response.Error(c, apperr.Conflict("quiz lessons are completed by finalizing a quiz session"))
		return
	}

	view, err := h.svc.CompleteLesson(c.Request.Context(), userID, courseID, lessonID, req.Score)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// List handles GET /enrollments.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.svc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

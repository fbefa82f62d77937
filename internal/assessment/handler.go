package assessment

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

// CourseReader loads the course a quiz lesson belongs to.
type CourseReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

// ProgressRecorder is the enrollment surface a finalized quiz writes through.
type ProgressRecorder interface {
	IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	CompleteLesson(ctx context.Context, userID, courseID uuid.UUID, lessonID string, score *int) (models.EnrollmentView, error)
}

// AnswerRequest is the body for PUT /quiz-sessions/:id/answers.
type AnswerRequest struct {
	QuestionID  string `json:"question_id" binding:"required"`
	OptionIndex *int   `json:"option_index" binding:"required,min=0"`
}

// NavigateRequest is the body for POST /quiz-sessions/:id/navigate. Either an
// absolute index or a direction.
type NavigateRequest struct {
	Index     *int   `json:"index"`
	Direction string `json:"direction" binding:"omitempty,oneof=next previous"`
}

// FinalizeResponse is the outcome of accepting a result.
type FinalizeResponse struct {
	Session    View                   `json:"session"`
	Enrollment *models.EnrollmentView `json:"enrollment,omitempty"`
}

// Handler exposes quiz sessions over HTTP.
type Handler struct {
	registry *Registry
	courses  CourseReader
	progress ProgressRecorder
	logger   *zap.Logger
}

// NewHandler creates an assessment handler.
func NewHandler(registry *Registry, courses CourseReader, progress ProgressRecorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, courses: courses, progress: progress, logger: logger}
}

// Start handles POST /courses/:id/lessons/:lessonId/quiz.
func (h *Handler) Start(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	ctx := c.Request.Context()
	course, err := h.courses.Get(ctx, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	lesson, ok := course.Lesson(c.Param("lessonId"))
	if !ok {
		response.Error(c, apperr.NotFound("lesson %q not found in course", c.Param("lessonId")))
		return
	}
	enrolled, err := h.progress.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !enrolled {
		response.Error(c, apperr.Forbidden("enroll in the course to take this quiz"))
		return
	}
	v, err := h.registry.Open(userID, courseID, *lesson)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, v)
}

// Get handles GET /quiz-sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	h.apply(c, func(*Session) error { return nil })
}

// Answer handles PUT /quiz-sessions/:id/answers.
func (h *Handler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.apply(c, func(s *Session) error { return s.SelectAnswer(req.QuestionID, *req.OptionIndex) })
}

// Navigate handles POST /quiz-sessions/:id/navigate.
func (h *Handler) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if (req.Index == nil) == (req.Direction == "") {
		response.BadRequest(c, "give either index or direction")
		return
	}
	h.apply(c, func(s *Session) error {
		switch {
		case req.Index != nil:
			s.GoTo(*req.Index)
		case req.Direction == "next":
			s.Next()
		default:
			s.Previous()
		}
		return nil
	})
}

// Violation handles POST /quiz-sessions/:id/violations.
func (h *Handler) Violation(c *gin.Context) {
	h.apply(c, func(s *Session) error {
		s.RecordViolation()
		return nil
	})
}

// Submit handles POST /quiz-sessions/:id/submit.
func (h *Handler) Submit(c *gin.Context) {
	h.apply(c, func(s *Session) error { return s.Submit() })
}

// Retake handles POST /quiz-sessions/:id/retake.
func (h *Handler) Retake(c *gin.Context) {
	h.apply(c, func(s *Session) error { return s.Retake() })
}

// Finalize handles POST /quiz-sessions/:id/finalize. A passing result completes
// the lesson with its score before the session ends; if recording fails the
// session stays submitted and finalize can be retried.
func (h *Handler) Finalize(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, ok := sessionID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	current, err := h.registry.Get(id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	var enrollment *models.EnrollmentView
	v, err := h.registry.Do(id, userID, func(s *Session) error {
		res, err := s.Result()
		if err != nil {
			return err
		}
		if res.Passed {
			score := res.ScorePercent
			ev, err := h.progress.CompleteLesson(ctx, userID, current.CourseID, current.LessonID, &score)
			if err != nil {
				return err
			}
			enrollment = &ev
		}
		_, err = s.Finalize()
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == 0 {
			h.logger.Error("finalize quiz failed", zap.Error(err), zap.String("session_id", id.String()))
		}
		response.Error(c, err)
		return
	}
	h.logger.Info("quiz finalized",
		zap.String("session_id", id.String()),
		zap.String("user_id", userID.String()),
		zap.String("lesson_id", current.LessonID),
		zap.Int("score", v.Result.ScorePercent),
		zap.Bool("passed", v.Result.Passed),
		zap.Int("violations", v.Violations))
	response.OK(c, FinalizeResponse{Session: v, Enrollment: enrollment})
}

// Discard handles DELETE /quiz-sessions/:id.
func (h *Handler) Discard(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.registry.Discard(id, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// FocusLost records a focus-loss signal arriving over a realtime connection.
func (h *Handler) FocusLost(userID, sessionID uuid.UUID) (int, error) {
	v, err := h.registry.Do(sessionID, userID, func(s *Session) error {
		s.RecordViolation()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return v.Violations, nil
}

func (h *Handler) apply(c *gin.Context, fn func(s *Session) error) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, ok := sessionID(c)
	if !ok {
		return
	}
	v, err := h.registry.Do(id, userID, fn)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, v)
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

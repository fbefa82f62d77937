package courses

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/middleware"
	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/response"
	"github.com/reathuta/lms/pkg/storage"
)

// AssetStore grants direct uploads for course assets and accepts uploads
// proxied through the server.
type AssetStore interface {
	PresignAssetUpload(ctx context.Context, courseID uuid.UUID, filename, contentType string) (storage.PresignedUpload, error)
	UploadAsset(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// QuestionRequest is one question of a quiz in a lesson request.
type QuestionRequest struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text" binding:"required"`
	Options            []string `json:"options" binding:"required,min=2,dive,required"`
	CorrectOptionIndex *int     `json:"correct_option_index" binding:"required,min=0"`
	Explanation        string   `json:"explanation"`
}

// QuizRequest is the quiz of a quiz lesson. PassMark defaults to 0.8.
type QuizRequest struct {
	ID        string            `json:"id"`
	IsGraded  bool              `json:"is_graded"`
	PassMark  *float64          `json:"pass_mark" binding:"omitempty,gte=0,lte=1"`
	Questions []QuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// LessonRequest is the body for POST /courses/:id/lessons.
type LessonRequest struct {
	ID      string       `json:"id"`
	Title   string       `json:"title" binding:"required,max=200"`
	Type    string       `json:"type" binding:"required,lessontype"`
	Content string       `json:"content"`
	URL     string       `json:"url" binding:"omitempty,url"`
	Quiz    *QuizRequest `json:"quiz"`
}

// CreateCourseRequest is the body for POST /courses.
type CreateCourseRequest struct {
	Title       string          `json:"title" binding:"required,max=200"`
	Description string          `json:"description"`
	Instructor  string          `json:"instructor"`
	Category    string          `json:"category"`
	Thumbnail   string          `json:"thumbnail"`
	Lessons     []LessonRequest `json:"lessons" binding:"omitempty,dive"`
}

// UpdateCourseRequest is the body for PATCH /courses/:id.
type UpdateCourseRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	Instructor  *string `json:"instructor"`
	Category    *string `json:"category"`
	Thumbnail   *string `json:"thumbnail"`
}

// UploadURLRequest is the body for POST /courses/:id/assets/upload-url.
type UploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

func (r LessonRequest) model() models.Lesson {
	l := models.Lesson{
		ID:      r.ID,
		Title:   r.Title,
		Type:    models.LessonType(r.Type),
		Content: r.Content,
		URL:     r.URL,
	}
	if r.Quiz != nil {
		// Absent pass_mark gets the default; an explicit 0 is kept.
		q := &models.Quiz{ID: r.Quiz.ID, IsGraded: r.Quiz.IsGraded, PassMark: models.DefaultPassMark}
		if r.Quiz.PassMark != nil {
			q.PassMark = *r.Quiz.PassMark
		}
		for _, qr := range r.Quiz.Questions {
			qq := models.Question{
				ID:          qr.ID,
				Text:        qr.Text,
				Options:     append([]string(nil), qr.Options...),
				Explanation: qr.Explanation,
			}
			if qr.CorrectOptionIndex != nil {
				qq.CorrectOptionIndex = *qr.CorrectOptionIndex
			}
			q.Questions = append(q.Questions, qq)
		}
		l.Quiz = q
	}
	return l
}

// Handler handles catalog HTTP endpoints.
type Handler struct {
	svc    *Service
	assets AssetStore
	logger *zap.Logger
}

// NewHandler creates a courses handler. assets may be nil when no bucket is configured.
func NewHandler(svc *Service, assets AssetStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, assets: assets, logger: logger}
}

// List handles GET /courses. Learners get answer-free quizzes.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if !middleware.IsAdmin(c) {
		for i := range list {
			list[i] = forLearner(list[i])
		}
	}
	response.OK(c, list)
}

// Get handles GET /courses/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	course, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !middleware.IsAdmin(c) {
		*course = forLearner(*course)
	}
	response.OK(c, course)
}

// Create handles POST /courses.
func (h *Handler) Create(c *gin.Context) {
	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		Instructor:  req.Instructor,
		Category:    req.Category,
		Thumbnail:   req.Thumbnail,
	}
	for _, lr := range req.Lessons {
		course.Lessons = append(course.Lessons, lr.model())
	}
	created, err := h.svc.Create(c.Request.Context(), course)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update handles PATCH /courses/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	var req UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	course, err := h.svc.Update(c.Request.Context(), id, CoursePatch{
		Title:       req.Title,
		Description: req.Description,
		Instructor:  req.Instructor,
		Category:    req.Category,
		Thumbnail:   req.Thumbnail,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Delete handles DELETE /courses/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddLesson handles POST /courses/:id/lessons.
func (h *Handler) AddLesson(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	var req LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	_, lesson, err := h.svc.AddLesson(c.Request.Context(), id, req.model())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// DeleteLesson handles DELETE /courses/:id/lessons/:lessonId.
func (h *Handler) DeleteLesson(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if _, err := h.svc.DeleteLesson(c.Request.Context(), id, c.Param("lessonId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetLesson handles GET /courses/:id/lessons/:lessonId behind the access gate.
func (h *Handler) GetLesson(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	lesson, err := h.svc.LessonFor(c.Request.Context(), id, c.Param("lessonId"), userID, middleware.IsAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lesson)
}

// UploadURL handles POST /courses/:id/assets/upload-url.
func (h *Handler) UploadURL(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if h.assets == nil {
		response.ServiceUnavailable(c, "asset storage not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateAssetType(req.ContentType) {
		response.BadRequest(c, "unsupported content type")
		return
	}
	if _, err := h.svc.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	up, err := h.assets.PresignAssetUpload(c.Request.Context(), id, req.Filename, req.ContentType)
	if err != nil {
		h.logger.Error("presign asset upload failed", zap.Error(err), zap.String("course_id", id.String()))
		response.Internal(c, "failed to create upload url")
		return
	}
	response.OK(c, up)
}

// UploadAsset handles POST /courses/:id/assets (multipart, form field "file"),
// for clients that cannot PUT to a presigned URL.
func (h *Handler) UploadAsset(c *gin.Context) {
	id, ok := courseID(c)
	if !ok {
		return
	}
	if h.assets == nil {
		response.ServiceUnavailable(c, "asset storage not configured")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxAssetSize {
		response.BadRequest(c, "file exceeds 100MB limit")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !storage.ValidateAssetType(contentType) {
		response.BadRequest(c, "unsupported content type")
		return
	}
	if _, err := h.svc.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	key := storage.AssetKey(id, file.Filename, contentType)
	url, err := h.assets.UploadAsset(c.Request.Context(), key, contentType, rc)
	if err != nil {
		h.logger.Error("asset upload failed", zap.Error(err), zap.String("course_id", id.String()), zap.String("key", key))
		response.Internal(c, "failed to upload file to storage")
		return
	}
	response.Created(c, gin.H{
		"key":          key,
		"public_url":   url,
		"content_type": contentType,
		"size":         file.Size,
	})
}

func courseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return uuid.Nil, false
	}
	return id, true
}

func forLearner(c models.Course) models.Course {
	out := c.Clone()
	for i := range out.Lessons {
		out.Lessons[i] = out.Lessons[i].ForLearner()
	}
	return *out
}

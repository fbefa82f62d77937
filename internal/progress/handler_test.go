package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reathuta/lms/internal/auth"
	"github.com/reathuta/lms/internal/middleware"
	"github.com/reathuta/lms/internal/models"
)

type progressHarness struct {
	router  *gin.Engine
	catalog *fakeCatalog
	course  *models.Course
	token   string
}

func newProgressHarness(t *testing.T) *progressHarness {
	gin.SetMode(gin.TestMode)
	course := courseWith("intro", "reading")
	course.Lessons = append(course.Lessons, models.Lesson{
		ID:    "check",
		Title: "Checkpoint",
		Type:  models.LessonQuiz,
		Quiz: &models.Quiz{ID: "qz", PassMark: 0.8, Questions: []models.Question{
			{ID: "q1", Text: "2+2?", Options: []string{"3", "4"}, CorrectOptionIndex: 1},
		}},
	})
	svc, cat := newTestService(t, course)
	h := NewHandler(svc, cat, cat, zaptest.NewLogger(t))

	jwtSvc := auth.NewJWTService("test-secret", 1)
	tok, err := jwtSvc.Generate(auth.NewVerifiedUser("jane@student.com", "Jane", models.RoleStudent))
	require.NoError(t, err)

	r := gin.New()
	api := r.Group("", middleware.JWT(jwtSvc))
	api.POST("/courses/:id/enroll", h.Enroll)
	api.GET("/courses/:id/progress", h.Progress)
	api.POST("/courses/:id/lessons/:lessonId/complete", h.CompleteLesson)
	api.GET("/enrollments", h.List)

	return &progressHarness{router: r, catalog: cat, course: course, token: tok}
}

func (h *progressHarness) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *progressHarness) coursePath(suffix string) string {
	return "/courses/" + h.course.ID.String() + suffix
}

func (h *progressHarness) enrolledCount(t *testing.T) int {
	c, err := h.catalog.Get(context.Background(), h.course.ID)
	require.NoError(t, err)
	return c.EnrolledCount
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) models.EnrollmentView {
	t.Helper()
	var env struct {
		Data models.EnrollmentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func TestEnrollTwiceCountsOnce(t *testing.T) {
	h := newProgressHarness(t)

	w := h.do(http.MethodPost, h.coursePath("/enroll"), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, decodeView(t, w).Enrolled)
	assert.Equal(t, 1, h.enrolledCount(t))

	w = h.do(http.MethodPost, h.coursePath("/enroll"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeView(t, w).Enrolled)
	assert.Equal(t, 1, h.enrolledCount(t), "re-enrolling must not bump the count")

	w = h.do(http.MethodGet, "/enrollments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data []models.EnrollmentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Len(t, env.Data, 1)
}

func TestEnrollBadRequests(t *testing.T) {
	h := newProgressHarness(t)

	w := h.do(http.MethodPost, "/courses/not-a-uuid/enroll", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/courses/"+courseWith().ID.String()+"/enroll", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, h.enrolledCount(t))
}

func TestCompleteLessonOverHTTP(t *testing.T) {
	h := newProgressHarness(t)

	w := h.do(http.MethodPost, h.coursePath("/lessons/intro/complete"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "not enrolled yet")

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, h.coursePath("/enroll"), nil).Code)

	w = h.do(http.MethodPost, h.coursePath("/lessons/intro/complete"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 33, decodeView(t, w).Progress)

	w = h.do(http.MethodPost, h.coursePath("/lessons/check/complete"), gin.H{"score": 100})
	assert.Equal(t, http.StatusConflict, w.Code, "quiz lessons complete through a quiz session")

	w = h.do(http.MethodPost, h.coursePath("/lessons/missing/complete"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPost, h.coursePath("/lessons/reading/complete"), gin.H{"score": 101})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, h.coursePath("/progress"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	v := decodeView(t, w)
	assert.Equal(t, 33, v.Progress)
	assert.Equal(t, []string{"intro"}, v.CompletedLessons)
}

package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

func intp(v int) *int { return &v }

func courseWith(ids ...string) *models.Course {
	c := &models.Course{ID: uuid.New(), Title: "c"}
	for _, id := range ids {
		c.Lessons = append(c.Lessons, models.Lesson{ID: id, Title: id, Type: models.LessonText})
	}
	return c
}

func TestApplyCompletionIsSetUnion(t *testing.T) {
	e := NewEnrollment(uuid.New(), uuid.New(), time.Now())
	require.NoError(t, ApplyCompletion(&e, "l1", nil, time.Now()))
	require.NoError(t, ApplyCompletion(&e, "l1", nil, time.Now()))
	require.NoError(t, ApplyCompletion(&e, "l2", nil, time.Now()))
	assert.Equal(t, []string{"l1", "l2"}, e.CompletedLessons)
	assert.Empty(t, e.QuizScores)
}

func TestBestScoreIsMonotonic(t *testing.T) {
	e := NewEnrollment(uuid.New(), uuid.New(), time.Now())
	for _, s := range []int{40, 90, 30} {
		require.NoError(t, ApplyCompletion(&e, "quiz", intp(s), time.Now()))
	}
	assert.Equal(t, 90, e.QuizScores["quiz"])
	assert.Equal(t, []string{"quiz"}, e.CompletedLessons)
}

func TestApplyCompletionRejectsBadInput(t *testing.T) {
	e := NewEnrollment(uuid.New(), uuid.New(), time.Now())
	assert.True(t, errors.Is(ApplyCompletion(&e, "", nil, time.Now()), apperr.ErrValidation))
	assert.True(t, errors.Is(ApplyCompletion(&e, "l1", intp(101), time.Now()), apperr.ErrValidation))
	assert.True(t, errors.Is(ApplyCompletion(&e, "l1", intp(-1), time.Now()), apperr.ErrValidation))
	assert.Empty(t, e.CompletedLessons)
}

func TestPercent(t *testing.T) {
	cases := []struct {
		done, total, want int
	}{
		{0, 0, 0},
		{0, 4, 0},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{5, 3, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Percent(tc.done, tc.total), "%d/%d", tc.done, tc.total)
	}
}

func TestProgressFollowsCurrentLessons(t *testing.T) {
	course := courseWith("l1", "l2")
	e := NewEnrollment(uuid.New(), course.ID, time.Now())
	require.NoError(t, ApplyCompletion(&e, "l1", nil, time.Now()))
	assert.Equal(t, 50, Compute(&e, course))

	course.Lessons = append(course.Lessons, models.Lesson{ID: "l3", Type: models.LessonText})
	assert.Equal(t, 33, Compute(&e, course))

	course.Lessons = course.Lessons[1:]
	assert.Equal(t, 0, Compute(&e, course), "removed lessons no longer count")

	v := View(e.UserID, course, &e)
	assert.Equal(t, 0, v.Progress)
	assert.Equal(t, []string{"l1"}, v.CompletedLessons, "completion record is kept")
}

func TestViewZeroState(t *testing.T) {
	course := courseWith("l1")
	user := uuid.New()
	v := View(user, course, nil)
	assert.False(t, v.Enrolled)
	assert.Equal(t, 0, v.Progress)
	assert.Equal(t, user, v.UserID)
	assert.Equal(t, course.ID, v.CourseID)
	assert.NotNil(t, v.CompletedLessons)
	assert.NotNil(t, v.QuizScores)
}

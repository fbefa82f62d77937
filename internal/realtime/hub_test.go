package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reathuta/lms/internal/models"
)

func testClient(courseID uuid.UUID) *Client {
	return &Client{ID: uuid.NewString(), CourseID: courseID, send: make(chan WSMessage, 8)}
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return WSMessage{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %q", msg.Event)
	default:
	}
}

func TestHubRoomsAreIsolated(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t), nil, nil)
	courseA, courseB := uuid.New(), uuid.New()
	a1, a2, b := testClient(courseA), testClient(courseA), testClient(courseB)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)
	assert.Equal(t, 2, h.RoomSize(courseA))

	h.EnrollmentCount(courseA, 7)
	for _, c := range []*Client{a1, a2} {
		msg := receive(t, c)
		assert.Equal(t, EventEnrollmentCount, msg.Event)
		var p EnrollmentCountPayload
		require.NoError(t, json.Unmarshal(msg.Data, &p))
		assert.Equal(t, 7, p.Count)
		assert.Equal(t, courseA, p.CourseID)
	}
	assertSilent(t, b)

	h.Unregister(a1)
	assert.Equal(t, 1, h.RoomSize(courseA))
	_, open := <-a1.send
	assert.False(t, open, "send channel closed on unregister")
	h.Unregister(a1)

	h.Unregister(a2)
	assert.Equal(t, 0, h.RoomSize(courseA))
}

func TestCourseUpdatedHidesAnswers(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t), nil, nil)
	course := &models.Course{
		ID:    uuid.New(),
		Title: "Go",
		Lessons: []models.Lesson{{
			ID: "q", Title: "Quiz", Type: models.LessonQuiz,
			Quiz: &models.Quiz{ID: "qz", PassMark: 0.8, Questions: []models.Question{
				{ID: "q1", Text: "?", Options: []string{"a", "b"}, CorrectOptionIndex: 1, Explanation: "because"},
			}},
		}},
	}
	c := testClient(course.ID)
	h.Register(c)

	h.CourseUpdated(course)
	msg := receive(t, c)
	assert.Equal(t, EventCourseUpdated, msg.Event)
	assert.NotContains(t, string(msg.Data), "because")
	var got models.Course
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, -1, got.Lessons[0].Quiz.Questions[0].CorrectOptionIndex)
	assert.Equal(t, 1, course.Lessons[0].Quiz.Questions[0].CorrectOptionIndex, "original untouched")

	h.CourseDeleted(course.ID)
	msg = receive(t, c)
	assert.Equal(t, EventCourseDeleted, msg.Event)
	assert.JSONEq(t, `{"course_id":"`+course.ID.String()+`"}`, string(msg.Data))
}

func TestSendToClient(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t), nil, nil)
	courseID := uuid.New()
	a, b := testClient(courseID), testClient(courseID)
	h.Register(a)
	h.Register(b)

	h.SendToClient(courseID, a.ID, EventPong, nil)
	assert.Equal(t, EventPong, receive(t, a).Event)
	assertSilent(t, b)

	h.SendToClient(uuid.New(), a.ID, EventPong, nil)
	assertSilent(t, a)
}

func TestHubAcrossInstancesViaRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger := zaptest.NewLogger(t)

	ps := NewRedisPubSub(rdb, logger)
	one := NewHub(logger, ps, ps)
	two := NewHub(logger, ps, ps)
	courseID := uuid.New()
	c1, c2 := testClient(courseID), testClient(courseID)
	one.Register(c1)
	two.Register(c2)

	one.EnrollmentCount(courseID, 3)
	for _, c := range []*Client{c1, c2} {
		msg := receive(t, c)
		assert.Equal(t, EventEnrollmentCount, msg.Event)
		assert.JSONEq(t, `{"course_id":"`+courseID.String()+`","count":3}`, string(msg.Data))
	}
	assertSilent(t, c1)

	one.Unregister(c1)
	two.Unregister(c2)
	assert.Eventually(t, func() bool {
		return len(mr.PubSubChannels("course:*")) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

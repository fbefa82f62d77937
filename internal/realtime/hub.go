// Package realtime keeps one WebSocket room per course. Catalog changes and
// enrollment counts are pushed to the room; learners report quiz focus loss back.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Outbound events.
const (
	EventCourseUpdated   = "course_updated"
	EventCourseDeleted   = "course_deleted"
	EventEnrollmentCount = "enrollment_count"
	EventQuizViolation   = "quiz_violation"
	EventError           = "error"
	EventPong            = "pong"
)

// Hub maintains course_id -> set of connections and broadcasts messages.
// With Redis configured, events go through pub/sub so every instance delivers them.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per course
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes course events for other instances.
type RedisPublisher interface {
	PublishCourseEvent(courseID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to course channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeCourse(courseID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis arguments may be nil.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its course room, subscribing to the course channel
// when it is the first local client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.CourseID] == nil {
		h.rooms[c.CourseID] = make(map[string]*Client)
		if h.redisSub != nil {
			courseID := c.CourseID
			cancel, err := h.redisSub.SubscribeCourse(courseID, func(event string, payload []byte) {
				h.BroadcastToCourse(courseID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("course channel subscribe failed", zap.String("course_id", courseID.String()), zap.Error(err))
			} else {
				h.subs[courseID] = cancel
			}
		}
	}
	h.rooms[c.CourseID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined course room", zap.String("client_id", c.ID), zap.String("course_id", c.CourseID.String()))
}

// Unregister removes a client from its room and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.CourseID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.CourseID)
			if cancel, ok := h.subs[c.CourseID]; ok {
				cancel()
				delete(h.subs, c.CourseID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left course room", zap.String("client_id", c.ID), zap.String("course_id", c.CourseID.String()))
}

// BroadcastToCourse sends a message to every local client in a course room.
func (h *Hub) BroadcastToCourse(courseID uuid.UUID, event string, payload interface{}) {
	msg, ok := envelope(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[courseID] {
		select {
		case c.send <- msg:
		default:
			// slow reader, drop
		}
	}
}

// Publish delivers an event to the course room on every instance. With Redis the
// subscriber callback performs the local broadcast, so it is not done here.
func (h *Hub) Publish(courseID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.BroadcastToCourse(courseID, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.redis.PublishCourseEvent(courseID, event, data); err != nil {
		h.logger.Warn("publish course event failed, delivering locally", zap.String("event", event), zap.Error(err))
		h.BroadcastToCourse(courseID, event, payload)
	}
}

// SendToClient sends a message to a single client.
func (h *Hub) SendToClient(courseID uuid.UUID, clientID string, event string, payload interface{}) {
	msg, ok := envelope(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, found := h.rooms[courseID][clientID]
	if !found {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// RoomSize returns the number of local clients watching a course.
func (h *Hub) RoomSize(courseID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[courseID])
}

// CourseUpdated pushes the learner view of a course to its room.
func (h *Hub) CourseUpdated(c *models.Course) {
	out := c.Clone()
	for i := range out.Lessons {
		out.Lessons[i] = out.Lessons[i].ForLearner()
	}
	h.Publish(c.ID, EventCourseUpdated, out)
}

// CourseDeleted tells the room its course is gone.
func (h *Hub) CourseDeleted(id uuid.UUID) {
	h.Publish(id, EventCourseDeleted, map[string]string{"course_id": id.String()})
}

// EnrollmentCount pushes a new enrolled count.
func (h *Hub) EnrollmentCount(id uuid.UUID, count int) {
	h.Publish(id, EventEnrollmentCount, EnrollmentCountPayload{CourseID: id, Count: count})
}

// EnrollmentCountPayload is the body of enrollment_count.
type EnrollmentCountPayload struct {
	CourseID uuid.UUID `json:"course_id"`
	Count    int       `json:"count"`
}

func envelope(event string, payload interface{}) (WSMessage, bool) {
	var data []byte
	switch v := payload.(type) {
	case nil:
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return WSMessage{}, false
		}
	}
	return WSMessage{Event: event, Data: data}, true
}

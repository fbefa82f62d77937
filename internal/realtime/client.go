package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/reathuta/lms/internal/middleware"
	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/response"
)

// Inbound events.
const (
	EventQuizFocusLost = "quiz_focus_lost"
	EventPing          = "ping"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware does not cover upgrades; tokens are required anyway
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// FocusLostFunc records a focus-loss violation on the caller's quiz session and
// returns the new count.
type FocusLostFunc func(userID, sessionID uuid.UUID) (int, error)

// CourseReader confirms the room's course exists.
type CourseReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type focusLostPayload struct {
	SessionID string `json:"session_id"`
}

// ViolationPayload answers quiz_focus_lost.
type ViolationPayload struct {
	SessionID  uuid.UUID `json:"session_id"`
	Violations int       `json:"violations"`
}

// Client represents a single WebSocket connection in a course room.
type Client struct {
	ID       string
	CourseID uuid.UUID
	UserID   uuid.UUID
	Role     models.Role
	hub      *Hub
	focus    FocusLostFunc
	conn     *websocket.Conn
	send     chan WSMessage
	logger   *zap.Logger
}

// ServeWs handles GET /ws?course_id=&token=. It must run behind middleware.JWTQuery.
func ServeWs(hub *Hub, courses CourseReader, focus FocusLostFunc, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		courseID, err := uuid.Parse(c.Query("course_id"))
		if err != nil {
			response.BadRequest(c, "course_id required")
			return
		}
		if courses != nil {
			if _, err := courses.Get(c.Request.Context(), courseID); err != nil {
				response.Error(c, err)
				return
			}
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		role := c.GetString(middleware.ContextUserRole)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			CourseID: courseID,
			UserID:   userID,
			hub:      hub,
			focus:    focus,
			conn:     conn,
			send:     make(chan WSMessage, 256),
			Role:     models.Role(role),
			logger:   logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case EventQuizFocusLost:
			c.handleFocusLost(msg.Data)
		case EventPing:
			c.reply(EventPong, nil)
		default:
			// ignore
		}
	}
}

func (c *Client) handleFocusLost(data json.RawMessage) {
	var p focusLostPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.reply(EventError, gin.H{"message": "invalid payload"})
		return
	}
	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		c.reply(EventError, gin.H{"message": "invalid session_id"})
		return
	}
	if c.focus == nil {
		return
	}
	n, err := c.focus(c.UserID, sessionID)
	if err != nil {
		c.reply(EventError, gin.H{"message": err.Error()})
		return
	}
	c.logger.Debug("quiz focus lost",
		zap.String("session_id", sessionID.String()),
		zap.String("user_id", c.UserID.String()),
		zap.Int("violations", n))
	c.reply(EventQuizViolation, ViolationPayload{SessionID: sessionID, Violations: n})
}

func (c *Client) reply(event string, payload interface{}) {
	c.hub.SendToClient(c.CourseID, c.ID, event, payload)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

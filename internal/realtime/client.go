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

	"github.com/tiktik-live/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Presence is the viewer-tracking side of a connection. Pongs refresh the
// viewer's lease so only live connections count.
type Presence interface {
	Join(ctx context.Context, streamID uuid.UUID, viewer models.Viewer) (int64, error)
	Leave(ctx context.Context, streamID, userID uuid.UUID) (int64, error)
	Heartbeat(ctx context.Context, streamID, userID uuid.UUID) error
}

// SessionLogger records when a viewer connected and disconnected.
type SessionLogger interface {
	LogJoin(ctx context.Context, streamID, userID uuid.UUID) (uuid.UUID, error)
	LogLeave(ctx context.Context, sessionID uuid.UUID) error
}

// Client represents a single WebSocket connection watching a stream.
type Client struct {
	ID        string
	StreamID  uuid.UUID
	Viewer    models.Viewer
	sessionID uuid.UUID
	hub       *Hub
	presence  Presence
	sessions  SessionLogger
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

const opTimeout = 5 * time.Second

// ServeWs handles the WebSocket upgrade and runs the client loop.
// The token travels as a query param because browsers cannot set headers on
// WebSocket dials.
func ServeWs(hub *Hub, presence Presence, sessions SessionLogger, logger *zap.Logger,
	validate func(token string) (models.Viewer, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		streamIDStr := c.Query("stream_id")
		token := c.Query("token")
		if streamIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stream_id and token required"})
			return
		}
		streamID, err := uuid.Parse(streamIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stream_id"})
			return
		}
		viewer, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			StreamID: streamID,
			Viewer:   viewer,
			hub:      hub,
			presence: presence,
			sessions: sessions,
			conn:     conn,
			send:     make(chan WSMessage, 256),
			logger:   logger,
		}
		hub.Register(client)
		client.join()
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) join() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := c.presence.Join(ctx, c.StreamID, c.Viewer); err != nil {
		c.logger.Warn("presence join failed", zap.Error(err))
	}
	if c.sessions != nil {
		sessionID, err := c.sessions.LogJoin(ctx, c.StreamID, c.Viewer.UserID)
		if err != nil {
			c.logger.Warn("session log failed", zap.Error(err))
			return
		}
		c.sessionID = sessionID
	}
}

func (c *Client) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	// Only drop presence if this was the viewer's last connection on this
	// instance; a second tab keeps the membership alive.
	if !c.hub.viewerStillConnected(c.StreamID, c.Viewer.UserID, c.ID) {
		if _, err := c.presence.Leave(ctx, c.StreamID, c.Viewer.UserID); err != nil {
			c.logger.Warn("presence leave failed", zap.Error(err))
		}
	}
	if c.sessions != nil && c.sessionID != uuid.Nil {
		_ = c.sessions.LogLeave(ctx, c.sessionID)
	}
}

func (c *Client) heartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.presence.Heartbeat(ctx, c.StreamID, c.Viewer.UserID); err != nil {
		c.logger.Warn("presence heartbeat failed", zap.Error(err))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.leave()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.heartbeat()
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "heartbeat":
			// App-level heartbeat for clients whose WebSocket library
			// does not surface protocol pings.
			c.heartbeat()
		default:
			// Chat and moderation go through the HTTP API; the socket
			// is receive-only beyond heartbeats.
		}
	}
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

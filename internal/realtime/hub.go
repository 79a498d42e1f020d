package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tiktik-live/backend/pkg/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains stream_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// streamID -> map[clientID]*Client
	streams  map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per stream
	mu       sync.RWMutex
	logger   *zap.Logger
	metrics  *metrics.Metrics
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishStreamEvent(streamID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to stream channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeStream(streamID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, m *metrics.Metrics, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		streams:  make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		metrics:  m,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a stream room. Starts Redis subscription for this stream if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.streams[c.StreamID] == nil {
		h.streams[c.StreamID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeStream(c.StreamID, func(event string, payload []byte) {
				h.BroadcastToStream(c.StreamID, event, json.RawMessage(payload))
			})
			if err != nil {
				// room still works locally, just without cross-instance fan-out
				h.logger.Warn("stream subscribe failed",
					zap.String("stream_id", c.StreamID.String()), zap.Error(err))
			} else {
				h.subs[c.StreamID] = cancel
			}
		}
	}
	h.streams[c.StreamID][c.ID] = c
	h.mu.Unlock()
	h.metrics.IncWSClients(1)
	h.logger.Debug("client joined stream", zap.String("client_id", c.ID), zap.String("stream_id", c.StreamID.String()))
}

// Unregister removes a client from a stream room. Cancels Redis subscription when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.streams[c.StreamID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			h.metrics.IncWSClients(-1)
		}
		if len(m) == 0 {
			delete(h.streams, c.StreamID)
			if cancel, ok := h.subs[c.StreamID]; ok {
				cancel()
				delete(h.subs, c.StreamID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left stream", zap.String("client_id", c.ID), zap.String("stream_id", c.StreamID.String()))
}

// BroadcastToStream sends a message to all clients in a stream (local only).
func (h *Hub) BroadcastToStream(streamID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.streams[streamID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
			h.metrics.IncBroadcastDrops()
		}
	}
}

// BroadcastToStreamAndPublish sends to local clients and publishes to Redis for other instances.
func (h *Hub) BroadcastToStreamAndPublish(streamID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToStream(streamID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishStreamEvent(streamID, event, data)
	}
}

// PublishToStreamOnly publishes to Redis only (no local broadcast). Used for events like chat_message
// so that the Redis subscriber callback performs the broadcast once for all instances (including this one),
// avoiding duplicate delivery to local clients.
func (h *Hub) PublishToStreamOnly(streamID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		_ = h.redis.PublishStreamEvent(streamID, event, data)
		return
	}
	h.BroadcastToStream(streamID, event, payload)
}

// ConnectionCount returns the number of connected clients in a stream on this instance.
func (h *Hub) ConnectionCount(streamID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[streamID])
}

// viewerStillConnected reports whether the viewer has another connection to
// the stream besides the one identified by excludeClientID.
func (h *Hub) viewerStillConnected(streamID uuid.UUID, userID uuid.UUID, excludeClientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.streams[streamID] {
		if id != excludeClientID && c.Viewer.UserID == userID {
			return true
		}
	}
	return false
}

// SendToClient sends a message to a single client in a stream.
func (h *Hub) SendToClient(streamID uuid.UUID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	clients := h.streams[streamID]
	c, ok := clients[clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.metrics.IncBroadcastDrops()
	}
}

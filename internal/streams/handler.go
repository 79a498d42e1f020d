package streams

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tiktik-live/backend/internal/middleware"
	"github.com/tiktik-live/backend/internal/realtime"
	"github.com/tiktik-live/backend/pkg/queue"
	"github.com/tiktik-live/backend/pkg/response"
)

// Broadcaster fans an event out to every client watching a stream.
type Broadcaster interface {
	BroadcastToStreamAndPublish(streamID uuid.UUID, event string, payload interface{})
}

// CreateRequest is the body for POST /streams.
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	PlaybackURL string `json:"playback_url"`
}

// Handler handles stream HTTP endpoints.
type Handler struct {
	repo        *Repository
	queue       *queue.Queue
	broadcaster Broadcaster
	onEnd       func(streamID uuid.UUID)
}

// NewHandler creates a streams handler.
func NewHandler(repo *Repository, q *queue.Queue, b Broadcaster) *Handler {
	return &Handler{repo: repo, queue: q, broadcaster: b}
}

// SetEndHook registers a callback run after a stream ends, for clearing
// per-stream in-memory state elsewhere.
func (h *Handler) SetEndHook(fn func(streamID uuid.UUID)) {
	h.onEnd = fn
}

// Create handles POST /streams. The caller becomes the broadcaster.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	s, err := h.repo.Create(c.Request.Context(), userID, req.Title, req.Description, req.PlaybackURL)
	if err != nil {
		response.Internal(c, "failed to create stream")
		return
	}
	response.Created(c, s)
}

// List handles GET /streams, live streams first.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), 50)
	if err != nil {
		response.Internal(c, "failed to list streams")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /streams/:id.
func (h *Handler) GetByID(c *gin.Context) {
	response.OK(c, StreamFromContext(c))
}

// GetBySlug handles GET /s/:slug, the public share-link lookup.
func (h *Handler) GetBySlug(c *gin.Context) {
	s, err := h.repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil || s == nil {
		response.NotFound(c, "stream not found")
		return
	}
	response.OK(c, s)
}

// End handles POST /streams/:id/end (owner only). The stream record is kept;
// aggregate rollup happens asynchronously in the worker.
func (h *Handler) End(c *gin.Context) {
	s := StreamFromContext(c)
	if !s.IsLive {
		response.BadRequest(c, "stream already ended")
		return
	}
	if err := h.repo.End(c.Request.Context(), s.ID); err != nil {
		response.Internal(c, "failed to end stream")
		return
	}
	h.broadcaster.BroadcastToStreamAndPublish(s.ID, realtime.EventStreamEnded, gin.H{"stream_id": s.ID})
	_ = h.queue.EnqueueStreamAnalytics(c.Request.Context(), queue.StreamAnalyticsPayload{StreamID: s.ID})
	if h.onEnd != nil {
		h.onEnd(s.ID)
	}
	response.OK(c, gin.H{"ended": true})
}

// Delete handles DELETE /streams/:id (owner only). Chat history and settings
// are removed with the stream.
func (h *Handler) Delete(c *gin.Context) {
	s := StreamFromContext(c)
	if err := h.repo.Delete(c.Request.Context(), s.ID); err != nil {
		response.Internal(c, "failed to delete stream")
		return
	}
	response.NoContent(c)
}

package presence

import (
	"github.com/gin-gonic/gin"

	"github.com/tiktik-live/backend/internal/streams"
	"github.com/tiktik-live/backend/pkg/response"
)

// Handler handles viewer-count HTTP endpoints.
type Handler struct {
	tracker *Tracker
}

// NewHandler creates a presence handler.
func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// Viewers handles GET /streams/:id/viewers: the live count plus the roster.
func (h *Handler) Viewers(c *gin.Context) {
	s := streams.StreamFromContext(c)
	ctx := c.Request.Context()

	count, err := h.tracker.Count(ctx, s.ID)
	if err != nil {
		response.Internal(c, "failed to load viewer count")
		return
	}
	viewers, err := h.tracker.Viewers(ctx, s.ID)
	if err != nil {
		response.Internal(c, "failed to load viewers")
		return
	}
	response.OK(c, gin.H{"count": count, "viewers": viewers})
}

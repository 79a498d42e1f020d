package watchlog

import (
	"github.com/gin-gonic/gin"

	"github.com/tiktik-live/backend/internal/streams"
	"github.com/tiktik-live/backend/pkg/response"
)

// Handler handles GET /streams/:id/viewers/history.
type Handler struct {
	repo *Repository
}

// NewHandler creates a watch session handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// History handles GET /streams/:id/viewers/history (owner only).
func (h *Handler) History(c *gin.Context) {
	s := streams.StreamFromContext(c)
	list, err := h.repo.ListByStream(c.Request.Context(), s.ID)
	if err != nil {
		response.Internal(c, "failed to list viewer sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

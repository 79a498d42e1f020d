package moderation

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tiktik-live/backend/internal/streams"
	"github.com/tiktik-live/backend/pkg/response"
)

// BanRequest is the body for POST /streams/:id/ban.
type BanRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// TimeoutRequest is the body for POST /streams/:id/timeout.
type TimeoutRequest struct {
	UserID  string `json:"user_id" binding:"required,uuid"`
	Seconds int    `json:"seconds"`
}

// SlowModeRequest is the body for POST /streams/:id/slow-mode.
type SlowModeRequest struct {
	Enabled  bool  `json:"enabled"`
	WindowMs int64 `json:"window_ms"`
}

// Handler handles moderation HTTP endpoints. All routes require stream
// ownership.
type Handler struct {
	controller     *Controller
	defaultTimeout time.Duration
}

// NewHandler creates a moderation handler.
func NewHandler(controller *Controller, defaultTimeout time.Duration) *Handler {
	return &Handler{controller: controller, defaultTimeout: defaultTimeout}
}

// Ban handles POST /streams/:id/ban.
func (h *Handler) Ban(c *gin.Context) {
	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s := streams.StreamFromContext(c)
	userID := uuid.MustParse(req.UserID)
	if userID == s.OwnerID {
		response.BadRequest(c, "cannot ban the stream owner")
		return
	}
	if err := h.controller.Ban(c.Request.Context(), s.ID, userID); err != nil {
		response.Internal(c, "failed to ban user")
		return
	}
	response.OK(c, gin.H{"banned": true})
}

// Timeout handles POST /streams/:id/timeout.
func (h *Handler) Timeout(c *gin.Context) {
	var req TimeoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d := h.defaultTimeout
	if req.Seconds > 0 {
		d = time.Duration(req.Seconds) * time.Second
	}
	s := streams.StreamFromContext(c)
	h.controller.Timeout(s.ID, uuid.MustParse(req.UserID), d)
	response.OK(c, gin.H{"timed_out": true, "seconds": int(d.Seconds())})
}

// SlowMode handles POST /streams/:id/slow-mode.
func (h *Handler) SlowMode(c *gin.Context) {
	var req SlowModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s := streams.StreamFromContext(c)
	if err := h.controller.SetSlowMode(c.Request.Context(), s.ID, req.Enabled, req.WindowMs); err != nil {
		response.Internal(c, "failed to update slow mode")
		return
	}
	response.OK(c, gin.H{"slow_mode_enabled": req.Enabled})
}

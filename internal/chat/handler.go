package chat

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/tiktik-live/backend/internal/middleware"
	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/internal/streams"
	"github.com/tiktik-live/backend/internal/wallet"
	"github.com/tiktik-live/backend/pkg/response"
)

// SendRequest is the body for POST /streams/:id/chat.
type SendRequest struct {
	Message        string `json:"message"`
	SuperChatCents int64  `json:"super_chat_cents"`
}

// Handler handles chat HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a chat handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// History handles GET /streams/:id/chat.
func (h *Handler) History(c *gin.Context) {
	s := streams.StreamFromContext(c)
	views, err := h.service.History(c.Request.Context(), s.ID)
	if err != nil {
		response.Internal(c, "failed to load chat history")
		return
	}
	response.OK(c, views)
}

// Send handles POST /streams/:id/chat.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.SuperChatCents < 0 {
		response.BadRequest(c, "invalid super chat amount")
		return
	}

	s := streams.StreamFromContext(c)
	sender := c.MustGet(middleware.ContextViewer).(models.Viewer)

	view, err := h.service.Send(c.Request.Context(), s, sender, req.Message, req.SuperChatCents)
	if err != nil {
		var timedOut *TimedOutError
		var cooldown *CooldownError
		switch {
		case errors.Is(err, ErrBanned):
			response.Forbidden(c, err.Error())
		case errors.As(err, &timedOut):
			response.Forbidden(c, err.Error())
		case errors.As(err, &cooldown):
			response.TooManyRequests(c, err.Error())
		case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong), errors.Is(err, ErrStreamNotLive):
			response.BadRequest(c, err.Error())
		case errors.Is(err, wallet.ErrInsufficientFunds):
			response.BadRequest(c, err.Error())
		default:
			response.Internal(c, "failed to send message")
		}
		return
	}
	response.Created(c, view)
}

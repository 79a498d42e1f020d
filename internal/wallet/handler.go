package wallet

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tiktik-live/backend/internal/middleware"
	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/pkg/response"
)

// TipRequest is the body for POST /tips.
type TipRequest struct {
	ReceiverID  string `json:"receiver_id" binding:"required,uuid"`
	StreamID    string `json:"stream_id"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Message     string `json:"message"`
}

// DepositRequest is the body for POST /wallet/deposit.
type DepositRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required,gt=0"`
}

// Handler handles wallet HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a wallet handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Get handles GET /wallet.
func (h *Handler) Get(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	w, err := h.repo.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load wallet")
		return
	}
	response.OK(c, w)
}

// Deposit handles POST /wallet/deposit. Payment-provider integration sits in
// front of this in production; here the deposit is taken at face value.
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.Deposit(c.Request.Context(), userID, req.AmountCents); err != nil {
		response.Internal(c, "failed to deposit")
		return
	}
	w, err := h.repo.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load wallet")
		return
	}
	response.OK(c, w)
}

// Transactions handles GET /wallet/transactions.
func (h *Handler) Transactions(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListTransactions(c.Request.Context(), userID, 100)
	if err != nil {
		response.Internal(c, "failed to list transactions")
		return
	}
	response.OK(c, gin.H{"transactions": list})
}

// Tip handles POST /tips, a direct creator tip outside chat.
func (h *Handler) Tip(c *gin.Context) {
	var req TipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	senderID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	receiverID := uuid.MustParse(req.ReceiverID)
	if receiverID == senderID {
		response.BadRequest(c, "cannot tip yourself")
		return
	}
	var streamID *uuid.UUID
	if req.StreamID != "" {
		id, err := uuid.Parse(req.StreamID)
		if err != nil {
			response.BadRequest(c, "invalid stream_id")
			return
		}
		streamID = &id
	}

	err := h.repo.Transfer(c.Request.Context(), senderID, receiverID, streamID,
		models.TransactionTip, req.AmountCents, req.Message)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			response.BadRequest(c, err.Error())
			return
		}
		response.Internal(c, "failed to send tip")
		return
	}
	response.Created(c, gin.H{"sent": true, "amount_cents": req.AmountCents})
}

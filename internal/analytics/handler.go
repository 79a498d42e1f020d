package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiktik-live/backend/internal/chat"
	"github.com/tiktik-live/backend/internal/streams"
	"github.com/tiktik-live/backend/internal/wallet"
	"github.com/tiktik-live/backend/internal/watchlog"
	"github.com/tiktik-live/backend/pkg/response"
)

// Handler handles GET /streams/:id/analytics.
type Handler struct {
	pool       *pgxpool.Pool
	watchRepo  *watchlog.Repository
	chatRepo   *chat.Repository
	walletRepo *wallet.Repository
}

// NewHandler creates an analytics handler.
func NewHandler(pool *pgxpool.Pool, watchRepo *watchlog.Repository, chatRepo *chat.Repository, walletRepo *wallet.Repository) *Handler {
	return &Handler{pool: pool, watchRepo: watchRepo, chatRepo: chatRepo, walletRepo: walletRepo}
}

// SummaryResponse is the JSON shape for stream analytics.
type SummaryResponse struct {
	PeakViewers       int    `json:"peak_viewers"`
	DistinctViewers   int    `json:"distinct_viewers"`
	TotalWatchSeconds int64  `json:"total_watch_seconds"`
	AvgWatchSeconds   int64  `json:"avg_watch_seconds"`
	ChatMessages      int64  `json:"chat_messages"`
	SuperChats        int64  `json:"super_chats"`
	RevenueCents      int64  `json:"revenue_cents"`
	DurationSeconds   *int64 `json:"duration_seconds,omitempty"`
}

// GetByStream handles GET /streams/:id/analytics. Ownership is enforced by
// route middleware.
func (h *Handler) GetByStream(c *gin.Context) {
	s := streams.StreamFromContext(c)
	ctx := c.Request.Context()

	agg, err := h.watchRepo.GetAggregates(ctx, s.ID)
	if err != nil {
		response.Internal(c, "failed to load watch aggregates")
		return
	}
	messages, err := h.chatRepo.CountByStream(ctx, s.ID)
	if err != nil {
		response.Internal(c, "failed to load chat counts")
		return
	}
	revenue, err := h.walletRepo.SuperChatTotal(ctx, s.ID)
	if err != nil {
		response.Internal(c, "failed to load revenue")
		return
	}

	var superChats int64
	const superQ = `SELECT COUNT(*) FROM chat_messages WHERE stream_id = $1 AND is_super_chat`
	if err := h.pool.QueryRow(ctx, superQ, s.ID).Scan(&superChats); err != nil {
		response.Internal(c, "failed to load super chat counts")
		return
	}

	out := SummaryResponse{
		PeakViewers:       s.PeakViewers,
		DistinctViewers:   agg.DistinctViewers,
		TotalWatchSeconds: agg.TotalWatchSeconds,
		ChatMessages:      messages,
		SuperChats:        superChats,
		RevenueCents:      revenue,
	}
	if agg.DistinctViewers > 0 {
		out.AvgWatchSeconds = agg.TotalWatchSeconds / int64(agg.DistinctViewers)
	}
	if s.EndedAt != nil {
		d := int64(s.EndedAt.Sub(s.StartedAt).Seconds())
		out.DurationSeconds = &d
	}

	response.OK(c, out)
}

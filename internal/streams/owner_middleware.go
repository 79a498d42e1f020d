package streams

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tiktik-live/backend/internal/middleware"
	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/pkg/response"
)

// ContextStream is the context key for the loaded stream record.
const ContextStream = "stream"

// ContextIsOwner is the context key for the owner capability, computed once per request.
const ContextIsOwner = "is_stream_owner"

// LoadStream resolves the :id path param into a stream record and stores it in
// the context along with whether the caller owns it. Call after JWT.
func LoadStream(repo *Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		streamID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid stream id")
			c.Abort()
			return
		}
		s, err := repo.GetByID(c.Request.Context(), streamID)
		if err != nil || s == nil {
			response.NotFound(c, "stream not found")
			c.Abort()
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		c.Set(ContextStream, s)
		c.Set(ContextIsOwner, s.OwnerID == userID)
		c.Next()
	}
}

// RequireStreamOwner rejects callers who do not own the loaded stream.
// Call after LoadStream.
func RequireStreamOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.MustGet(ContextIsOwner).(bool) {
			response.Forbidden(c, "not the stream owner")
			c.Abort()
			return
		}
		c.Next()
	}
}

// StreamFromContext returns the stream loaded by LoadStream.
func StreamFromContext(c *gin.Context) *models.Stream {
	return c.MustGet(ContextStream).(*models.Stream)
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tiktik-live/backend/internal/auth"
	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextViewer is the key for the viewer identity triple in gin context.
	ContextViewer = "viewer"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextViewer, models.Viewer{
			UserID:    claims.UserID,
			UserName:  claims.Name,
			AvatarURL: claims.AvatarURL,
		})
		c.Next()
	}
}

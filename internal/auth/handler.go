package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/pkg/response"
	"github.com/tiktik-live/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// GoogleCallbackRequest is the body for POST /auth/google/callback.
type GoogleCallbackRequest struct {
	Code string `json:"code" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	google *GoogleOAuth
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, google *GoogleOAuth, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, google: google, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if _, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.DisplayName)
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, user.DisplayName, user.AvatarURL)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if user.Password == "" || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, user.DisplayName, user.AvatarURL)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// GoogleURL handles GET /auth/google/url: returns the consent URL and a state token.
func (h *Handler) GoogleURL(c *gin.Context) {
	if !h.google.Enabled() {
		response.NotFound(c, "google sign-in not configured")
		return
	}
	state, err := GenerateStateToken()
	if err != nil {
		response.Internal(c, "failed to generate state")
		return
	}
	response.OK(c, gin.H{"url": h.google.AuthURL(state), "state": state})
}

// GoogleCallback handles POST /auth/google/callback: exchanges the code and issues a JWT.
func (h *Handler) GoogleCallback(c *gin.Context) {
	if !h.google.Enabled() {
		response.NotFound(c, "google sign-in not configured")
		return
	}
	var req GoogleCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	info, err := h.google.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		h.logger.Warn("google exchange failed", zap.Error(err))
		response.Unauthorized(c, "google sign-in failed")
		return
	}

	user, err := h.repo.UpsertGoogleUser(c.Request.Context(), info.ID, info.Email, info.Name, info.Picture)
	if err != nil {
		h.logger.Error("upsert google user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, user.DisplayName, user.AvatarURL)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

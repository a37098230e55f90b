package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"betledger/internal/service"
)

type AuthHandler struct {
	Service *service.AuthService
	Logger  *zap.Logger
}

func (h *AuthHandler) Register(r *gin.Engine) {
	g := r.Group("/api/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/password-reset/request", h.requestReset)
	g.POST("/password-reset/submit", h.submitReset)
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	user, err := h.Service.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}, nil)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	token, expiresAt, user, err := h.Service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		// Login failures are 401 regardless of cause.
		if h.Logger != nil {
			h.Logger.Debug("login rejected", zap.String("username", req.Username))
		}
		Error(c, http.StatusUnauthorized, "invalid username or password", nil)
		return
	}
	Ok(c, loginResponse{Token: token, ExpiresAt: expiresAt, Username: user.Username}, nil)
}

type resetRequestBody struct {
	Email string `json:"email" binding:"required"`
}

func (h *AuthHandler) requestReset(c *gin.Context) {
	var req resetRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	token, err := h.Service.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{
		"token":     token.Token,
		"expiresAt": token.ExpiresAt,
	}, nil)
}

type resetSubmitBody struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *AuthHandler) submitReset(c *gin.Context) {
	var req resetSubmitBody
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"status": "password updated"}, nil)
}

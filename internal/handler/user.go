package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betledger/internal/auth"
	"betledger/internal/service"
)

type UserHandler struct {
	Service *service.AuthService
}

func (h *UserHandler) Register(r *gin.Engine, authMW gin.HandlerFunc) {
	g := r.Group("/api/user", authMW)
	g.GET("/profile", h.profile)
	g.POST("/change-password", h.changePassword)
}

func (h *UserHandler) profile(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}
	user, err := h.Service.Profile(c.Request.Context(), claims.Username)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{
		"username": user.Username,
		"email":    user.Email,
		"joinedAt": user.JoinedAt,
	}, nil)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h *UserHandler) changePassword(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Service.ChangePassword(c.Request.Context(), claims.Username, req.OldPassword, req.NewPassword); err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, gin.H{"status": "password changed"}, nil)
}

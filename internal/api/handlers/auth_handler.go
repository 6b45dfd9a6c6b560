package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/services"
	"github.com/yoockh/xiaomian/internal/utils"
)

type AuthHandler struct {
	svc services.AuthService
}

func NewAuthHandler(svc services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "AuthHandler.Register", err)
		return
	}

	tok, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "AuthHandler.Login", err)
		return
	}

	tok, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if utils.IsCode(err, utils.CodeUnauthorized) {
			c.Header("WWW-Authenticate", "Bearer")
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	p, err := h.svc.Me(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type UpdatePositionsRequest struct {
	TargetPositions []string `json:"target_positions"`
}

func (h *AuthHandler) UpdatePositions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdatePositionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "AuthHandler.UpdatePositions", err)
		return
	}

	positions, err := h.svc.UpdatePositions(c.Request.Context(), userID, req.TargetPositions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "目标岗位已更新", "target_positions": positions})
}

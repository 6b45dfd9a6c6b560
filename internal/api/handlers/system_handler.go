package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SystemHandler struct {
	version string
}

func NewSystemHandler(version string) *SystemHandler {
	return &SystemHandler{version: version}
}

func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "智能面试学习平台 API", "version": h.version})
}

func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/services"
)

type ChatHandler struct {
	svc services.ChatService
}

func NewChatHandler(svc services.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatMessageRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	ContextType string `json:"context_type"`
}

func (h *ChatHandler) Message(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "ChatHandler.Message", err)
		return
	}

	reply, err := h.svc.SendMessage(c.Request.Context(), userID, req.Message, req.SessionID, models.ContextType(req.ContextType))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *ChatHandler) Greeting(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	g, err := h.svc.Greeting(c.Request.Context(), userID, models.ContextType(c.Query("context_type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type historyEntry struct {
	Role      models.MessageRole `json:"role"`
	Content   string             `json:"content"`
	Metadata  map[string]any     `json:"metadata"`
	CreatedAt time.Time          `json:"created_at"`
}

func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	msgs, err := h.svc.History(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]historyEntry, len(msgs))
	for i, m := range msgs {
		out[i] = historyEntry{Role: m.Role, Content: m.Content, Metadata: m.Metadata, CreatedAt: m.CreatedAt}
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

type sessionView struct {
	ID          uint               `json:"id"`
	SessionID   string             `json:"session_id"`
	Name        string             `json:"name"`
	ContextType models.ContextType `json:"context_type"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (h *ChatHandler) Sessions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rows, err := h.svc.Sessions(c.Request.Context(), userID, c.Query("context_type"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]sessionView, len(rows))
	for i, s := range rows {
		out[i] = sessionView{
			ID:          s.ID,
			SessionID:   s.SessionID,
			Name:        services.SessionName(s),
			ContextType: s.ContextType,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

type SaveSessionRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	Name        string `json:"name"`
	ContextType string `json:"context_type"`
}

func (h *ChatHandler) SaveSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req SaveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "ChatHandler.SaveSession", err)
		return
	}

	if err := h.svc.SaveSession(c.Request.Context(), userID, req.SessionID, req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "会话已保存"})
}

func (h *ChatHandler) Feedback(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.FeedbackInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "ChatHandler.Feedback", err)
		return
	}

	if err := h.svc.Feedback(c.Request.Context(), userID, req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "反馈已收到，感谢您的建议！"})
}

func (h *ChatHandler) UpdateAnalytics(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "interview_id", "ChatHandler.UpdateAnalytics")
	if !ok {
		return
	}

	if err := h.svc.UpdateAnalytics(c.Request.Context(), userID, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "分析已更新"})
}

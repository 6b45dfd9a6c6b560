package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/services"
)

type AIHandler struct {
	rag      services.RAGService
	personal services.PersonalizationService
}

func NewAIHandler(rag services.RAGService, personal services.PersonalizationService) *AIHandler {
	return &AIHandler{rag: rag, personal: personal}
}

type QuestionRequest struct {
	Question         string `json:"question"`
	PositionCategory string `json:"position_category"`
}

func (h *AIHandler) Ask(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "AIHandler.Ask", err)
		return
	}

	ans, err := h.rag.Ask(c.Request.Context(), userID, req.Question, req.PositionCategory)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

// GenerateQuestionsRequest binds from the query string or a JSON body.
type GenerateQuestionsRequest struct {
	TaskDescription string `form:"task_description" json:"task_description"`
	Count           int    `form:"count" json:"count"`
}

func (h *AIHandler) GenerateQuestions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req GenerateQuestionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badBody(c, "AIHandler.GenerateQuestions", err)
		return
	}
	if req.TaskDescription == "" && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, "AIHandler.GenerateQuestions", err)
			return
		}
	}

	qs, err := h.rag.GenerateQuestions(c.Request.Context(), userID, req.TaskDescription, req.Count)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": qs})
}

func (h *AIHandler) LearningPath(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	p, err := h.personal.LearningPath(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *AIHandler) AnalyzeStyle(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	res, err := h.personal.AnalyzeStyle(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if res == nil {
		c.JSON(http.StatusOK, gin.H{"message": "暂无对话记录，无法分析风格"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AIHandler) AddKnowledge(c *gin.Context) {
	var req services.KnowledgeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "AIHandler.AddKnowledge", err)
		return
	}

	row, err := h.rag.AddKnowledge(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

type PopulateRequest struct {
	Positions []string `json:"positions"`
}

func (h *AIHandler) Populate(c *gin.Context) {
	var req PopulateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, "AIHandler.Populate", err)
			return
		}
	}

	n, err := h.rag.Populate(c.Request.Context(), req.Positions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("已添加%d条知识", n), "count": n})
}

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/export"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/services"
	"github.com/yoockh/xiaomian/internal/utils"
)

type InterviewHandler struct {
	svc      services.InterviewService
	maxAudio int64
}

// NewInterviewHandler caps uploaded answer recordings at maxAudio bytes.
func NewInterviewHandler(svc services.InterviewService, maxAudio int64) *InterviewHandler {
	if maxAudio <= 0 {
		maxAudio = 10 << 20
	}
	return &InterviewHandler{svc: svc, maxAudio: maxAudio}
}

func (h *InterviewHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rows, err := h.svc.List(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	if rows == nil {
		rows = []models.Interview{}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *InterviewHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "interview_id", "InterviewHandler.Get")
	if !ok {
		return
	}

	iv, err := h.svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, iv)
}

func (h *InterviewHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateInterviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "InterviewHandler.Create", err)
		return
	}

	iv, err := h.svc.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, iv)
}

type SubmitRequest struct {
	Answers []services.SubmittedAnswer `json:"answers"`
}

type submitResponse struct {
	Message         string                     `json:"message"`
	Interview       services.ScoredInterview   `json:"interview"`
	StandardAnswers []string                   `json:"standard_answers"`
	Facial          string                     `json:"facial_expression_evaluation"`
	Tone            string                     `json:"tone_evaluation"`
	RemedialTasks   []services.RemedialTaskRef `json:"remedial_tasks"`
}

func (h *InterviewHandler) Submit(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "interview_id", "InterviewHandler.Submit")
	if !ok {
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "InterviewHandler.Submit", err)
		return
	}

	res, err := h.svc.Submit(c.Request.Context(), userID, id, req.Answers)
	if err != nil {
		writeError(c, err)
		return
	}

	remedial := res.RemedialTasks
	if remedial == nil {
		remedial = []services.RemedialTaskRef{}
	}
	c.JSON(http.StatusOK, submitResponse{
		Message:         "面试已提交",
		Interview:       res.Interview,
		StandardAnswers: res.StandardAnswers,
		Facial:          res.Facial,
		Tone:            res.Tone,
		RemedialTasks:   remedial,
	})
}

func (h *InterviewHandler) Feedback(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "interview_id", "InterviewHandler.Feedback")
	if !ok {
		return
	}

	fb, err := h.svc.Feedback(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (h *InterviewHandler) Export(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	data, err := h.svc.Export(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	name := fmt.Sprintf("interviews-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, export.ContentType, data)
}

// Transcribe accepts a multipart recording in field "audio" together with
// the question_id it answers and an optional language.
func (h *InterviewHandler) Transcribe(c *gin.Context) {
	const op = "InterviewHandler.Transcribe"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "interview_id", op)
	if !ok {
		return
	}

	questionID, err := strconv.Atoi(c.PostForm("question_id"))
	if err != nil || questionID < 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid question_id", err))
		return
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'audio'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > h.maxAudio {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("audio too large (max %dMB)", h.maxAudio>>20), nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, h.maxAudio))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}

	out, err := h.svc.Transcribe(c.Request.Context(), userID, id, questionID, fh.Filename, audio, c.PostForm("language"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/services"
	"github.com/yoockh/xiaomian/internal/utils"
)

type ResumeHandler struct {
	svc      services.ResumeService
	maxBytes int64
}

func NewResumeHandler(svc services.ResumeService, maxBytes int64) *ResumeHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &ResumeHandler{svc: svc, maxBytes: maxBytes}
}

type resumeView struct {
	ID         uint                `json:"id"`
	FileName   string              `json:"file_name"`
	FileType   string              `json:"file_type"`
	Version    int                 `json:"version"`
	ParsedData models.ParsedResume `json:"parsed_data"`
	CreatedAt  time.Time           `json:"created_at"`
}

func toResumeView(r *models.Resume) resumeView {
	return resumeView{
		ID:         r.ID,
		FileName:   r.FileName,
		FileType:   r.FileType,
		Version:    r.Version,
		ParsedData: r.ParsedData.Data(),
		CreatedAt:  r.CreatedAt,
	}
}

func (h *ResumeHandler) Upload(c *gin.Context) {
	const op = "ResumeHandler.Upload"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'file'", err))
		return
	}
	if !models.ResumeTypeAllowed(services.FileType(fh.Filename)) {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "不支持的文件类型，请上传PDF、DOCX或TXT文件", nil))
		return
	}
	if fh.Size <= 0 || fh.Size > h.maxBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("file too large (max %dMB)", h.maxBytes>>20), nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}

	r, err := h.svc.Upload(c.Request.Context(), userID, fh.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResumeView(r))
}

func (h *ResumeHandler) Active(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	r, err := h.svc.Active(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResumeView(r))
}

func (h *ResumeHandler) FileURL(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	url, err := h.svc.FileURL(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *ResumeHandler) GenerateQuestions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	count := services.DefaultQuestionCount
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "ResumeHandler.GenerateQuestions", "invalid count", err))
			return
		}
		count = n
	}

	qs, err := h.svc.GenerateQuestions(c.Request.Context(), userID, count)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": qs})
}

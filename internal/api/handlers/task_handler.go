package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/services"
	"github.com/yoockh/xiaomian/internal/utils"
)

const defaultGeneratedTasks = 4

type TaskHandler struct {
	svc services.TaskService
}

func NewTaskHandler(svc services.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type taskSummary struct {
	ID               uint              `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	ExperienceReward int               `json:"experience_reward"`
	TaskType         models.TaskType   `json:"task_type"`
	Status           models.TaskStatus `json:"status"`
}

func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	tasks, err := h.svc.List(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.Get")
	if !ok {
		return
	}

	t, err := h.svc.Get(c.Request.Context(), userID, taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "TaskHandler.Create", err)
		return
	}

	t, err := h.svc.CreateCustom(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.Delete")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, taskID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "任务已删除"})
}

func (h *TaskHandler) GeneratePositionTasks(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	count := defaultGeneratedTasks
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "TaskHandler.GeneratePositionTasks", "invalid count", err))
			return
		}
		count = n
	}

	tasks, err := h.svc.GeneratePositionTasks(c.Request.Context(), userID, count)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]taskSummary, len(tasks))
	for i, t := range tasks {
		out[i] = taskSummary{
			ID:               t.ID,
			Title:            t.Title,
			Description:      t.Description,
			ExperienceReward: t.ExperienceReward,
			TaskType:         t.TaskType,
			Status:           t.Status,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("已生成%d个任务", len(out)),
		"tasks":   out,
	})
}

type completedTask struct {
	ID               uint   `json:"id"`
	Title            string `json:"title"`
	ExperienceReward int    `json:"experience_reward"`
	NewLevel         int    `json:"new_level"`
}

type completeResponse struct {
	Message     string        `json:"message"`
	Task        completedTask `json:"task"`
	InterviewID *uint         `json:"interview_id"`
	Questions   []string      `json:"questions,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func (h *TaskHandler) Complete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.Complete")
	if !ok {
		return
	}

	res, err := h.svc.Complete(c.Request.Context(), userID, taskID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := completeResponse{
		Message: "任务完成",
		Task: completedTask{
			ID:               res.Task.ID,
			Title:            res.Task.Title,
			ExperienceReward: res.Task.ExperienceReward,
			NewLevel:         res.NewLevel,
		},
	}
	switch {
	case res.Interview != nil:
		resp.Message = "任务完成！已生成关联面试"
		resp.InterviewID = &res.Interview.ID
		resp.Questions = res.Questions
	case res.InterviewErr != nil:
		resp.Message = "任务已完成，但生成面试时出现错误"
		resp.Error = "生成面试失败"
	}
	c.JSON(http.StatusOK, resp)
}

type noteView struct {
	ID           uint      `json:"id"`
	Content      string    `json:"content"`
	SelectedText *string   `json:"selected_text"`
	CreatedAt    time.Time `json:"created_at"`
}

func toNoteView(n models.TaskNote) noteView {
	return noteView{ID: n.ID, Content: n.Content, SelectedText: n.SelectedText, CreatedAt: n.CreatedAt}
}

func (h *TaskHandler) ListNotes(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.ListNotes")
	if !ok {
		return
	}

	notes, err := h.svc.ListNotes(c.Request.Context(), userID, taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]noteView, len(notes))
	for i, n := range notes {
		out[i] = toNoteView(n)
	}
	c.JSON(http.StatusOK, gin.H{"notes": out})
}

type NoteRequest struct {
	Content      string  `json:"content"`
	SelectedText *string `json:"selected_text"`
}

func (h *TaskHandler) CreateNote(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.CreateNote")
	if !ok {
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "TaskHandler.CreateNote", err)
		return
	}

	n, err := h.svc.CreateNote(c.Request.Context(), userID, taskID, req.Content, req.SelectedText)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "笔记已保存", "note": toNoteView(*n)})
}

func (h *TaskHandler) DeleteNote(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.DeleteNote")
	if !ok {
		return
	}
	noteID, ok := pathID(c, "note_id", "TaskHandler.DeleteNote")
	if !ok {
		return
	}

	if err := h.svc.DeleteNote(c.Request.Context(), userID, taskID, noteID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "笔记已删除"})
}

type highlightView struct {
	ID        uint      `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *TaskHandler) ListHighlights(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.ListHighlights")
	if !ok {
		return
	}

	rows, err := h.svc.ListHighlights(c.Request.Context(), userID, taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]highlightView, len(rows))
	for i, r := range rows {
		out[i] = highlightView{ID: r.ID, Text: r.Text, CreatedAt: r.CreatedAt}
	}
	c.JSON(http.StatusOK, gin.H{"highlights": out})
}

type HighlightRequest struct {
	Text string `json:"text"`
}

func (h *TaskHandler) CreateHighlight(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.CreateHighlight")
	if !ok {
		return
	}

	var req HighlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, "TaskHandler.CreateHighlight", err)
		return
	}

	r, err := h.svc.CreateHighlight(c.Request.Context(), userID, taskID, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "标注已保存",
		"highlight": highlightView{ID: r.ID, Text: r.Text, CreatedAt: r.CreatedAt},
	})
}

func (h *TaskHandler) DeleteHighlight(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.DeleteHighlight")
	if !ok {
		return
	}
	highlightID, ok := pathID(c, "highlight_id", "TaskHandler.DeleteHighlight")
	if !ok {
		return
	}

	if err := h.svc.DeleteHighlight(c.Request.Context(), userID, taskID, highlightID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "标注已删除"})
}

func (h *TaskHandler) PracticeProblem(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "task_id", "TaskHandler.PracticeProblem")
	if !ok {
		return
	}

	p, err := h.svc.PracticeProblem(c.Request.Context(), userID, taskID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

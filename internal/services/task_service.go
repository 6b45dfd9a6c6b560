package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/models"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
)

const (
	msgTaskNotFound      = "任务不存在"
	msgTaskDone          = "任务已完成"
	msgNoteNotFound      = "笔记不存在"
	msgHighlightNotFound = "标注不存在"
	genericPosition      = "通用"
)

type CreateTaskInput struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	PositionCategory string `json:"position_category"`
}

// TaskCompletion is the outcome of completing one task.
type TaskCompletion struct {
	Task      models.Task
	NewLevel  int
	Interview *models.Interview
	Questions []string
	// InterviewErr is set when the follow-up interview could not be stored.
	InterviewErr error
}

type PracticeExample struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation"`
}

type PracticeProblem struct {
	Title       string            `json:"title"`
	Difficulty  string            `json:"difficulty"`
	Description string            `json:"description"`
	Examples    []PracticeExample `json:"examples"`
	Constraints []string          `json:"constraints"`
	URL         string            `json:"leetcodeUrl"`
}

var twoSum = PracticeProblem{
	Title:       "两数之和",
	Difficulty:  "简单",
	Description: "给定一个整数数组 nums 和一个整数目标值 target，请你在该数组中找出 和为目标值 target  的那 两个 整数，并返回它们的数组下标。你可以假设每种输入只会对应一个答案。但是，数组中同一个元素在答案里不能重复出现。",
	Examples: []PracticeExample{
		{Input: "nums = [2,7,11,15], target = 9", Output: "[0,1]", Explanation: "因为 nums[0] + nums[1] == 9 ，返回 [0, 1] 。"},
		{Input: "nums = [3,2,4], target = 6", Output: "[1,2]"},
	},
	Constraints: []string{
		"2 <= nums.length <= 10^4",
		"-10^9 <= nums[i] <= 10^9",
		"-10^9 <= target <= 10^9",
		"只会存在一个有效答案",
	},
	URL: "https://leetcode.cn/problems/two-sum/",
}

type TaskService interface {
	// List returns the user's tasks newest first. An unknown status is ignored.
	List(ctx context.Context, userID uint, status string) ([]models.Task, error)
	Get(ctx context.Context, userID, taskID uint) (*models.Task, error)
	CreateCustom(ctx context.Context, userID uint, in CreateTaskInput) (*models.Task, error)
	Delete(ctx context.Context, userID, taskID uint) error
	Complete(ctx context.Context, userID, taskID uint) (*TaskCompletion, error)
	GeneratePositionTasks(ctx context.Context, userID uint, count int) ([]models.Task, error)

	ListNotes(ctx context.Context, userID, taskID uint) ([]models.TaskNote, error)
	CreateNote(ctx context.Context, userID, taskID uint, content string, selectedText *string) (*models.TaskNote, error)
	DeleteNote(ctx context.Context, userID, taskID, noteID uint) error
	ListHighlights(ctx context.Context, userID, taskID uint) ([]models.TaskHighlight, error)
	CreateHighlight(ctx context.Context, userID, taskID uint, text string) (*models.TaskHighlight, error)
	DeleteHighlight(ctx context.Context, userID, taskID, highlightID uint) error

	PracticeProblem(ctx context.Context, userID, taskID uint) (*PracticeProblem, error)
}

type taskService struct {
	tasks pgrepo.TaskRepository
	notes pgrepo.TaskAnnotationRepository
	users pgrepo.UserRepository
	gen   TaskGenerator
	ai    InterviewAI
	log   *logrus.Logger
	now   func() time.Time
}

func NewTaskService(
	tasks pgrepo.TaskRepository,
	notes pgrepo.TaskAnnotationRepository,
	users pgrepo.UserRepository,
	gen TaskGenerator,
	ai InterviewAI,
	log *logrus.Logger,
) TaskService {
	return &taskService{tasks: tasks, notes: notes, users: users, gen: gen, ai: ai, log: log, now: time.Now}
}

func (s *taskService) List(ctx context.Context, userID uint, status string) ([]models.Task, error) {
	const op = "TaskService.List"

	st := models.TaskStatus(status)
	if !st.Valid() {
		st = ""
	}
	rows, err := s.tasks.ListByUser(ctx, userID, st)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list tasks", err)
	}
	return rows, nil
}

func (s *taskService) Get(ctx context.Context, userID, taskID uint) (*models.Task, error) {
	const op = "TaskService.Get"

	t, err := s.tasks.GetForUser(ctx, userID, taskID)
	if err != nil {
		return nil, repoErr(op, err, msgTaskNotFound)
	}
	return t, nil
}

func (s *taskService) CreateCustom(ctx context.Context, userID uint, in CreateTaskInput) (*models.Task, error) {
	const op = "TaskService.CreateCustom"

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "任务标题不能为空", nil)
	}
	if utf8.RuneCountInString(title) > maxTaskTitleRunes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "任务标题不能超过200个字符", nil)
	}

	t := &models.Task{
		UserID:           userID,
		TaskType:         models.TaskTypeCustom,
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		PositionCategory: strings.TrimSpace(in.PositionCategory),
		DifficultyLevel:  models.CustomTaskDifficulty,
		ExperienceReward: models.CustomTaskReward,
		Status:           models.TaskStatusPending,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create task", err)
	}
	return t, nil
}

func (s *taskService) Delete(ctx context.Context, userID, taskID uint) error {
	const op = "TaskService.Delete"

	if err := s.tasks.Delete(ctx, userID, taskID); err != nil {
		return repoErr(op, err, msgTaskNotFound)
	}
	return nil
}

func (s *taskService) Complete(ctx context.Context, userID, taskID uint) (*TaskCompletion, error) {
	const op = "TaskService.Complete"

	task, err := s.tasks.GetForUser(ctx, userID, taskID)
	if err != nil {
		return nil, repoErr(op, err, msgTaskNotFound)
	}
	if task.Status == models.TaskStatusCompleted {
		return nil, utils.E(utils.CodeConflict, op, msgTaskDone, nil)
	}

	// questions come first: the completion transaction never waits on the model
	var questions []string
	if task.TaskType == models.TaskTypePositionBased {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, repoErr(op, err, "用户不存在")
		}
		questions = s.followUpQuestions(ctx, task, user)
	}

	res, err := s.tasks.Complete(ctx, pgrepo.CompleteTask{
		UserID:    userID,
		TaskID:    taskID,
		Questions: questions,
		Now:       s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, utils.ErrStateConflict) {
			return nil, utils.E(utils.CodeConflict, op, msgTaskDone, err)
		}
		return nil, repoErr(op, err, msgTaskNotFound)
	}

	out := &TaskCompletion{
		Task:         res.Task,
		NewLevel:     res.User.CurrentLevel,
		Interview:    res.Interview,
		InterviewErr: res.InterviewErr,
	}
	if res.Interview != nil {
		out.Questions = questions
	}
	if res.InterviewErr != nil {
		s.log.WithError(res.InterviewErr).WithFields(logrus.Fields{
			"user_id": userID,
			"task_id": taskID,
		}).Error("task completed but follow-up interview failed")
	}
	return out, nil
}

func (s *taskService) followUpQuestions(ctx context.Context, task *models.Task, user *models.User) []string {
	position := user.PrimaryPosition()
	if position == "" {
		position = task.PositionCategory
	}
	if position == "" {
		position = genericPosition
	}
	desc := task.Description
	if strings.TrimSpace(desc) == "" {
		desc = task.Title
	}

	questions := s.ai.Questions(ctx, desc, position, DefaultQuestionCount)
	if len(questions) == 0 {
		return CannedQuestions(task.Title)
	}
	return questions
}

func (s *taskService) GeneratePositionTasks(ctx context.Context, userID uint, count int) ([]models.Task, error) {
	const op = "TaskService.GeneratePositionTasks"

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, repoErr(op, err, "用户不存在")
	}
	return s.gen.GeneratePositionTasks(ctx, user, user.PrimaryPosition(), count)
}

// ensureTask checks the task exists and belongs to the user.
func (s *taskService) ensureTask(ctx context.Context, op string, userID, taskID uint) error {
	if _, err := s.tasks.GetForUser(ctx, userID, taskID); err != nil {
		return repoErr(op, err, msgTaskNotFound)
	}
	return nil
}

func (s *taskService) ListNotes(ctx context.Context, userID, taskID uint) ([]models.TaskNote, error) {
	const op = "TaskService.ListNotes"

	if err := s.ensureTask(ctx, op, userID, taskID); err != nil {
		return nil, err
	}
	rows, err := s.notes.ListNotes(ctx, userID, taskID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list notes", err)
	}
	return rows, nil
}

func (s *taskService) CreateNote(ctx context.Context, userID, taskID uint, content string, selectedText *string) (*models.TaskNote, error) {
	const op = "TaskService.CreateNote"

	if strings.TrimSpace(content) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "笔记内容不能为空", nil)
	}
	if err := s.ensureTask(ctx, op, userID, taskID); err != nil {
		return nil, err
	}

	n := &models.TaskNote{TaskID: taskID, UserID: userID, Content: content, SelectedText: selectedText}
	if err := s.notes.CreateNote(ctx, n); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save note", err)
	}
	return n, nil
}

func (s *taskService) DeleteNote(ctx context.Context, userID, taskID, noteID uint) error {
	const op = "TaskService.DeleteNote"

	if err := s.notes.DeleteNote(ctx, userID, taskID, noteID); err != nil {
		return repoErr(op, err, msgNoteNotFound)
	}
	return nil
}

func (s *taskService) ListHighlights(ctx context.Context, userID, taskID uint) ([]models.TaskHighlight, error) {
	const op = "TaskService.ListHighlights"

	if err := s.ensureTask(ctx, op, userID, taskID); err != nil {
		return nil, err
	}
	rows, err := s.notes.ListHighlights(ctx, userID, taskID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list highlights", err)
	}
	return rows, nil
}

func (s *taskService) CreateHighlight(ctx context.Context, userID, taskID uint, text string) (*models.TaskHighlight, error) {
	const op = "TaskService.CreateHighlight"

	if strings.TrimSpace(text) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "标注内容不能为空", nil)
	}
	if err := s.ensureTask(ctx, op, userID, taskID); err != nil {
		return nil, err
	}

	h := &models.TaskHighlight{TaskID: taskID, UserID: userID, Text: text}
	if err := s.notes.CreateHighlight(ctx, h); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save highlight", err)
	}
	return h, nil
}

func (s *taskService) DeleteHighlight(ctx context.Context, userID, taskID, highlightID uint) error {
	const op = "TaskService.DeleteHighlight"

	if err := s.notes.DeleteHighlight(ctx, userID, taskID, highlightID); err != nil {
		return repoErr(op, err, msgHighlightNotFound)
	}
	return nil
}

func (s *taskService) PracticeProblem(ctx context.Context, userID, taskID uint) (*PracticeProblem, error) {
	const op = "TaskService.PracticeProblem"

	if err := s.ensureTask(ctx, op, userID, taskID); err != nil {
		return nil, err
	}
	p := twoSum
	return &p, nil
}

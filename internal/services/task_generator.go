package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
)

// DefaultPositionTaskCount is used when callers ask for zero tasks.
const DefaultPositionTaskCount = 4

// MaxPositionTaskCount bounds one generation request; each task costs a model call.
const MaxPositionTaskCount = 10

// minDetailRunes is the shortest expanded brief accepted from the model.
const minDetailRunes = 50

const maxTaskTitleRunes = 200

type TaskGenerator interface {
	// GeneratePositionTasks persists up to count position-based tasks for user.
	GeneratePositionTasks(ctx context.Context, user *models.User, position string, count int) ([]models.Task, error)
	// GenerateRemedialTask persists one remedial task targeting weakness.
	GenerateRemedialTask(ctx context.Context, user *models.User, weakness string) (*models.Task, error)
}

type taskGenerator struct {
	tasks pgrepo.TaskRepository
	gw    LLMGateway
	log   *logrus.Logger
}

func NewTaskGenerator(tasks pgrepo.TaskRepository, gw LLMGateway, log *logrus.Logger) TaskGenerator {
	return &taskGenerator{tasks: tasks, gw: gw, log: log}
}

func (g *taskGenerator) GeneratePositionTasks(ctx context.Context, user *models.User, position string, count int) ([]models.Task, error) {
	const op = "TaskGenerator.GeneratePositionTasks"

	position = strings.TrimSpace(position)
	if position == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "请先在个人中心设置目标岗位", nil)
	}
	if count <= 0 {
		count = DefaultPositionTaskCount
	}
	if count > MaxPositionTaskCount {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("一次最多生成%d个任务", MaxPositionTaskCount), nil)
	}

	templates, ok := TemplatesFor(position)
	if !ok {
		templates = g.inventTemplates(ctx, position, count)
	}
	if len(templates) > count {
		templates = templates[:count]
	}

	rows := make([]*models.Task, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, &models.Task{
			UserID:           user.ID,
			TaskType:         models.TaskTypePositionBased,
			Title:            truncateRunes(t.Title, maxTaskTitleRunes),
			Description:      g.expandDescription(ctx, t.Title, t.Description, position),
			PositionCategory: position,
			DifficultyLevel:  models.PositionTaskDifficulty,
			ExperienceReward: models.PositionTaskReward,
			Status:           models.TaskStatusPending,
		})
	}

	if err := g.tasks.Create(ctx, rows...); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save tasks", err)
	}

	out := make([]models.Task, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out, nil
}

func placeholderTemplates(position string, count int) []TaskTemplate {
	out := make([]TaskTemplate, count)
	for i := range out {
		out[i] = TaskTemplate{
			Title:       fmt.Sprintf("%s相关任务%d", position, i+1),
			Description: fmt.Sprintf("学习%s相关内容", position),
		}
	}
	return out
}

func (g *taskGenerator) inventTemplates(ctx context.Context, position string, count int) []TaskTemplate {
	prompt := fmt.Sprintf(`
目标岗位：%s

请生成%d个与该岗位相关的学习任务，每个任务包括：
1. 任务标题
2. 任务描述（具体要做什么，要求详细具体，至少100字）

返回JSON数组格式：
[
    {"title": "任务标题1", "description": "详细的任务描述1"},
    {"title": "任务标题2", "description": "详细的任务描述2"}
]
`, position, count)

	d := askJSON(ctx, g.gw, g.log, models.OpTaskTemplates, llm.Prompt("", prompt, 0.7, 2000), placeholderTemplates(position, count))

	valid := d.Value[:0:0]
	for _, t := range d.Value {
		if strings.TrimSpace(t.Title) != "" {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return placeholderTemplates(position, count)
	}
	return valid
}

// briefKind picks the expansion prompt from the task title.
type briefKind int

const (
	briefGeneral briefKind = iota
	briefAlgorithm
	briefPaper
)

func classifyBrief(title string) briefKind {
	switch {
	case strings.Contains(title, "算法设计"),
		strings.Contains(title, "算法") && strings.Contains(title, "设计"):
		return briefAlgorithm
	case strings.Contains(title, "论文"), strings.Contains(title, "解读"):
		return briefPaper
	}
	return briefGeneral
}

func briefPrompt(title, base, position string) string {
	switch classifyBrief(title) {
	case briefAlgorithm:
		return fmt.Sprintf(`
任务标题：%s
基础描述：%s

请为这个算法设计任务生成一份详细的任务描述，包括：
1. 具体选择一个算法问题（如两数之和、最长递增子序列、Dijkstra算法、快速排序等）
2. 详细说明需要完成的内容：
   - 问题定义和背景
   - 算法思路和设计
   - 步骤拆解
   - 时间复杂度分析
   - 空间复杂度分析
   - 代码实现说明（包括关键代码片段）
3. 输出要求：结构清晰、逻辑严谨的技术文档
4. 语言要求：简洁准确，避免歧义

请直接返回详细的任务描述，不要使用编号或列表格式，用自然语言描述。
`, title, base)
	case briefPaper:
		return fmt.Sprintf(`
任务标题：%s
基础描述：%s

请为这个论文阅读任务生成一份详细的任务描述，包括：
1. 选择一篇真实的计算机科学领域顶会论文（如NeurIPS、ICML、ICLR、CVPR、ACL等）
2. 提供论文的完整信息：
   - 论文标题（真实的论文标题）
   - 作者和发表会议/期刊
   - 论文摘要（200-300字）
   - 核心贡献点（3-5个要点）
   - 主要方法概述（100-200字）
3. 要求用户完成的内容：
   - 深入阅读论文全文
   - 理解论文的创新点和贡献
   - 分析方法的优缺点
   - 撰写解读报告（包括背景、方法、实验、思考）

请直接返回详细的任务描述，包括一篇真实论文的完整信息，不要使用编号或列表格式，用自然语言描述。
`, title, base)
	}
	return fmt.Sprintf(`
任务标题：%s
基础描述：%s
目标岗位：%s

请为这个任务生成一份详细的任务描述，包括：
1. 任务的具体要求和目标
2. 需要完成的具体步骤
3. 输出成果的要求
4. 评估标准

请直接返回详细的任务描述，不要使用编号或列表格式，用自然语言描述，要求详细具体，至少200字。
`, title, base, position)
}

func baseDescription(title, base string) string {
	if strings.TrimSpace(base) != "" {
		return base
	}
	return fmt.Sprintf("完成%s相关任务", title)
}

func (g *taskGenerator) expandDescription(ctx context.Context, title, base, position string) string {
	answer, err := g.gw.Complete(ctx, models.OpTaskDetail, llm.Prompt("", briefPrompt(title, base, position), 0.7, 1000))
	if err != nil {
		return baseDescription(title, base)
	}
	answer = strings.TrimSpace(answer)
	if utf8.RuneCountInString(answer) < minDetailRunes {
		return baseDescription(title, base)
	}
	return answer
}

type remedialPlan struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Resources    []string `json:"resources"`
	Verification string   `json:"verification"`
}

func fallbackRemedialPlan(weakness string) remedialPlan {
	return remedialPlan{
		Title:        fmt.Sprintf("补学任务：%s", weakness),
		Description:  fmt.Sprintf("针对弱点'%s'的专项训练", weakness),
		Resources:    []string{fmt.Sprintf("学习资源1：关于%s", weakness), "练习题：相关练习"},
		Verification: "完成练习并通过验证",
	}
}

func (g *taskGenerator) GenerateRemedialTask(ctx context.Context, user *models.User, weakness string) (*models.Task, error) {
	const op = "TaskGenerator.GenerateRemedialTask"

	weakness = strings.TrimSpace(weakness)
	if weakness == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "weakness is required", nil)
	}
	position := user.PrimaryPosition()

	system := "你是一位专业的学习导师，擅长设计针对性的补学任务。"
	prompt := fmt.Sprintf(`
用户弱点：%s
目标岗位：%s

请生成一个精准的补学任务，包括：
1. 任务标题
2. 任务描述（具体要做什么）
3. 学习资源（3-5个具体的学习点或练习题）
4. 验证方式（如何验证是否掌握）

返回JSON格式：
{
    "title": "任务标题",
    "description": "任务描述",
    "resources": ["资源1", "资源2", ...],
    "verification": "验证方式"
}
`, weakness, position)

	fallback := fallbackRemedialPlan(weakness)
	plan := askJSON(ctx, g.gw, g.log, models.OpRemedialTask, llm.Prompt(system, prompt, 0.6, 2000), fallback).Value
	if strings.TrimSpace(plan.Title) == "" {
		plan.Title = fallback.Title
	}

	task := &models.Task{
		UserID:           user.ID,
		TaskType:         models.TaskTypeRemedial,
		Title:            truncateRunes(plan.Title, maxTaskTitleRunes),
		Description:      plan.Description,
		PositionCategory: position,
		DifficultyLevel:  models.RemedialTaskDifficulty,
		ExperienceReward: models.RemedialTaskReward,
		Status:           models.TaskStatusPending,
	}
	if err := g.tasks.Create(ctx, task); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save remedial task", err)
	}
	return task, nil
}

package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	"golang.org/x/sync/errgroup"
)

// DefaultQuestionCount is the size of a generated question set.
const DefaultQuestionCount = 5

// MaxQuestionCount bounds a requested question set.
const MaxQuestionCount = 20

const (
	facialFallbackLong    = "表情自然，眼神交流良好，整体表现自信。建议保持微笑，增强与面试官的眼神互动。"
	toneFallbackLong      = "语气适中，用词准确，表达清晰。建议在专业术语使用上更加精准，适当增加具体数据支撑。"
	facialFallbackShort   = "表情自然，眼神交流良好，整体表现自信。"
	toneFallbackShort     = "语气适中，用词准确，表达清晰。"
	standardAnswerPending = "标准答案生成中，请稍后查看"
)

// InterviewAnalysis is the scored critique of one answered interview.
type InterviewAnalysis struct {
	Scores     map[string]any `json:"scores"`
	TotalScore float64        `json:"total_score"`
	Weaknesses []string       `json:"weaknesses"`
	Feedback   string         `json:"feedback"`
	Strengths  []string       `json:"strengths"`
}

func fallbackAnalysis(raw string) InterviewAnalysis {
	return InterviewAnalysis{
		Scores: map[string]any{
			"logic":           7.0,
			"clarity":         7.0,
			"professionalism": 7.0,
			"understanding":   7.0,
		},
		TotalScore: 7.0,
		Weaknesses: []string{"需要更清晰的表达"},
		Feedback:   raw,
		Strengths:  []string{},
	}
}

// InterviewAI holds the prompts used around interviews.
type InterviewAI interface {
	Questions(ctx context.Context, taskDescription, position string, count int) []string
	Analyze(ctx context.Context, questions, answers []string, position string) llm.Decoded[InterviewAnalysis]
	// StandardAnswers returns one reference answer per question; failed
	// entries carry a placeholder and ok is false.
	StandardAnswers(ctx context.Context, questions []string, position string) (answers []string, ok bool)
	FacialCommentary(ctx context.Context, answers []string) (string, error)
	ToneCommentary(ctx context.Context, answers []string) (string, error)
}

type interviewAI struct {
	gw  LLMGateway
	log *logrus.Logger
}

func NewInterviewAI(gw LLMGateway, log *logrus.Logger) InterviewAI {
	return &interviewAI{gw: gw, log: log}
}

// splitQuestions keeps lines longer than ten characters, capped at count.
func splitQuestions(raw string, count int) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= 10 {
			continue
		}
		out = append(out, line)
		if len(out) == count {
			break
		}
	}
	return out
}

// CannedQuestions is used when question generation yields nothing.
func CannedQuestions(title string) []string {
	return []string{
		fmt.Sprintf("请介绍一下你在完成'%s'任务时的思路和方法。", title),
		"在完成这个任务的过程中，你遇到了哪些挑战？",
		"如果让你重新完成这个任务，你会如何改进？",
		"这个任务对你的专业技能提升有什么帮助？",
		"请总结一下完成这个任务的关键要点。",
	}
}

func (a *interviewAI) Questions(ctx context.Context, taskDescription, position string, count int) []string {
	if count <= 0 {
		count = DefaultQuestionCount
	}
	system := "你是一位经验丰富的HR，擅长设计针对性的面试问题。"
	prompt := fmt.Sprintf(`
任务描述：%s
目标岗位：%s

请生成%d个针对性面试问题，这些问题要能检验用户是否真正掌握了任务内容。
问题应该包括：
1. 数据/成果验证类问题（如"请用数据说明你的项目成果"）
2. 质疑应对类问题（如"如果HR质疑你简历数据的真实性，你会如何回应"）
3. 深度理解类问题（测试是否真正理解任务内容）

请直接返回问题列表，每行一个问题，不要编号。
`, taskDescription, position, count)

	raw, err := a.gw.Complete(ctx, models.OpInterviewQuestions, llm.Prompt(system, prompt, 0.7, 2000))
	if err != nil {
		return nil
	}
	return splitQuestions(raw, count)
}

func formatQA(questions, answers []string) string {
	n := min(len(questions), len(answers))
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf("Q%d: %s\nA%d: %s\n", i+1, questions[i], i+1, answers[i]))
	}
	return strings.Join(parts, "\n")
}

func formatAnswers(answers []string) string {
	parts := make([]string, 0, len(answers))
	for i, a := range answers {
		parts = append(parts, fmt.Sprintf("回答%d: %s\n", i+1, a))
	}
	return strings.Join(parts, "\n")
}

func (a *interviewAI) Analyze(ctx context.Context, questions, answers []string, position string) llm.Decoded[InterviewAnalysis] {
	system := `你是一位资深的面试官，擅长分析候选人的面试表现。
请从以下维度评估：逻辑清晰度、表达流畅度、专业深度、问题理解度。
给出0-10分的评分，并指出具体弱点和改进建议。`
	prompt := fmt.Sprintf(`
目标岗位：%s

面试问答：
%s

请分析并返回JSON格式：
{
    "scores": {
        "logic": 分数(0-10),
        "clarity": 分数(0-10),
        "professionalism": 分数(0-10),
        "understanding": 分数(0-10)
    },
    "total_score": 总分(0-10),
    "weaknesses": ["弱点1", "弱点2", ...],
    "feedback": "详细反馈文本",
    "strengths": ["优点1", "优点2", ...]
}
`, position, formatQA(questions, answers))

	raw, err := a.gw.Complete(ctx, models.OpInterviewAnalysis, llm.Prompt(system, prompt, 0.3, 2000))
	if err != nil {
		return llm.Decoded[InterviewAnalysis]{Value: fallbackAnalysis(""), Outcome: llm.OutcomeFallback, Err: err}
	}

	d := llm.DecodeJSON(raw, fallbackAnalysis(raw))
	if d.Fallback() {
		a.log.WithError(d.Err).WithField("operation", models.OpInterviewAnalysis).Warn("analysis not valid json, using fallback")
		return d
	}
	if d.Value.Scores == nil {
		d.Value.Scores = map[string]any{}
	}
	if d.Value.Weaknesses == nil {
		d.Value.Weaknesses = []string{}
	}
	if d.Value.Strengths == nil {
		d.Value.Strengths = []string{}
	}
	return d
}

func (a *interviewAI) StandardAnswers(ctx context.Context, questions []string, position string) ([]string, bool) {
	system := "你是一位资深的面试官，擅长提供专业的面试答案参考。"
	out := make([]string, len(questions))
	failed := make([]bool, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, q := range questions {
		g.Go(func() error {
			prompt := fmt.Sprintf(`
目标岗位：%s

面试问题：%s

请提供一个标准答案参考，包括：
1. 核心要点
2. 回答结构
3. 关键示例

请直接返回答案内容，不要编号。
`, position, q)
			ans, err := a.gw.Complete(gctx, models.OpStandardAnswer, llm.Prompt(system, prompt, 0.5, 500))
			if err != nil {
				out[i] = standardAnswerPending
				failed[i] = true
				return nil
			}
			out[i] = strings.TrimSpace(ans)
			return nil
		})
	}
	_ = g.Wait()

	ok := true
	for _, f := range failed {
		if f {
			ok = false
			break
		}
	}
	return out, ok
}

func (a *interviewAI) FacialCommentary(ctx context.Context, answers []string) (string, error) {
	system := "你是一位专业的面试评估专家，擅长分析候选人的非语言表现。"
	prompt := fmt.Sprintf(`
基于以下面试回答，请评估候选人的面部表情表现（假设已通过视频分析）：

%s

请从以下维度评估：
1. 眼神交流
2. 面部表情自然度
3. 自信程度
4. 整体印象

返回评估结果（200字以内）。
`, formatAnswers(answers))

	ans, err := a.gw.Complete(ctx, models.OpFacialEvaluation, llm.Prompt(system, prompt, 0.5, 300))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ans), nil
}

func (a *interviewAI) ToneCommentary(ctx context.Context, answers []string) (string, error) {
	system := "你是一位专业的面试评估专家，擅长分析候选人的语言表达。"
	prompt := fmt.Sprintf(`
基于以下面试回答，请评估候选人的语气和用词：

%s

请从以下维度评估：
1. 语气是否合适（专业、自信、自然）
2. 用词是否准确、专业
3. 表达是否清晰
4. 改进建议

返回评估结果（200字以内）。
`, formatAnswers(answers))

	ans, err := a.gw.Complete(ctx, models.OpToneEvaluation, llm.Prompt(system, prompt, 0.5, 300))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ans), nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yoockh/xiaomian/internal/models"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
)

const recentActivityWindow = 5

// UserContext is the profile snapshot used to personalise prompts.
type UserContext struct {
	User *models.User

	LearningStyle      string
	AITone             string
	CommunicationStyle map[string]any

	InterviewsCount int
	TasksCount      int
	AvgScore        float64

	WeakAreas   []models.AreaStat
	StrongAreas []models.AreaStat
}

// WeakAreaNames returns up to n weak area names.
func (c *UserContext) WeakAreaNames(n int) []string { return areaNames(c.WeakAreas, n) }

func areaNames(areas []models.AreaStat, n int) []string {
	var out []string
	for _, a := range areas {
		if len(out) == n {
			break
		}
		out = append(out, a.Area)
	}
	return out
}

var toneHints = map[string]string{
	"professional": "专业、正式",
	"formal":       "专业、正式",
	"casual":       "轻松、随意",
	"friendly":     "友好、亲切",
}

var verbosityHints = map[string]string{
	"concise":  "简洁",
	"moderate": "适中",
	"detailed": "详细",
}

// profileLines renders the snapshot as the user block of a system prompt.
func (c *UserContext) profileLines() string {
	positions := "未设置"
	if len(c.User.TargetPositions) > 0 {
		positions = strings.Join(c.User.TargetPositions, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "用户信息：\n- 等级：%d (%s)\n- 目标岗位：%s\n", c.User.CurrentLevel, c.User.Title, positions)
	if c.LearningStyle != "" {
		fmt.Fprintf(&b, "- 学习风格：%s\n", c.LearningStyle)
	}
	fmt.Fprintf(&b, "- 近期活动：最近完成%d次面试，最近%d个任务", c.InterviewsCount, c.TasksCount)
	if c.InterviewsCount > 0 {
		fmt.Fprintf(&b, "，面试平均分%.1f", c.AvgScore)
	}
	b.WriteString("\n")
	if names := areaNames(c.StrongAreas, 3); len(names) > 0 {
		fmt.Fprintf(&b, "- 擅长领域：%s\n", strings.Join(names, ", "))
	}

	if tone := c.AITone; tone != "" {
		if hint, ok := toneHints[tone]; ok {
			tone = hint
		}
		fmt.Fprintf(&b, "- 回复语气：%s\n", tone)
	}
	if v, _ := c.CommunicationStyle["verbosity"].(string); verbosityHints[v] != "" {
		fmt.Fprintf(&b, "- 回复详略：%s\n", verbosityHints[v])
	}
	return b.String()
}

type contextLoader struct {
	prefs      pgrepo.PreferenceRepository
	interviews pgrepo.InterviewRepository
	tasks      pgrepo.TaskRepository
}

func (l *contextLoader) load(ctx context.Context, user *models.User) (*UserContext, error) {
	uc := &UserContext{
		User:               user,
		AITone:             "friendly",
		CommunicationStyle: map[string]any{},
	}

	pref, err := l.prefs.Get(ctx, user.ID)
	switch {
	case err == nil:
		uc.LearningStyle = pref.PreferredLearningStyle
		if pref.AITonePreference != "" {
			uc.AITone = pref.AITonePreference
		}
		if pref.CommunicationStyle != nil {
			uc.CommunicationStyle = map[string]any(pref.CommunicationStyle)
		}
		uc.WeakAreas = []models.AreaStat(pref.WeakAreas)
		uc.StrongAreas = []models.AreaStat(pref.StrongAreas)
	case errors.Is(err, utils.ErrNotFound):
	default:
		return nil, err
	}

	interviews, err := l.interviews.RecentCompleted(ctx, user.ID, recentActivityWindow)
	if err != nil {
		return nil, err
	}
	tasks, err := l.tasks.Recent(ctx, user.ID, recentActivityWindow)
	if err != nil {
		return nil, err
	}

	uc.InterviewsCount = len(interviews)
	uc.TasksCount = len(tasks)
	if len(interviews) > 0 {
		var sum float64
		for i := range interviews {
			sum += interviews[i].Score()
		}
		uc.AvgScore = sum / float64(len(interviews))
	}
	return uc, nil
}

// present reports whether a parsed résumé field carries any data.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// describe renders a parsed résumé field as prompt text. Lists are joined
// with ", " after keeping at most limit entries (0 keeps all).
func describe(v any, limit int) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if limit > 0 && len(t) > limit {
			t = t[:limit]
		}
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, describe(e, 0))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		parts := make([]string, 0, len(t))
		for k, e := range t {
			parts = append(parts, fmt.Sprintf("%s: %s", k, describe(e, 0)))
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}

// resumeLines is the short résumé digest shared by chat and question prompts.
// expLimit and skillLimit cap the listed experience entries and skills.
func resumeLines(p models.ParsedResume, expLimit, skillLimit int) []string {
	var out []string
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		out = append(out, "姓名："+*p.Name)
	}
	if present(p.Education) {
		out = append(out, "教育背景："+describe(p.Education, 0))
	}
	if present(p.Experience) {
		out = append(out, "工作经历："+describe(p.Experience, expLimit))
	}
	if len(p.Skills) > 0 {
		skills := p.Skills
		if skillLimit > 0 && len(skills) > skillLimit {
			skills = skills[:skillLimit]
		}
		out = append(out, "技能："+strings.Join(skills, ", "))
	}
	return out
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
)

const (
	styleSampleWindow = 20
	styleSampleSize   = 10
	emptyLearningPlan = "建议先完成基础学习任务，建立知识体系。"
)

type LearningPath struct {
	RecommendedTasks []string `json:"recommended_tasks"`
	FocusAreas       []string `json:"focus_areas"`
	LearningPlan     string   `json:"learning_plan"`
}

// UserStyle describes how a user writes, as judged from recent messages.
type UserStyle struct {
	Tone       string   `json:"tone"`
	Formality  int      `json:"formality"`
	Verbosity  string   `json:"verbosity"`
	KeyPhrases []string `json:"key_phrases"`
}

func defaultUserStyle() UserStyle {
	return UserStyle{Tone: "friendly", Formality: 3, Verbosity: "moderate", KeyPhrases: []string{}}
}

// AdaptTone picks the assistant tone that mirrors style.
func AdaptTone(style UserStyle, base string) string {
	switch {
	case style.Tone == "formal" || style.Formality >= 4:
		return "professional"
	case style.Tone == "casual" || style.Formality <= 2:
		return "casual"
	}
	return base
}

type StyleAnalysis struct {
	Style  UserStyle `json:"style"`
	AITone string    `json:"ai_tone"`
}

type PersonalizationService interface {
	LearningPath(ctx context.Context, userID uint) (*LearningPath, error)
	// AnalyzeStyle studies the user's recent chat messages and stores the
	// matching assistant tone. Users with no messages get nil.
	AnalyzeStyle(ctx context.Context, userID uint) (*StyleAnalysis, error)
}

type personalizationService struct {
	prefs pgrepo.PreferenceRepository
	chats pgrepo.ChatRepository
	gw    LLMGateway
	log   *logrus.Logger
}

func NewPersonalizationService(prefs pgrepo.PreferenceRepository, chats pgrepo.ChatRepository, gw LLMGateway, log *logrus.Logger) PersonalizationService {
	return &personalizationService{prefs: prefs, chats: chats, gw: gw, log: log}
}

func (s *personalizationService) LearningPath(ctx context.Context, userID uint) (*LearningPath, error) {
	const op = "PersonalizationService.LearningPath"

	empty := &LearningPath{RecommendedTasks: []string{}, FocusAreas: []string{}, LearningPlan: emptyLearningPlan}

	pref, err := s.prefs.Get(ctx, userID)
	if errors.Is(err, utils.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load preferences", err)
	}
	if len(pref.WeakAreas) == 0 {
		return empty, nil
	}

	areas := append([]models.AreaStat(nil), pref.WeakAreas...)
	sort.SliceStable(areas, func(i, j int) bool { return areas[i].Score < areas[j].Score })
	if len(areas) > 3 {
		areas = areas[:3]
	}
	focus := make([]string, len(areas))
	for i, a := range areas {
		focus[i] = a.Area
	}

	plan := fmt.Sprintf(`
基于你的学习表现，建议重点关注以下领域：
%s

学习建议：
1. 优先完成%s相关的学习任务
2. 多进行模拟面试练习
3. 针对薄弱点进行专项训练
`, strings.Join(focus, ", "), focus[0])

	return &LearningPath{RecommendedTasks: focus, FocusAreas: focus, LearningPlan: plan}, nil
}

func (s *personalizationService) AnalyzeStyle(ctx context.Context, userID uint) (*StyleAnalysis, error) {
	const op = "PersonalizationService.AnalyzeStyle"

	msgs, err := s.chats.RecentUserMessages(ctx, userID, styleSampleWindow)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load messages", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	if len(msgs) > styleSampleSize {
		msgs = msgs[:styleSampleSize]
	}
	samples := make([]string, len(msgs))
	for i, m := range msgs {
		samples[i] = m.Content
	}

	system := "你是一位专业的文本分析专家，擅长分析语言风格。"
	prompt := fmt.Sprintf(`
分析以下用户文本的语气和措辞特点：

%s

请返回JSON格式：
{
    "tone": "语气特点（formal/casual/friendly/professional）",
    "formality": "正式程度（1-5）",
    "verbosity": "详细程度（concise/moderate/detailed）",
    "key_phrases": ["用户常用的短语或表达方式"]
}
`, strings.Join(samples, "\n"))

	style := askJSON(ctx, s.gw, s.log, models.OpStyleAnalysis, llm.Prompt(system, prompt, 0.3, 1000), defaultUserStyle()).Value
	if style.KeyPhrases == nil {
		style.KeyPhrases = []string{}
	}

	var tone string
	_, err = s.prefs.Mutate(ctx, userID, func(p *models.UserPreference) {
		base := p.AITonePreference
		if base == "" {
			base = "friendly"
		}
		tone = AdaptTone(style, base)
		p.AITonePreference = tone
		if p.CommunicationStyle == nil {
			p.CommunicationStyle = map[string]any{}
		}
		p.CommunicationStyle["tone"] = style.Tone
		p.CommunicationStyle["formality"] = style.Formality
		p.CommunicationStyle["verbosity"] = style.Verbosity
		p.CommunicationStyle["key_phrases"] = style.KeyPhrases
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save preferences", err)
	}
	return &StyleAnalysis{Style: style, AITone: tone}, nil
}

package services

import (
	"context"
	"strings"
	"testing"

	"github.com/yoockh/xiaomian/internal/logger"
	"github.com/yoockh/xiaomian/internal/models"
)

func TestLearningPath(t *testing.T) {
	prefs := newFakePrefs()
	svc := NewPersonalizationService(prefs, newFakeChats(), newFakeGateway(), logger.Discard())

	empty, err := svc.LearningPath(context.Background(), 1)
	if err != nil {
		t.Fatalf("LearningPath: %v", err)
	}
	if empty.LearningPlan != emptyLearningPlan || empty.FocusAreas == nil {
		t.Fatalf("unexpected empty path %+v", empty)
	}

	_, _ = prefs.Mutate(context.Background(), 1, func(p *models.UserPreference) {
		p.WeakAreas = []models.AreaStat{
			{Area: "表达", Score: 6},
			{Area: "算法", Score: 3},
			{Area: "网络", Score: 5},
			{Area: "数据库", Score: 4},
		}
	})
	got, err := svc.LearningPath(context.Background(), 1)
	if err != nil {
		t.Fatalf("LearningPath: %v", err)
	}
	want := []string{"算法", "数据库", "网络"}
	if strings.Join(got.FocusAreas, ",") != strings.Join(want, ",") {
		t.Fatalf("focus = %v, want %v", got.FocusAreas, want)
	}
	if !strings.Contains(got.LearningPlan, "优先完成算法相关的学习任务") {
		t.Fatalf("plan = %q", got.LearningPlan)
	}
}

func TestAdaptTone(t *testing.T) {
	tests := []struct {
		name  string
		style UserStyle
		want  string
	}{
		{"formal", UserStyle{Tone: "formal", Formality: 3}, "professional"},
		{"high formality", UserStyle{Tone: "friendly", Formality: 5}, "professional"},
		{"casual", UserStyle{Tone: "casual", Formality: 3}, "casual"},
		{"low formality", UserStyle{Tone: "friendly", Formality: 1}, "casual"},
		{"neutral keeps base", UserStyle{Tone: "friendly", Formality: 3}, "encouraging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdaptTone(tt.style, "encouraging"); got != tt.want {
				t.Fatalf("AdaptTone = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzeStyle(t *testing.T) {
	prefs := newFakePrefs()
	chats := newFakeChats()
	gw := newFakeGateway()
	svc := NewPersonalizationService(prefs, chats, gw, logger.Discard())

	got, err := svc.AnalyzeStyle(context.Background(), 1)
	if err != nil || got != nil {
		t.Fatalf("no messages: got %+v, %v", got, err)
	}

	_ = chats.AppendMessages(context.Background(), "s1", testNow,
		&models.ChatMessage{UserID: 1, SessionID: "s1", Role: models.MessageRoleUser, Content: "哈哈 来点简单的"},
		&models.ChatMessage{UserID: 1, SessionID: "s1", Role: models.MessageRoleAssistant, Content: "好的"},
	)
	gw.on(models.OpStyleAnalysis, `{"tone":"casual","formality":2,"verbosity":"concise","key_phrases":["哈哈"]}`)

	got, err = svc.AnalyzeStyle(context.Background(), 1)
	if err != nil {
		t.Fatalf("AnalyzeStyle: %v", err)
	}
	if got.AITone != "casual" || got.Style.Verbosity != "concise" {
		t.Fatalf("unexpected analysis %+v", got)
	}
	pref, _ := prefs.Get(context.Background(), 1)
	if pref.AITonePreference != "casual" || pref.CommunicationStyle["verbosity"] != "concise" {
		t.Fatalf("preference not updated: %+v", pref)
	}
	prompt := gw.reqs[models.OpStyleAnalysis][0].Messages[0].Content
	if strings.Contains(prompt, "好的") {
		t.Fatal("assistant messages leaked into the style sample")
	}
}

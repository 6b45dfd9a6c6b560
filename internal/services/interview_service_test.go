package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/yoockh/xiaomian/internal/logger"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/stt"
	"github.com/yoockh/xiaomian/internal/utils"
)

type fakeSpeech struct {
	lang string
	err  error
}

func (f *fakeSpeech) Transcribe(_ context.Context, _ []byte, _ stt.Format, language string) (stt.Transcript, error) {
	f.lang = language
	if f.err != nil {
		return stt.Transcript{}, f.err
	}
	return stt.Transcript{Text: "我负责了订单服务的拆分", Confidence: 0.92}, nil
}

func (f *fakeSpeech) Close() error { return nil }

type interviewFixture struct {
	svc        *interviewService
	interviews *fakeInterviews
	tasks      *fakeTasks
	gw         *fakeGateway
}

func newInterviewFixture(speech stt.Provider) *interviewFixture {
	log := logger.Discard()
	users := newFakeUsers(&models.User{ID: 1, TargetPositions: []string{"后端开发工程师"}})
	interviews := newFakeInterviews()
	tasks := newFakeTasks(users, interviews)
	gw := newFakeGateway()
	svc := NewInterviewService(interviews, users, NewInterviewAI(gw, log), NewTaskGenerator(tasks, gw, log), speech, "zh-CN", log).(*interviewService)
	svc.now = func() time.Time { return testNow }
	return &interviewFixture{svc: svc, interviews: interviews, tasks: tasks, gw: gw}
}

func (f *interviewFixture) pending(t *testing.T, questions ...string) *models.Interview {
	t.Helper()
	iv := &models.Interview{UserID: 1, InterviewType: models.InterviewTypeStageBased, Questions: questions, Status: models.InterviewStatusPending}
	if err := f.interviews.Create(context.Background(), iv); err != nil {
		t.Fatal(err)
	}
	return iv
}

func TestAlignAnswers(t *testing.T) {
	got := alignAnswers(3, []SubmittedAnswer{
		{QuestionID: 2, Answer: "c"},
		{QuestionID: 0, Answer: "a"},
		{QuestionID: 7, Answer: "ignored"},
		{QuestionID: -1, Answer: "ignored"},
	})
	if want := []string{"a", "", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("alignAnswers = %q, want %q", got, want)
	}
}

func TestSubmitScoresAndCapsRemedialTasks(t *testing.T) {
	f := newInterviewFixture(nil)
	iv := f.pending(t, "介绍一下你做过的项目", "如何设计一个限流器")
	f.gw.on(models.OpInterviewAnalysis, `{"scores":{"logic":6},"total_score":6.5,"weaknesses":["缓存","并发","数据库索引","网络"],"feedback":"整体不错","strengths":["表达清晰"]}`)
	f.gw.on(models.OpStandardAnswer, "参考答案")

	res, err := f.svc.Submit(context.Background(), 1, iv.ID, []SubmittedAnswer{{QuestionID: 0, Answer: "订单系统"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Interview.TotalScore != 6.5 || res.Interview.Feedback != "整体不错" {
		t.Fatalf("unexpected score %+v", res.Interview)
	}
	if !reflect.DeepEqual(res.StandardAnswers, []string{"参考答案", "参考答案"}) {
		t.Fatalf("standard answers = %q", res.StandardAnswers)
	}
	if res.Facial != utils.FormatFeedback(facialFallbackLong) || res.Tone != utils.FormatFeedback(toneFallbackLong) {
		t.Fatalf("commentary fallbacks not applied: %q / %q", res.Facial, res.Tone)
	}
	if len(res.RemedialTasks) != MaxRemedialTasks {
		t.Fatalf("got %d remedial tasks, want %d", len(res.RemedialTasks), MaxRemedialTasks)
	}
	if r := res.RemedialTasks[0]; r.Title != "补学任务：缓存" || r.Weakness != "缓存" {
		t.Fatalf("unexpected remedial task %+v", r)
	}

	stored, _ := f.interviews.GetForUser(context.Background(), 1, iv.ID)
	if stored.Status != models.InterviewStatusCompleted || stored.Score() != 6.5 {
		t.Fatalf("interview not stored as completed: %+v", stored)
	}
	if !reflect.DeepEqual([]string(stored.Answers), []string{"订单系统", ""}) {
		t.Fatalf("answers = %q", stored.Answers)
	}
	remedial, _ := f.tasks.ListByUser(context.Background(), 1, "")
	if len(remedial) != MaxRemedialTasks || remedial[0].TaskType != models.TaskTypeRemedial {
		t.Fatalf("remedial tasks not stored: %+v", remedial)
	}

	f.gw.on(models.OpInterviewAnalysis, `{"total_score":1,"weaknesses":[],"feedback":"重写"}`)
	_, err = f.svc.Submit(context.Background(), 1, iv.ID, []SubmittedAnswer{{QuestionID: 0, Answer: "另一个回答"}})
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("resubmit: got %v, want conflict", err)
	}
	again, _ := f.interviews.GetForUser(context.Background(), 1, iv.ID)
	if again.Score() != 6.5 || again.AIFeedback != stored.AIFeedback || !reflect.DeepEqual(again.Answers, stored.Answers) {
		t.Fatalf("resubmit changed the stored interview: %+v", again)
	}
	if after, _ := f.tasks.ListByUser(context.Background(), 1, ""); len(after) != MaxRemedialTasks {
		t.Fatalf("resubmit created tasks: %d", len(after))
	}
}

func TestSubmitWithEveryModelCallFailing(t *testing.T) {
	f := newInterviewFixture(nil)
	iv := f.pending(t, "问题一")

	res, err := f.svc.Submit(context.Background(), 1, iv.ID, []SubmittedAnswer{{QuestionID: 0, Answer: "回答"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Interview.TotalScore != 7.0 {
		t.Fatalf("fallback score = %v", res.Interview.TotalScore)
	}
	if !reflect.DeepEqual(res.StandardAnswers, []string{standardAnswerPending}) {
		t.Fatalf("standard answers = %q", res.StandardAnswers)
	}
	if len(res.RemedialTasks) != 1 || res.RemedialTasks[0].Weakness != "需要更清晰的表达" {
		t.Fatalf("remedial tasks = %+v", res.RemedialTasks)
	}
}

func TestSubmitUnknownInterview(t *testing.T) {
	f := newInterviewFixture(nil)
	_, err := f.svc.Submit(context.Background(), 1, 99, nil)
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestFeedbackRequiresCompletedInterview(t *testing.T) {
	f := newInterviewFixture(nil)
	iv := f.pending(t, "问题一")

	if _, err := f.svc.Feedback(context.Background(), 1, iv.ID); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("open interview: got %v", err)
	}

	if _, err := f.svc.Submit(context.Background(), 1, iv.ID, []SubmittedAnswer{{QuestionID: 0, Answer: "回答"}}); err != nil {
		t.Fatal(err)
	}
	fb, err := f.svc.Feedback(context.Background(), 1, iv.ID)
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if fb.Facial != facialFallbackShort || fb.Tone != toneFallbackShort {
		t.Fatalf("short fallbacks not used: %+v", fb)
	}
	if !reflect.DeepEqual(fb.StandardAnswers, []string{standardAnswerPending}) {
		t.Fatalf("standard answers = %q", fb.StandardAnswers)
	}
}

func TestCreateInterview(t *testing.T) {
	f := newInterviewFixture(nil)

	if _, err := f.svc.Create(context.Background(), 1, CreateInterviewInput{}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("empty input: got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), 1, CreateInterviewInput{TaskDescription: "学习Redis"}); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("generation failure: got %v", err)
	}

	iv, err := f.svc.Create(context.Background(), 1, CreateInterviewInput{Questions: []string{" 问题A ", "", "问题B"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !reflect.DeepEqual([]string(iv.Questions), []string{"问题A", "问题B"}) || iv.Status != models.InterviewStatusPending {
		t.Fatalf("unexpected interview %+v", iv)
	}
}

func TestTranscribe(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		f := newInterviewFixture(nil)
		_, err := f.svc.Transcribe(context.Background(), 1, 1, 0, "a.wav", []byte("x"), "")
		if !utils.IsCode(err, utils.CodeUnavailable) {
			t.Fatalf("got %v", err)
		}
	})

	speech := &fakeSpeech{}
	f := newInterviewFixture(speech)
	iv := f.pending(t, "问题一")

	tests := []struct {
		name       string
		file       string
		questionID int
		code       utils.Code
	}{
		{"bad format", "a.mp4", 0, utils.CodeInvalidArgument},
		{"bad question", "a.wav", 3, utils.CodeInvalidArgument},
		{"ok", "a.wav", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Transcribe(context.Background(), 1, iv.ID, tt.questionID, tt.file, []byte("RIFF"), "zh")
			if tt.code != "" {
				if !utils.IsCode(err, tt.code) {
					t.Fatalf("got %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			if got.Text == "" || speech.lang != "zh-CN" {
				t.Fatalf("unexpected transcript %+v (lang %q)", got, speech.lang)
			}
		})
	}

	speech.err = errors.New("quota")
	if _, err := f.svc.Transcribe(context.Background(), 1, iv.ID, 0, "a.wav", []byte("RIFF"), ""); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("provider failure: got %v", err)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct{ in, fallback, want string }{
		{"zh", "", "zh-CN"},
		{"en", "", "en-US"},
		{"", "en-US", "en-US"},
		{"", "", "zh-CN"},
		{"ja-JP", "", "ja-JP"},
	}
	for _, tt := range tests {
		if got := normalizeLanguage(tt.in, tt.fallback); got != tt.want {
			t.Errorf("normalizeLanguage(%q, %q) = %q, want %q", tt.in, tt.fallback, got, tt.want)
		}
	}
}

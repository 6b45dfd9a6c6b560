package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/api/handlers"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/services"
	"github.com/yoockh/xiaomian/internal/utils"
)

// stubAuth accepts "admin-token" and "user-token".
type stubAuth struct {
	positions []string
}

func (s *stubAuth) Authenticate(_ context.Context, raw string) (*models.User, error) {
	switch raw {
	case "admin-token":
		return &models.User{ID: 1, Email: "admin@example.com", Role: models.RoleAdmin}, nil
	case "user-token":
		return &models.User{ID: 2, Email: "user@example.com", Role: models.RoleUser}, nil
	}
	return nil, utils.E(utils.CodeUnauthorized, "stub", "无效的认证凭据", nil)
}

func (s *stubAuth) Register(context.Context, services.RegisterInput) (*services.Token, error) {
	return nil, utils.E(utils.CodeConflict, "stub", "邮箱已被注册", nil)
}

func (s *stubAuth) Login(_ context.Context, email, _ string) (*services.Token, error) {
	if email != "user@example.com" {
		return nil, utils.E(utils.CodeUnauthorized, "stub", "邮箱或密码错误", nil)
	}
	return &services.Token{AccessToken: "user-token", TokenType: "bearer"}, nil
}

func (s *stubAuth) Me(_ context.Context, userID uint) (*services.Profile, error) {
	return &services.Profile{ID: userID, TargetPositions: []string{}, Benefits: map[string]any{}}, nil
}

func (s *stubAuth) UpdatePositions(_ context.Context, _ uint, positions []string) ([]string, error) {
	s.positions = positions
	return positions, nil
}

type stubRAG struct {
	populated []string
}

func (s *stubRAG) Search(context.Context, string, int) ([]models.KnowledgeSource, error) {
	return nil, nil
}

func (s *stubRAG) Ask(_ context.Context, _ uint, q, _ string) (*services.Answer, error) {
	return &services.Answer{Answer: "答：" + q, Sources: []models.KnowledgeSource{}}, nil
}

func (s *stubRAG) GenerateQuestions(_ context.Context, _ uint, desc string, count int) ([]string, error) {
	if desc == "" {
		return nil, utils.E(utils.CodeInvalidArgument, "stub", "任务描述不能为空", nil)
	}
	return []string{desc, strings.Repeat("?", count)}, nil
}

func (s *stubRAG) AddKnowledge(_ context.Context, in services.KnowledgeInput) (*models.KnowledgeBase, error) {
	return &models.KnowledgeBase{ID: 7, Title: in.Title}, nil
}

func (s *stubRAG) Populate(_ context.Context, positions []string) (int, error) {
	s.populated = positions
	return 2 * len(positions), nil
}

type stubPersonal struct{}

func (stubPersonal) LearningPath(context.Context, uint) (*services.LearningPath, error) {
	return &services.LearningPath{RecommendedTasks: []string{}, FocusAreas: []string{}}, nil
}

func (stubPersonal) AnalyzeStyle(context.Context, uint) (*services.StyleAnalysis, error) {
	return nil, nil
}

// stubTasks overrides the task operations exercised over HTTP; the embedded
// nil interface covers the rest.
type stubTasks struct {
	services.TaskService
}

func (stubTasks) Complete(_ context.Context, _ uint, taskID uint) (*services.TaskCompletion, error) {
	done := services.TaskCompletion{
		Task:     models.Task{ID: taskID, Title: "Redis缓存设计", ExperienceReward: 20},
		NewLevel: 2,
	}
	switch taskID {
	case 1:
		done.Interview = &models.Interview{ID: 9}
		done.Questions = []string{"q1", "q2"}
	case 2:
		done.InterviewErr = errors.New("insert failed")
	case 3:
	default:
		return nil, utils.E(utils.CodeConflict, "stub", "任务已完成", nil)
	}
	return &done, nil
}

func (stubTasks) GeneratePositionTasks(_ context.Context, _ uint, count int) ([]models.Task, error) {
	if count > services.MaxPositionTaskCount {
		return nil, utils.E(utils.CodeInvalidArgument, "stub", "一次最多生成10个任务", nil)
	}
	return make([]models.Task, count), nil
}

type stubInterviews struct {
	services.InterviewService
	answers []services.SubmittedAnswer
}

func (s *stubInterviews) Submit(_ context.Context, _ uint, id uint, answers []services.SubmittedAnswer) (*services.SubmitResult, error) {
	if id != 4 {
		return nil, utils.E(utils.CodeConflict, "stub", "面试已完成", nil)
	}
	s.answers = answers
	return &services.SubmitResult{
		Interview:       services.ScoredInterview{ID: id, TotalScore: 6.5, Weaknesses: []string{"缓存"}},
		StandardAnswers: []string{"参考答案"},
		Facial:          "表情自然",
		Tone:            "语气平稳",
	}, nil
}

func newTestEngine() (*gin.Engine, *stubAuth, *stubRAG) {
	r, authSvc, rag, _ := newTestEngineWithInterviews()
	return r, authSvc, rag
}

func newTestEngineWithInterviews() (*gin.Engine, *stubAuth, *stubRAG, *stubInterviews) {
	gin.SetMode(gin.TestMode)
	authSvc := &stubAuth{}
	rag := &stubRAG{}
	interviews := &stubInterviews{}

	r := gin.New()
	RegisterRoutes(r, Deps{
		Authn:     authSvc,
		System:    handlers.NewSystemHandler("1.0.0"),
		Auth:      handlers.NewAuthHandler(authSvc),
		Task:      handlers.NewTaskHandler(stubTasks{}),
		Interview: handlers.NewInterviewHandler(interviews, 1<<20),
		Chat:      handlers.NewChatHandler(nil),
		Resume:    handlers.NewResumeHandler(nil, 1<<20),
		AI:        handlers.NewAIHandler(rag, stubPersonal{}),
	})
	return r, authSvc, rag, interviews
}

func do(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestPublicRoutes(t *testing.T) {
	r, _, _ := newTestEngine()

	w := do(r, http.MethodGet, "/", "", "")
	if w.Code != http.StatusOK || decode(t, w)["version"] != "1.0.0" {
		t.Fatalf("root: %d %s", w.Code, w.Body)
	}
	w = do(r, http.MethodGet, "/api/health", "", "")
	if w.Code != http.StatusOK || decode(t, w)["status"] != "healthy" {
		t.Fatalf("health: %d %s", w.Code, w.Body)
	}
}

func TestAuthRoutes(t *testing.T) {
	r, authSvc, _ := newTestEngine()

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"register conflict", http.MethodPost, "/api/auth/register", "", `{"username":"a"}`, http.StatusConflict, "CONFLICT"},
		{"register bad json", http.MethodPost, "/api/auth/register", "", `{`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"login missing field", http.MethodPost, "/api/auth/login", "", `{"email":"user@example.com"}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"login wrong user", http.MethodPost, "/api/auth/login", "", `{"email":"x@example.com","password":"p"}`, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"login ok", http.MethodPost, "/api/auth/login", "", `{"email":"user@example.com","password":"p"}`, http.StatusOK, ""},
		{"me without token", http.MethodGet, "/api/auth/me", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"me with bad token", http.MethodGet, "/api/auth/me", "nope", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"me ok", http.MethodGet, "/api/auth/me", "user-token", "", http.StatusOK, ""},
		{"update positions", http.MethodPut, "/api/auth/update-positions", "user-token", `{"target_positions":["产品经理"]}`, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.token, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body)
			}
			if tt.wantCode != "" {
				if got := decode(t, w)["code"]; got != tt.wantCode {
					t.Fatalf("code = %v, want %s", got, tt.wantCode)
				}
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatal("missing WWW-Authenticate header")
			}
		})
	}
	if len(authSvc.positions) != 1 {
		t.Fatalf("positions = %v", authSvc.positions)
	}
}

func TestMissingTokenMessage(t *testing.T) {
	r, _, _ := newTestEngine()

	w := do(r, http.MethodGet, "/api/tasks", "", "")
	if w.Code != http.StatusUnauthorized || decode(t, w)["message"] != "未提供认证凭据" {
		t.Fatalf("got %d %s", w.Code, w.Body)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("basic auth accepted: %d", w.Code)
	}
}

func TestBadPathID(t *testing.T) {
	r, _, _ := newTestEngine()

	for _, path := range []string{"/api/tasks/abc", "/api/tasks/0", "/api/interviews/-1"} {
		w := do(r, http.MethodGet, path, "user-token", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestAIRoutes(t *testing.T) {
	r, _, _ := newTestEngine()

	w := do(r, http.MethodPost, "/api/ai/ask", "user-token", `{"question":"什么是索引"}`)
	if w.Code != http.StatusOK || decode(t, w)["answer"] != "答：什么是索引" {
		t.Fatalf("ask: %d %s", w.Code, w.Body)
	}

	w = do(r, http.MethodPost, "/api/ai/generate-questions?task_description=Redis&count=2", "user-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("query form: %d %s", w.Code, w.Body)
	}
	w = do(r, http.MethodPost, "/api/ai/generate-questions", "user-token", `{"task_description":"Kafka","count":1}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Kafka") {
		t.Fatalf("json form: %d %s", w.Code, w.Body)
	}
	w = do(r, http.MethodPost, "/api/ai/generate-questions", "user-token", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing description: %d", w.Code)
	}

	w = do(r, http.MethodPost, "/api/ai/analyze-style", "user-token", "")
	if w.Code != http.StatusOK || decode(t, w)["message"] != "暂无对话记录，无法分析风格" {
		t.Fatalf("analyze-style: %d %s", w.Code, w.Body)
	}
}

func TestKnowledgeRoutesRequireAdmin(t *testing.T) {
	r, _, rag := newTestEngine()

	w := do(r, http.MethodPost, "/api/ai/knowledge", "user-token", `{"title":"t","content":"c"}`)
	if w.Code != http.StatusForbidden || decode(t, w)["code"] != "FORBIDDEN" {
		t.Fatalf("user add knowledge: %d %s", w.Code, w.Body)
	}

	w = do(r, http.MethodPost, "/api/ai/knowledge", "admin-token", `{"title":"t","content":"c"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("admin add knowledge: %d %s", w.Code, w.Body)
	}

	w = do(r, http.MethodPost, "/api/ai/knowledge/populate", "admin-token", `{"positions":["产品经理"]}`)
	if w.Code != http.StatusOK || decode(t, w)["message"] != "已添加2条知识" {
		t.Fatalf("populate: %d %s", w.Code, w.Body)
	}
	if len(rag.populated) != 1 {
		t.Fatalf("populated = %v", rag.populated)
	}

	w = do(r, http.MethodPost, "/api/ai/knowledge/populate", "admin-token", "")
	if w.Code != http.StatusOK {
		t.Fatalf("populate without body: %d %s", w.Code, w.Body)
	}
}

func TestCompleteTaskResponse(t *testing.T) {
	r, _, _ := newTestEngine()

	tests := []struct {
		name        string
		path        string
		status      int
		message     string
		interviewID any
		questions   int
	}{
		{"with interview", "/api/tasks/1/complete", http.StatusOK, "任务完成！已生成关联面试", float64(9), 2},
		{"interview failed", "/api/tasks/2/complete", http.StatusOK, "任务已完成，但生成面试时出现错误", nil, 0},
		{"custom task", "/api/tasks/3/complete", http.StatusOK, "任务完成", nil, 0},
		{"already completed", "/api/tasks/8/complete", http.StatusConflict, "任务已完成", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tt.path, "user-token", "")
			if w.Code != tt.status {
				t.Fatalf("status %d: %s", w.Code, w.Body)
			}
			body := decode(t, w)
			if body["message"] != tt.message {
				t.Fatalf("message = %v", body["message"])
			}
			if tt.status != http.StatusOK {
				return
			}
			if body["interview_id"] != tt.interviewID {
				t.Fatalf("interview_id = %v, want %v", body["interview_id"], tt.interviewID)
			}
			qs, _ := body["questions"].([]any)
			if len(qs) != tt.questions {
				t.Fatalf("questions = %v", body["questions"])
			}
			task := body["task"].(map[string]any)
			if task["new_level"] != float64(2) || task["experience_reward"] != float64(20) {
				t.Fatalf("task = %v", task)
			}
		})
	}
}

func TestGeneratePositionTasksCount(t *testing.T) {
	r, _, _ := newTestEngine()

	tests := []struct {
		query  string
		status int
	}{
		{"", http.StatusOK},
		{"?count=10", http.StatusOK},
		{"?count=11", http.StatusBadRequest},
		{"?count=0", http.StatusBadRequest},
		{"?count=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(r, http.MethodPost, "/api/tasks/generate-position-tasks"+tt.query, "user-token", "")
		if w.Code != tt.status {
			t.Errorf("count %q: status %d, want %d (%s)", tt.query, w.Code, tt.status, w.Body)
		}
	}
}

func TestSubmitInterviewResponse(t *testing.T) {
	r, _, _, interviews := newTestEngineWithInterviews()

	w := do(r, http.MethodPost, "/api/interviews/4/submit", "user-token", `{"answers":[{"question_id":0,"answer":"订单系统"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	if len(interviews.answers) != 1 || interviews.answers[0].Answer != "订单系统" {
		t.Fatalf("answers not forwarded: %+v", interviews.answers)
	}
	body := decode(t, w)
	iv := body["interview"].(map[string]any)
	if iv["total_score"] != 6.5 || body["tone_evaluation"] != "语气平稳" || body["facial_expression_evaluation"] != "表情自然" {
		t.Fatalf("unexpected body %v", body)
	}
	if rt, ok := body["remedial_tasks"].([]any); !ok || len(rt) != 0 {
		t.Fatalf("remedial_tasks = %v, want an empty list", body["remedial_tasks"])
	}

	w = do(r, http.MethodPost, "/api/interviews/5/submit", "user-token", `{"answers":[]}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("resubmit: %d %s", w.Code, w.Body)
	}
}

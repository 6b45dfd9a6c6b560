package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
	"gorm.io/datatypes"
)

const (
	historyWindow    = 10
	promptTurns      = 6
	HistoryPageLimit = 20
	minParagraphRune = 50

	chatApology     = "抱歉，我暂时无法处理这个问题，请稍后再试。"
	msgSessionGone  = "会话不存在"
	defaultSession  = "未命名会话"
	IntentError     = "error"
	singleReplyRule = "\n\n重要：请只返回一条完整的回复，不要分段或多条消息。"
)

var defaultGreetings = map[models.ContextType]string{
	models.ContextGeneral:      `你好！我是你的AI助手"小面"，有什么可以帮你的吗？`,
	models.ContextLearning:     `欢迎进入学习模块！我是你的学习导师"学小面"。在这里，我会为你系统地讲解核心知识点，布置有针对性的学习任务，并提供练习题来巩固掌握程度。你现在想学习哪个方向的内容呢？`,
	models.ContextPersonalized: `欢迎进入个性化模块！我是你的个性化面试顾问"个小面"。在这里，我会基于你的简历提供个性化的面试建议和针对性问题。请先上传你的简历，让我为你定制专属的面试训练方案。`,
}

// Recommendation is a UI card suggested next to an assistant reply.
type Recommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Path        string `json:"path,omitempty"`
	Area        string `json:"area,omitempty"`
}

type ChatReply struct {
	Response         string           `json:"response"`
	SessionID        string           `json:"session_id"`
	Intent           string           `json:"intent"`
	Recommendations  []Recommendation `json:"recommendations"`
	SuggestedActions []string         `json:"suggested_actions"`
}

type ChatGreeting struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type FeedbackInput struct {
	FeedbackType string         `json:"feedback_type"`
	Content      string         `json:"content"`
	Rating       *int           `json:"rating"`
	Metadata     map[string]any `json:"metadata"`
}

type ChatService interface {
	// SendMessage answers one user message. An empty sessionID resolves the
	// caller's current session for contextType.
	SendMessage(ctx context.Context, userID uint, message, sessionID string, contextType models.ContextType) (*ChatReply, error)
	Greeting(ctx context.Context, userID uint, contextType models.ContextType) (*ChatGreeting, error)
	History(ctx context.Context, userID uint, sessionID string) ([]models.ChatMessage, error)
	Sessions(ctx context.Context, userID uint, contextType string) ([]models.ChatSession, error)
	SaveSession(ctx context.Context, userID uint, sessionID, name string) error
	Feedback(ctx context.Context, userID uint, in FeedbackInput) error
	UpdateAnalytics(ctx context.Context, userID, interviewID uint) error
}

type chatService struct {
	chats      pgrepo.ChatRepository
	users      pgrepo.UserRepository
	resumes    pgrepo.ResumeRepository
	prefs      pgrepo.PreferenceRepository
	interviews pgrepo.InterviewRepository
	loader     *contextLoader
	gw         LLMGateway
	log        *logrus.Logger
	now        func() time.Time
}

func NewChatService(
	chats pgrepo.ChatRepository,
	users pgrepo.UserRepository,
	resumes pgrepo.ResumeRepository,
	prefs pgrepo.PreferenceRepository,
	interviews pgrepo.InterviewRepository,
	tasks pgrepo.TaskRepository,
	gw LLMGateway,
	log *logrus.Logger,
) ChatService {
	return &chatService{
		chats:      chats,
		users:      users,
		resumes:    resumes,
		prefs:      prefs,
		interviews: interviews,
		loader:     &contextLoader{prefs: prefs, interviews: interviews, tasks: tasks},
		gw:         gw,
		log:        log,
		now:        time.Now,
	}
}

func newSessionID(userID uint) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("session_%d_%s", userID, hex[:8])
}

// resolveSession reuses the latest session for (user, context) while it is
// fresh and otherwise opens a new one.
func (s *chatService) resolveSession(ctx context.Context, userID uint, ct models.ContextType) (string, error) {
	latest, err := s.chats.LatestSession(ctx, userID, ct)
	switch {
	case err == nil:
		if latest.Fresh(s.now()) {
			return latest.SessionID, nil
		}
	case errors.Is(err, utils.ErrNotFound):
	default:
		return "", err
	}

	now := s.now().UTC()
	sess := &models.ChatSession{
		UserID:      userID,
		SessionID:   newSessionID(userID),
		ContextType: ct,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.chats.CreateSession(ctx, sess); err != nil {
		return "", err
	}
	return sess.SessionID, nil
}

// ownedSession loads sessionID and checks it belongs to userID.
func (s *chatService) ownedSession(ctx context.Context, op string, userID uint, sessionID string) (*models.ChatSession, error) {
	sess, err := s.chats.GetSession(ctx, sessionID)
	if err != nil {
		return nil, repoErr(op, err, msgSessionGone)
	}
	if sess.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, msgSessionGone, nil)
	}
	return sess, nil
}

func chatSystemPrompt(uc *UserContext, ct models.ContextType) string {
	base := uc.profileLines()

	switch ct {
	case models.ContextGeneral:
		return fmt.Sprintf(`你是"小面"，一位友好、幽默、多才多艺的AI面试学习助手。你的特点是：
1. **性格**：活泼开朗，像朋友一样亲切，偶尔会开小玩笑
2. **功能**：可以回答各种问题，推荐功能，帮助导航，提供学习建议
3. **语气**：轻松自然，像在和朋友聊天，不要太正式
4. **能力**：了解平台所有功能，能根据用户需求推荐合适的模块

%s

重要原则：
- 用轻松、友好的语气交流
- 主动询问用户需求，提供建议
- 如果用户问的问题你不确定，可以引导他们到相应模块
- 保持积极正面的态度，鼓励用户学习
- 每次只回复一条消息，不要分段
`, base)

	case models.ContextLearning:
		weak := "暂无"
		if names := uc.WeakAreaNames(3); len(names) > 0 {
			weak = strings.Join(names, ", ")
		}
		return fmt.Sprintf(`你是"学小面"，一位专业、严谨的学习导师。你的特点是：
1. **性格**：专业认真，像一位经验丰富的老师
2. **功能**：专注于学习任务、知识点讲解、学习路径规划
3. **语气**：专业但不过于严肃，清晰有条理
4. **能力**：深入讲解知识点，设计学习计划，提供学习资源

%s

用户薄弱领域：%s

重要原则：
- 用专业但易懂的语言讲解知识点
- 根据薄弱领域推荐针对性学习内容
- 提供具体的学习建议和资源
- 鼓励用户完成学习任务，跟踪学习进度
- 可以生成学习任务、解释概念、提供练习题
- 每次只回复一条消息，不要分段
`, base, weak)

	case models.ContextPersonalized:
		return fmt.Sprintf(`你是"个小面"，一位贴心的个性化面试顾问。你的特点是：
1. **性格**：细心体贴，像一位专业的职业规划师
2. **功能**：基于用户简历提供个性化建议，生成针对性问题
3. **语气**：温和专业，像在给朋友提供职业建议
4. **能力**：分析简历，设计面试问题，优化面试表现

%s

重要原则：
- 基于用户的简历内容提供建议
- 生成针对性的面试问题
- 提供面试技巧和优化建议
- 帮助用户准备面试，提升表现
- 语气要贴心，像在帮助朋友准备重要面试
- 每次只回复一条消息，不要分段
`, base)
	}
	return base
}

const interviewFlowRules = `
重要对话原则：
- 基于用户的简历内容，自然地提出面试问题
- 不要一次性问多个问题，一次只问一个问题
- 根据用户的回答，自然地引导到下一个相关问题
- 对话要流畅自然，像真实面试一样，不要生硬地列出"题目1"、"题目2"
- 在用户回答后，可以给出简短评价或反馈，然后自然地提出下一个问题
- 问题之间要有逻辑关联，根据用户回答的内容深入挖掘
- 如果用户回答得很好，可以适当肯定，然后引导到下一个相关话题
- 如果用户回答不够完整，可以追问细节，但不要过于生硬
- 整个对话应该像朋友间的职业咨询，而不是机械的问答
- 避免使用"接下来是第二题"、"现在问第三题"这样的表述
`

// firstReply keeps the first paragraph, or the first two when the first is
// shorter than 50 characters.
func firstReply(s string) string {
	paras := strings.Split(s, "\n\n")
	if len(paras) == 1 {
		return s
	}
	if utf8.RuneCountInString(paras[0]) < minParagraphRune {
		return paras[0] + "\n\n" + paras[1]
	}
	return paras[0]
}

var intentKeywords = []struct {
	intent string
	words  []string
}{
	{"learning", []string{"学习", "任务", "练习", "知识"}},
	{"personalized", []string{"简历", "上传", "个性化", "定制"}},
	{"interview", []string{"面试", "模拟", "测试"}},
	{"feedback", []string{"反馈", "建议", "改进"}},
	{"help", []string{"帮助", "功能", "介绍", "怎么用"}},
}

// DetectIntent tags a message by keyword; the first matching bucket wins.
func DetectIntent(message string) string {
	m := strings.ToLower(message)
	for _, b := range intentKeywords {
		for _, w := range b.words {
			if strings.Contains(m, w) {
				return b.intent
			}
		}
	}
	return "general"
}

func recommendationsFor(intent string, uc *UserContext) []Recommendation {
	out := []Recommendation{}
	switch intent {
	case "learning":
		out = append(out, Recommendation{
			Type:        "action",
			Title:       "开始学习任务",
			Description: "完成专业学习任务，提升知识水平",
			Action:      "navigate",
			Path:        "/tasks",
		})
	case "personalized":
		out = append(out, Recommendation{
			Type:        "action",
			Title:       "上传简历",
			Description: "上传简历获取个性化面试建议",
			Action:      "navigate",
			Path:        "/personalized",
		})
	}

	if uc != nil && len(uc.WeakAreas) > 0 {
		area := uc.WeakAreas[0].Area
		out = append(out, Recommendation{
			Type:        "suggestion",
			Title:       fmt.Sprintf("加强%s练习", area),
			Description: fmt.Sprintf("你在%s方面得分较低，建议多练习", area),
			Action:      "practice",
			Area:        area,
		})
	}
	return out
}

var suggestedActions = map[string][]string{
	"learning":     {"查看任务", "开始学习", "上传学习资料"},
	"personalized": {"上传简历", "查看个性化建议", "开始模拟面试"},
	"interview":    {"开始模拟面试", "查看历史面试", "查看反馈"},
	"feedback":     {"查看学习报告", "设置偏好", "联系支持"},
}

func actionsFor(intent string) []string {
	if a, ok := suggestedActions[intent]; ok {
		return a
	}
	return []string{"开始对话", "查看帮助"}
}

func (s *chatService) activeResume(ctx context.Context, userID uint) *models.Resume {
	r, err := s.resumes.Active(ctx, userID)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			s.log.WithError(err).WithField("user_id", userID).Warn("load active resume failed")
		}
		return nil
	}
	return r
}

func (s *chatService) SendMessage(ctx context.Context, userID uint, message, sessionID string, ct models.ContextType) (*ChatReply, error) {
	const op = "ChatService.SendMessage"

	if strings.TrimSpace(message) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "消息不能为空", nil)
	}
	if ct == "" {
		ct = models.ContextGeneral
	}
	if !ct.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "无效的对话类型", nil)
	}

	if sessionID == "" {
		id, err := s.resolveSession(ctx, userID, ct)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to open chat session", err)
		}
		sessionID = id
	} else if _, err := s.ownedSession(ctx, op, userID, sessionID); err != nil {
		return nil, err
	}

	reply, err := s.generateReply(ctx, userID, message, sessionID, ct)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
		}).Warn("chat reply failed, returning apology")
		return &ChatReply{
			Response:         chatApology,
			SessionID:        sessionID,
			Intent:           IntentError,
			Recommendations:  []Recommendation{},
			SuggestedActions: []string{},
		}, nil
	}
	return reply, nil
}

func (s *chatService) generateReply(ctx context.Context, userID uint, message, sessionID string, ct models.ContextType) (*ChatReply, error) {
	history, err := s.chats.RecentMessages(ctx, sessionID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	uc, err := s.loader.load(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load user context: %w", err)
	}

	system := chatSystemPrompt(uc, ct)
	if ct == models.ContextPersonalized {
		if r := s.activeResume(ctx, userID); r != nil {
			if lines := resumeLines(r.ParsedData.Data(), 3, 5); len(lines) > 0 {
				system += "\n用户简历信息：\n" + strings.Join(lines, "\n") + "\n"
			}
		}
		system += interviewFlowRules
	}
	system += singleReplyRule

	if len(history) > promptTurns {
		history = history[len(history)-promptTurns:]
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == models.MessageRoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	answer, err := s.gw.Complete(ctx, models.OpChatReply, llm.Request{
		System:      system,
		Messages:    msgs,
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, err
	}
	answer = firstReply(answer)

	intent := DetectIntent(message)
	recs := recommendationsFor(intent, uc)

	now := s.now().UTC()
	userMsg := &models.ChatMessage{
		UserID:    userID,
		SessionID: sessionID,
		Role:      models.MessageRoleUser,
		Content:   message,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
	}
	botMsg := &models.ChatMessage{
		UserID:    userID,
		SessionID: sessionID,
		Role:      models.MessageRoleAssistant,
		Content:   answer,
		Metadata:  datatypes.JSONMap{"intent": intent, "recommendations": recs},
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := s.chats.AppendMessages(ctx, sessionID, now, userMsg, botMsg); err != nil {
		return nil, fmt.Errorf("save messages: %w", err)
	}

	return &ChatReply{
		Response:         answer,
		SessionID:        sessionID,
		Intent:           intent,
		Recommendations:  recs,
		SuggestedActions: actionsFor(intent),
	}, nil
}

func greetingPrompt(ct models.ContextType, hasResume bool) string {
	switch ct {
	case models.ContextLearning:
		return `请生成一条学习模块的欢迎消息，包括：
1. 欢迎进入学习模块
2. 说明学习模块的功能（学习任务、知识点、练习）
3. 询问用户想学习什么

要求：
- 语气：专业但友好，像老师
- 长度：100-150字
- 只返回一条完整的消息，不要分段
`
	case models.ContextPersonalized:
		if hasResume {
			return `请生成一条个性化模块的欢迎消息，包括：
1. 欢迎回来，已检测到用户已上传简历
2. 说明可以基于简历进行个性化面试训练
3. 询问用户是否想开始面试训练

要求：
- 语气：贴心专业，像职业顾问
- 长度：100-150字
- 只返回一条完整的消息，不要分段
- 不要重复之前的欢迎消息
`
		}
		return `请生成一条个性化模块的欢迎消息，包括：
1. 欢迎进入个性化模块
2. 说明个性化功能（简历分析、针对性问题）
3. 询问是否需要上传简历

要求：
- 语气：贴心专业，像职业顾问
- 长度：100-150字
- 只返回一条完整的消息，不要分段
`
	}
	return `请生成一条欢迎消息，包括：
1. 简短友好的问候
2. 平台核心功能简介（学习模块和个性化模块）
3. 询问用户今天想做什么

要求：
- 语气：轻松友好，像朋友聊天
- 长度：100-150字
- 只返回一条完整的消息，不要分段
`
}

func (s *chatService) greetingText(ctx context.Context, userID uint, ct models.ContextType) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	uc, err := s.loader.load(ctx, user)
	if err != nil {
		return "", err
	}

	hasResume := false
	if ct == models.ContextPersonalized {
		n, err := s.resumes.CountActive(ctx, userID)
		if err != nil {
			return "", err
		}
		hasResume = n > 0
	}

	answer, err := s.gw.Complete(ctx, models.OpChatGreeting,
		llm.Prompt(chatSystemPrompt(uc, ct), greetingPrompt(ct, hasResume), 0.7, 300))
	if err != nil {
		return "", err
	}
	if i := strings.Index(answer, "\n\n"); i >= 0 {
		answer = strings.TrimSpace(answer[:i])
	}
	return answer, nil
}

func (s *chatService) Greeting(ctx context.Context, userID uint, ct models.ContextType) (*ChatGreeting, error) {
	const op = "ChatService.Greeting"

	if ct == "" {
		ct = models.ContextGeneral
	}
	if !ct.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "无效的对话类型", nil)
	}

	text, err := s.greetingText(ctx, userID, ct)
	if err != nil || strings.TrimSpace(text) == "" {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":      userID,
			"context_type": ct,
		}).Warn("greeting generation failed, using default")
		text = defaultGreetings[ct]
	}

	sessionID, err := s.resolveSession(ctx, userID, ct)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to open chat session", err)
	}

	now := s.now().UTC()
	msg := &models.ChatMessage{
		UserID:    userID,
		SessionID: sessionID,
		Role:      models.MessageRoleAssistant,
		Content:   text,
		Metadata:  datatypes.JSONMap{"type": "greeting"},
		CreatedAt: now,
	}
	if err := s.chats.AppendMessages(ctx, sessionID, now, msg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "生成欢迎消息失败", err)
	}
	return &ChatGreeting{Message: text, SessionID: sessionID}, nil
}

func (s *chatService) History(ctx context.Context, userID uint, sessionID string) ([]models.ChatMessage, error) {
	const op = "ChatService.History"

	if _, err := s.ownedSession(ctx, op, userID, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.chats.RecentMessages(ctx, sessionID, HistoryPageLimit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "获取历史失败", err)
	}
	return msgs, nil
}

// SessionName is the display name of a session.
func SessionName(s models.ChatSession) string {
	if strings.TrimSpace(s.Summary) == "" {
		return defaultSession
	}
	return s.Summary
}

func (s *chatService) Sessions(ctx context.Context, userID uint, contextType string) ([]models.ChatSession, error) {
	const op = "ChatService.Sessions"

	ct := models.ContextType(contextType)
	if contextType != "" && !ct.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "无效的对话类型", nil)
	}
	rows, err := s.chats.ListSessions(ctx, userID, ct)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "获取会话列表失败", err)
	}
	return rows, nil
}

func (s *chatService) SaveSession(ctx context.Context, userID uint, sessionID, name string) error {
	const op = "ChatService.SaveSession"

	if strings.TrimSpace(sessionID) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := s.chats.RenameSession(ctx, userID, sessionID, strings.TrimSpace(name)); err != nil {
		return repoErr(op, err, msgSessionGone)
	}
	return nil
}

func (s *chatService) Feedback(ctx context.Context, userID uint, in FeedbackInput) error {
	const op = "ChatService.Feedback"

	if strings.TrimSpace(in.FeedbackType) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "反馈类型不能为空", nil)
	}
	if strings.TrimSpace(in.Content) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "反馈内容不能为空", nil)
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return utils.E(utils.CodeInvalidArgument, op, "评分必须在1到5之间", nil)
	}

	meta := datatypes.JSONMap{}
	for k, v := range in.Metadata {
		meta[k] = v
	}
	fb := &models.UserFeedback{
		UserID:       userID,
		FeedbackType: in.FeedbackType,
		Content:      in.Content,
		Rating:       in.Rating,
		Metadata:     meta,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.prefs.RecordFeedback(ctx, fb); err != nil {
		return utils.E(utils.CodeInternal, op, "提交反馈失败", err)
	}
	if in.Rating != nil && *in.Rating <= 2 {
		s.log.WithFields(logrus.Fields{
			"user_id":       userID,
			"feedback_type": in.FeedbackType,
			"rating":        *in.Rating,
		}).Info("low chat rating received")
	}
	return nil
}

func (s *chatService) UpdateAnalytics(ctx context.Context, userID, interviewID uint) error {
	const op = "ChatService.UpdateAnalytics"

	iv, err := s.interviews.GetForUser(ctx, userID, interviewID)
	if err != nil {
		return repoErr(op, err, msgInterviewNotFound)
	}
	if iv.Status != models.InterviewStatusCompleted || len(iv.Weaknesses) == 0 {
		return nil
	}

	score := iv.Score()
	_, err = s.prefs.Mutate(ctx, userID, func(p *models.UserPreference) {
		for _, w := range iv.Weaknesses {
			p.RecordWeakness(w, score)
		}
	})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "更新分析失败", err)
	}
	return nil
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/cache"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
)

const (
	// SourceCount is how many sources accompany an answer.
	SourceCount       = 3
	sourceContentRune = 500
)

type Answer struct {
	Answer  string                   `json:"answer"`
	Sources []models.KnowledgeSource `json:"sources"`
}

type KnowledgeInput struct {
	Title            string         `json:"title"`
	Content          string         `json:"content"`
	Category         string         `json:"category"`
	PositionCategory string         `json:"position_category"`
	Metadata         map[string]any `json:"metadata"`
}

type RAGService interface {
	// Search filters the knowledge base by position category. Results are
	// cached per (category, limit).
	Search(ctx context.Context, positionCategory string, topK int) ([]models.KnowledgeSource, error)
	// Ask answers with knowledge-base context, falling back to a direct
	// answer without sources when retrieval or generation fails.
	Ask(ctx context.Context, userID uint, question, positionCategory string) (*Answer, error)
	// GenerateQuestions drafts interview questions for a free-form task
	// description, targeting the user's primary position.
	GenerateQuestions(ctx context.Context, userID uint, taskDescription string, count int) ([]string, error)
	AddKnowledge(ctx context.Context, in KnowledgeInput) (*models.KnowledgeBase, error)
	// Populate seeds starter entries for each position and returns how many
	// rows were written.
	Populate(ctx context.Context, positions []string) (int, error)
}

type ragService struct {
	kb       pgrepo.KnowledgeRepository
	users    pgrepo.UserRepository
	cache    cache.Cache
	gw       LLMGateway
	ai       InterviewAI
	log      *logrus.Logger
	topK     int
	ttl      time.Duration
	embedDim int
}

type RAGConfig struct {
	TopK      int
	CacheTTL  time.Duration
	VectorDim int
}

func NewRAGService(kb pgrepo.KnowledgeRepository, users pgrepo.UserRepository, c cache.Cache, gw LLMGateway, ai InterviewAI, log *logrus.Logger, cfg RAGConfig) RAGService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.VectorDim <= 0 {
		cfg.VectorDim = 768
	}
	if c == nil {
		c = cache.Nop{}
	}
	return &ragService{kb: kb, users: users, cache: c, gw: gw, ai: ai, log: log, topK: cfg.TopK, ttl: cfg.CacheTTL, embedDim: cfg.VectorDim}
}

func toSource(k models.KnowledgeBase) models.KnowledgeSource {
	return models.KnowledgeSource{
		ID:               k.ID,
		Title:            k.Title,
		Content:          truncateRunes(k.Content, sourceContentRune),
		Category:         k.Category,
		PositionCategory: k.PositionCategory,
	}
}

func (s *ragService) Search(ctx context.Context, positionCategory string, topK int) ([]models.KnowledgeSource, error) {
	const op = "RAGService.Search"

	if topK <= 0 {
		topK = s.topK
	}
	key := cache.KnowledgeKey(positionCategory, topK)

	var cached []models.KnowledgeSource
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("knowledge cache read failed")
	}
	if hit {
		return cached, nil
	}

	rows, err := s.kb.Search(ctx, positionCategory, topK)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "搜索知识库失败", err)
	}
	out := make([]models.KnowledgeSource, len(rows))
	for i, r := range rows {
		out[i] = toSource(r)
	}

	if err := s.cache.SetJSON(ctx, key, out, s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("knowledge cache write failed")
	}
	return out, nil
}

func contextBlock(docs []models.KnowledgeSource) string {
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = fmt.Sprintf("%s: %s", d.Title, d.Content)
	}
	return strings.Join(lines, "\n")
}

func (s *ragService) answerWithContext(ctx context.Context, question, position string) (*Answer, error) {
	docs, err := s.Search(ctx, position, s.topK)
	if err != nil {
		return nil, err
	}

	knowledge := contextBlock(docs)
	if knowledge == "" {
		knowledge = "暂无相关知识库内容，请根据你的专业知识回答。"
	}
	system := fmt.Sprintf("你是一位专业的面试导师，擅长回答%s相关的面试问题。", position)
	prompt := fmt.Sprintf(`
基于以下知识库内容回答问题：

%s

问题：%s

请结合知识库内容，给出专业、准确的回答。
`, knowledge, question)

	answer, err := s.gw.Complete(ctx, models.OpRAGAnswer, llm.Prompt(system, prompt, 0.5, 2000))
	if err != nil {
		return nil, err
	}

	sources := docs
	if len(sources) > SourceCount {
		sources = sources[:SourceCount]
	}
	return &Answer{Answer: answer, Sources: sources}, nil
}

func (s *ragService) Ask(ctx context.Context, userID uint, question, positionCategory string) (*Answer, error) {
	const op = "RAGService.Ask"

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "问题不能为空", nil)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, repoErr(op, err, "用户不存在")
	}

	position := user.PrimaryPosition()
	if position == "" {
		position = strings.TrimSpace(positionCategory)
	}

	ans, err := s.answerWithContext(ctx, question, position)
	if err == nil {
		return ans, nil
	}
	s.log.WithError(err).WithField("user_id", userID).Warn("rag answer failed, answering directly")

	if position == "" {
		position = genericPosition
	}
	direct, err := s.gw.Complete(ctx, models.OpDirectAnswer, llm.Prompt(
		fmt.Sprintf("你是一位专业的面试导师，擅长回答%s相关问题。", position),
		fmt.Sprintf("问题：%s\n请给出专业回答。", question),
		0.7, 2000,
	))
	if err != nil {
		return nil, err
	}
	return &Answer{Answer: direct, Sources: []models.KnowledgeSource{}}, nil
}

func (s *ragService) GenerateQuestions(ctx context.Context, userID uint, taskDescription string, count int) ([]string, error) {
	const op = "RAGService.GenerateQuestions"

	taskDescription = strings.TrimSpace(taskDescription)
	if taskDescription == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "任务描述不能为空", nil)
	}
	if count <= 0 {
		count = DefaultQuestionCount
	}
	if count > MaxQuestionCount {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("一次最多生成%d个问题", MaxQuestionCount), nil)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, repoErr(op, err, "用户不存在")
	}

	questions := s.ai.Questions(ctx, taskDescription, user.PrimaryPosition(), count)
	if questions == nil {
		questions = []string{}
	}
	return questions, nil
}

// zeroEmbedding fills the embedding column; no embedding model is wired, so
// entries carry a zero vector of the configured dimension.
func (s *ragService) zeroEmbedding() *pgvector.Vector {
	v := pgvector.NewVector(make([]float32, s.embedDim))
	return &v
}

func (s *ragService) invalidate(ctx context.Context) {
	if err := s.cache.DelPattern(ctx, cache.KnowledgePattern()); err != nil {
		s.log.WithError(err).Warn("knowledge cache invalidation failed")
	}
}

func (s *ragService) AddKnowledge(ctx context.Context, in KnowledgeInput) (*models.KnowledgeBase, error) {
	const op = "RAGService.AddKnowledge"

	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" || content == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "标题和内容不能为空", nil)
	}

	row := &models.KnowledgeBase{
		Title:            title,
		Content:          content,
		Category:         strings.TrimSpace(in.Category),
		PositionCategory: strings.TrimSpace(in.PositionCategory),
		Embedding:        s.zeroEmbedding(),
		Metadata:         in.Metadata,
	}
	if row.Metadata == nil {
		row.Metadata = map[string]any{}
	}
	if err := s.kb.Create(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save knowledge", err)
	}
	s.invalidate(ctx)
	return row, nil
}

func starterKnowledge(position string) []KnowledgeInput {
	return []KnowledgeInput{
		{
			Title:            fmt.Sprintf("%s核心技能要求", position),
			Content:          fmt.Sprintf("%s需要掌握的核心技能包括...", position),
			Category:         "技能要求",
			PositionCategory: position,
		},
		{
			Title:            fmt.Sprintf("%s常见面试问题", position),
			Content:          fmt.Sprintf("%s面试中常见的问题类型包括...", position),
			Category:         "面试问题",
			PositionCategory: position,
		},
	}
}

func (s *ragService) Populate(ctx context.Context, positions []string) (int, error) {
	const op = "RAGService.Populate"

	if len(positions) == 0 {
		positions = KnownPositions()
	}

	var (
		rows   []*models.KnowledgeBase
		asked  int
		seeded []string
	)
	for _, p := range positions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		asked++
		n, err := s.kb.Count(ctx, p)
		if err != nil {
			return 0, utils.E(utils.CodeInternal, op, "failed to count knowledge", err)
		}
		if n > 0 {
			seeded = append(seeded, p)
			continue
		}
		for _, item := range starterKnowledge(p) {
			rows = append(rows, &models.KnowledgeBase{
				Title:            item.Title,
				Content:          item.Content,
				Category:         item.Category,
				PositionCategory: item.PositionCategory,
				Embedding:        s.zeroEmbedding(),
				Metadata:         map[string]any{"source": "starter"},
			})
		}
	}
	if asked == 0 {
		return 0, utils.E(utils.CodeInvalidArgument, op, "请提供岗位类别", nil)
	}
	if len(seeded) > 0 {
		s.log.WithField("positions", seeded).Info("knowledge already present, skipped")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.kb.Create(ctx, rows...); err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to populate knowledge base", err)
	}
	s.invalidate(ctx)
	return len(rows), nil
}

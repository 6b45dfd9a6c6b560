package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/export"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/stt"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
	"golang.org/x/sync/errgroup"
)

const (
	msgInterviewNotFound = "面试不存在"
	msgInterviewDone     = "面试已完成"
	msgInterviewOpen     = "面试尚未完成"

	// MaxRemedialTasks caps the remedial tasks created per submission.
	MaxRemedialTasks = 3
)

type SubmittedAnswer struct {
	QuestionID int    `json:"question_id"`
	Answer     string `json:"answer"`
}

type CreateInterviewInput struct {
	TaskDescription string   `json:"task_description"`
	Questions       []string `json:"questions"`
	Count           int      `json:"count"`
	StageNumber     *int     `json:"stage_number"`
}

type ScoredInterview struct {
	ID         uint           `json:"id"`
	TotalScore float64        `json:"total_score"`
	Scores     map[string]any `json:"scores"`
	Feedback   string         `json:"feedback"`
	Weaknesses []string       `json:"weaknesses"`
	Strengths  []string       `json:"strengths"`
}

type RemedialTaskRef struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Weakness    string `json:"weakness"`
}

type SubmitResult struct {
	Interview       ScoredInterview
	StandardAnswers []string
	Facial          string
	Tone            string
	RemedialTasks   []RemedialTaskRef
}

// InterviewFeedback is the read-side report of a completed interview.
type InterviewFeedback struct {
	TotalScore      float64        `json:"total_score"`
	Scores          map[string]any `json:"scores"`
	Feedback        string         `json:"feedback"`
	Weaknesses      []string       `json:"weaknesses"`
	Questions       []string       `json:"questions"`
	Answers         []string       `json:"answers"`
	StandardAnswers []string       `json:"standard_answers"`
	Facial          string         `json:"facial_expression_evaluation"`
	Tone            string         `json:"tone_evaluation"`
}

type AnswerTranscript struct {
	QuestionID int     `json:"question_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type InterviewService interface {
	List(ctx context.Context, userID uint, status string) ([]models.Interview, error)
	Get(ctx context.Context, userID, id uint) (*models.Interview, error)
	Create(ctx context.Context, userID uint, in CreateInterviewInput) (*models.Interview, error)
	Submit(ctx context.Context, userID, id uint, answers []SubmittedAnswer) (*SubmitResult, error)
	Feedback(ctx context.Context, userID, id uint) (*InterviewFeedback, error)
	Export(ctx context.Context, userID uint) ([]byte, error)
	Transcribe(ctx context.Context, userID, id uint, questionID int, fileName string, audio []byte, language string) (*AnswerTranscript, error)
}

type interviewService struct {
	interviews pgrepo.InterviewRepository
	users      pgrepo.UserRepository
	ai         InterviewAI
	gen        TaskGenerator
	speech     stt.Provider
	language   string
	log        *logrus.Logger
	now        func() time.Time
}

// NewInterviewService wires the interview flows. speech may be nil, in which
// case Transcribe reports the feature as unavailable.
func NewInterviewService(
	interviews pgrepo.InterviewRepository,
	users pgrepo.UserRepository,
	ai InterviewAI,
	gen TaskGenerator,
	speech stt.Provider,
	language string,
	log *logrus.Logger,
) InterviewService {
	return &interviewService{
		interviews: interviews,
		users:      users,
		ai:         ai,
		gen:        gen,
		speech:     speech,
		language:   language,
		log:        log,
		now:        time.Now,
	}
}

func (s *interviewService) List(ctx context.Context, userID uint, status string) ([]models.Interview, error) {
	const op = "InterviewService.List"

	st := models.InterviewStatus(status)
	if !st.Valid() {
		st = ""
	}
	rows, err := s.interviews.ListByUser(ctx, userID, st)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "获取面试列表失败", err)
	}
	return rows, nil
}

func (s *interviewService) Get(ctx context.Context, userID, id uint) (*models.Interview, error) {
	const op = "InterviewService.Get"

	iv, err := s.interviews.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, repoErr(op, err, msgInterviewNotFound)
	}
	return iv, nil
}

func (s *interviewService) Create(ctx context.Context, userID uint, in CreateInterviewInput) (*models.Interview, error) {
	const op = "InterviewService.Create"

	questions := make([]string, 0, len(in.Questions))
	for _, q := range in.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	desc := strings.TrimSpace(in.TaskDescription)
	if len(questions) == 0 && desc == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "请提供任务描述或面试问题", nil)
	}

	if len(questions) == 0 {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, repoErr(op, err, "用户不存在")
		}
		questions = s.ai.Questions(ctx, desc, user.PrimaryPosition(), in.Count)
		if len(questions) == 0 {
			return nil, utils.E(utils.CodeUnavailable, op, "生成面试问题失败，请稍后重试", nil)
		}
	}

	iv := &models.Interview{
		UserID:        userID,
		InterviewType: models.InterviewTypeStageBased,
		StageNumber:   in.StageNumber,
		Questions:     questions,
		Answers:       []string{},
		Status:        models.InterviewStatusPending,
	}
	if err := s.interviews.Create(ctx, iv); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create interview", err)
	}
	return iv, nil
}

// alignAnswers places answers by question index. Missing or out of range
// entries are dropped and unanswered questions get "".
func alignAnswers(n int, submitted []SubmittedAnswer) []string {
	out := make([]string, n)
	for _, a := range submitted {
		if a.QuestionID < 0 || a.QuestionID >= n {
			continue
		}
		out[a.QuestionID] = a.Answer
	}
	return out
}

func (s *interviewService) Submit(ctx context.Context, userID, id uint, submitted []SubmittedAnswer) (*SubmitResult, error) {
	const op = "InterviewService.Submit"

	iv, err := s.interviews.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, repoErr(op, err, msgInterviewNotFound)
	}
	if iv.Status == models.InterviewStatusCompleted {
		return nil, utils.E(utils.CodeConflict, op, msgInterviewDone, nil)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, repoErr(op, err, "用户不存在")
	}

	questions := []string(iv.Questions)
	answers := alignAnswers(len(questions), submitted)
	position := user.PrimaryPosition()

	var (
		analysis InterviewAnalysis
		standard []string
		facial   string
		tone     string
	)
	// every branch degrades to a fallback, so none of them fails the group
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d := s.ai.Analyze(gctx, questions, answers, position)
		analysis = d.Value
		return nil
	})
	g.Go(func() error {
		standard, _ = s.ai.StandardAnswers(gctx, questions, position)
		return nil
	})
	g.Go(func() error {
		v, err := s.ai.FacialCommentary(gctx, answers)
		if err != nil {
			v = facialFallbackLong
		}
		facial = v
		return nil
	})
	g.Go(func() error {
		v, err := s.ai.ToneCommentary(gctx, answers)
		if err != nil {
			v = toneFallbackLong
		}
		tone = v
		return nil
	})
	_ = g.Wait()

	feedback := utils.FormatFeedback(analysis.Feedback)
	weaknesses := analysis.Weaknesses
	if weaknesses == nil {
		weaknesses = []string{}
	}

	err = s.interviews.Complete(ctx, userID, id, pgrepo.InterviewResult{
		Answers:     answers,
		Feedback:    feedback,
		Scores:      analysis.Scores,
		Weaknesses:  weaknesses,
		TotalScore:  analysis.TotalScore,
		CompletedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, utils.ErrStateConflict) {
			return nil, utils.E(utils.CodeConflict, op, msgInterviewDone, err)
		}
		return nil, repoErr(op, err, msgInterviewNotFound)
	}

	res := &SubmitResult{
		Interview: ScoredInterview{
			ID:         id,
			TotalScore: analysis.TotalScore,
			Scores:     analysis.Scores,
			Feedback:   feedback,
			Weaknesses: weaknesses,
			Strengths:  analysis.Strengths,
		},
		StandardAnswers: utils.FormatFeedbackAll(standard),
		Facial:          utils.FormatFeedback(facial),
		Tone:            utils.FormatFeedback(tone),
		RemedialTasks:   s.remedialTasks(ctx, user, weaknesses),
	}
	return res, nil
}

// remedialTasks creates one task per leading weakness. A failure on one
// weakness does not stop the others.
func (s *interviewService) remedialTasks(ctx context.Context, user *models.User, weaknesses []string) []RemedialTaskRef {
	out := []RemedialTaskRef{}
	for i, w := range weaknesses {
		if i == MaxRemedialTasks {
			break
		}
		t, err := s.gen.GenerateRemedialTask(ctx, user, w)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"user_id":  user.ID,
				"weakness": w,
			}).Warn("remedial task generation failed")
			continue
		}
		out = append(out, RemedialTaskRef{ID: t.ID, Title: t.Title, Description: t.Description, Weakness: w})
	}
	return out
}

func (s *interviewService) Feedback(ctx context.Context, userID, id uint) (*InterviewFeedback, error) {
	const op = "InterviewService.Feedback"

	iv, err := s.interviews.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, repoErr(op, err, msgInterviewNotFound)
	}
	if iv.Status != models.InterviewStatusCompleted {
		return nil, utils.E(utils.CodeInvalidArgument, op, msgInterviewOpen, nil)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, repoErr(op, err, "用户不存在")
	}

	questions := []string(iv.Questions)
	answers := []string(iv.Answers)
	out := &InterviewFeedback{
		TotalScore:      iv.Score(),
		Scores:          map[string]any(iv.Scores),
		Feedback:        utils.FormatFeedback(iv.AIFeedback),
		Weaknesses:      []string(iv.Weaknesses),
		Questions:       questions,
		Answers:         answers,
		StandardAnswers: []string{},
		Facial:          facialFallbackShort,
		Tone:            toneFallbackShort,
	}
	if out.Scores == nil {
		out.Scores = map[string]any{}
	}
	if out.Weaknesses == nil {
		out.Weaknesses = []string{}
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(questions) > 0 {
		g.Go(func() error {
			std, ok := s.ai.StandardAnswers(gctx, questions, user.PrimaryPosition())
			if !ok {
				std = make([]string, len(questions))
				for i := range std {
					std[i] = standardAnswerPending
				}
			}
			out.StandardAnswers = utils.FormatFeedbackAll(std)
			return nil
		})
	}
	if len(answers) > 0 {
		g.Go(func() error {
			if v, err := s.ai.FacialCommentary(gctx, answers); err == nil {
				out.Facial = utils.FormatFeedback(v)
			}
			return nil
		})
		g.Go(func() error {
			if v, err := s.ai.ToneCommentary(gctx, answers); err == nil {
				out.Tone = utils.FormatFeedback(v)
			}
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

func (s *interviewService) Export(ctx context.Context, userID uint) ([]byte, error) {
	const op = "InterviewService.Export"

	rows, err := s.interviews.ListByUser(ctx, userID, "")
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "获取面试列表失败", err)
	}
	data, err := export.InterviewsXLSX(rows)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to render report", err)
	}
	return data, nil
}

// normalizeLanguage maps short language tags onto BCP-47 codes the speech
// API accepts.
func normalizeLanguage(v, fallback string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "zh", "zh-CN", "cmn-Hans-CN":
		return "zh-CN"
	case "en", "en-US":
		return "en-US"
	case "":
		if fallback == "" {
			return "zh-CN"
		}
		return fallback
	default:
		return v
	}
}

func (s *interviewService) Transcribe(ctx context.Context, userID, id uint, questionID int, fileName string, audio []byte, language string) (*AnswerTranscript, error) {
	const op = "InterviewService.Transcribe"

	if s.speech == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "语音识别未启用", nil)
	}
	if len(audio) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "音频文件为空", nil)
	}
	format, err := stt.FormatFromFilename(fileName)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "不支持的音频格式，请上传WAV、FLAC、OGG或WEBM文件", err)
	}

	iv, err := s.interviews.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, repoErr(op, err, msgInterviewNotFound)
	}
	if iv.Status == models.InterviewStatusCompleted {
		return nil, utils.E(utils.CodeConflict, op, msgInterviewDone, nil)
	}
	if questionID < 0 || questionID >= len(iv.Questions) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "问题编号无效", nil)
	}

	lang := normalizeLanguage(language, s.language)
	start := time.Now()
	tr, err := s.speech.Transcribe(ctx, audio, format, lang)
	entry := s.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"interview_id": id,
		"question_id":  questionID,
		"format":       format,
		"language":     lang,
		"bytes":        len(audio),
		"latency_ms":   time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("transcription failed")
		return nil, utils.E(utils.CodeUnavailable, op, "语音识别失败，请稍后重试", err)
	}
	entry.Info("answer transcribed")

	return &AnswerTranscript{QuestionID: questionID, Text: tr.Text, Confidence: tr.Confidence}, nil
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/providers/llm"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/resume"
	"github.com/yoockh/xiaomian/internal/storage"
	"github.com/yoockh/xiaomian/internal/utils"
	"gorm.io/datatypes"
)

const (
	resumePromptRunes = 2000
	resumeURLTTL      = 15 * time.Minute

	msgNoResume        = "未找到简历"
	msgUploadResume    = "请先上传简历"
	msgUnsupportedType = "不支持的文件类型，请上传PDF、DOCX或TXT文件"
)

type ResumeService interface {
	// Upload extracts, parses, stores and activates a résumé file.
	Upload(ctx context.Context, userID uint, fileName string, data []byte) (*models.Resume, error)
	Active(ctx context.Context, userID uint) (*models.Resume, error)
	// FileURL returns a short-lived download link for the active résumé.
	FileURL(ctx context.Context, userID uint) (string, error)
	GenerateQuestions(ctx context.Context, userID uint, count int) ([]string, error)
}

type resumeService struct {
	resumes  pgrepo.ResumeRepository
	prefs    pgrepo.PreferenceRepository
	uploader storage.Uploader
	signer   storage.Signer
	gw       LLMGateway
	log      *logrus.Logger
}

// NewResumeService builds the résumé flows. signer may be nil when the
// storage backend cannot hand out download links.
func NewResumeService(
	resumes pgrepo.ResumeRepository,
	prefs pgrepo.PreferenceRepository,
	uploader storage.Uploader,
	signer storage.Signer,
	gw LLMGateway,
	log *logrus.Logger,
) ResumeService {
	return &resumeService{resumes: resumes, prefs: prefs, uploader: uploader, signer: signer, gw: gw, log: log}
}

// FileType returns the lower-case extension of name without the dot.
func FileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func (s *resumeService) Upload(ctx context.Context, userID uint, fileName string, data []byte) (*models.Resume, error) {
	const op = "ResumeService.Upload"

	fileType := FileType(fileName)
	if !models.ResumeTypeAllowed(fileType) {
		return nil, utils.E(utils.CodeInvalidArgument, op, msgUnsupportedType, nil)
	}
	if len(data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "文件内容为空", nil)
	}
	if s.uploader == nil {
		return nil, utils.E(utils.CodeInternal, op, "uploader is not configured", nil)
	}

	text, err := resume.Extract(fileType, data)
	if err != nil {
		if !errors.Is(err, resume.ErrUnreadable) || fileType != models.ResumeTypePDF {
			return nil, utils.E(utils.CodeInvalidArgument, op, "无法读取简历文件", err)
		}
		// unreadable PDFs keep going with the placeholder text
		s.log.WithError(err).WithField("user_id", userID).Warn("pdf text extraction failed")
	}

	storedPath, err := s.uploader.Upload(ctx, storage.ResumeObjectName(userID, fileName), storage.ContentTypeFor(fileType), bytes.NewReader(data))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload file", err)
	}

	parsed := s.parse(ctx, text)

	row := &models.Resume{
		UserID:     userID,
		FilePath:   storedPath,
		FileName:   fileName,
		FileType:   fileType,
		ParsedData: datatypes.NewJSONType(parsed),
		RawText:    text,
	}
	if err := s.resumes.ReplaceActive(ctx, row); err != nil {
		if errors.Is(err, utils.ErrDuplicate) {
			// a concurrent upload won the single active slot
			return nil, utils.E(utils.CodeConflict, op, "简历正在更新，请稍后重试", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "上传简历失败", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"resume_id": row.ID,
		"version":   row.Version,
		"file_type": fileType,
		"bytes":     len(data),
	}).Info("resume stored")
	return row, nil
}

func (s *resumeService) parse(ctx context.Context, text string) models.ParsedResume {
	system := "你是一位专业的简历解析专家，擅长从文本中提取结构化信息。"
	prompt := fmt.Sprintf(`
请从以下简历文本中提取结构化信息：

%s

请返回JSON格式：
{
    "name": "姓名",
    "email": "邮箱",
    "phone": "电话",
    "education": "教育背景（学校、专业、学历）",
    "experience": "工作经历（公司、职位、时间、描述）",
    "skills": ["技能1", "技能2", ...],
    "projects": ["项目1", "项目2", ...],
    "certifications": ["证书1", "证书2", ...],
    "summary": "个人简介"
}

如果某项信息不存在，请返回null或空数组。
`, truncateRunes(text, resumePromptRunes))

	d := askJSON(ctx, s.gw, s.log, models.OpResumeParse, llm.Prompt(system, prompt, 0.3, 2000), models.EmptyParsedResume(text))
	return d.Value
}

func (s *resumeService) Active(ctx context.Context, userID uint) (*models.Resume, error) {
	const op = "ResumeService.Active"

	r, err := s.resumes.Active(ctx, userID)
	if err != nil {
		return nil, repoErr(op, err, msgNoResume)
	}
	return r, nil
}

func (s *resumeService) FileURL(ctx context.Context, userID uint) (string, error) {
	const op = "ResumeService.FileURL"

	r, err := s.resumes.Active(ctx, userID)
	if err != nil {
		return "", repoErr(op, err, msgNoResume)
	}
	if s.signer == nil {
		return "", utils.E(utils.CodeUnavailable, op, "file download is not available", nil)
	}

	url, err := s.signer.SignedGetURL(ctx, r.FilePath, resumeURLTTL)
	if err != nil {
		if errors.Is(err, storage.ErrSigningUnsupported) {
			return "", utils.E(utils.CodeUnavailable, op, "file download is not available", err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to sign download url", err)
	}
	return url, nil
}

func (s *resumeService) GenerateQuestions(ctx context.Context, userID uint, count int) ([]string, error) {
	const op = "ResumeService.GenerateQuestions"

	if count <= 0 {
		count = DefaultQuestionCount
	}
	if count > MaxQuestionCount {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("一次最多生成%d个问题", MaxQuestionCount), nil)
	}
	r, err := s.resumes.Active(ctx, userID)
	if err != nil {
		return nil, repoErr(op, err, msgUploadResume)
	}

	weak := "无"
	pref, err := s.prefs.Get(ctx, userID)
	switch {
	case err == nil:
		if names := pref.WeakAreaNames(3); len(names) > 0 {
			weak = strings.Join(names, ", ")
		}
	case errors.Is(err, utils.ErrNotFound):
	default:
		return nil, utils.E(utils.CodeInternal, op, "failed to load preferences", err)
	}

	system := "你是一位经验丰富的HR，擅长根据简历设计针对性面试问题。"
	prompt := fmt.Sprintf(`
基于以下简历信息生成%d个针对性面试问题：

简历信息：
%s

用户薄弱领域：%s

要求：
1. 问题要能验证简历内容的真实性
2. 针对薄弱领域设计挑战性问题
3. 包含行为面试、技术面试、情景面试等类型
4. 问题要有一定难度，能真正测试能力

请直接返回问题列表，每行一个问题，不要编号。
`, count, strings.Join(resumeLines(r.ParsedData.Data(), 0, 0), "\n"), weak)

	raw, err := s.gw.Complete(ctx, models.OpResumeQuestions, llm.Prompt(system, prompt, 0.7, 2000))
	if err != nil {
		return nil, err
	}
	return splitQuestions(raw, count), nil
}

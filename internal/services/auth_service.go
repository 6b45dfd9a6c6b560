package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/xiaomian/internal/auth"
	"github.com/yoockh/xiaomian/internal/cache"
	"github.com/yoockh/xiaomian/internal/models"
	pgrepo "github.com/yoockh/xiaomian/internal/repositories/postgres"
	"github.com/yoockh/xiaomian/internal/utils"
)

const (
	minUsername = 2
	maxUsername = 50
	minPassword = 6
	maxPassword = 100

	msgBadCredentials = "邮箱或密码错误"
)

type RegisterInput struct {
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	TargetPositions []string `json:"target_positions"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Profile is the caller's account with the resolved title and its benefits.
type Profile struct {
	ID               uint            `json:"id"`
	Username         string          `json:"username"`
	Email            string          `json:"email"`
	Role             models.UserRole `json:"role"`
	TargetPositions  []string        `json:"target_positions"`
	CurrentLevel     int             `json:"current_level"`
	ExperiencePoints int             `json:"experience_points"`
	Title            string          `json:"title"`
	Benefits         map[string]any  `json:"benefits"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*Token, error)
	Login(ctx context.Context, email, password string) (*Token, error)
	// Authenticate resolves a bearer token to its user.
	Authenticate(ctx context.Context, rawToken string) (*models.User, error)
	Me(ctx context.Context, userID uint) (*Profile, error)
	UpdatePositions(ctx context.Context, userID uint, positions []string) ([]string, error)
}

type authService struct {
	users    pgrepo.UserRepository
	titles   pgrepo.TitleRepository
	cache    cache.Cache
	cacheTTL time.Duration
	tokens   *auth.TokenIssuer
	validate *validator.Validate
	log      *logrus.Logger
}

func NewAuthService(users pgrepo.UserRepository, titles pgrepo.TitleRepository, c cache.Cache, cacheTTL time.Duration, tokens *auth.TokenIssuer, log *logrus.Logger) AuthService {
	if c == nil {
		c = cache.Nop{}
	}
	return &authService{
		users:    users,
		titles:   titles,
		cache:    c,
		cacheTTL: cacheTTL,
		tokens:   tokens,
		validate: validator.New(),
		log:      log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// cleanPositions trims entries and drops blanks and repeats, keeping order.
func cleanPositions(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func (s *authService) validateRegistration(op string, in *RegisterInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.TargetPositions = cleanPositions(in.TargetPositions)

	invalid := func(msg string) error { return utils.E(utils.CodeInvalidArgument, op, msg, nil) }

	switch n := utf8.RuneCountInString(in.Username); {
	case n == 0:
		return invalid("用户名不能为空")
	case n < minUsername:
		return invalid("用户名长度至少为2个字符")
	case n > maxUsername:
		return invalid("用户名长度不能超过50个字符")
	}
	if err := s.validate.Var(in.Email, "required,email"); err != nil {
		return invalid("邮箱格式不正确")
	}
	switch n := utf8.RuneCountInString(in.Password); {
	case n < minPassword:
		return invalid("密码长度至少为6位")
	case n > maxPassword:
		return invalid("密码长度不能超过100位")
	}
	return checkPositionCount(op, in.TargetPositions, "请至少选择一个目标岗位")
}

func checkPositionCount(op string, positions []string, emptyMsg string) error {
	switch {
	case len(positions) < models.MinTargetPosition:
		return utils.E(utils.CodeInvalidArgument, op, emptyMsg, nil)
	case len(positions) > models.MaxTargetPosition:
		return utils.E(utils.CodeInvalidArgument, op, "最多只能选择10个岗位", nil)
	}
	return nil
}

func (s *authService) issue(op string, u *models.User) (*Token, error) {
	tok, err := s.tokens.Issue(u.Email, string(u.Role))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to issue token", err)
	}
	return &Token{AccessToken: tok, TokenType: auth.TokenType}, nil
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*Token, error) {
	const op = "AuthService.Register"

	if err := s.validateRegistration(op, &in); err != nil {
		return nil, err
	}

	taken, err := s.users.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "storage error", err)
	}
	if taken {
		return nil, utils.E(utils.CodeConflict, op, "邮箱已被注册", nil)
	}
	taken, err = s.users.UsernameTaken(ctx, in.Username)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "storage error", err)
	}
	if taken {
		return nil, utils.E(utils.CodeConflict, op, "用户名已被使用", nil)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "注册失败", err)
	}

	u := &models.User{
		Username:        in.Username,
		Email:           in.Email,
		PasswordHash:    hash,
		Role:            models.RoleUser,
		TargetPositions: in.TargetPositions,
		CurrentLevel:    1,
		Title:           models.DefaultTitle,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, utils.ErrDuplicate) {
			// lost a race with a concurrent registration
			return nil, utils.E(utils.CodeConflict, op, "邮箱或用户名已被使用", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "注册失败", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "positions": len(u.TargetPositions)}).Info("user registered")
	return s.issue(op, u)
}

func (s *authService) Login(ctx context.Context, email, password string) (*Token, error) {
	const op = "AuthService.Login"

	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeUnauthorized, op, msgBadCredentials, nil)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "storage error", err)
	}
	if !utils.PasswordMatches(u.PasswordHash, password) {
		return nil, utils.E(utils.CodeUnauthorized, op, msgBadCredentials, nil)
	}
	return s.issue(op, u)
}

func (s *authService) Authenticate(ctx context.Context, rawToken string) (*models.User, error) {
	const op = "AuthService.Authenticate"

	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "无效的认证凭据", err)
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeUnauthorized, op, "无效的认证凭据", nil)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "storage error", err)
	}
	return u, nil
}

func (s *authService) titleTable(ctx context.Context) ([]models.TitleBenefit, error) {
	key := cache.TitleBenefitsKey()

	var rows []models.TitleBenefit
	hit, err := s.cache.GetJSON(ctx, key, &rows)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("title cache read failed")
	}
	if hit {
		return rows, nil
	}

	rows, err = s.titles.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, rows, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("title cache write failed")
	}
	return rows, nil
}

func (s *authService) Me(ctx context.Context, userID uint) (*Profile, error) {
	const op = "AuthService.Me"

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, repoErr(op, err, "用户不存在")
	}

	benefits := map[string]any{}
	titles, err := s.titleTable(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load titles", err)
	}
	if t, ok := models.ResolveTitle(titles, u.CurrentLevel); ok {
		if t.TitleName != u.Title {
			if err := s.users.UpdateTitle(ctx, u.ID, t.TitleName); err != nil {
				return nil, utils.E(utils.CodeInternal, op, "failed to update title", err)
			}
			u.Title = t.TitleName
		}
		if t.Benefits != nil {
			benefits = t.Benefits
		}
	}

	return &Profile{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Role:             u.Role,
		TargetPositions:  u.Positions(),
		CurrentLevel:     u.CurrentLevel,
		ExperiencePoints: u.ExperiencePoints,
		Title:            u.Title,
		Benefits:         benefits,
	}, nil
}

func (s *authService) UpdatePositions(ctx context.Context, userID uint, positions []string) ([]string, error) {
	const op = "AuthService.UpdatePositions"

	positions = cleanPositions(positions)
	if err := checkPositionCount(op, positions, "请至少保留一个目标岗位"); err != nil {
		return nil, err
	}
	if err := s.users.UpdatePositions(ctx, userID, positions); err != nil {
		return nil, repoErr(op, err, "用户不存在")
	}
	return positions, nil
}

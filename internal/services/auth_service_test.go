package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yoockh/xiaomian/internal/auth"
	"github.com/yoockh/xiaomian/internal/logger"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/utils"
)

func newAuthFixture(t *testing.T) (AuthService, *fakeUsers, *fakeTitles) {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", "xiaomian", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	users := newFakeUsers()
	titles := &fakeTitles{rows: models.DefaultTitleBenefits()}
	return NewAuthService(users, titles, newMemCache(), time.Minute, tokens, logger.Discard()), users, titles
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Username:        "xiaoming",
		Email:           " XiaoMing@Example.com ",
		Password:        "secret123",
		TargetPositions: []string{"后端开发工程师", " 后端开发工程师 ", ""},
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	many := make([]string, 11)
	for i := range many {
		many[i] = strings.Repeat("岗", i+1)
	}

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		msg    string
	}{
		{"blank username", func(in *RegisterInput) { in.Username = " " }, "用户名不能为空"},
		{"short username", func(in *RegisterInput) { in.Username = "a" }, "用户名长度至少为2个字符"},
		{"long username", func(in *RegisterInput) { in.Username = strings.Repeat("名", 51) }, "用户名长度不能超过50个字符"},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "邮箱格式不正确"},
		{"short password", func(in *RegisterInput) { in.Password = "12345" }, "密码长度至少为6位"},
		{"long password", func(in *RegisterInput) { in.Password = strings.Repeat("p", 101) }, "密码长度不能超过100位"},
		{"no positions", func(in *RegisterInput) { in.TargetPositions = []string{" "} }, "请至少选择一个目标岗位"},
		{"too many positions", func(in *RegisterInput) { in.TargetPositions = many }, "最多只能选择10个岗位"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration()
			tt.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			if !utils.IsCode(err, utils.CodeInvalidArgument) {
				t.Fatalf("got %v, want invalid argument", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	ctx := context.Background()

	tok, err := svc.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tok.TokenType != auth.TokenType || tok.AccessToken == "" {
		t.Fatalf("unexpected token %+v", tok)
	}

	stored, err := users.GetByEmail(ctx, "xiaoming@example.com")
	if err != nil {
		t.Fatalf("email not normalised: %v", err)
	}
	if len(stored.TargetPositions) != 1 || stored.Role != models.RoleUser || stored.Title != models.DefaultTitle {
		t.Fatalf("unexpected user %+v", stored)
	}
	if stored.PasswordHash == "secret123" {
		t.Fatal("password stored in clear")
	}

	dup := validRegistration()
	dup.Username = "another"
	if _, err := svc.Register(ctx, dup); !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("duplicate email: %v", err)
	}
	dup = validRegistration()
	dup.Email = "other@example.com"
	if _, err := svc.Register(ctx, dup); !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("duplicate username: %v", err)
	}

	if _, err := svc.Login(ctx, "xiaoming@example.com", "wrong-pass"); !utils.IsCode(err, utils.CodeUnauthorized) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret123"); !utils.IsCode(err, utils.CodeUnauthorized) {
		t.Fatalf("unknown email: %v", err)
	}
	login, err := svc.Login(ctx, "XIAOMING@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	u, err := svc.Authenticate(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != stored.ID {
		t.Fatalf("authenticated user %d, want %d", u.ID, stored.ID)
	}
	if _, err := svc.Authenticate(ctx, "garbage"); !utils.IsCode(err, utils.CodeUnauthorized) {
		t.Fatalf("garbage token: %v", err)
	}
}

func TestRegisterLongPasswords(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"80 ascii characters", strings.Repeat("a1", 40)},
		{"30 chinese characters", strings.Repeat("密码", 15)},
		{"100 characters", strings.Repeat("x", 100)},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newAuthFixture(t)
			ctx := context.Background()
			in := validRegistration()
			in.Password = tt.password
			if _, err := svc.Register(ctx, in); err != nil {
				t.Fatalf("Register case %d: %v", i, err)
			}
			if _, err := svc.Login(ctx, "xiaoming@example.com", tt.password); err != nil {
				t.Fatalf("Login: %v", err)
			}
			if _, err := svc.Login(ctx, "xiaoming@example.com", tt.password[:len(tt.password)-1]); !utils.IsCode(err, utils.CodeUnauthorized) {
				t.Fatalf("truncated password: %v", err)
			}
		})
	}
}

func TestAuthenticateDeletedUser(t *testing.T) {
	tokens, _ := auth.NewTokenIssuer("test-secret", "xiaomian", time.Hour)
	svc := NewAuthService(newFakeUsers(), &fakeTitles{}, nil, time.Minute, tokens, logger.Discard())
	raw, _ := tokens.Issue("ghost@example.com", "user")

	if _, err := svc.Authenticate(context.Background(), raw); !utils.IsCode(err, utils.CodeUnauthorized) {
		t.Fatalf("got %v, want unauthorized", err)
	}
}

func TestMeResolvesTitleAndCachesTable(t *testing.T) {
	svc, users, titles := newAuthFixture(t)
	_ = users.Create(context.Background(), &models.User{Username: "pro", Email: "pro@example.com", CurrentLevel: 12, Title: models.DefaultTitle})

	p, err := svc.Me(context.Background(), 1)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if p.Title != "熟练者" || p.Benefits["resume_questions"] != true {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.TargetPositions == nil {
		t.Fatal("positions should render as an empty list")
	}
	stored, _ := users.GetByID(context.Background(), 1)
	if stored.Title != "熟练者" {
		t.Fatalf("title not persisted: %q", stored.Title)
	}

	if _, err := svc.Me(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if titles.lists != 1 {
		t.Fatalf("title table loaded %d times, want 1", titles.lists)
	}

	if _, err := svc.Me(context.Background(), 42); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestUpdatePositions(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	_ = users.Create(context.Background(), &models.User{Username: "u1", Email: "u1@example.com"})

	if _, err := svc.UpdatePositions(context.Background(), 1, []string{" "}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("empty positions: %v", err)
	}
	got, err := svc.UpdatePositions(context.Background(), 1, []string{"产品经理", "产品经理", "测试工程师"})
	if err != nil {
		t.Fatalf("UpdatePositions: %v", err)
	}
	if len(got) != 2 || got[0] != "产品经理" {
		t.Fatalf("positions = %v", got)
	}
}

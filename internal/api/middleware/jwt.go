package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/utils"
)

// Context keys set by JWTAuth.
const (
	KeyUserID = "user_id"
	KeyRole   = "role"
	KeyEmail  = "email"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// Authenticator resolves a bearer token to the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*models.User, error)
}

func abort(c *gin.Context, err error) {
	msg := "无效的认证凭据"
	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Code != utils.CodeUnauthorized {
		msg = ae.Message
	}
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(utils.HTTPStatus(err), apiError{Code: utils.CodeOf(err), Message: msg})
}

func JWTAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, raw, found := strings.Cut(header, " ")
		raw = strings.TrimSpace(raw)
		if !found || !strings.EqualFold(scheme, "Bearer") || raw == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "未提供认证凭据",
			})
			return
		}

		u, err := authn.Authenticate(c.Request.Context(), raw)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(KeyUserID, u.ID)
		c.Set(KeyRole, string(u.Role))
		c.Set(KeyEmail, u.Email)
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/utils"
)

func RequireRole(allowed ...models.UserRole) gin.HandlerFunc {
	allow := map[string]struct{}{}
	for _, a := range allowed {
		r := strings.TrimSpace(strings.ToLower(string(a)))
		if r != "" {
			allow[r] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetString(KeyRole)))
		if _, ok := allow[role]; role == "" || !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "权限不足",
			})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole(models.RoleAdmin) }

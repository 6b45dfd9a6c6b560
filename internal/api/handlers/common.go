package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/xiaomian/internal/api/middleware"
	"github.com/yoockh/xiaomian/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: ae.Message,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeOf(err),
		Message: http.StatusText(status),
	})
}

func requireUserID(c *gin.Context) (uint, bool) {
	if v, ok := c.Get(middleware.KeyUserID); ok {
		if id, ok := v.(uint); ok && id != 0 {
			return id, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "无效的认证凭据", nil))
	return 0, false
}

// pathID parses a positive numeric path parameter.
func pathID(c *gin.Context, name, op string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid "+name, err))
		return 0, false
	}
	return uint(n), true
}

func badBody(c *gin.Context, op string, err error) {
	writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
}

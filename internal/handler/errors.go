package handler

import (
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/gin-gonic/gin"
)

const (
	CodeNoToken             = "NO_TOKEN"
	CodeNoRefreshToken      = "NO_REFRESH_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeValidation          = "VALIDATION_ERROR"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeSetupDisabled       = "SETUP_DISABLED"
	CodeSetupComplete       = "SETUP_COMPLETE"
	CodeInvalidSetupToken   = "INVALID_SETUP_TOKEN"
	CodeInternal            = "INTERNAL_ERROR"
)

func writeError(c *gin.Context, status int, message, code string) {
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

func abortError(c *gin.Context, status int, message, code string) {
	writeError(c, status, message, code)
	c.Abort()
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
)

// CallerKey 认证中间件写入 gin.Context 的调用者键
const CallerKey = "smilecare.caller"

// CallerFrom 取出中间件解析出的调用者, 缺省为访客
func CallerFrom(c *gin.Context) valueobject.Caller {
	if v, ok := c.Get(CallerKey); ok {
		if caller, ok := v.(valueobject.Caller); ok {
			return caller
		}
	}
	return valueobject.Guest()
}

// StatusFor maps an AppError code to an HTTP status.
func StatusFor(code domainErrors.ErrorCode) int {
	switch code {
	case "":
		return http.StatusOK
	case domainErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case domainErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case domainErrors.CodeForbidden:
		return http.StatusForbidden
	case domainErrors.CodeNotFound:
		return http.StatusNotFound
	case domainErrors.CodeConflict, domainErrors.CodeAlreadyExists:
		return http.StatusConflict
	case domainErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case domainErrors.CodeServiceUnavail:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {success:false, error}. Internal failures never expose their cause.
func respondError(c *gin.Context, err error) {
	code := domainErrors.CodeOf(err)
	status := StatusFor(code)
	message := "internal error"
	if status < http.StatusInternalServerError {
		var appErr *domainErrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}

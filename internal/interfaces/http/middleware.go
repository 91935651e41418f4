package http

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smilecare/gateway/internal/domain/service"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	"github.com/smilecare/gateway/internal/interfaces/http/handlers"
	"go.uber.org/zap"
)

// TraceHeader 请求追踪头, 缺省时由网关生成
const TraceHeader = "X-Trace-ID"

// traceIDPattern 客户端追踪 ID 会写入每条日志, 限制长度与字符集
var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// TokenVerifier maps a bearer token to the caller it authenticates.
type TokenVerifier interface {
	Verify(token string) (valueobject.Caller, error)
}

// traceMiddleware attaches a trace id to the request context and echoes it back.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithTraceID(c.Request.Context(), clientTraceID(c.GetHeader(TraceHeader)))
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, service.TraceIDFromContext(ctx))
		c.Next()
	}
}

// clientTraceID returns the header value if it is safe to log, "" otherwise.
func clientTraceID(header string) string {
	if traceIDPattern.MatchString(header) {
		return header
	}
	return ""
}

// authMiddleware resolves the caller from the Authorization header.
//
// No header means guest. A header that does not verify is rejected with 401
// rather than downgraded, so a broken client never silently loses its identity.
// With no verifier configured every bearer token is rejected.
func authMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Set(handlers.CallerKey, valueobject.Guest())
			c.Next()
			return
		}

		token, ok := bearerToken(header)
		if !ok || verifier == nil {
			abortUnauthorized(c)
			return
		}
		caller, err := verifier.Verify(token)
		if err != nil {
			logger.Debug("Bearer token rejected",
				service.TraceField(c.Request.Context()),
				zap.Error(err),
			)
			abortUnauthorized(c)
			return
		}
		c.Set(handlers.CallerKey, caller)
		c.Next()
	}
}

// requireAuth 拒绝访客
func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if handlers.CallerFrom(c).IsGuest() {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// requireAdmin 仅允许管理员
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := handlers.CallerFrom(c)
		if caller.IsGuest() {
			abortUnauthorized(c)
			return
		}
		if !caller.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "admin access required"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
}

// ginLogger Gin日志中间件
func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			service.TraceField(c.Request.Context()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

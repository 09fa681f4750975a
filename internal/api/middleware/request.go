package middleware

import (
	"log/slog"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIDHeader 在请求和响应之间透传链路 ID。
const CorrelationIDHeader = "X-Correlation-ID"

const (
	correlationIDKey = "correlationID"
	requestLoggerKey = "requestLogger"
)

// 外部传入的 ID 会进日志和任务载荷，只接受短的安全字符。
var correlationIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// CorrelationID 复用合法的上游 ID，否则生成新的 UUID。
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if !correlationIDPattern.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

// GetCorrelationID 返回当前请求的链路 ID。
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}

// RequestLogger 为每个请求派生带链路 ID 的 logger，结束时按状态码分级记录。
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		reqLogger := logger.With(
			slog.String("correlation_id", GetCorrelationID(c)),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
		)
		c.Set(requestLoggerKey, reqLogger)

		start := time.Now()
		c.Next()

		attrs := []any{
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}
		if userID, ok := c.Get(UserIDKey); ok {
			attrs = append(attrs, slog.Any("user_id", userID))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			reqLogger.Error("request failed", attrs...)
		case status >= 400:
			reqLogger.Warn("request rejected", attrs...)
		default:
			reqLogger.Info("request completed", attrs...)
		}
	}
}

// LoggerFrom 取出请求级 logger；未经过 RequestLogger 时退回 fallback。
func LoggerFrom(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := c.Get(requestLoggerKey); ok {
		if reqLogger, ok := l.(*slog.Logger); ok {
			return reqLogger
		}
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

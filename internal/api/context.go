package api

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"jobportal/internal/api/middleware"
)

func userIDFromContext(c *gin.Context) (uint, bool) {
	session := middleware.SessionFromContext(c)
	if session == nil || session.UserID == 0 {
		return 0, false
	}
	return session.UserID, true
}

func userTypeFromContext(c *gin.Context) string {
	return c.GetString(middleware.UserTypeKey)
}

// idParam 解析路径中的正整数 ID，非法时直接写 400。
func idParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func loggerFrom(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	return middleware.LoggerFrom(c, fallback)
}

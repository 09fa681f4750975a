package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobportal/internal/auth"
	"jobportal/internal/errcode"
	"jobportal/internal/guard"
)

// 上下文键，由 AuthMiddleware 写入。
const (
	UserIDKey             = "userID"
	UserTypeKey           = "userType"
	MustChangePasswordKey = "mustChangePassword"
)

func abortWithDecision(c *gin.Context, d guard.Decision) {
	switch d.Outcome {
	case guard.NoSession:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":    "unauthorized",
			"code":     errcode.Unauthorized,
			"redirect": d.Redirect,
		})
	case guard.WrongRole:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":    "forbidden",
			"code":     errcode.Forbidden,
			"redirect": d.Redirect,
		})
	}
}

// AuthMiddleware 校验访问令牌并将会话身份注入上下文。
// 缺失或无效的令牌一律视为未登录。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, authService)
		if !ok {
			abortWithDecision(c, guard.Check(nil, guard.RoleAny))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserTypeKey, claims.UserType)
		c.Set(MustChangePasswordKey, claims.MustChangePassword)
		c.Next()
	}
}

func bearerClaims(c *gin.Context, authService *auth.AuthService) (*auth.TokenClaims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, false
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}

	claims, err := authService.ValidateAccessToken(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

// SessionFromContext 读取 AuthMiddleware 注入的会话；未登录时返回 nil。
func SessionFromContext(c *gin.Context) *guard.Session {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return nil
	}
	userID, ok := value.(uint)
	if !ok {
		return nil
	}
	return &guard.Session{UserID: userID, UserType: c.GetString(UserTypeKey)}
}

// RequireRole 限制路由只对某一类用户开放，必须挂在 AuthMiddleware 之后。
func RequireRole(role guard.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := guard.Check(SessionFromContext(c), role)
		if decision.Outcome != guard.Allow {
			abortWithDecision(c, decision)
			return
		}
		c.Next()
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobportal/internal/errcode"
)

// InternalSecretHeader 携带服务间调用的共享密钥。
const InternalSecretHeader = "X-Internal-Secret"

const passwordChangeRequiredMessage = "password change required"

func abortJSON(c *gin.Context, status int, message string, code int) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// RequirePasswordChanged 拦截仍在使用初始密码的账号。
// 只看 access token 里的 must_change_password，不查库。
func RequirePasswordChanged() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(MustChangePasswordKey) {
			abortJSON(c, http.StatusForbidden, passwordChangeRequiredMessage, errcode.Forbidden)
			return
		}
		c.Next()
	}
}

// RequireInternalSecret 保护 /internal 下的接口。密钥只接受 Header，不接受 query。
func RequireInternalSecret(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			abortJSON(c, http.StatusInternalServerError, "internal api secret is not configured", errcode.SystemError)
			return
		}
		got := strings.TrimSpace(c.GetHeader(InternalSecretHeader))
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", errcode.Unauthorized)
			return
		}
		c.Next()
	}
}

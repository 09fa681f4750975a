package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"jobportal/internal/auth"
)

const (
	refreshTokenCookieName   = "refresh_token"
	refreshRevokedKeyPrefix  = "auth:refresh:revoked:"
	refreshCookieFallbackTTL = time.Hour
)

// refreshSessions 管理刷新令牌的 Cookie 与吊销名单。
// 吊销名单以 jti 为键，过期时间与令牌本身一致，之后自然失效。
type refreshSessions struct {
	redis  redis.Cmdable
	ttl    time.Duration
	domain string
}

func newRefreshSessions(client redis.Cmdable, ttl time.Duration, cookieDomain string) *refreshSessions {
	return &refreshSessions{redis: client, ttl: ttl, domain: strings.TrimSpace(cookieDomain)}
}

func revokedKey(jti string) string { return refreshRevokedKeyPrefix + jti }

func (s *refreshSessions) remaining(claims *auth.TokenClaims) time.Duration {
	ttl := s.ttl
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	return max(ttl, time.Second)
}

// consume 原子地把令牌标记为已用。返回 false 表示令牌此前已被使用或吊销，
// 同一个刷新令牌并发刷新时只有一个请求能成功。
func (s *refreshSessions) consume(ctx context.Context, claims *auth.TokenClaims) (bool, error) {
	return s.redis.SetNX(ctx, revokedKey(claims.ID), "used", s.remaining(claims)).Result()
}

// revoke 用于退出登录与改密；重复吊销无副作用。
func (s *refreshSessions) revoke(ctx context.Context, claims *auth.TokenClaims) error {
	return s.redis.Set(ctx, revokedKey(claims.ID), "revoked", s.remaining(claims)).Err()
}

// tokenFrom 优先读 Cookie，其次读 JSON body 里的 refresh_token。
func (s *refreshSessions) tokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func (s *refreshSessions) setCookie(c *gin.Context, token string) {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = refreshCookieFallbackTTL
	}
	s.writeCookie(c, token, int(ttl.Seconds()), time.Now().Add(ttl))
}

func (s *refreshSessions) clearCookie(c *gin.Context) {
	s.writeCookie(c, "", -1, time.Time{})
}

func (s *refreshSessions) writeCookie(c *gin.Context, value string, maxAge int, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    value,
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   maxAge,
		Expires:  expires,
		Secure:   requestIsHTTPS(c.Request),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// requestIsHTTPS 兼容 TLS 终止在反向代理的部署。
func requestIsHTTPS(r *http.Request) bool {
	if r == nil {
		return false
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

package api

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobportal/internal/auth"
)

func TestRefreshSessionsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newRefreshSessions(nil, 2*time.Hour, " jobs.example.com ")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	c.Request.TLS = &tls.ConnectionState{}
	s.setCookie(c, "tok")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.Equal(t, 7200, cookies[0].MaxAge)
	assert.Equal(t, "jobs.example.com", cookies[0].Domain)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	s.clearCookie(c)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
	assert.False(t, cookies[0].Secure)
}

func TestRefreshSessionsTokenFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newRefreshSessions(nil, time.Hour, "")

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"refresh_token":"from-body"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	assert.Equal(t, "from-body", s.tokenFrom(c))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"refresh_token":"from-body"}`))
	c.Request.AddCookie(&http.Cookie{Name: refreshTokenCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", s.tokenFrom(c))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Empty(t, s.tokenFrom(c))
}

func TestRefreshSessionsRemaining(t *testing.T) {
	s := newRefreshSessions(nil, time.Hour, "")
	assert.Equal(t, time.Hour, s.remaining(&auth.TokenClaims{}))

	past := &auth.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	assert.Equal(t, time.Second, s.remaining(past))

	soon := &auth.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute))}}
	assert.InDelta(t, (10 * time.Minute).Seconds(), s.remaining(soon).Seconds(), 2)
}

func TestRefreshWithoutTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/v1/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

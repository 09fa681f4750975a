package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobportal/internal/auth"
)

// NewAuthService 用临时生成的 RSA 密钥构造 AuthService。
func NewAuthService(t testing.TB) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	svc, err := auth.NewAuthService(privatePEM, publicPEM, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

// AccessToken 为指定身份签发访问令牌。
func AccessToken(t testing.TB, svc *auth.AuthService, identity auth.Identity) string {
	t.Helper()
	pair, err := svc.GenerateTokenPair(identity)
	require.NoError(t, err)
	return pair.AccessToken
}

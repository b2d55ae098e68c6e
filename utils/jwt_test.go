package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-job-orchestrator/config"
)

func testConfig() *config.EnvConfig {
	cfg := &config.EnvConfig{}
	cfg.JWT.SecretKey = "secret"
	cfg.JWT.Algorithm = "HS256"
	return cfg
}

func sign(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestExtractToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(c))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie"})
	assert.Equal(t, "cookie", ExtractToken(c))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(c))
}

func TestParseToken(t *testing.T) {
	cfg := testConfig()
	exp := time.Now().Add(time.Hour).Unix()

	tok, err := ParseToken(sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc", "exp": exp}, []byte("secret")), cfg)
	require.NoError(t, err)
	assert.True(t, tok.Valid)

	_, err = ParseToken(sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc", "exp": exp}, []byte("other")), cfg)
	assert.Error(t, err)

	_, err = ParseToken(sign(t, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc", "exp": time.Now().Add(-time.Minute).Unix()}, []byte("secret")), cfg)
	assert.Error(t, err)

	_, err = ParseToken(sign(t, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "svc", "exp": exp}, []byte("secret")), cfg)
	assert.Error(t, err, "only the configured algorithm is accepted")
}

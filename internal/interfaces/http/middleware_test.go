package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewMiddleware(testSecret)
	r := gin.New()
	r.GET("/protected", m.AuthRequired(), m.RateLimitPerUser(5, 10), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func getProtected(r *gin.Engine, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredMissingHeader(t *testing.T) {
	w := getProtected(newProtectedRouter(), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsBadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": float64(1),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	w := getProtected(newProtectedRouter(), signed)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitPerUserAllowsValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"user_id": float64(7),
		"role":    "agent",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	w := getProtected(newProtectedRouter(), token)
	assert.Equal(t, http.StatusOK, w.Code)
}

// A well-signed token without a numeric user_id claim must be rejected,
// not crash the handler.
func TestRateLimitPerUserRejectsMissingUserID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"role": "agent",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	w := getProtected(newProtectedRouter(), token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitPerUserRejectsNonNumericUserID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"user_id": "seven",
		"role":    "agent",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	w := getProtected(newProtectedRouter(), token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/emilythestrangee/qna-forum/backend/internal/models"
)

var secret = []byte("test-secret")

func newRouter(logger *zap.SugaredLogger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger))

	authed := r.Group("", AuthMiddleware(secret))
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetInt(ContextUserID), "role": c.GetString(ContextRole)})
	})
	authed.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(t *testing.T, r http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(zap.NewNop().Sugar())

	member, err := IssueToken(secret, 7, models.RoleMember, time.Hour)
	require.NoError(t, err)
	admin, err := IssueToken(secret, 1, models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, 7, models.RoleMember, -time.Hour)
	require.NoError(t, err)
	forged, err := IssueToken([]byte("other"), 7, models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	w := get(t, r, "/me", member)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"role":"member"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/me", expired).Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/me", forged).Code)

	assert.Equal(t, http.StatusForbidden, get(t, r, "/admin", member).Code)
	assert.Equal(t, http.StatusNoContent, get(t, r, "/admin", admin).Code)
}

func TestAuthMiddleware_RejectsOtherAlgorithms(t *testing.T) {
	r := newRouter(zap.NewNop().Sugar())

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 7})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(t, r, "/me", raw).Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRouter(zap.New(core).Sugar())

	token, err := IssueToken(secret, 3, models.RoleMember, time.Hour)
	require.NoError(t, err)
	get(t, r, "/me", token)
	get(t, r, "/me", "")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(3), entries[0].ContextMap()["user_id"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusUnauthorized), entries[1].ContextMap()["status"])
}

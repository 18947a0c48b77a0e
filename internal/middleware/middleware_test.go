package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentora_backend/internal/auth"
	"rentora_backend/internal/models"
)

const testSecret = "middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIPRateLimiter_AllowPerIP(t *testing.T) {
	l := NewIPRateLimiter(1, 2)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst исчерпан")

	// Лимит у каждого IP свой
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestIPRateLimiter_EvictIdle(t *testing.T) {
	now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(10, 10)
	l.now = func() time.Time { return now }

	l.Allow("10.0.0.1")
	now = now.Add(20 * time.Minute)
	l.Allow("10.0.0.2")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, l.Evict(30*time.Minute))
	_, ok := l.limiters.Load("10.0.0.1")
	assert.False(t, ok)
	_, ok = l.limiters.Load("10.0.0.2")
	assert.True(t, ok)
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(0.001, 1)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/cb", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/cb", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)
	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func newAuthRouter(permission string) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/me", RequirePermission(permission), func(c *gin.Context) {
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "role": role})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	guestToken, err := auth.IssueToken(testSecret, "user-1", models.UserRoleGuest, time.Hour)
	require.NoError(t, err)
	foreignToken, err := auth.IssueToken("other-secret", "user-1", models.UserRoleAdmin, time.Hour)
	require.NoError(t, err)
	expiredToken, err := auth.IssueToken(testSecret, "user-1", models.UserRoleGuest, -time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name       string
		header     string
		permission string
		want       int
	}{
		{"no header", "", auth.PermissionPaymentsRead, http.StatusUnauthorized},
		{"not bearer", "Basic abc", auth.PermissionPaymentsRead, http.StatusUnauthorized},
		{"foreign secret", "Bearer " + foreignToken, auth.PermissionPaymentsRead, http.StatusUnauthorized},
		{"expired", "Bearer " + expiredToken, auth.PermissionPaymentsRead, http.StatusUnauthorized},
		{"guest allowed", "Bearer " + guestToken, auth.PermissionPaymentsRead, http.StatusOK},
		{"guest forbidden", "Bearer " + guestToken, auth.PermissionSettlementAdmin, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			newAuthRouter(tc.permission).ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"user-1","role":"guest"}`, w.Body.String())
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "gw-req-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, "gw-req-1", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clicksprout/internal/auth"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": GetOperator(c), "request_id": GetRequestID(c)})
	}
	r.GET("/ping", ok)
	r.POST("/ping", ok)
	r.GET("/health", ok)
	return r
}

func do(r http.Handler, method, path string, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := newRouter(RateLimitMiddleware(rdb, RateLimit{Requests: 2, Window: time.Minute, Scope: "api"}))

	assert.Equal(t, http.StatusOK, do(r, "GET", "/ping", "", nil).Code)
	w := do(r, "GET", "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(r, "GET", "/ping", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error_code"])

	// health is never limited
	for i := 0; i < 4; i++ {
		assert.Equal(t, http.StatusOK, do(r, "GET", "/health", "", nil).Code)
	}

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, do(r, "GET", "/ping", "", nil).Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	r := newRouter(RateLimitMiddleware(rdb, RateLimit{Requests: 1, Window: time.Minute}))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, "GET", "/ping", "", nil).Code)
	}

	noRedis := newRouter(RateLimitMiddleware(nil, RateLimit{Requests: 1, Window: time.Minute}))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(noRedis, "GET", "/ping", "", nil).Code)
	}
}

func TestRequireOperator(t *testing.T) {
	issuer := auth.NewIssuer("0123456789abcdef0123456789abcdef", time.Hour, nil)
	r := newRouter(NewAuthMiddleware(issuer).RequireOperator())

	w := do(r, "GET", "/ping", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"unauthorized"`)

	w = do(r, "GET", "/ping", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := issuer.Issue(context.Background(), "admin")
	require.NoError(t, err)
	w = do(r, "GET", "/ping", "", map[string]string{"Authorization": "Bearer " + tok.AccessToken})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"operator":"admin"`)

	w = do(r, "GET", "/ping", "", map[string]string{"Cookie": "access_token=" + tok.AccessToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireOperator_DisabledWithoutSecret(t *testing.T) {
	r := newRouter(NewAuthMiddleware(auth.NewIssuer("", time.Hour, nil)).RequireOperator())
	assert.Equal(t, http.StatusOK, do(r, "GET", "/ping", "", nil).Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newRouter(RequestIDMiddleware())

	w := do(r, "GET", "/ping", "", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"request_id":"abc-123"`)

	w = do(r, "GET", "/ping", "", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 32)
}

func TestRequestSizeLimit(t *testing.T) {
	r := newRouter(RequestSizeLimit(8))

	w := do(r, "POST", "/ping", `{"a":"0123456789"}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, http.StatusOK, do(r, "POST", "/ping", `{}`, nil).Code)
}

func TestAuditHelpers(t *testing.T) {
	changes := extractChangesFromBody([]byte(`{"username":"admin","password":"x","apiKey":"k","platform":"twitter"}`))
	assert.Equal(t, "admin", changes["username"])
	assert.Equal(t, "[REDACTED]", changes["password"])
	assert.Equal(t, "[REDACTED]", changes["apiKey"])
	assert.Equal(t, "twitter", changes["platform"])
	assert.Nil(t, extractChangesFromBody([]byte("not json")))

	assert.Equal(t, "posting-engine", resourceFromPath("/posting-engine"))
	assert.Equal(t, "post", resourceFromPath("/post/twitter"))
	assert.Equal(t, "root", resourceFromPath("/"))
}

func TestAuditMiddleware_KeepsBody(t *testing.T) {
	r := gin.New()
	r.Use(AuditMiddleware())
	r.POST("/echo", func(c *gin.Context) {
		var in map[string]string
		require.NoError(t, c.ShouldBindJSON(&in))
		c.JSON(http.StatusOK, in)
	})

	w := do(r, "POST", "/echo?action=start", `{"name":"spring"}`, map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"spring"}`, w.Body.String())
}

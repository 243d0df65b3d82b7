package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/account-service/pkg/helpers"
)

func init() { gin.SetMode(gin.TestMode) }

func whoami(c *gin.Context) {
	req := RequesterFrom(c)
	if req == nil {
		c.String(http.StatusOK, "anonymous")
		return
	}
	c.String(http.StatusOK, req.ID)
}

func TestAuthenticate(t *testing.T) {
	jwt := helpers.NewJWTManager("a", "r", time.Minute, time.Hour)
	tok, _, err := jwt.GenerateAccessToken("acc-1", []string{"ROLE_USER"})
	require.NoError(t, err)
	refresh, _, err := jwt.GenerateRefreshToken("acc-1")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/required", Authenticate(jwt, true), whoami)
	r.GET("/optional", Authenticate(jwt, false), whoami)

	cases := []struct {
		name   string
		path   string
		header string
		cookie string
		code   int
		body   string
	}{
		{"bearer", "/required", "Bearer " + tok, "", http.StatusOK, "acc-1"},
		{"cookie", "/required", "", tok, http.StatusOK, "acc-1"},
		{"missing required", "/required", "", "", http.StatusUnauthorized, ""},
		{"missing optional", "/optional", "", "", http.StatusOK, "anonymous"},
		{"refresh token rejected", "/optional", "Bearer " + refresh, "", http.StatusUnauthorized, ""},
		{"garbage", "/optional", "Bearer nope", "", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RealIP())
	r.POST("/login", RateLimit(rdb, 2, time.Minute, KeyByIPAndPath(), nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, send("203.0.113.7").Code)
	w := send("203.0.113.7")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = send("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, send("198.51.100.1").Code, "other clients keep their own window")

	mr.FastForward(time.Minute)
	assert.Equal(t, http.StatusNoContent, send("203.0.113.7").Code)
}

func TestRateLimitAllowPrivateIP(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RealIP())
	r.GET("/debug", RateLimit(rdb, 1, time.Minute, KeyByIP(), AllowPrivateIP()), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/debug", nil)
		req.Header.Set("X-Real-IP", "10.0.0.4")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestIDKeepsValidIncomingID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	const incoming = "0b5c3a4e-9d1f-4c2a-8a53-0c4a7e9f6b21"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, incoming)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Body.String())
	assert.Equal(t, incoming, w.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "not a uuid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not a uuid", w.Body.String())
	assert.Len(t, w.Body.String(), 36)
}

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/stealthshot/config"
	"github.com/use-agent/stealthshot/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("api_key"))
	})
	return r
}

func do(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"k1", "", "k2"}))

	tests := []struct {
		name, header, value string
		status              int
		body                string
	}{
		{"x-api-key", "X-API-Key", "k1", http.StatusOK, "k1"},
		{"bearer", "Authorization", "Bearer k2", http.StatusOK, "k2"},
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized, ""},
		{"basic scheme", "Authorization", "Basic k1", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.header, tt.value)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
				return
			}
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, models.ErrCodeUnauthorized, resp.Error.Code)
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	for _, keys := range [][]string{nil, {""}} {
		w := do(newEngine(Auth(keys)), "", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestAuth_NoKeysWarns(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	Auth(nil)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "no keys are configured")

	buf.Reset()
	Auth([]string{"k"})
	assert.Empty(t, buf.String())
}

func TestLimiter_PerKey(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer l.Stop()
	r := newEngine(Auth([]string{"a", "b"}), l.Cost(1))

	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "a").Code)
	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "a").Code)

	w := do(r, "X-API-Key", "a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeRateLimited, resp.Error.Code)
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)

	// Buckets are per key.
	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "b").Code)
}

func TestLimiter_Cost(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 6})
	defer l.Stop()

	r := gin.New()
	r.Use(Auth([]string{"k"}))
	r.GET("/cheap", l.Cost(1), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/dear", l.Cost(5), func(c *gin.Context) { c.Status(http.StatusOK) })
	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-API-Key", "k")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("/dear"))
	// One token left: too few for another capture, and a rejected request
	// must not spend it.
	assert.Equal(t, http.StatusTooManyRequests, get("/dear"))
	assert.Equal(t, http.StatusOK, get("/cheap"))
	assert.Equal(t, http.StatusTooManyRequests, get("/cheap"))
}

func TestLimiter_CostClampedToBurst(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer l.Stop()
	r := newEngine(l.Cost(50))

	assert.Equal(t, http.StatusOK, do(r, "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "", "").Code)
}

func TestLimiter_Prune(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	defer l.Stop()

	now := time.Now()
	l.bucketFor("old", now.Add(-2*time.Hour))
	l.bucketFor("new", now)
	l.prune(now.Add(-time.Hour))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "old")
	assert.Contains(t, l.buckets, "new")
}

func TestKnownKey(t *testing.T) {
	keys := [][]byte{[]byte("alpha"), []byte("beta")}
	assert.True(t, knownKey(keys, []byte("beta")))
	assert.False(t, knownKey(keys, []byte("bet")))
	assert.False(t, knownKey(keys, []byte("")))
}

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
	assert.Contains(t, buf.String(), "panic in handler")
	assert.Contains(t, buf.String(), "boom")
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest("POST", "/api/v1/events", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "status=201")
	assert.Contains(t, out, "size=5")
	assert.Contains(t, out, "path=/api/v1/events")
	assert.Contains(t, out, "ip=10.0.0.1")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, 60)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _, _ := rl.Allow("1.2.3.4")
		require.True(t, ok, "request %d", i)
	}
	ok, remaining, wait := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Zero(t, remaining)
	assert.Greater(t, wait, time.Duration(0))

	ok, _, _ = rl.Allow("5.6.7.8")
	assert.True(t, ok, "other clients have their own bucket")

	now = now.Add(20 * time.Second)
	ok, _, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok, "one token refills every window/requests")
}

func TestRateLimit_Middleware(t *testing.T) {
	handler := RateLimit(1, 60)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.10:4321"
	assert.Equal(t, "192.168.1.10", getClientIP(req))

	req.Header.Set("X-Real-IP", "8.8.8.8")
	assert.Equal(t, "8.8.8.8", getClientIP(req))

	req.Header.Set("X-Forwarded-For", " 1.1.1.1 , 2.2.2.2")
	assert.Equal(t, "1.1.1.1", getClientIP(req))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/events/{code}", okHandler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/events/abc234", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NotPanics(t, func() {
		httpRequestsTotal.WithLabelValues("GET", "/events/{code}", "200")
	})
}

func TestCSRF(t *testing.T) {
	secret := []byte("csrf-secret")
	handler := CSRF(secret)(http.HandlerFunc(okHandler))
	session := &http.Cookie{Name: SessionCookie, Value: "jwt-value"}

	t.Run("no session cookie passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/auth/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bearer requests pass", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/referrals", nil)
		req.AddCookie(session)
		req.Header.Set("Authorization", "Bearer x")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("safe method issues cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/me", nil)
		req.AddCookie(session)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, CSRFCookieName, cookies[0].Name)
		assert.Equal(t, CSRFToken(secret, "jwt-value"), cookies[0].Value)
	})

	t.Run("unsafe method requires header", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/referrals", nil)
		req.AddCookie(session)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req.Header.Set(CSRFHeaderName, "wrong")
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req.Header.Set(CSRFHeaderName, CSRFToken(secret, "jwt-value"))
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/domain/auth"
)

func noContent() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRateLimitUsesUserKeyBeforeIPFallback(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())
	ctx := WithUser(context.Background(), auth.UserContext{EmployeeID: "e1", Role: "employee"})

	first := httptest.NewRequest(http.MethodPost, "/api/v1/appraisals/e1/stages/self", nil).WithContext(ctx)
	first.RemoteAddr = "198.51.100.11:2222"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	require.Equal(t, http.StatusNoContent, firstRec.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/appraisals/e1/stages/self", nil).WithContext(ctx)
	second.RemoteAddr = "198.51.100.12:3333"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	assert.Equal(t, http.StatusTooManyRequests, secondRec.Code)
}

func TestRateLimitFallsBackToIP(t *testing.T) {
	limited := RateLimit(1, time.Minute)(noContent())

	first := httptest.NewRequest(http.MethodGet, "/api/v1/timers/employee", nil)
	first.RemoteAddr = "203.0.113.10:4444"
	firstRec := httptest.NewRecorder()
	limited.ServeHTTP(firstRec, first)
	require.Equal(t, http.StatusNoContent, firstRec.Code)

	second := httptest.NewRequest(http.MethodGet, "/api/v1/timers/employee", nil)
	second.RemoteAddr = "203.0.113.10:5555"
	secondRec := httptest.NewRecorder()
	limited.ServeHTTP(secondRec, second)
	assert.Equal(t, http.StatusTooManyRequests, secondRec.Code)
	assert.NotEmpty(t, secondRec.Header().Get("Retry-After"))
	assert.NotEmpty(t, secondRec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitRefillsAfterPeriod(t *testing.T) {
	rl := newRateLimiter(1, time.Minute, clientIPKey)
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/archive", nil)
	req.RemoteAddr = "192.0.2.20:1111"

	assert.True(t, rl.enforce(httptest.NewRecorder(), req))
	denied := httptest.NewRecorder()
	assert.False(t, rl.enforce(denied, req))
	assert.Equal(t, "60", denied.Header().Get("Retry-After"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.enforce(httptest.NewRecorder(), req))
}

func TestRateLimitHeadersTrackRemainingTokens(t *testing.T) {
	rl := newRateLimiter(3, time.Minute, clientIPKey)
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet, "/api/v1/timers/", nil)
	req.RemoteAddr = "192.0.2.30:1111"

	rec := httptest.NewRecorder()
	require.True(t, rl.enforce(rec, req))
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "20", rec.Header().Get("X-RateLimit-Reset"))

	rec = httptest.NewRecorder()
	require.True(t, rl.enforce(rec, req))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestMutationRateLimitScope(t *testing.T) {
	limited := MutationRateLimit(4, time.Minute)(noContent())

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/appraisals/e1", nil)
		req.RemoteAddr = "198.51.100.40:8888"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, "read %d", i+1)
	}

	ctx := WithUser(context.Background(), auth.UserContext{EmployeeID: "hr-1", Role: "hr"})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/archive", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		if i < 2 {
			assert.Equal(t, http.StatusNoContent, rec.Code, "job trigger %d", i+1)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}

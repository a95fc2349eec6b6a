package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/platform/metrics"
)

func TestLoggerRecordsStatus(t *testing.T) {
	provider := metrics.NewProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	instruments, err := metrics.NewHTTP(provider.Meter("http"))
	require.NoError(t, err)
	handler := Logger(instruments)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/appraisals/e1/stages/rm", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/appraisals/e1/stages/rm", nil))

	snap, err := provider.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Totals["http.server.requests"])
	assert.Equal(t, int64(2), snap.Outcomes["http.server.requests"]["rejected"])
	assert.Zero(t, snap.Outcomes["http.server.requests"]["server_error"])
	assert.Equal(t, uint64(2), snap.Latency["http.server.duration"].Count)
}

func TestSecureHeadersAndBodyLimit(t *testing.T) {
	handler := SecureHeaders(true)(BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		_, err := r.Body.Read(buf)
		for err == nil {
			_, err = r.Body.Read(buf)
		}
		var maxErr *http.MaxBytesError
		assert.ErrorAs(t, err, &maxErr)
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789abcdef"))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

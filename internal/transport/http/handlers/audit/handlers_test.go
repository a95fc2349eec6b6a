package audithandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/auth"
	"appraisal/internal/domain/rbac"
	"appraisal/internal/transport/http/middleware"
)

type fakeReader struct {
	events []audit.Event
	last   audit.Filter
}

func (f *fakeReader) Count(ctx context.Context, filter audit.Filter) (int, error) {
	f.last = filter
	return len(f.events), nil
}

func (f *fakeReader) List(ctx context.Context, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error) {
	f.last = filter
	return f.events, nil
}

func newRouter(reader *fakeReader) http.Handler {
	perms := rbac.NewStaticLookup([]rbac.Grant{
		{Role: "hr", Workspace: "appraisal", SubWorkspace: "audit", Permission: rbac.Permission{View: true}},
	})
	r := chi.NewRouter()
	NewHandler(reader, perms).RegisterRoutes(r)
	return r
}

func get(router http.Handler, path, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{EmployeeID: "u1", Role: role}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListEventsPassesFilter(t *testing.T) {
	reader := &fakeReader{events: []audit.Event{{ID: "a1", Action: audit.ActionStageSubmitted, EntityID: "e1"}}}
	router := newRouter(reader)

	rec := get(router, "/audit/events?action=appraisal.stage_submitted&entityId=e1", "hr")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, audit.Filter{Action: audit.ActionStageSubmitted, EntityID: "e1"}, reader.last)

	rec = get(router, "/audit/events", "employee")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportEventsCSV(t *testing.T) {
	reader := &fakeReader{events: []audit.Event{{
		ID:        "a1",
		ActorID:   "h1",
		Action:    audit.ActionTimerUpdated,
		EntityID:  "employee",
		CreatedAt: time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC),
	}}}
	rec := get(newRouter(reader), "/audit/events/export", "hr")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,actor_id,action"))
	assert.Contains(t, lines[1], "timer.updated")
	assert.Contains(t, lines[1], "2025-03-01T09:30:00Z")
}

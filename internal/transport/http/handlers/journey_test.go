package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/app/server"
	"appraisal/internal/domain/auth"
	"appraisal/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type journey struct {
	t      *testing.T
	client *http.Client
	base   string
	secret string
}

func (j journey) token(employeeID, role string) string {
	token, err := auth.GenerateToken(j.secret, auth.Claims{EmployeeID: employeeID, Role: role}, time.Hour)
	require.NoError(j.t, err)
	return token
}

func (j journey) do(method, path, token string, body any) (int, envelope) {
	j.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(j.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, j.base+path, reader)
	require.NoError(j.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := j.client.Do(req)
	require.NoError(j.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(j.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func startApp(t *testing.T) journey {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		Environment:        "test",
		MigrationsDir:      "../../../../migrations",
		EmailFrom:          "no-reply@test.local",
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		SweepLockTTL:       time.Minute,
		Appraisal: config.AppraisalConfig{
			CycleCutoff:      time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC),
			ArchiveMonth:     time.March,
			RolloverMonth:    time.March,
			RemindOffsetDays: 7,
			Location:         time.UTC,
		},
	}

	app, err := server.New(context.Background(), cfg)
	require.NoError(t, err, "failed to start app")
	t.Cleanup(func() { app.Close(context.Background()) })

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return journey{t: t, client: ts.Client(), base: ts.URL + "/api/v1", secret: cfg.JWTSecret}
}

func TestAppraisalJourney(t *testing.T) {
	j := startApp(t)
	suffix := time.Now().UnixNano()
	hrID := fmt.Sprintf("hr-%d", suffix)
	managerID := fmt.Sprintf("mgr-%d", suffix)
	hodID := fmt.Sprintf("hod-%d", suffix)
	employeeID := fmt.Sprintf("emp-%d", suffix)
	outsiderID := fmt.Sprintf("out-%d", suffix)

	hr := j.token(hrID, "hr")
	manager := j.token(managerID, "manager")
	hod := j.token(hodID, "hod")
	employee := j.token(employeeID, "employee")
	outsider := j.token(outsiderID, "employee")

	today := time.Now().UTC()
	window := map[string]string{
		"startDate":  fmt.Sprintf("%d-01-01", today.Year()),
		"endDate":    fmt.Sprintf("%d-12-31", today.Year()),
		"remindDate": today.Format("2006-01-02"),
	}
	for _, scope := range []string{"employee", "reporting_manager", "final_reviewer"} {
		status, _ := j.do(http.MethodPut, "/timers/"+scope, hr, window)
		require.Equal(t, http.StatusOK, status, "open %s window", scope)
	}

	provision := func(id, role, managerID string) {
		status, env := j.do(http.MethodPost, "/employees/"+id+"/provision", hr, map[string]any{
			"name":               id,
			"role":               role,
			"reportingManagerId": managerID,
			"joiningDate":        "2024-05-10",
			"weightage":          10,
		})
		require.Equal(t, http.StatusCreated, status, "provision %s: %+v", id, env.Error)
	}
	provision(hrID, "hr", "")
	provision(managerID, "manager", "")
	provision(hodID, "hod", "")
	provision(employeeID, "employee", managerID)

	status, env := j.do(http.MethodGet, "/appraisals/"+employeeID, employee, nil)
	require.Equal(t, http.StatusOK, status)
	view := decode[struct {
		Track struct {
			States map[string]string `json:"states"`
			Status string            `json:"status"`
		} `json:"track"`
	}](t, env)
	assert.Equal(t, "not_started", view.Track.Status)
	assert.Equal(t, "not_applicable", view.Track.States["coo"])
	assert.Equal(t, "not_applicable", view.Track.States["ceo"])

	status, _ = j.do(http.MethodGet, "/appraisals/"+employeeID, outsider, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = j.do(http.MethodPost, "/appraisals/"+employeeID+"/stages/rm", employee, nil)
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_reviewer", env.Error.Code)

	type submitResult struct {
		Status string `json:"status"`
		Events []struct {
			RecipientID string `json:"recipientId"`
		} `json:"events"`
	}

	status, env = j.do(http.MethodPost, "/appraisals/"+employeeID+"/stages/self", employee, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "in_progress", decode[submitResult](t, env).Status)

	status, env = j.do(http.MethodPost, "/appraisals/"+employeeID+"/stages/self", employee, nil)
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "transition_rejected", env.Error.Code)

	status, env = j.do(http.MethodGet, "/notifications/count", manager, nil)
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, decode[map[string]int](t, env)["unread"], 1)

	status, env = j.do(http.MethodPost, "/appraisals/"+employeeID+"/stages/hod", hod, nil)
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "transition_rejected", env.Error.Code)
	assert.Equal(t, "rm", env.Error.Details["unmet"])

	status, _ = j.do(http.MethodPost, "/appraisals/"+employeeID+"/stages/rm", manager, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = j.do(http.MethodPost, "/appraisals/"+employeeID+"/stages/hr", hr, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = j.do(http.MethodPost, "/appraisals/"+employeeID+"/stages/hod", hod, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "complete", decode[submitResult](t, env).Status)

	status, env = j.do(http.MethodGet, "/notifications/?unread=true", employee, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, decode[[]map[string]any](t, env))

	status, _ = j.do(http.MethodPost, "/jobs/archive?at=2099-03-01", employee, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = j.do(http.MethodPost, "/jobs/archive?at=2099-03-01", hr, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = j.do(http.MethodGet, "/appraisals/"+employeeID+"/archives", employee, nil)
	require.Equal(t, http.StatusOK, status)
	archives := decode[[]struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}](t, env)
	require.NotEmpty(t, archives)
	assert.Equal(t, "complete", archives[0].Status)

	req, err := http.NewRequest(http.MethodGet, j.base+"/appraisals/archives/"+archives[0].ID+"/pdf", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+employee)
	resp, err := j.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	status, env = j.do(http.MethodGet, "/appraisals/"+employeeID, employee, nil)
	require.Equal(t, http.StatusOK, status)
	view = decode[struct {
		Track struct {
			States map[string]string `json:"states"`
			Status string            `json:"status"`
		} `json:"track"`
	}](t, env)
	assert.Equal(t, "not_started", view.Track.Status)

	status, env = j.do(http.MethodGet, "/audit/events?entityId="+employeeID, hr, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, env.Data)
}

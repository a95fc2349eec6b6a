package jobshandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/rbac"
	"appraisal/internal/platform/jobs"
	"appraisal/internal/platform/lock"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
	"appraisal/internal/transport/http/shared"
)

// jobNames maps the public route segment to the registered job type.
var jobNames = map[string]string{
	"rollover":  jobs.JobRollover,
	"archive":   jobs.JobArchive,
	"reminders": jobs.JobReminders,
}

type Handler struct {
	Jobs  *jobs.Service
	Perms rbac.Lookup
	Audit shared.AuditRecorder
}

func NewHandler(jobsSvc *jobs.Service, perms rbac.Lookup, auditSvc shared.AuditRecorder) *Handler {
	return &Handler{Jobs: jobsSvc, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceJobs, rbac.ActionView)).Get("/runs", h.handleListRuns)
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceJobs, rbac.ActionCreate)).Post("/sweep", h.handleSweep)
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceJobs, rbac.ActionCreate)).Post("/{job}", h.handleRun)
	})
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	jobType, ok := jobNames[chi.URLParam(r, "job")]
	if !ok {
		api.Fail(w, http.StatusNotFound, "unknown_job", "job must be one of rollover, archive, reminders", reqID)
		return
	}
	at, err := shared.EvaluationTime(r, h.Jobs.Now())
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_at", "at must be an RFC3339 instant or YYYY-MM-DD date", reqID)
		return
	}

	details, err := h.Jobs.RunNow(r.Context(), jobType, at)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, user.EmployeeID, audit.ActionJobRun, "job", jobType, reqID, nil, map[string]any{
		"evaluatedAt": at,
		"details":     details,
	})
	api.Success(w, map[string]any{"jobType": jobType, "evaluatedAt": at, "details": details}, reqID)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	at, err := shared.EvaluationTime(r, h.Jobs.Now())
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_at", "at must be an RFC3339 instant or YYYY-MM-DD date", reqID)
		return
	}
	results, err := h.Jobs.Sweep(r.Context(), at)
	if errors.Is(err, lock.ErrNotAcquired) {
		writeError(w, err, reqID)
		return
	}
	payload := map[string]any{"evaluatedAt": at, "results": results}
	if err != nil {
		payload["error"] = err.Error()
	}
	shared.Audit(r, h.Audit, user.EmployeeID, audit.ActionJobRun, "job", "sweep", reqID, nil, payload)
	api.Success(w, payload, reqID)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	jobType := r.URL.Query().Get("jobType")
	if name, ok := jobNames[jobType]; ok {
		jobType = name
	}

	runs, err := h.Jobs.ListRuns(r.Context(), jobType, page.Limit, page.Offset)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, api.ListResponse{Items: runs, Total: len(runs), Limit: page.Limit, Offset: page.Offset}, reqID)
}

func writeError(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		api.Fail(w, http.StatusConflict, "sweep_running", "another sweep is running", reqID)
	case errors.Is(err, jobs.ErrUnknownJob):
		api.Fail(w, http.StatusNotFound, "unknown_job", err.Error(), reqID)
	default:
		slog.Error("job run failed", "err", err, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, "job_failed", "job failed", reqID)
	}
}

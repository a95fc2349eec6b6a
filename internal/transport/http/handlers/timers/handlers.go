package timershandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/rbac"
	"appraisal/internal/domain/timer"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
	"appraisal/internal/transport/http/shared"
)

type Handler struct {
	Service  *timer.Service
	Perms    rbac.Lookup
	Audit    shared.AuditRecorder
	Location *time.Location
}

func NewHandler(service *timer.Service, perms rbac.Lookup, auditSvc shared.AuditRecorder, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Service: service, Perms: perms, Audit: auditSvc, Location: loc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	view := middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceTimers, rbac.ActionView)
	r.Route("/timers", func(r chi.Router) {
		r.With(view).Get("/", h.handleList)
		r.With(view).Get("/{scope}", h.handleGet)
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceTimers, rbac.ActionCreate)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceTimers, rbac.ActionEdit)).Put("/{scope}", h.handleUpdate)
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceTimers, rbac.ActionEdit)).Delete("/{scope}", h.handleDelete)
	})
}

type windowPayload struct {
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	RemindDate string `json:"remindDate"`
}

type createPayload struct {
	Scope      string `json:"scope" validate:"required,oneof=employee reporting_manager final_reviewer"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	RemindDate string `json:"remindDate"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	items, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	if items == nil {
		items = []timer.Timer{}
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	t, err := h.Service.Get(r.Context(), timer.Scope(chi.URLParam(r, "scope")))
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, t, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	scope := timer.Scope(chi.URLParam(r, "scope"))
	if !scope.Valid() {
		writeError(w, timer.ErrInvalidScope, reqID)
		return
	}

	var payload windowPayload
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	start, end, remind := h.parseWindow(v, payload.StartDate, payload.EndDate, payload.RemindDate)
	if v.Reject(w, reqID) {
		return
	}

	before, err := h.Service.Get(r.Context(), scope)
	if err != nil && !errors.Is(err, timer.ErrNotFound) {
		writeError(w, err, reqID)
		return
	}
	updated, err := h.Service.Update(r.Context(), scope, start, end, remind)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, user.EmployeeID, audit.ActionTimerUpdated, "appraisal_timer", string(scope), reqID, before, updated)
	api.Success(w, updated, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	var payload createPayload
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	t := timer.Timer{Scope: timer.Scope(payload.Scope)}
	if payload.StartDate != "" || payload.EndDate != "" || payload.RemindDate != "" {
		t.StartDate, t.EndDate, t.RemindDate = h.parseWindow(v, payload.StartDate, payload.EndDate, payload.RemindDate)
	}
	if v.Reject(w, reqID) {
		return
	}

	if err := h.Service.Add(r.Context(), t); err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, user.EmployeeID, audit.ActionTimerCreated, "appraisal_timer", payload.Scope, reqID, nil, t)
	api.Created(w, t, reqID)
}

// handleDelete always refuses: each scope keeps exactly one timer.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	err := h.Service.Remove(r.Context(), timer.Scope(chi.URLParam(r, "scope")))
	if err == nil {
		api.Success(w, map[string]string{"status": "deleted"}, reqID)
		return
	}
	writeError(w, err, reqID)
}

func (h *Handler) parseWindow(v *shared.Validator, rawStart, rawEnd, rawRemind string) (start, end, remind time.Time) {
	parse := func(field, raw string) time.Time {
		if strings.TrimSpace(raw) == "" {
			v.Add(field, "is required")
			return time.Time{}
		}
		parsed, err := shared.ParseDateIn(strings.TrimSpace(raw), h.Location)
		if err != nil {
			v.Add(field, "must be a valid date in YYYY-MM-DD format")
			return time.Time{}
		}
		return parsed
	}
	start = parse("startDate", rawStart)
	end = parse("endDate", rawEnd)
	remind = parse("remindDate", rawRemind)
	v.DateOrder("startDate", start, "endDate", end)
	return start, end, remind
}

func writeError(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, timer.ErrInvalidScope):
		api.Fail(w, http.StatusBadRequest, "invalid_scope", "scope must be one of employee, reporting_manager, final_reviewer", reqID)
	case errors.Is(err, timer.ErrInvalidWindow):
		api.Fail(w, http.StatusBadRequest, "invalid_window", err.Error(), reqID)
	case errors.Is(err, timer.ErrConflict):
		api.Fail(w, http.StatusConflict, "timer_conflict", err.Error(), reqID)
	case errors.Is(err, timer.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
	default:
		slog.Error("timer request failed", "err", err, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, "timer_failed", "timer request failed", reqID)
	}
}

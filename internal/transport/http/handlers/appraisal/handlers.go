package appraisalhandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/auth"
	"appraisal/internal/domain/rbac"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
	"appraisal/internal/transport/http/shared"
)

// Engine is the workflow surface the handlers drive.
type Engine interface {
	Submit(ctx context.Context, req appraisal.SubmitRequest) (appraisal.SubmitResult, error)
	Status(ctx context.Context, employeeID string) (appraisal.StatusView, error)
	ListArchives(ctx context.Context, employeeID string) ([]appraisal.ArchiveRecord, error)
	GetArchive(ctx context.Context, archiveID string) (appraisal.ArchiveRecord, error)
	Employee(ctx context.Context, employeeID string) (appraisal.Employee, error)
	CanView(ctx context.Context, employeeID, actorID string) (bool, error)
	Provision(ctx context.Context, emp appraisal.Employee, weightage float64) (appraisal.ProvisionResult, error)
	ChangeRole(ctx context.Context, employeeID, role string) (appraisal.MarkerChanges, error)
	ChangeJoiningDate(ctx context.Context, employeeID string, joining time.Time) (appraisal.Details, error)
}

type Handler struct {
	Engine   Engine
	Perms    rbac.Lookup
	Audit    shared.AuditRecorder
	Location *time.Location
	Now      func() time.Time
}

func NewHandler(engine Engine, perms rbac.Lookup, auditSvc shared.AuditRecorder, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Engine: engine, Perms: perms, Audit: auditSvc, Location: loc, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/appraisals", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/archives/{archiveId}", h.handleGetArchive)
		r.Get("/archives/{archiveId}/pdf", h.handleArchivePDF)
		r.Get("/{employeeId}", h.handleStatus)
		r.Get("/{employeeId}/archives", h.handleListArchives)
		r.Post("/{employeeId}/stages/{stage}", h.handleSubmit)
	})
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceEmployees, rbac.ActionCreate)).Post("/{employeeId}/provision", h.handleProvision)
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceEmployees, rbac.ActionEdit)).Put("/{employeeId}/role", h.handleChangeRole)
		r.With(middleware.RequirePermission(h.Perms, appraisal.SubWorkspaceEmployees, rbac.ActionEdit)).Put("/{employeeId}/joining-date", h.handleChangeJoiningDate)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeId")

	stage, err := appraisal.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_stage", "stage must be one of self, rm, hr, hod, coo, ceo", reqID)
		return
	}

	result, err := h.Engine.Submit(r.Context(), appraisal.SubmitRequest{
		EmployeeID: employeeID,
		Stage:      stage,
		ActorID:    user.EmployeeID,
		At:         h.Now(),
	})
	if err != nil {
		writeError(w, err, reqID)
		return
	}

	shared.Audit(r, h.Audit, user.EmployeeID, audit.ActionStageSubmitted, "appraisal_status_track", employeeID, reqID, nil, map[string]any{
		"stage":  stage.String(),
		"status": result.Status,
	})
	api.Success(w, result, reqID)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	employeeID := chi.URLParam(r, "employeeId")
	if !h.authorizeRead(w, r, employeeID) {
		return
	}

	view, err := h.Engine.Status(r.Context(), employeeID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, view, reqID)
}

func (h *Handler) handleListArchives(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	employeeID := chi.URLParam(r, "employeeId")
	if !h.authorizeRead(w, r, employeeID) {
		return
	}

	records, err := h.Engine.ListArchives(r.Context(), employeeID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	if records == nil {
		records = []appraisal.ArchiveRecord{}
	}
	api.Success(w, records, reqID)
}

func (h *Handler) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadArchive(w, r)
	if !ok {
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleArchivePDF(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	rec, ok := h.loadArchive(w, r)
	if !ok {
		return
	}

	emp, err := h.Engine.Employee(r.Context(), rec.EmployeeID)
	if err != nil && !errors.Is(err, appraisal.ErrEmployeeNotFound) {
		writeError(w, err, reqID)
		return
	}
	if emp.ID == "" {
		emp.ID = rec.EmployeeID
	}

	var buf bytes.Buffer
	if err := appraisal.WriteArchivePDF(&buf, emp, rec); err != nil {
		slog.Error("archive pdf render failed", "archiveId", rec.ID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "pdf_failed", "failed to render archive", reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=appraisal-%s-%s.pdf", rec.EmployeeID, rec.ArchivedAt.Format("2006")))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("archive pdf write failed", "archiveId", rec.ID, "err", err)
	}
}

func (h *Handler) loadArchive(w http.ResponseWriter, r *http.Request) (appraisal.ArchiveRecord, bool) {
	reqID := middleware.GetRequestID(r.Context())
	archiveID := chi.URLParam(r, "archiveId")
	if _, err := uuid.Parse(archiveID); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_archive_id", "archive id must be a uuid", reqID)
		return appraisal.ArchiveRecord{}, false
	}

	rec, err := h.Engine.GetArchive(r.Context(), archiveID)
	if err != nil {
		writeError(w, err, reqID)
		return appraisal.ArchiveRecord{}, false
	}
	if !h.authorizeRead(w, r, rec.EmployeeID) {
		return appraisal.ArchiveRecord{}, false
	}
	return rec, true
}

// authorizeRead admits the employee, their reviewers and roles allowed to
// view every archive.
func (h *Handler) authorizeRead(w http.ResponseWriter, r *http.Request, employeeID string) bool {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())

	if h.roleAllows(r.Context(), user, appraisal.SubWorkspaceArchives, rbac.ActionView) {
		return true
	}
	ok, err := h.Engine.CanView(r.Context(), employeeID, user.EmployeeID)
	if err != nil {
		writeError(w, err, reqID)
		return false
	}
	if !ok {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to view this appraisal", reqID)
		return false
	}
	return true
}

func (h *Handler) roleAllows(ctx context.Context, user auth.UserContext, subWorkspace, action string) bool {
	if h.Perms == nil || user.Role == "" {
		return false
	}
	perm, err := h.Perms.Lookup(ctx, user.Role, appraisal.Workspace, subWorkspace)
	if err != nil {
		if !errors.Is(err, rbac.ErrPermissionNotFound) {
			slog.Warn("permission lookup failed", "role", user.Role, "subWorkspace", subWorkspace, "err", err)
		}
		return false
	}
	return perm.Allows(action)
}

type provisionPayload struct {
	Name               string  `json:"name" validate:"required,max=200"`
	Email              string  `json:"email" validate:"omitempty,email"`
	Role               string  `json:"role" validate:"required,max=64"`
	ReportingManagerID string  `json:"reportingManagerId" validate:"max=64"`
	JoiningDate        string  `json:"joiningDate" validate:"required"`
	Weightage          float64 `json:"weightage" validate:"gte=0,lte=100"`
	Active             *bool   `json:"active"`
}

func (h *Handler) handleProvision(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeId")

	var payload provisionPayload
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	joining, err := shared.ParseDateIn(strings.TrimSpace(payload.JoiningDate), h.Location)
	if payload.JoiningDate != "" && (err != nil || joining.IsZero()) {
		v.Add("joiningDate", "must be a valid date in YYYY-MM-DD format")
	}
	if payload.ReportingManagerID == employeeID {
		v.Add("reportingManagerId", "must not be the employee")
	}
	if v.Reject(w, reqID) {
		return
	}

	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	emp := appraisal.Employee{
		ID:                 employeeID,
		Name:               strings.TrimSpace(payload.Name),
		Email:              strings.TrimSpace(payload.Email),
		Role:               strings.TrimSpace(payload.Role),
		ReportingManagerID: strings.TrimSpace(payload.ReportingManagerID),
		JoiningDate:        joining,
		Active:             active,
	}
	result, err := h.Engine.Provision(r.Context(), emp, payload.Weightage)
	if err != nil {
		writeError(w, err, reqID)
		return
	}

	shared.Audit(r, h.Audit, user.EmployeeID, audit.ActionEmployeeProvisioned, "employee", employeeID, reqID, nil, map[string]any{
		"role":          emp.Role,
		"applicability": result.Applicability,
		"trackCreated":  result.TrackCreated,
	})
	if result.TrackCreated {
		api.Created(w, result, reqID)
		return
	}
	api.Success(w, result, reqID)
}

type rolePayload struct {
	Role string `json:"role" validate:"required,max=64"`
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeId")

	var payload rolePayload
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	if v.Reject(w, reqID) {
		return
	}

	changes, err := h.Engine.ChangeRole(r.Context(), employeeID, strings.TrimSpace(payload.Role))
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, user.EmployeeID, audit.ActionRoleChanged, "employee", employeeID, reqID, nil, map[string]any{
		"role":    payload.Role,
		"markers": changes,
	})
	api.Success(w, changes, reqID)
}

type joiningPayload struct {
	JoiningDate string `json:"joiningDate" validate:"required"`
}

func (h *Handler) handleChangeJoiningDate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, _ := middleware.GetUser(r.Context())
	employeeID := chi.URLParam(r, "employeeId")

	var payload joiningPayload
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Struct(payload)
	joining, err := shared.ParseDateIn(strings.TrimSpace(payload.JoiningDate), h.Location)
	if payload.JoiningDate != "" && (err != nil || joining.IsZero()) {
		v.Add("joiningDate", "must be a valid date in YYYY-MM-DD format")
	}
	if v.Reject(w, reqID) {
		return
	}

	details, err := h.Engine.ChangeJoiningDate(r.Context(), employeeID, joining)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.Audit(r, h.Audit, user.EmployeeID, audit.ActionJoiningChanged, "employee", employeeID, reqID, nil, details)
	api.Success(w, details, reqID)
}

func writeError(w http.ResponseWriter, err error, reqID string) {
	var te *appraisal.TransitionError
	switch {
	case errors.As(err, &te):
		details := map[string]any{"stage": te.Stage.String()}
		if te.HasUnmet {
			details["unmet"] = te.Unmet.String()
		}
		api.FailWithDetails(w, http.StatusConflict, "transition_rejected", te.Error(), details, reqID)
	case errors.Is(err, appraisal.ErrUnknownStage):
		api.Fail(w, http.StatusBadRequest, "invalid_stage", err.Error(), reqID)
	case errors.Is(err, appraisal.ErrNotReviewer):
		api.Fail(w, http.StatusForbidden, "not_reviewer", err.Error(), reqID)
	case errors.Is(err, appraisal.ErrWindowClosed):
		api.Fail(w, http.StatusConflict, "window_closed", err.Error(), reqID)
	case errors.Is(err, appraisal.ErrEmployeeNotFound),
		errors.Is(err, appraisal.ErrTrackNotFound),
		errors.Is(err, appraisal.ErrArchiveNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
	default:
		slog.Error("appraisal request failed", "err", err, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, "appraisal_failed", "appraisal request failed", reqID)
	}
}

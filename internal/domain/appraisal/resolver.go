package appraisal

import (
	"context"
	"errors"
	"log/slog"

	"appraisal/internal/domain/rbac"
)

// Resolver maps stages to the people who act on them.
type Resolver struct {
	Markers MarkerStore
	Perms   rbac.Lookup
}

func NewResolver(markers MarkerStore, perms rbac.Lookup) *Resolver {
	return &Resolver{Markers: markers, Perms: perms}
}

// Recipients resolves the audience of d for emp. The reporting manager is
// the single manager on the employee record; later stages broadcast to every
// holder of the stage's capability marker.
func (r *Resolver) Recipients(ctx context.Context, emp Employee, d Dispatch) ([]string, error) {
	switch d.Audience {
	case AudienceEmployee:
		return []string{emp.ID}, nil
	case AudienceReportingManager:
		if emp.ReportingManagerID == "" {
			return nil, nil
		}
		return []string{emp.ReportingManagerID}, nil
	case AudienceReviewers:
		capability, ok := d.Next.Capability()
		if !ok {
			return nil, nil
		}
		return r.Markers.ListHolders(ctx, capability)
	}
	return nil, nil
}

// Applicability derives which stages a role is appraised at. A missing
// permission row counts as not applicable and is logged. The RM stage also
// needs an assigned reporting manager.
func (r *Resolver) Applicability(ctx context.Context, emp Employee) Applicability {
	var app Applicability
	for _, s := range Stages[1:] {
		perm, err := r.Perms.Lookup(ctx, emp.Role, Workspace, reviewedBySubWorkspace(s))
		if err != nil {
			if !errors.Is(err, rbac.ErrPermissionNotFound) {
				slog.Warn("stage applicability lookup failed", "employeeId", emp.ID, "role", emp.Role, "stage", s.String(), "err", err)
			}
			continue
		}
		app.set(s, perm.CanAct())
	}
	if emp.ReportingManagerID == "" {
		app.RM = false
	}
	return app
}

// MarkerChanges lists the markers created and removed by SyncMarkers.
type MarkerChanges struct {
	Added   []Capability `json:"added"`
	Removed []Capability `json:"removed"`
	Skipped []Capability `json:"skipped"`
}

// SyncMarkers makes emp's capability markers match its role: create when
// the role may act and the marker is missing, delete when it is present and
// the role may not. Capabilities with no permission row are skipped
// unchanged.
func (r *Resolver) SyncMarkers(ctx context.Context, emp Employee) (MarkerChanges, error) {
	var changes MarkerChanges
	for _, c := range Capabilities {
		perm, err := r.Perms.Lookup(ctx, emp.Role, Workspace, reviewSubWorkspace(c))
		should := false
		switch {
		case errors.Is(err, rbac.ErrPermissionNotFound):
		case err != nil:
			slog.Warn("reviewer capability lookup failed", "employeeId", emp.ID, "role", emp.Role, "capability", c, "err", err)
			changes.Skipped = append(changes.Skipped, c)
			continue
		default:
			should = perm.CanAct()
		}

		has, err := r.Markers.HasMarker(ctx, emp.ID, c)
		if err != nil {
			return changes, err
		}
		switch {
		case should && !has:
			if err := r.Markers.AddMarker(ctx, emp.ID, c); err != nil {
				return changes, err
			}
			changes.Added = append(changes.Added, c)
		case !should && has:
			if err := r.Markers.RemoveMarker(ctx, emp.ID, c); err != nil {
				return changes, err
			}
			changes.Removed = append(changes.Removed, c)
		}
	}
	return changes, nil
}

// CanReview reports whether actorID may act at stage s for emp.
func (r *Resolver) CanReview(ctx context.Context, emp Employee, s Stage, actorID string) (bool, error) {
	switch s {
	case StageSelf:
		return actorID == emp.ID, nil
	case StageRM:
		return emp.ReportingManagerID != "" && actorID == emp.ReportingManagerID, nil
	}
	capability, ok := s.Capability()
	if !ok {
		return false, nil
	}
	return r.Markers.HasMarker(ctx, actorID, capability)
}

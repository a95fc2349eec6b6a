package appraisal

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type ArchiveSummary struct {
	Triggered bool     `json:"triggered"`
	Archived  []string `json:"archived"`
	Skipped   []string `json:"skipped"`
	Failed    []string `json:"failed"`
}

// BuildArchiveBatch snapshots track and details as of at, resets the track
// and prepares the next cycle's details. details may be nil.
func BuildArchiveBatch(emp Employee, track Track, details *Details, at time.Time, remindOffsetDays int) ArchiveBatch {
	rec := ArchiveRecord{
		EmployeeID:         track.EmployeeID,
		ReportingManagerID: emp.ReportingManagerID,
		States:             track.StageMap(),
		Status:             track.Status(),
		ArchivedAt:         at,
	}
	batch := ArchiveBatch{Reset: track.Reset(at)}
	if details != nil {
		rec.PeriodStart = details.Cycle.Start
		rec.PeriodEnd = details.Cycle.End
		rec.Weightage = details.Weightage
		if details.ReportingManagerID != "" {
			rec.ReportingManagerID = details.ReportingManagerID
		}
		batch.Next = &Details{
			EmployeeID:         track.EmployeeID,
			Cycle:              NextCycle(details.Cycle, remindOffsetDays),
			Weightage:          details.Weightage,
			ReportingManagerID: emp.ReportingManagerID,
		}
	}
	batch.Record = rec
	return batch
}

// RunArchival snapshots and resets every active employee not yet archived
// this year. It only acts at the configured archive instant; any other now
// is a no-op. Employees are archived independently and a failure is logged
// and counted without stopping the sweep.
func (e *Engine) RunArchival(ctx context.Context, now time.Time) (ArchiveSummary, error) {
	var summary ArchiveSummary
	if !e.calendar.IsArchiveTrigger(now) {
		return summary, nil
	}
	summary.Triggered = true
	local := now.In(e.calendar.location())

	employees, err := e.store.ListActiveEmployees(ctx)
	if err != nil {
		return summary, err
	}

	for _, emp := range employees {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, err := e.archiveOne(ctx, emp, local)
		switch {
		case err != nil:
			slog.Warn("archival failed", "employeeId", emp.ID, "err", err)
			summary.Failed = append(summary.Failed, emp.ID)
		case outcome == "":
			summary.Skipped = append(summary.Skipped, emp.ID)
		default:
			summary.Archived = append(summary.Archived, emp.ID)
		}
	}

	e.recorder.ArchiveSwept(ctx, len(summary.Archived), len(summary.Skipped), len(summary.Failed))
	slog.Info("archival sweep finished", "archived", len(summary.Archived), "skipped", len(summary.Skipped), "failed", len(summary.Failed))
	return summary, nil
}

// archiveOne returns the new archive id, or "" when emp was skipped.
func (e *Engine) archiveOne(ctx context.Context, emp Employee, at time.Time) (string, error) {
	track, err := e.store.GetTrack(ctx, emp.ID)
	if errors.Is(err, ErrTrackNotFound) {
		slog.Warn("archival skipped: no status track", "employeeId", emp.ID)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if track.ArchivedIn(at.In(e.calendar.location())) {
		return "", nil
	}

	var current *Details
	details, err := e.store.GetDetails(ctx, emp.ID)
	switch {
	case err == nil:
		current = &details
	case errors.Is(err, ErrDetailsNotFound):
		slog.Warn("archiving without appraisal details", "employeeId", emp.ID)
	default:
		return "", err
	}

	batch := BuildArchiveBatch(emp, track, current, at, e.calendar.RemindOffsetDays)
	return e.store.ArchiveEmployee(ctx, batch)
}

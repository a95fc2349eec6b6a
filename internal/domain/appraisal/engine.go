package appraisal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"appraisal/internal/domain/timer"
)

// Recorder observes engine outcomes. Implementations must be safe for
// concurrent use.
type Recorder interface {
	StageCompleted(ctx context.Context, stage Stage)
	TransitionRejected(ctx context.Context, stage Stage)
	NotificationsSent(ctx context.Context, kind string, delivered, failed int)
	ArchiveSwept(ctx context.Context, archived, skipped, failed int)
}

type nopRecorder struct{}

func (nopRecorder) StageCompleted(context.Context, Stage) {}
func (nopRecorder) TransitionRejected(context.Context, Stage) {}
func (nopRecorder) NotificationsSent(context.Context, string, int, int) {}
func (nopRecorder) ArchiveSwept(context.Context, int, int, int) {}

// Engine is the explicit pipeline behind provisioning, stage submission and
// the yearly sweeps. Every call returns what it did instead of firing hooks.
type Engine struct {
	store    StoreAPI
	resolver *Resolver
	notifier Notifier
	timers   TimerReader
	calendar Calendar
	recorder Recorder
}

func NewEngine(store StoreAPI, resolver *Resolver, notifier Notifier, timers TimerReader, cal Calendar) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		notifier: notifier,
		timers:   timers,
		calendar: cal,
		recorder: nopRecorder{},
	}
}

func (e *Engine) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	e.recorder = r
}

func (e *Engine) Calendar() Calendar {
	return e.calendar
}

// Event is one notification produced by a pipeline call.
type Event struct {
	Kind        string `json:"kind"`
	RecipientID string `json:"recipientId"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Delivered   bool   `json:"delivered"`
}

type ProvisionResult struct {
	Employee      Employee      `json:"employee"`
	Applicability Applicability `json:"applicability"`
	Track         Track         `json:"track"`
	TrackCreated  bool          `json:"trackCreated"`
	Details       Details       `json:"details"`
	Markers       MarkerChanges `json:"markers"`
	Events        []Event       `json:"events"`
}

// Provision records emp, syncs its reviewer markers and creates its status
// track and first-cycle details when missing. Calling it again for the same
// employee changes nothing that already exists.
func (e *Engine) Provision(ctx context.Context, emp Employee, weightage float64) (ProvisionResult, error) {
	res := ProvisionResult{Employee: emp}
	if err := e.store.UpsertEmployee(ctx, emp); err != nil {
		return res, err
	}

	markers, err := e.resolver.SyncMarkers(ctx, emp)
	if err != nil {
		return res, err
	}
	res.Markers = markers
	res.Applicability = e.resolver.Applicability(ctx, emp)

	track, err := e.store.GetTrack(ctx, emp.ID)
	switch {
	case errors.Is(err, ErrTrackNotFound):
		track = NewTrack(emp.ID, res.Applicability)
		if err := e.store.CreateTrack(ctx, track); err != nil {
			return res, err
		}
		res.TrackCreated = true
		res.Events = e.dispatch(ctx, emp, PlanCreated(track))
	case err != nil:
		return res, err
	}
	res.Track = track

	details, err := e.store.GetDetails(ctx, emp.ID)
	switch {
	case errors.Is(err, ErrDetailsNotFound):
		details = Details{
			EmployeeID:         emp.ID,
			Cycle:              InitialCycle(emp.JoiningDate, e.calendar.CycleCutoff, e.calendar.RemindOffsetDays),
			Weightage:          weightage,
			ReportingManagerID: emp.ReportingManagerID,
		}
		if err := e.store.UpsertDetails(ctx, details); err != nil {
			return res, err
		}
	case err != nil:
		return res, err
	}
	res.Details = details

	slog.Info("employee provisioned", "employeeId", emp.ID, "role", emp.Role, "trackCreated", res.TrackCreated)
	return res, nil
}

// ChangeRole stores the new role and re-derives the reviewer markers.
func (e *Engine) ChangeRole(ctx context.Context, employeeID, role string) (MarkerChanges, error) {
	emp, err := e.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return MarkerChanges{}, err
	}
	emp.Role = role
	if err := e.store.UpsertEmployee(ctx, emp); err != nil {
		return MarkerChanges{}, err
	}
	changes, err := e.resolver.SyncMarkers(ctx, emp)
	if err != nil {
		return changes, err
	}
	slog.Info("employee role changed", "employeeId", emp.ID, "role", role, "added", changes.Added, "removed", changes.Removed)
	return changes, nil
}

// ChangeJoiningDate stores the new joining date and recomputes the current
// cycle. The weightage of existing details is kept.
func (e *Engine) ChangeJoiningDate(ctx context.Context, employeeID string, joining time.Time) (Details, error) {
	emp, err := e.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return Details{}, err
	}
	emp.JoiningDate = joining
	if err := e.store.UpsertEmployee(ctx, emp); err != nil {
		return Details{}, err
	}

	details, err := e.store.GetDetails(ctx, employeeID)
	if err != nil && !errors.Is(err, ErrDetailsNotFound) {
		return Details{}, err
	}
	details.EmployeeID = employeeID
	details.ReportingManagerID = emp.ReportingManagerID
	details.Cycle = InitialCycle(joining, e.calendar.CycleCutoff, e.calendar.RemindOffsetDays)
	if err := e.store.UpsertDetails(ctx, details); err != nil {
		return Details{}, err
	}
	return details, nil
}

type SubmitRequest struct {
	EmployeeID string
	Stage      Stage
	ActorID    string
	At         time.Time
}

type SubmitResult struct {
	Track  Track   `json:"track"`
	Status Status  `json:"status"`
	Stage  string  `json:"stage"`
	Events []Event `json:"events"`
}

// Submit completes one stage of an employee's track. The write is validated
// before it is saved and plans exactly one notification batch. A missing
// track is created on the self-appraisal submission. Ordering violations are
// reported ahead of a closed window so the caller learns the unmet stage.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.Stage < 0 || int(req.Stage) >= stageCount {
		return SubmitResult{}, ErrUnknownStage
	}
	emp, err := e.store.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return SubmitResult{}, err
	}

	allowed, err := e.resolver.CanReview(ctx, emp, req.Stage, req.ActorID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !allowed {
		return SubmitResult{}, ErrNotReviewer
	}

	prev, err := e.store.GetTrack(ctx, emp.ID)
	if errors.Is(err, ErrTrackNotFound) && req.Stage == StageSelf {
		return e.submitFirst(ctx, emp, req.At)
	}
	if err != nil {
		return SubmitResult{}, err
	}

	next, err := prev.Complete(req.Stage)
	if err != nil {
		e.recorder.TransitionRejected(ctx, req.Stage)
		return SubmitResult{}, err
	}
	plan, err := PlanUpdated(prev, next)
	if err != nil {
		e.recorder.TransitionRejected(ctx, req.Stage)
		return SubmitResult{}, err
	}
	if err := e.checkWindow(ctx, req.Stage, req.At); err != nil {
		return SubmitResult{}, err
	}
	if err := e.store.UpdateTrack(ctx, next); err != nil {
		return SubmitResult{}, err
	}
	e.recorder.StageCompleted(ctx, req.Stage)

	return SubmitResult{
		Track:  next,
		Status: next.Status(),
		Stage:  req.Stage.String(),
		Events: e.dispatch(ctx, emp, plan),
	}, nil
}

func (e *Engine) submitFirst(ctx context.Context, emp Employee, at time.Time) (SubmitResult, error) {
	track, err := NewTrack(emp.ID, e.resolver.Applicability(ctx, emp)).Complete(StageSelf)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := e.checkWindow(ctx, StageSelf, at); err != nil {
		return SubmitResult{}, err
	}
	if err := e.store.CreateTrack(ctx, track); err != nil {
		return SubmitResult{}, err
	}
	e.recorder.StageCompleted(ctx, StageSelf)
	return SubmitResult{
		Track:  track,
		Status: track.Status(),
		Stage:  StageSelf.String(),
		Events: e.dispatch(ctx, emp, PlanCreated(track)),
	}, nil
}

// TimerScope is the submission window governing s.
func (s Stage) TimerScope() timer.Scope {
	switch s {
	case StageSelf:
		return timer.ScopeEmployee
	case StageRM:
		return timer.ScopeReportingManager
	default:
		return timer.ScopeFinalReviewer
	}
}

// checkWindow rejects submissions outside a configured window. Missing or
// unconfigured timers do not block.
func (e *Engine) checkWindow(ctx context.Context, s Stage, at time.Time) error {
	if e.timers == nil {
		return nil
	}
	t, err := e.timers.Get(ctx, s.TimerScope())
	if errors.Is(err, timer.ErrNotFound) {
		slog.Warn("submission window missing", "scope", s.TimerScope(), "stage", s.String())
		return nil
	}
	if err != nil {
		return err
	}
	if !t.Configured() {
		return nil
	}
	if !t.Open(at) {
		return ErrWindowClosed
	}
	return nil
}

// dispatch delivers d. Failures never reach the caller; they are logged and
// reported as undelivered events.
func (e *Engine) dispatch(ctx context.Context, emp Employee, d Dispatch) []Event {
	if d.Empty() {
		return nil
	}
	recipients, err := e.resolver.Recipients(ctx, emp, d)
	if err != nil {
		slog.Warn("notification recipients lookup failed", "employeeId", emp.ID, "audience", d.Audience, "err", err)
		return nil
	}
	if len(recipients) == 0 {
		slog.Warn("notification has no recipients", "employeeId", emp.ID, "audience", d.Audience, "stage", d.Next.String())
		return nil
	}

	title, body := d.Message(emp)
	events := make([]Event, 0, len(recipients))
	delivered := 0
	for _, id := range recipients {
		evt := Event{Kind: d.Kind(), RecipientID: id, Title: title, Body: body}
		if err := e.notifier.Create(ctx, id, evt.Kind, title, body); err != nil {
			slog.Warn("notification create failed", "recipientId", id, "kind", evt.Kind, "err", err)
		} else {
			evt.Delivered = true
			delivered++
		}
		events = append(events, evt)
	}
	e.recorder.NotificationsSent(ctx, d.Kind(), delivered, len(events)-delivered)
	return events
}

// StatusView is the read model of one employee's current cycle.
type StatusView struct {
	Track   Track    `json:"track"`
	Details *Details `json:"details,omitempty"`
}

func (e *Engine) Status(ctx context.Context, employeeID string) (StatusView, error) {
	track, err := e.store.GetTrack(ctx, employeeID)
	if err != nil {
		return StatusView{}, err
	}
	view := StatusView{Track: track}
	details, err := e.store.GetDetails(ctx, employeeID)
	switch {
	case err == nil:
		view.Details = &details
	case !errors.Is(err, ErrDetailsNotFound):
		return StatusView{}, err
	}
	return view, nil
}

func (e *Engine) ListArchives(ctx context.Context, employeeID string) ([]ArchiveRecord, error) {
	return e.store.ListArchives(ctx, employeeID)
}

func (e *Engine) GetArchive(ctx context.Context, archiveID string) (ArchiveRecord, error) {
	return e.store.GetArchive(ctx, archiveID)
}

func (e *Engine) Employee(ctx context.Context, employeeID string) (Employee, error) {
	return e.store.GetEmployee(ctx, employeeID)
}

// CanView reports whether actorID may read the appraisal of employeeID:
// the employee, the reporting manager, or a reviewer at any stage that
// applies to the employee.
func (e *Engine) CanView(ctx context.Context, employeeID, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if actorID == employeeID {
		return true, nil
	}
	emp, err := e.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return false, err
	}
	app := e.resolver.Applicability(ctx, emp)
	for _, s := range Stages[1:] {
		if !app.Applies(s) {
			continue
		}
		ok, err := e.resolver.CanReview(ctx, emp, s, actorID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

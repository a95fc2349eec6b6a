package appraisal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"appraisal/internal/domain/timer"
)

type ReminderSummary struct {
	Scopes []timer.Scope `json:"scopes"`
	Events []Event       `json:"events"`
}

// RunReminders notifies everyone still owing work in a scope whose reminder
// date is today. Each scope reminds at most once per day.
func (e *Engine) RunReminders(ctx context.Context, now time.Time) (ReminderSummary, error) {
	var summary ReminderSummary
	if e.timers == nil {
		return summary, nil
	}
	local := now.In(e.calendar.location())

	var due []timer.Timer
	for _, scope := range timer.Scopes {
		t, err := e.timers.Get(ctx, scope)
		if errors.Is(err, timer.ErrNotFound) {
			continue
		}
		if err != nil {
			return summary, err
		}
		if t.RemindsOn(local) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return summary, nil
	}

	employees, err := e.store.ListActiveEmployees(ctx)
	if err != nil {
		return summary, err
	}
	tracks, err := e.store.ListTracks(ctx)
	if err != nil {
		return summary, err
	}
	byID := make(map[string]Track, len(tracks))
	for _, t := range tracks {
		byID[t.EmployeeID] = t
	}

	// Recipients are resolved for every due scope before any claim so a
	// store failure leaves the day's reminder open for the next sweep.
	pending := make([]map[string]int, len(due))
	for i, t := range due {
		if pending[i], err = e.owing(ctx, t.Scope, employees, byID); err != nil {
			return summary, err
		}
	}

	for i, t := range due {
		claimed, err := e.timers.ClaimReminder(ctx, t.Scope, local)
		if err != nil {
			return summary, err
		}
		if !claimed {
			continue
		}
		summary.Scopes = append(summary.Scopes, t.Scope)
		summary.Events = append(summary.Events, e.remind(ctx, t, pending[i])...)
	}
	slog.Info("reminders sent", "scopes", summary.Scopes, "notifications", len(summary.Events))
	return summary, nil
}

// owing maps each recipient to the number of appraisals awaiting them in scope.
func (e *Engine) owing(ctx context.Context, scope timer.Scope, employees []Employee, tracks map[string]Track) (map[string]int, error) {
	out := make(map[string]int)
	holders := make(map[Capability][]string)
	for _, emp := range employees {
		track, ok := tracks[emp.ID]
		if !ok {
			if scope == timer.ScopeEmployee {
				out[emp.ID]++
			}
			continue
		}
		stage, ok := track.FirstPending()
		if !ok || stage.TimerScope() != scope {
			continue
		}
		switch stage {
		case StageSelf:
			out[emp.ID]++
		case StageRM:
			if emp.ReportingManagerID != "" {
				out[emp.ReportingManagerID]++
			}
		default:
			capability, _ := stage.Capability()
			ids, cached := holders[capability]
			if !cached {
				var err error
				ids, err = e.resolver.Markers.ListHolders(ctx, capability)
				if err != nil {
					return nil, err
				}
				holders[capability] = ids
			}
			for _, id := range ids {
				out[id]++
			}
		}
	}
	return out, nil
}

func (e *Engine) remind(ctx context.Context, t timer.Timer, pending map[string]int) []Event {
	recipients := make([]string, 0, len(pending))
	for id := range pending {
		recipients = append(recipients, id)
	}
	sort.Strings(recipients)

	deadline := t.EndDate.Format("2 January 2006")
	var events []Event
	delivered := 0
	for _, id := range recipients {
		title, body := reminderMessage(t.Scope, pending[id], deadline)
		evt := Event{Kind: KindAppraisalReminder, RecipientID: id, Title: title, Body: body}
		if err := e.notifier.Create(ctx, id, evt.Kind, title, body); err != nil {
			slog.Warn("reminder create failed", "recipientId", id, "scope", t.Scope, "err", err)
		} else {
			evt.Delivered = true
			delivered++
		}
		events = append(events, evt)
	}
	e.recorder.NotificationsSent(ctx, KindAppraisalReminder, delivered, len(events)-delivered)
	return events
}

func reminderMessage(scope timer.Scope, count int, deadline string) (string, string) {
	if scope == timer.ScopeEmployee {
		return "Self-appraisal reminder", fmt.Sprintf("Your self-appraisal is due by %s.", deadline)
	}
	noun := "appraisal"
	if count != 1 {
		noun = "appraisals"
	}
	return "Appraisal review reminder", fmt.Sprintf("%d %s awaiting your review. The review window closes on %s.", count, noun, deadline)
}

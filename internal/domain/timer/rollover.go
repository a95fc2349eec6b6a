package timer

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Calendar fixes the instant at which timers roll into the next cycle:
// the first day of Month at Hour, evaluated in Location.
type Calendar struct {
	Month            time.Month
	Hour             int
	RemindOffsetDays int
	Location         *time.Location
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calendar) IsTrigger(now time.Time) bool {
	local := now.In(c.location())
	return local.Month() == c.Month && local.Day() == 1 && local.Hour() == c.Hour
}

type RolloverSummary struct {
	Triggered bool    `json:"triggered"`
	Rolled    []Scope `json:"rolled"`
	Current   []Scope `json:"current"`
	Skipped   []Scope `json:"skipped"`
}

// RollForward rewrites every configured timer into the cycle year that
// follows now. Calls outside the trigger hour are no-ops and a timer already
// in or beyond its target year is left alone, so repeated sweeps within the hour are safe.
func RollForward(ctx context.Context, store StoreAPI, cal Calendar, now time.Time) (RolloverSummary, error) {
	var summary RolloverSummary
	if !cal.IsTrigger(now) {
		return summary, nil
	}
	summary.Triggered = true
	local := now.In(cal.location())

	for _, scope := range Scopes {
		t, err := store.Get(ctx, scope)
		if errors.Is(err, ErrNotFound) {
			slog.Warn("timer rollover skipped: timer missing", "scope", scope)
			summary.Skipped = append(summary.Skipped, scope)
			continue
		}
		if err != nil {
			return summary, err
		}
		if !t.Configured() {
			slog.Warn("timer rollover skipped: start or end date not set", "scope", scope)
			summary.Skipped = append(summary.Skipped, scope)
			continue
		}

		year := TargetYear(t, local)
		if t.StartDate.Year() >= year {
			summary.Current = append(summary.Current, scope)
			continue
		}
		rolled := Roll(t, year, cal.RemindOffsetDays)
		if err := store.Update(ctx, rolled); err != nil {
			return summary, err
		}
		slog.Info("timer rolled forward", "scope", scope, "start", rolled.StartDate, "end", rolled.EndDate, "remind", rolled.RemindDate)
		summary.Rolled = append(summary.Rolled, scope)
	}
	return summary, nil
}

// TargetYear is the current year unless the window, moved into the current
// year, would already have closed by now; then it is the next year.
func TargetYear(t Timer, now time.Time) int {
	year := now.Year()
	span := t.EndDate.Year() - t.StartDate.Year()
	end := substituteYear(t.EndDate, year+span)
	if end.Before(dateOf(now)) {
		return year + 1
	}
	return year
}

// Roll moves the window into year keeping month and day, then places the
// reminder offsetDays before the end (never before the start).
func Roll(t Timer, year, offsetDays int) Timer {
	span := t.EndDate.Year() - t.StartDate.Year()
	out := t
	out.StartDate = substituteYear(t.StartDate, year)
	out.EndDate = substituteYear(t.EndDate, year+span)
	out.RemindDate = out.EndDate.AddDate(0, 0, -offsetDays)
	if out.RemindDate.Before(out.StartDate) {
		out.RemindDate = out.StartDate
	}
	return out
}

// substituteYear keeps month and day, clamping Feb 29 into non-leap years.
func substituteYear(t time.Time, year int) time.Time {
	day := t.Day()
	if last := daysIn(t.Month(), year); day > last {
		day = last
	}
	return time.Date(year, t.Month(), day, 0, 0, 0, 0, t.Location())
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

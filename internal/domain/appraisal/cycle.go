package appraisal

import "time"

const (
	// legacyCycleMonth is the company-wide cycle for employees who joined
	// before the cutoff.
	legacyCycleMonth = time.March

	proratedRemindDays = 14
	proratedEndDays    = 29
)

// InitialCycle places a new employee's first appraisal in the year after
// joining. Employees who joined before cutoff share the March cycle; later
// joiners get an anniversary cycle starting on the first of their joining
// month.
func InitialCycle(joining, cutoff time.Time, remindOffsetDays int) Cycle {
	loc := joining.Location()
	year := joining.Year() + 1

	if joining.Before(cutoff) {
		start := time.Date(year, legacyCycleMonth, 1, 0, 0, 0, 0, loc)
		end := time.Date(year, legacyCycleMonth+1, 0, 0, 0, 0, 0, loc)
		return Cycle{Start: start, End: end, Remind: end.AddDate(0, 0, -remindOffsetDays)}
	}

	start := time.Date(year, joining.Month(), 1, 0, 0, 0, 0, loc)
	return Cycle{
		Start:  start,
		End:    start.AddDate(0, 0, proratedEndDays),
		Remind: start.AddDate(0, 0, proratedRemindDays),
	}
}

// NextCycle moves c one year forward keeping month and day and puts the
// reminder remindOffsetDays before the end.
func NextCycle(c Cycle, remindOffsetDays int) Cycle {
	start := addYearClamped(c.Start)
	end := addYearClamped(c.End)
	remind := end.AddDate(0, 0, -remindOffsetDays)
	if remind.Before(start) {
		remind = start
	}
	return Cycle{Start: start, End: end, Remind: remind}
}

func addYearClamped(t time.Time) time.Time {
	year := t.Year() + 1
	day := t.Day()
	if last := time.Date(year, t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day(); day > last {
		day = last
	}
	return time.Date(year, t.Month(), day, 0, 0, 0, 0, t.Location())
}

// Calendar fixes the yearly archival instant and cycle provisioning rules.
type Calendar struct {
	CycleCutoff      time.Time
	ArchiveMonth     time.Month
	ArchiveHour      int
	RemindOffsetDays int
	Location         *time.Location
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// IsArchiveTrigger reports whether now is the first day of the archive
// month at the archive hour.
func (c Calendar) IsArchiveTrigger(now time.Time) bool {
	local := now.In(c.location())
	return local.Month() == c.ArchiveMonth && local.Day() == 1 && local.Hour() == c.ArchiveHour
}

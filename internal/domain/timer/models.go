package timer

import "time"

// Timer is the submission window for one scope. Zero dates mean the window
// has not been configured yet.
type Timer struct {
	Scope      Scope     `json:"scope"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	RemindDate time.Time `json:"remindDate"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (t Timer) Configured() bool {
	return !t.StartDate.IsZero() && !t.EndDate.IsZero()
}

// Open reports whether at falls on or between the start and end dates.
// The end date is inclusive for the whole day.
func (t Timer) Open(at time.Time) bool {
	if !t.Configured() {
		return false
	}
	day := dateOf(at.In(t.StartDate.Location()))
	return !day.Before(dateOf(t.StartDate)) && !day.After(dateOf(t.EndDate))
}

// RemindsOn reports whether the reminder date falls on the same day as at.
func (t Timer) RemindsOn(at time.Time) bool {
	if t.RemindDate.IsZero() {
		return false
	}
	return dateOf(at.In(t.RemindDate.Location())).Equal(dateOf(t.RemindDate))
}

func validateWindow(start, end, remind time.Time) error {
	if start.IsZero() || end.IsZero() || remind.IsZero() {
		return ErrInvalidWindow
	}
	if start.After(remind) || remind.After(end) {
		return ErrInvalidWindow
	}
	if start.Year() != end.Year() {
		return ErrInvalidWindow
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

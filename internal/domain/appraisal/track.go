package appraisal

import (
	"encoding/json"
	"time"
)

// Track is the per-employee status record. Stage completion only moves
// forward within a cycle; Reset is the single way back to pending.
type Track struct {
	EmployeeID     string
	States         [stageCount]State
	LastArchivedAt *time.Time
	UpdatedAt      time.Time
}

// NewTrack starts a cycle: self-appraisal and every applicable stage are
// pending, the rest are not applicable.
func NewTrack(employeeID string, app Applicability) Track {
	t := Track{EmployeeID: employeeID}
	for _, s := range Stages {
		if app.Applies(s) {
			t.States[s] = StatePending
		} else {
			t.States[s] = StateNotApplicable
		}
	}
	return t
}

func (t Track) State(s Stage) State {
	if s < 0 || int(s) >= stageCount {
		return StateNotApplicable
	}
	return t.States[s]
}

func (t Track) Applicability() Applicability {
	var a Applicability
	for _, s := range Stages[1:] {
		a.set(s, t.States[s] != StateNotApplicable)
	}
	return a
}

func (t Track) Status() Status {
	if t.States[StageSelf] != StateDone {
		return StatusNotStarted
	}
	for _, s := range Stages {
		if t.States[s] == StatePending {
			return StatusInProgress
		}
	}
	return StatusComplete
}

// NextPending returns the first pending stage after s.
func (t Track) NextPending(after Stage) (Stage, bool) {
	for _, s := range Stages[after+1:] {
		if t.States[s] == StatePending {
			return s, true
		}
	}
	return 0, false
}

// FirstPending returns the earliest pending stage of the track.
func (t Track) FirstPending() (Stage, bool) {
	for _, s := range Stages {
		if t.States[s] == StatePending {
			return s, true
		}
	}
	return 0, false
}

// Complete returns a copy of t with s marked done, rejecting resubmission,
// inapplicable stages and out-of-order completion.
func (t Track) Complete(s Stage) (Track, error) {
	if s < 0 || int(s) >= stageCount {
		return t, ErrUnknownStage
	}
	switch t.States[s] {
	case StateDone:
		return t, &TransitionError{Stage: s, Err: ErrStageAlreadyDone}
	case StateNotApplicable:
		return t, &TransitionError{Stage: s, Err: ErrStageNotApplicable}
	}
	next := t
	next.States[s] = StateDone
	if _, _, err := ValidateTransition(t, next); err != nil {
		return t, err
	}
	return next, nil
}

// Reset reopens every applicable stage for a new cycle.
func (t Track) Reset(at time.Time) Track {
	out := t
	for _, s := range Stages {
		if out.States[s] != StateNotApplicable {
			out.States[s] = StatePending
		}
	}
	stamp := at
	out.LastArchivedAt = &stamp
	return out
}

// ArchivedIn reports whether the track was archived in the calendar year of
// at, read in at's location. Stored stamps come back in UTC.
func (t Track) ArchivedIn(at time.Time) bool {
	return t.LastArchivedAt != nil && t.LastArchivedAt.In(at.Location()).Year() == at.Year()
}

func (t Track) StageMap() StageMap {
	out := make(StageMap, stageCount)
	for _, s := range Stages {
		out[s.String()] = t.States[s]
	}
	return out
}

func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EmployeeID     string     `json:"employeeId"`
		States         StageMap   `json:"states"`
		Status         Status     `json:"status"`
		LastArchivedAt *time.Time `json:"lastArchivedAt,omitempty"`
	}{t.EmployeeID, t.StageMap(), t.Status(), t.LastArchivedAt})
}

// ValidateTransition checks a write from prev to next and returns the stage
// that flipped from pending to done. ok is false when no stage completed.
// A completed stage may never regress, at most one stage may complete per
// write, and every applicable stage before the completed one must be done.
func ValidateTransition(prev, next Track) (stage Stage, ok bool, err error) {
	for _, s := range Stages {
		before, after := prev.States[s], next.States[s]
		if before == StateDone && after != StateDone {
			return s, false, &TransitionError{Stage: s, Err: ErrStageRegressed}
		}
		if before == after || after != StateDone {
			continue
		}
		if before == StateNotApplicable {
			return s, false, &TransitionError{Stage: s, Err: ErrStageNotApplicable}
		}
		if ok {
			return s, false, &TransitionError{Stage: s, Err: ErrMultipleStages}
		}
		stage, ok = s, true
	}
	if !ok {
		return 0, false, nil
	}
	for _, prior := range Stages[:stage] {
		if next.States[prior] == StatePending {
			return stage, false, &TransitionError{Stage: stage, Unmet: prior, HasUnmet: true, Err: ErrStageOutOfOrder}
		}
	}
	return stage, true, nil
}

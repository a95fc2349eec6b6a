package appraisal

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownStage       = errors.New("unknown appraisal stage")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrTrackNotFound      = errors.New("status track not found")
	ErrTrackExists        = errors.New("status track already exists")
	ErrDetailsNotFound    = errors.New("appraisal details not found")
	ErrArchiveNotFound    = errors.New("appraisal archive not found")
	ErrNotReviewer        = errors.New("actor may not act at this stage")
	ErrWindowClosed       = errors.New("appraisal window is closed for this stage")
	ErrStageAlreadyDone   = errors.New("stage already completed")
	ErrStageOutOfOrder    = errors.New("prior stage not completed")
	ErrStageNotApplicable = errors.New("stage does not apply to this employee")
	ErrStageRegressed     = errors.New("completed stage cannot return to pending")
	ErrMultipleStages     = errors.New("only one stage may complete per write")
)

// TransitionError rejects a status track write that breaks the review order.
type TransitionError struct {
	Stage Stage
	// Unmet is the earliest applicable stage still pending, set for ErrStageOutOfOrder.
	Unmet    Stage
	HasUnmet bool
	Err      error
}

func (e *TransitionError) Error() string {
	if e.HasUnmet {
		return fmt.Sprintf("%s rejected: %s is not yet done", e.Stage.Label(), e.Unmet.Label())
	}
	return fmt.Sprintf("%s rejected: %v", e.Stage.Label(), e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// IsTransitionError reports whether err is an ordering violation.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

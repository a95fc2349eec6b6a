package appraisal

import "fmt"

// Audience names who a transition notifies.
type Audience string

const (
	AudienceNone             Audience = ""
	AudienceReportingManager Audience = "reporting_manager"
	AudienceReviewers        Audience = "reviewers"
	AudienceEmployee         Audience = "employee"
)

// Notification kinds recorded with each in-app notification.
const (
	KindSelfAppraisalSubmitted = "self_appraisal_submitted"
	KindReviewPending          = "appraisal_review_pending"
	KindAppraisalComplete      = "appraisal_complete"
	KindAppraisalReminder      = "appraisal_reminder"
)

// Dispatch is the single notification batch planned for one track write.
type Dispatch struct {
	Audience  Audience
	Completed Stage
	// Next is the stage whose reviewers are addressed; only meaningful for
	// AudienceReportingManager and AudienceReviewers.
	Next Stage
}

func (d Dispatch) Empty() bool {
	return d.Audience == AudienceNone
}

// PlanCreated plans the notification for a freshly created track: only a
// track created with the self-appraisal already submitted announces it, and
// only to the reporting manager.
func PlanCreated(track Track) Dispatch {
	if track.States[StageSelf] != StateDone {
		return Dispatch{}
	}
	return Dispatch{Audience: AudienceReportingManager, Completed: StageSelf, Next: StageRM}
}

// PlanUpdated validates the write and plans its notification. Writes that
// complete no stage plan nothing.
func PlanUpdated(prev, next Track) (Dispatch, error) {
	stage, ok, err := ValidateTransition(prev, next)
	if err != nil {
		return Dispatch{}, err
	}
	if !ok {
		return Dispatch{}, nil
	}
	if next.Status() == StatusComplete {
		return Dispatch{Audience: AudienceEmployee, Completed: stage}, nil
	}
	following, found := next.NextPending(stage)
	if !found {
		// An earlier stage is still pending; ValidateTransition rules this out.
		return Dispatch{}, nil
	}
	if following == StageRM {
		return Dispatch{Audience: AudienceReportingManager, Completed: stage, Next: following}, nil
	}
	return Dispatch{Audience: AudienceReviewers, Completed: stage, Next: following}, nil
}

// Message renders the title and body of d for emp.
func (d Dispatch) Message(emp Employee) (title, body string) {
	name := emp.Name
	if name == "" {
		name = emp.ID
	}
	switch {
	case d.Audience == AudienceEmployee:
		return "Appraisal complete", "All reviews of your appraisal are complete."
	case d.Completed == StageSelf && d.Next == StageRM:
		return "New self-appraisal submitted", fmt.Sprintf("%s has submitted a self-appraisal and is awaiting your review.", name)
	default:
		return fmt.Sprintf("Appraisal awaiting %s", d.Next.Label()),
			fmt.Sprintf("The %s of %s is complete and the appraisal is awaiting your %s.", d.Completed.Label(), name, d.Next.Label())
	}
}

// Kind is the notification type recorded for d.
func (d Dispatch) Kind() string {
	switch {
	case d.Audience == AudienceEmployee:
		return KindAppraisalComplete
	case d.Completed == StageSelf:
		return KindSelfAppraisalSubmitted
	default:
		return KindReviewPending
	}
}

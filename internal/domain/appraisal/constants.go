package appraisal

import (
	"fmt"
	"strings"
)

// Stage is one step of the fixed review order.
type Stage int

const (
	StageSelf Stage = iota
	StageRM
	StageHR
	StageHOD
	StageCOO
	StageCEO
)

const stageCount = 6

// Stages lists stages in execution order.
var Stages = [stageCount]Stage{StageSelf, StageRM, StageHR, StageHOD, StageCOO, StageCEO}

var stageNames = [stageCount]string{"self", "rm", "hr", "hod", "coo", "ceo"}

var stageLabels = [stageCount]string{
	"self-appraisal",
	"reporting manager review",
	"HR review",
	"HOD review",
	"COO review",
	"CEO review",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= stageCount {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) Label() string {
	if s < 0 || int(s) >= stageCount {
		return s.String()
	}
	return stageLabels[s]
}

func ParseStage(raw string) (Stage, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for i, name := range stageNames {
		if name == normalized {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, raw)
}

// State is the tri-state of one stage.
type State string

const (
	StateNotApplicable State = "not_applicable"
	StatePending       State = "pending"
	StateDone          State = "done"
)

func (s State) Valid() bool {
	return s == StateNotApplicable || s == StatePending || s == StateDone
}

// Status summarises a whole track.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// Capability is a reviewer marker held by employees who may act at a stage.
type Capability string

const (
	CapabilityReportingManager Capability = "reporting_manager"
	CapabilityHR               Capability = "hr"
	CapabilityHOD              Capability = "hod"
	CapabilityCOO              Capability = "coo"
	CapabilityCEO              Capability = "ceo"
)

var Capabilities = []Capability{CapabilityReportingManager, CapabilityHR, CapabilityHOD, CapabilityCOO, CapabilityCEO}

// Capability returns the marker required to act at s. Self has none.
func (s Stage) Capability() (Capability, bool) {
	switch s {
	case StageRM:
		return CapabilityReportingManager, true
	case StageHR:
		return CapabilityHR, true
	case StageHOD:
		return CapabilityHOD, true
	case StageCOO:
		return CapabilityCOO, true
	case StageCEO:
		return CapabilityCEO, true
	}
	return "", false
}

// Role-permission workspace layout consulted at provisioning time.
const (
	Workspace = "appraisal"

	SubWorkspaceSelfAppraisal = "self_appraisal"
	SubWorkspaceStatus        = "status"
	SubWorkspaceArchives      = "archives"
	SubWorkspaceTimers        = "timers"
	SubWorkspaceJobs          = "jobs"
	SubWorkspaceEmployees     = "employees"
	SubWorkspaceAudit         = "audit"
)

// reviewedBySubWorkspace marks that an employee of a role is appraised at s.
func reviewedBySubWorkspace(s Stage) string {
	return "reviewed_by_" + s.String()
}

// reviewSubWorkspace marks that an employee of a role reviews at the stage of c.
func reviewSubWorkspace(c Capability) string {
	switch c {
	case CapabilityReportingManager:
		return "rm_review"
	default:
		return string(c) + "_review"
	}
}

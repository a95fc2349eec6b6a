package appraisal

import "time"

// Employee is the directory record the engine reads; the directory itself
// is owned elsewhere.
type Employee struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Role               string    `json:"role"`
	ReportingManagerID string    `json:"reportingManagerId,omitempty"`
	JoiningDate        time.Time `json:"joiningDate"`
	Active             bool      `json:"active"`
}

// Applicability records which review stages an employee's role requires.
// Self-appraisal always applies.
type Applicability struct {
	RM  bool `json:"reviewedByRm"`
	HR  bool `json:"reviewedByHr"`
	HOD bool `json:"reviewedByHod"`
	COO bool `json:"reviewedByCoo"`
	CEO bool `json:"reviewedByCeo"`
}

func (a Applicability) Applies(s Stage) bool {
	switch s {
	case StageSelf:
		return true
	case StageRM:
		return a.RM
	case StageHR:
		return a.HR
	case StageHOD:
		return a.HOD
	case StageCOO:
		return a.COO
	case StageCEO:
		return a.CEO
	}
	return false
}

func (a *Applicability) set(s Stage, v bool) {
	switch s {
	case StageRM:
		a.RM = v
	case StageHR:
		a.HR = v
	case StageHOD:
		a.HOD = v
	case StageCOO:
		a.COO = v
	case StageCEO:
		a.CEO = v
	}
}

// Cycle is one appraisal window.
type Cycle struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Remind time.Time `json:"remind"`
}

// Details is the working copy of the current cycle for one employee.
type Details struct {
	EmployeeID         string  `json:"employeeId"`
	Cycle              Cycle   `json:"cycle"`
	Weightage          float64 `json:"weightage"`
	ReportingManagerID string  `json:"reportingManagerId,omitempty"`
}

// ArchiveRecord is the immutable snapshot of one finished cycle.
type ArchiveRecord struct {
	ID                 string    `json:"id"`
	EmployeeID         string    `json:"employeeId"`
	PeriodStart        time.Time `json:"periodStart"`
	PeriodEnd          time.Time `json:"periodEnd"`
	Weightage          float64   `json:"weightage"`
	ReportingManagerID string    `json:"reportingManagerId,omitempty"`
	States             StageMap  `json:"states"`
	Status             Status    `json:"status"`
	ArchivedAt         time.Time `json:"archivedAt"`
}

// StageMap is the JSON view of a track's stage states.
type StageMap map[string]State

// ArchiveBatch is everything the archival of one employee writes atomically.
type ArchiveBatch struct {
	Record ArchiveRecord
	Reset  Track
	// Next replaces the superseded details; nil when the employee had none.
	Next *Details
}

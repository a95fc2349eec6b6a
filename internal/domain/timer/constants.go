package timer

type Scope string

const (
	ScopeEmployee         Scope = "employee"
	ScopeReportingManager Scope = "reporting_manager"
	ScopeFinalReviewer    Scope = "final_reviewer"
)

// Scopes lists every timer scope in the order rollover visits them.
var Scopes = []Scope{ScopeEmployee, ScopeReportingManager, ScopeFinalReviewer}

func (s Scope) Valid() bool {
	switch s {
	case ScopeEmployee, ScopeReportingManager, ScopeFinalReviewer:
		return true
	}
	return false
}

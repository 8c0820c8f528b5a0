package entities

import "time"

// CheckStatus is the terminal outcome of one check on one component.
type CheckStatus string

const (
	// StatusPassed means the checked property was positively verified.
	StatusPassed CheckStatus = "PASSED"

	// StatusFailed means the property was positively refuted.
	StatusFailed CheckStatus = "FAILED"

	// StatusUnknown means the evidence was insufficient either way.
	StatusUnknown CheckStatus = "UNKNOWN"

	// StatusSkipped means the check opted out because a dependency
	// failed.
	StatusSkipped CheckStatus = "SKIPPED"

	// StatusDisabled means the check was excluded by selection globs and
	// never executed.
	StatusDisabled CheckStatus = "DISABLED"
)

// Terminal reports whether the status is one of the recognized terminal
// outcomes. The scheduler coerces anything else to UNKNOWN.
func (s CheckStatus) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusUnknown, StatusSkipped, StatusDisabled:
		return true
	}
	return false
}

// Evidence is one item of the audit trail behind a check result: a keyed
// observation, optionally located at a file and a job/step within it.
type Evidence struct {
	Key   string
	Value string
	File  string
	Step  string
}

// CheckResult is the terminal outcome of one check execution.
type CheckResult struct {
	CheckID string
	Status  CheckStatus

	// Confidence in [0,1] qualifies how strongly the evidence supports
	// the status. Direct observations carry 1.0; verdicts weakened by
	// partial resolution or missing comparands carry less.
	Confidence float64

	Evidence  []Evidence
	Timestamp time.Time
}

package domain

import dErrors "auditflow/pkg/domain-errors"

// Status is the coarse lifecycle state shared by all three hierarchy levels.
//
// Invariants:
//   - Assigned requires a non-empty auditor on the process
//   - Audited at the process level requires all child steps Audited
//   - Audited at the step level requires all child items scored and Audited
type Status string

const (
	StatusOpen     Status = "open"
	StatusAssigned Status = "assigned"
	StatusAuditing Status = "auditing"
	StatusAudited  Status = "audited"
)

var validStatuses = map[Status]bool{
	StatusOpen:     true,
	StatusAssigned: true,
	StatusAuditing: true,
	StatusAudited:  true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status: "+s)
	}
	return st, nil
}

func (s Status) IsValid() bool { return validStatuses[s] }

func (s Status) String() string { return string(s) }

// StepProgress is the explicit sub-state of a step's start/complete cycle,
// kept separate from the coarse Status so progress checks never depend on
// free-text annotations.
type StepProgress string

const (
	StepNotStarted StepProgress = "not_started"
	StepStarted    StepProgress = "started"
	StepCompleted  StepProgress = "completed"
)

func (p StepProgress) String() string { return string(p) }

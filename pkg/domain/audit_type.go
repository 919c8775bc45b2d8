package domain

import dErrors "auditflow/pkg/domain-errors"

// AuditType distinguishes why an audit run exists. Threshold bands and the
// post-completion pipeline both branch on it.
type AuditType string

const (
	// AuditTypeStandard is a periodic performance audit created from a
	// triggering lesson event.
	AuditTypeStandard AuditType = "standard"
	// AuditTypeOnboarding is the explicit-assignment variant used for
	// previously unaudited teachers.
	AuditTypeOnboarding AuditType = "onboarding"
	// AuditTypeRetraining is a follow-up run cloned from a failed audit.
	AuditTypeRetraining AuditType = "retraining"
)

var validAuditTypes = map[AuditType]bool{
	AuditTypeStandard:   true,
	AuditTypeOnboarding: true,
	AuditTypeRetraining: true,
}

// ParseAuditType constructs an AuditType from external input.
func ParseAuditType(s string) (AuditType, error) {
	t := AuditType(s)
	if !validAuditTypes[t] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid audit type: "+s)
	}
	return t, nil
}

func (t AuditType) IsValid() bool { return validAuditTypes[t] }

// IsRetraining reports whether this run is itself a retraining run. A failed
// retraining run is never cloned again.
func (t AuditType) IsRetraining() bool { return t == AuditTypeRetraining }

func (t AuditType) String() string { return string(t) }

// Verdict is the threshold outcome of a completed audit.
type Verdict string

const (
	VerdictPass      Verdict = "pass"
	VerdictRetrain   Verdict = "retrain"
	VerdictTerminate Verdict = "terminate"
)

func (v Verdict) String() string { return string(v) }

// Role classifies users for notification fan-out and auditor eligibility.
type Role string

const (
	RoleAuditor Role = "auditor"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func (r Role) String() string { return string(r) }

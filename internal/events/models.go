// Package events emits structured lifecycle events for every engine
// mutation. Sinks fan out to the stream platform or, in tests, to memory;
// emission is fire-and-forget from the services' point of view.
package events

import (
	"time"

	"auditflow/pkg/domain"
)

// Type names a lifecycle transition.
type Type string

const (
	TypeProcessCreated      Type = "process_created"
	TypeAuditorAssigned     Type = "auditor_assigned"
	TypeAuditorUnassigned   Type = "auditor_unassigned"
	TypeStepStarted         Type = "step_started"
	TypeStepCompleted       Type = "step_completed"
	TypeAuditCompleted      Type = "audit_completed"
	TypeRetrainingScheduled Type = "retraining_scheduled"
)

// Event captures one lifecycle transition. Keep it transport-agnostic so
// sinks can fan out without knowing about services.
type Event struct {
	Type        Type               `json:"type"`
	Timestamp   time.Time          `json:"timestamp"`
	ProcessCode domain.ProcessCode `json:"process_code"`
	StepCode    domain.StepCode    `json:"step_code,omitempty"`
	AuditType   domain.AuditType   `json:"audit_type,omitempty"`
	TeacherID   domain.TeacherID   `json:"teacher_id,omitempty"`
	AuditorID   domain.AuditorID   `json:"auditor_id,omitempty"`
	Verdict     domain.Verdict     `json:"verdict,omitempty"`
	Score       float64            `json:"score,omitempty"`
}

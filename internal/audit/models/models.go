package models

import (
	"time"

	"auditflow/pkg/domain"
)

// ProcessInstance is one audit run against one teacher/event. It is created
// once by the instantiation engine and only ever mutated (status, auditor,
// enrichment links) — never deleted by the engine.
//
// Invariants:
//   - (EventRef, AuditType) is unique across all processes
//   - the step/item set is fixed at creation from the then-published
//     templates; later template edits never alter existing instances
type ProcessInstance struct {
	Code         domain.ProcessCode `json:"code"`
	TemplateCode string             `json:"template_code"`
	AuditType    domain.AuditType   `json:"audit_type"`
	EventRef     domain.EventRef    `json:"event_ref"`
	TeacherID    domain.TeacherID   `json:"teacher_id"`
	AuditorID    domain.AuditorID   `json:"auditor_id,omitempty"`

	// Enrichment links, resolved best-effort at creation.
	SlideLink      string   `json:"slide_link,omitempty"`
	VideoLinks     []string `json:"video_links,omitempty"`
	ClassGroupCode string   `json:"class_group_code,omitempty"`

	// OriginCode references the failed run this retraining clone was
	// created from; empty for first runs. It is the idempotency key for
	// the retraining lifecycle.
	OriginCode domain.ProcessCode `json:"origin_code,omitempty"`

	Status    domain.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsAssigned reports whether an auditor holds this process.
func (p *ProcessInstance) IsAssigned() bool { return !p.AuditorID.IsZero() }

// StepInstance is a concrete page/section within a run.
type StepInstance struct {
	Code         domain.StepCode    `json:"code"`
	ProcessCode  domain.ProcessCode `json:"process_code"`
	TemplateCode string             `json:"template_code"`
	AuditorID    domain.AuditorID   `json:"auditor_id,omitempty"`

	// Position is the creation-time ordering derived from the template's
	// display-name suffix.
	Position int `json:"position"`

	// Progress tracks the start/complete cycle explicitly; Note carries
	// free-text auditor annotations and nothing else.
	Progress domain.StepProgress `json:"progress"`
	Note     string              `json:"note,omitempty"`

	Status    domain.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ChecklistInstance is a concrete scorable item within a step. MaxScore and
// Guidance are copied from the template at creation so scoring never reads
// template rows that may have changed since.
type ChecklistInstance struct {
	Code     domain.ChecklistCode `json:"code"`
	StepCode domain.StepCode      `json:"step_code"`
	// ProcessCode is denormalized from the owning step so whole-run reads
	// and cascades need no join through the step table.
	ProcessCode  domain.ProcessCode `json:"process_code"`
	TemplateCode string             `json:"template_code"`

	// Score is nil until the auditor records a value.
	Score    *float64 `json:"score,omitempty"`
	MaxScore float64  `json:"max_score"`
	Guidance string   `json:"guidance,omitempty"`
	Note     string   `json:"note,omitempty"`

	Status    domain.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsScored reports whether a value has been recorded.
func (c *ChecklistInstance) IsScored() bool { return c.Score != nil }

// ThresholdBand maps a half-open score range [Min, Max) to a verdict for one
// audit type. A nil bound is unbounded on that side. Bands are configuration
// owned elsewhere; the engine only reads them.
type ThresholdBand struct {
	AuditType domain.AuditType `json:"audit_type"`
	Verdict   domain.Verdict   `json:"verdict"`
	MinScore  *float64         `json:"min_score,omitempty"`
	MaxScore  *float64         `json:"max_score,omitempty"`
}

// Contains reports whether score falls inside the band.
func (b ThresholdBand) Contains(score float64) bool {
	if b.MinScore != nil && score < *b.MinScore {
		return false
	}
	if b.MaxScore != nil && score >= *b.MaxScore {
		return false
	}
	return true
}

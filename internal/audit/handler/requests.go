package handler

import (
	"auditflow/internal/audit/service/cascade"
	"auditflow/pkg/domain"
)

type createAuditRequest struct {
	EventRef  string `json:"event_ref"`
	AuditType string `json:"audit_type"`
	TeacherID string `json:"teacher_id"`
}

type createOnboardRequest struct {
	EventRef  string `json:"event_ref"`
	TeacherID string `json:"teacher_id"`
	AuditorID string `json:"auditor_id"`
}

type assignRequest struct {
	AuditorID string `json:"auditor_id"`
}

type randomAssignRequest struct {
	ProcessCodes []string `json:"process_codes"`
}

func (r randomAssignRequest) codes() []domain.ProcessCode {
	codes := make([]domain.ProcessCode, len(r.ProcessCodes))
	for i, c := range r.ProcessCodes {
		codes[i] = domain.ProcessCode(c)
	}
	return codes
}

type scoreUpdateRequest struct {
	ChecklistCode string  `json:"checklist_code"`
	Score         float64 `json:"score"`
	Note          string  `json:"note,omitempty"`
}

type scoreBatchRequest struct {
	Scores []scoreUpdateRequest `json:"scores"`
}

func (r scoreBatchRequest) updates() []cascade.ScoreUpdate {
	updates := make([]cascade.ScoreUpdate, len(r.Scores))
	for i, u := range r.Scores {
		updates[i] = cascade.ScoreUpdate{
			ChecklistCode: domain.ChecklistCode(u.ChecklistCode),
			Score:         u.Score,
			Note:          u.Note,
		}
	}
	return updates
}

type completeAuditRequest struct {
	Scores []scoreUpdateRequest `json:"scores,omitempty"`
}

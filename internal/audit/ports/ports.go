// Package ports holds the store interfaces shared by the audit services.
// Implementations live in internal/audit/store; services depend on these
// interfaces only.
package ports

import (
	"context"

	"auditflow/internal/audit/models"
	"auditflow/pkg/domain"
)

// ProcessStore persists audit runs.
//
// Insert returns sentinel.ErrConflict when the generated code already
// exists; code generation is probabilistic, so callers must treat that as a
// possible (rare) error. Find methods return sentinel.ErrNotFound.
type ProcessStore interface {
	Insert(ctx context.Context, p *models.ProcessInstance) error
	Update(ctx context.Context, p *models.ProcessInstance) error
	FindByCode(ctx context.Context, code domain.ProcessCode) (*models.ProcessInstance, error)
	// FindByEventAndType backs the duplicate pre-check: at most one audit
	// of a given type per triggering event.
	FindByEventAndType(ctx context.Context, ref domain.EventRef, t domain.AuditType) (*models.ProcessInstance, error)
	// FindByOrigin backs retraining idempotency.
	FindByOrigin(ctx context.Context, origin domain.ProcessCode) (*models.ProcessInstance, error)
	// FindByCodes batch-loads runs; missing codes are simply absent from
	// the result.
	FindByCodes(ctx context.Context, codes []domain.ProcessCode) (map[domain.ProcessCode]*models.ProcessInstance, error)
	ListByAuditor(ctx context.Context, auditor domain.AuditorID) ([]*models.ProcessInstance, error)
	// CountByAuditor returns current workload per auditor across all runs.
	CountByAuditor(ctx context.Context) (map[domain.AuditorID]int, error)
}

// StepStore persists steps. ListByProcess returns steps in Position order.
type StepStore interface {
	Insert(ctx context.Context, s *models.StepInstance) error
	Update(ctx context.Context, s *models.StepInstance) error
	FindByCode(ctx context.Context, code domain.StepCode) (*models.StepInstance, error)
	ListByProcess(ctx context.Context, process domain.ProcessCode) ([]*models.StepInstance, error)
}

// ChecklistStore persists scorable items.
type ChecklistStore interface {
	Insert(ctx context.Context, c *models.ChecklistInstance) error
	Update(ctx context.Context, c *models.ChecklistInstance) error
	FindByCodes(ctx context.Context, codes []domain.ChecklistCode) (map[domain.ChecklistCode]*models.ChecklistInstance, error)
	ListByStep(ctx context.Context, step domain.StepCode) ([]*models.ChecklistInstance, error)
	// ListByProcess returns every item under every step of the run.
	ListByProcess(ctx context.Context, process domain.ProcessCode) ([]*models.ChecklistInstance, error)
}

// ThresholdStore reads scoring bands. Bands are returned in ascending
// MinScore order with nil mins first.
type ThresholdStore interface {
	ListBands(ctx context.Context, t domain.AuditType) ([]models.ThresholdBand, error)
}

// Package discovery runs one batch of audit-candidate creation. The
// scheduler that decides when and for whom lives outside this engine; the
// runner only guarantees that one failing candidate never aborts the batch.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"auditflow/internal/audit/service/instantiate"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// Candidate is one teacher/event pair proposed for auditing.
type Candidate struct {
	EventRef  domain.EventRef  `json:"event_ref"`
	AuditType domain.AuditType `json:"audit_type"`
	TeacherID domain.TeacherID `json:"teacher_id"`
}

// Outcome records what happened to one candidate.
type Outcome struct {
	Candidate   Candidate          `json:"candidate"`
	ProcessCode domain.ProcessCode `json:"process_code,omitempty"`
	Error       string             `json:"error,omitempty"`
}

type Runner struct {
	instantiate *instantiate.Service
	logger      *slog.Logger
}

func NewRunner(instantiateSvc *instantiate.Service, logger *slog.Logger) (*Runner, error) {
	if instantiateSvc == nil {
		return nil, fmt.Errorf("instantiation service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{instantiate: instantiateSvc, logger: logger}, nil
}

// Run creates an audit for each candidate sequentially, capturing
// per-candidate errors. Duplicate candidates (already audited events) are a
// normal outcome, not a failure worth alerting on.
func (r *Runner) Run(ctx context.Context, candidates []Candidate) []Outcome {
	outcomes := make([]Outcome, 0, len(candidates))
	for _, c := range candidates {
		result, err := r.instantiate.CreateAuditProcess(ctx, c.EventRef, c.AuditType, c.TeacherID)
		if err != nil {
			level := slog.LevelWarn
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				level = slog.LevelDebug
			}
			r.logger.Log(ctx, level, "candidate skipped",
				"event_ref", c.EventRef, "audit_type", c.AuditType, "error", err)
			outcomes = append(outcomes, Outcome{Candidate: c, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, Outcome{Candidate: c, ProcessCode: result.ProcessCode})
	}
	return outcomes
}

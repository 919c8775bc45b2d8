// Package assignment covers manual and batch round-robin assignment of
// auditors to audit runs, plus the auditor performance summary.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auditflow/internal/audit/metrics"
	"auditflow/internal/audit/models"
	"auditflow/internal/audit/ports"
	"auditflow/internal/events"
	"auditflow/internal/identity"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
)

type Service struct {
	processes  ports.ProcessStore
	steps      ports.StepStore
	checklists ports.ChecklistStore
	identity   identity.Store
	events     *events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	clock      func() time.Time
}

type Option func(*Service)

func WithEvents(pub *events.Publisher) Option {
	return func(s *Service) { s.events = pub }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(processes ports.ProcessStore, steps ports.StepStore, checklists ports.ChecklistStore, identityStore identity.Store, opts ...Option) (*Service, error) {
	if processes == nil || steps == nil || checklists == nil {
		return nil, fmt.Errorf("process, step and checklist stores are required")
	}
	if identityStore == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	s := &Service{
		processes:  processes,
		steps:      steps,
		checklists: checklists,
		identity:   identityStore,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AssignAuditor assigns one auditor to one run, cascading the auditor and
// the Assigned status to every step and (status only) every checklist item.
func (s *Service) AssignAuditor(ctx context.Context, processCode domain.ProcessCode, auditorID domain.AuditorID) error {
	process, err := s.loadProcess(ctx, processCode)
	if err != nil {
		return err
	}
	if process.Status == domain.StatusAudited {
		return dErrors.New(dErrors.CodeBadRequest, "cannot assign an auditor to a completed audit")
	}

	auditor, err := s.identity.FindUserByID(ctx, auditorID.String())
	if err != nil || !auditor.HasRole(domain.RoleAuditor) {
		return dErrors.Newf(dErrors.CodeNotFound, "auditor %s not found", auditorID)
	}

	if err := s.cascadeAssign(ctx, process, auditorID); err != nil {
		return err
	}

	s.metrics.IncAssignment("assigned")
	_ = s.events.Emit(ctx, events.Event{
		Type:        events.TypeAuditorAssigned,
		ProcessCode: process.Code,
		AuditType:   process.AuditType,
		TeacherID:   process.TeacherID,
		AuditorID:   auditorID,
	})
	s.logger.InfoContext(ctx, "auditor assigned",
		"process_code", processCode, "auditor_id", auditorID)
	return nil
}

// UnassignAuditor clears the auditor and resets status to Open at all three
// levels. In-flight or finished work cannot be unassigned.
func (s *Service) UnassignAuditor(ctx context.Context, processCode domain.ProcessCode) error {
	process, err := s.loadProcess(ctx, processCode)
	if err != nil {
		return err
	}
	if !process.IsAssigned() {
		return dErrors.New(dErrors.CodeBadRequest, "no auditor is assigned")
	}
	if process.Status == domain.StatusAuditing || process.Status == domain.StatusAudited {
		return dErrors.New(dErrors.CodeBadRequest, "audit is in progress or finished and cannot be unassigned")
	}

	previous := process.AuditorID
	now := s.clock()
	process.AuditorID = ""
	process.Status = domain.StatusOpen
	process.UpdatedAt = now
	if err := s.processes.Update(ctx, process); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update process")
	}
	if err := s.cascadeChildren(ctx, process.Code, now, func(step *models.StepInstance) {
		step.AuditorID = ""
		step.Status = domain.StatusOpen
	}, func(item *models.ChecklistInstance) {
		item.Status = domain.StatusOpen
	}); err != nil {
		return err
	}

	s.metrics.IncAssignment("unassigned")
	_ = s.events.Emit(ctx, events.Event{
		Type:        events.TypeAuditorUnassigned,
		ProcessCode: process.Code,
		AuditType:   process.AuditType,
		TeacherID:   process.TeacherID,
		AuditorID:   previous,
	})
	s.logger.InfoContext(ctx, "auditor unassigned",
		"process_code", processCode, "auditor_id", previous)
	return nil
}

// Assignment records one successful round-robin pick.
type Assignment struct {
	ProcessCode domain.ProcessCode `json:"process_code"`
	AuditorID   domain.AuditorID   `json:"auditor_id"`
}

// Skip records one run left unassigned and why.
type Skip struct {
	ProcessCode domain.ProcessCode `json:"process_code"`
	Reason      string             `json:"reason"`
}

// Skip reasons returned by RandomAssign.
const (
	SkipNotFound        = "not found"
	SkipAlreadyAssigned = "already assigned"
	SkipAudited         = "audited"
)

// RandomAssignResult is the full outcome of one batch call.
type RandomAssignResult struct {
	Assignments []Assignment `json:"assignments"`
	Skipped     []Skip       `json:"skipped"`
}

// RandomAssign distributes the given runs over eligible auditors, always
// picking the auditor with the lowest current workload, ties broken by
// lowest auditor id. The workload table is held in memory for the duration
// of one call so later picks in the same batch see earlier ones; it is not
// synchronized with concurrent callers (see DESIGN.md).
func (s *Service) RandomAssign(ctx context.Context, codes []domain.ProcessCode) (*RandomAssignResult, error) {
	auditors, err := s.identity.ListUsersByRole(ctx, domain.RoleAuditor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list auditors")
	}
	if len(auditors) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no eligible auditors exist")
	}

	workloads, err := s.processes.CountByAuditor(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load auditor workloads")
	}
	table := make(map[domain.AuditorID]int, len(auditors))
	for _, a := range auditors {
		table[domain.AuditorID(a.ID)] = workloads[domain.AuditorID(a.ID)]
	}

	loaded, err := s.processes.FindByCodes(ctx, codes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "batch load processes")
	}

	result := &RandomAssignResult{}
	for _, code := range codes {
		process, ok := loaded[code]
		switch {
		case !ok:
			result.Skipped = append(result.Skipped, Skip{ProcessCode: code, Reason: SkipNotFound})
			s.metrics.IncAssignment("skipped_not_found")
			continue
		case process.IsAssigned():
			result.Skipped = append(result.Skipped, Skip{ProcessCode: code, Reason: SkipAlreadyAssigned})
			s.metrics.IncAssignment("skipped_already_assigned")
			continue
		case process.Status == domain.StatusAudited:
			result.Skipped = append(result.Skipped, Skip{ProcessCode: code, Reason: SkipAudited})
			s.metrics.IncAssignment("skipped_audited")
			continue
		}

		pick := pickAuditor(table)
		if err := s.cascadeAssign(ctx, process, pick); err != nil {
			return nil, err
		}
		table[pick]++
		result.Assignments = append(result.Assignments, Assignment{ProcessCode: code, AuditorID: pick})
		s.metrics.IncAssignment("assigned")
		_ = s.events.Emit(ctx, events.Event{
			Type:        events.TypeAuditorAssigned,
			ProcessCode: process.Code,
			AuditType:   process.AuditType,
			TeacherID:   process.TeacherID,
			AuditorID:   pick,
		})
	}

	s.logger.InfoContext(ctx, "round robin assignment finished",
		"requested", len(codes), "assigned", len(result.Assignments), "skipped", len(result.Skipped))
	return result, nil
}

// Performance summarizes an auditor's current process set. Score and verdict
// aggregation stays zero: historical scores are not retained separately from
// the live checklist records (see DESIGN.md).
type Performance struct {
	AuditorID      domain.AuditorID `json:"auditor_id"`
	TotalAudits    int              `json:"total_audits"`
	CompletedCount int              `json:"completed_count"`
	AverageScore   float64          `json:"average_score"`
	PassCount      int              `json:"pass_count"`
	FailCount      int              `json:"fail_count"`
}

func (s *Service) GetPerformance(ctx context.Context, auditorID domain.AuditorID) (*Performance, error) {
	if _, err := s.identity.FindUserByID(ctx, auditorID.String()); err != nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "auditor %s not found", auditorID)
	}
	processes, err := s.processes.ListByAuditor(ctx, auditorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list processes by auditor")
	}
	perf := &Performance{AuditorID: auditorID, TotalAudits: len(processes)}
	for _, p := range processes {
		if p.Status == domain.StatusAudited {
			perf.CompletedCount++
		}
	}
	return perf, nil
}

// pickAuditor selects the lowest-workload auditor, ties broken by lowest id.
func pickAuditor(table map[domain.AuditorID]int) domain.AuditorID {
	var best domain.AuditorID
	bestLoad := -1
	for id, load := range table {
		if bestLoad < 0 || load < bestLoad || (load == bestLoad && id < best) {
			best = id
			bestLoad = load
		}
	}
	return best
}

func (s *Service) loadProcess(ctx context.Context, code domain.ProcessCode) (*models.ProcessInstance, error) {
	process, err := s.processes.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "audit process %s not found", code)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load process")
	}
	return process, nil
}

// cascadeAssign writes the auditor and Assigned status to the process, its
// steps, and (status only) its checklist items.
func (s *Service) cascadeAssign(ctx context.Context, process *models.ProcessInstance, auditorID domain.AuditorID) error {
	now := s.clock()
	process.AuditorID = auditorID
	process.Status = domain.StatusAssigned
	process.UpdatedAt = now
	if err := s.processes.Update(ctx, process); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update process")
	}
	return s.cascadeChildren(ctx, process.Code, now, func(step *models.StepInstance) {
		step.AuditorID = auditorID
		step.Status = domain.StatusAssigned
	}, func(item *models.ChecklistInstance) {
		item.Status = domain.StatusAssigned
	})
}

func (s *Service) cascadeChildren(ctx context.Context, code domain.ProcessCode, now time.Time, mutateStep func(*models.StepInstance), mutateItem func(*models.ChecklistInstance)) error {
	steps, err := s.steps.ListByProcess(ctx, code)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list steps")
	}
	for _, step := range steps {
		mutateStep(step)
		step.UpdatedAt = now
		if err := s.steps.Update(ctx, step); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update step")
		}
	}
	items, err := s.checklists.ListByProcess(ctx, code)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list checklist items")
	}
	for _, item := range items {
		mutateItem(item)
		item.UpdatedAt = now
		if err := s.checklists.Update(ctx, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update checklist item")
		}
	}
	return nil
}

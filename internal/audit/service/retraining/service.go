// Package retraining clones a failed audit's full hierarchy into a fresh
// retraining run. Cloning is idempotent per origin: the first clone wins and
// later calls are no-ops.
package retraining

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auditflow/internal/audit/models"
	"auditflow/internal/audit/ports"
	"auditflow/internal/codegen"
	"auditflow/internal/events"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
)

type Service struct {
	processes  ports.ProcessStore
	steps      ports.StepStore
	checklists ports.ChecklistStore
	events     *events.Publisher
	logger     *slog.Logger
	clock      func() time.Time
}

type Option func(*Service)

func WithEvents(pub *events.Publisher) Option {
	return func(s *Service) { s.events = pub }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(processes ports.ProcessStore, steps ports.StepStore, checklists ports.ChecklistStore, opts ...Option) (*Service, error) {
	if processes == nil || steps == nil || checklists == nil {
		return nil, fmt.Errorf("process, step and checklist stores are required")
	}
	s := &Service{
		processes:  processes,
		steps:      steps,
		checklists: checklists,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Result reports the clone outcome. AlreadyExists is true when a retraining
// run for this origin was created earlier; the returned code is then the
// existing clone's.
type Result struct {
	ProcessCode   domain.ProcessCode `json:"process_code"`
	AlreadyExists bool               `json:"already_exists"`
}

// CreateRetrainingAudit deep-clones the origin run: new codes at every
// level, status Assigned throughout, scores reset to null. Guidance text and
// maxima are copied verbatim so the retraining run grades against the same
// criteria even if templates changed since.
func (s *Service) CreateRetrainingAudit(ctx context.Context, originCode domain.ProcessCode) (*Result, error) {
	if existing, err := s.processes.FindByOrigin(ctx, originCode); err == nil {
		return &Result{ProcessCode: existing.Code, AlreadyExists: true}, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "retraining idempotency check failed")
	}

	origin, err := s.processes.FindByCode(ctx, originCode)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "audit process %s not found", originCode)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load origin process")
	}

	now := s.clock()
	clone := &models.ProcessInstance{
		Code:           codegen.ProcessCode(origin.TemplateCode, origin.TeacherID),
		TemplateCode:   origin.TemplateCode,
		AuditType:      domain.AuditTypeRetraining,
		EventRef:       origin.EventRef,
		TeacherID:      origin.TeacherID,
		AuditorID:      origin.AuditorID,
		SlideLink:      origin.SlideLink,
		VideoLinks:     origin.VideoLinks,
		ClassGroupCode: origin.ClassGroupCode,
		OriginCode:     origin.Code,
		Status:         domain.StatusAssigned,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.processes.Insert(ctx, clone); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race with a concurrent clone of the same origin.
			if existing, ferr := s.processes.FindByOrigin(ctx, originCode); ferr == nil {
				return &Result{ProcessCode: existing.Code, AlreadyExists: true}, nil
			}
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert retraining process")
	}

	steps, err := s.steps.ListByProcess(ctx, origin.Code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list origin steps")
	}
	for i, originStep := range steps {
		step := &models.StepInstance{
			Code:         codegen.StepCode(clone.Code, i),
			ProcessCode:  clone.Code,
			TemplateCode: originStep.TemplateCode,
			AuditorID:    clone.AuditorID,
			Position:     originStep.Position,
			Progress:     domain.StepNotStarted,
			Status:       domain.StatusAssigned,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.steps.Insert(ctx, step); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert retraining step")
		}

		items, err := s.checklists.ListByStep(ctx, originStep.Code)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list origin checklist items")
		}
		for j, originItem := range items {
			item := &models.ChecklistInstance{
				Code:         codegen.ChecklistCode(step.Code, j),
				StepCode:     step.Code,
				ProcessCode:  clone.Code,
				TemplateCode: originItem.TemplateCode,
				Score:        nil, // a retraining run starts unscored
				MaxScore:     originItem.MaxScore,
				Guidance:     originItem.Guidance,
				Status:       domain.StatusAssigned,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.checklists.Insert(ctx, item); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert retraining checklist item")
			}
		}
	}

	_ = s.events.Emit(ctx, events.Event{
		Type:        events.TypeRetrainingScheduled,
		ProcessCode: clone.Code,
		AuditType:   domain.AuditTypeRetraining,
		TeacherID:   clone.TeacherID,
		AuditorID:   clone.AuditorID,
	})
	s.logger.InfoContext(ctx, "retraining audit scheduled",
		"origin_code", originCode, "process_code", clone.Code, "teacher_id", clone.TeacherID)

	return &Result{ProcessCode: clone.Code}, nil
}

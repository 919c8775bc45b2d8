// Package instantiate expands a resolved template tree into a concrete
// process/step/checklist hierarchy.
//
// The multi-row creation pipeline runs sequentially without an enclosing
// transaction; a failure partway through leaves already-inserted rows behind
// (see DESIGN.md). The duplicate rule is therefore enforced twice: a
// fast-path pre-check here and a uniqueness constraint in the Postgres
// store.
package instantiate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"auditflow/internal/audit/metrics"
	"auditflow/internal/audit/models"
	"auditflow/internal/audit/ports"
	"auditflow/internal/codegen"
	"auditflow/internal/enrichment"
	"auditflow/internal/events"
	"auditflow/internal/template"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
	platformstrings "auditflow/pkg/platform/strings"
)

type Service struct {
	processes  ports.ProcessStore
	steps      ports.StepStore
	checklists ports.ChecklistStore
	resolver   *template.Resolver
	enricher   enrichment.Lookup
	events     *events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	clock      func() time.Time
}

type Option func(*Service)

func WithEnrichment(lookup enrichment.Lookup) Option {
	return func(s *Service) { s.enricher = lookup }
}

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

func New(processes ports.ProcessStore, steps ports.StepStore, checklists ports.ChecklistStore, resolver *template.Resolver, opts ...Option) (*Service, error) {
	if processes == nil || steps == nil || checklists == nil {
		return nil, fmt.Errorf("process, step and checklist stores are required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("template resolver is required")
	}
	s := &Service{
		processes:  processes,
		steps:      steps,
		checklists: checklists,
		resolver:   resolver,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Result reports what one creation call produced.
type Result struct {
	ProcessCode     domain.ProcessCode `json:"process_code"`
	StepsCreated    int                `json:"steps_created"`
	ChecklistsItems int                `json:"checklist_items_created"`
}

// CreateAuditProcess instantiates a new audit run for a triggering event.
// Retraining runs are never created this way; they are cloned from a failed
// audit by the retraining lifecycle.
func (s *Service) CreateAuditProcess(ctx context.Context, eventRef domain.EventRef, auditType domain.AuditType, teacherID domain.TeacherID) (*Result, error) {
	if auditType.IsRetraining() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "retraining audits are cloned from a failed audit, not created directly")
	}
	if !auditType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid audit type: "+auditType.String())
	}
	return s.create(ctx, eventRef, auditType, teacherID, "")
}

// CreateOnboardAudit is the explicit-assignment variant: the same pipeline
// with an auditor pre-selected and initial status Assigned.
func (s *Service) CreateOnboardAudit(ctx context.Context, eventRef domain.EventRef, teacherID domain.TeacherID, auditorID domain.AuditorID) (*Result, error) {
	if auditorID.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "auditor is required for an onboarding audit")
	}
	return s.create(ctx, eventRef, domain.AuditTypeOnboarding, teacherID, auditorID)
}

func (s *Service) create(ctx context.Context, eventRef domain.EventRef, auditType domain.AuditType, teacherID domain.TeacherID, auditorID domain.AuditorID) (*Result, error) {
	start := s.clock()

	resolution, err := s.resolver.Resolve(ctx, eventRef)
	if err != nil {
		return nil, err
	}
	if teacherID == "" {
		teacherID = resolution.Classification.TeacherID
	}

	// Fast-path duplicate check. Not atomic with the insert below; the
	// store-level uniqueness constraint closes the race.
	if _, err := s.processes.FindByEventAndType(ctx, eventRef, auditType); err == nil {
		return nil, dErrors.Newf(dErrors.CodeConflict,
			"audit of type %s already exists for event %s", auditType, eventRef)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "duplicate check failed")
	}

	links := s.resolveEnrichment(ctx, eventRef, resolution.Classification.ClassGroupID)

	now := s.clock()
	status := domain.StatusOpen
	if !auditorID.IsZero() {
		status = domain.StatusAssigned
	}
	process := &models.ProcessInstance{
		Code:           codegen.ProcessCode(resolution.Process.Code, teacherID),
		TemplateCode:   resolution.Process.Code,
		AuditType:      auditType,
		EventRef:       eventRef,
		TeacherID:      teacherID,
		AuditorID:      auditorID,
		SlideLink:      links.SlideLink,
		VideoLinks:     links.VideoLinks,
		ClassGroupCode: links.ClassGroupCode,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.processes.Insert(ctx, process); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"audit of type %s already exists for event %s", auditType, eventRef)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert audit process")
	}

	stepCount, itemCount, err := s.expandSteps(ctx, process, resolution, now)
	if err != nil {
		// No transaction: rows inserted so far remain (accepted gap).
		return nil, err
	}

	s.metrics.IncProcessCreated(auditType.String())
	s.metrics.ObserveOperation("create_audit_process", s.clock().Sub(start))
	_ = s.events.Emit(ctx, events.Event{
		Type:        events.TypeProcessCreated,
		ProcessCode: process.Code,
		AuditType:   auditType,
		TeacherID:   teacherID,
		AuditorID:   auditorID,
	})
	s.logger.InfoContext(ctx, "audit process created",
		"process_code", process.Code, "audit_type", auditType,
		"teacher_id", teacherID, "steps", stepCount, "items", itemCount)

	return &Result{ProcessCode: process.Code, StepsCreated: stepCount, ChecklistsItems: itemCount}, nil
}

func (s *Service) expandSteps(ctx context.Context, process *models.ProcessInstance, resolution *template.Resolution, now time.Time) (int, int, error) {
	ordered := orderSteps(resolution.Steps)
	itemCount := 0
	for i, stepTmpl := range ordered {
		step := &models.StepInstance{
			Code:         codegen.StepCode(process.Code, i),
			ProcessCode:  process.Code,
			TemplateCode: stepTmpl.Code,
			AuditorID:    process.AuditorID,
			Position:     i,
			Progress:     domain.StepNotStarted,
			Status:       process.Status,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.steps.Insert(ctx, step); err != nil {
			return 0, 0, dErrors.Wrap(err, dErrors.CodeInternal, "insert audit step")
		}

		items := orderChecklists(resolution.ChecklistsByStep[stepTmpl.Code])
		for j, itemTmpl := range items {
			item := &models.ChecklistInstance{
				Code:         codegen.ChecklistCode(step.Code, j),
				StepCode:     step.Code,
				ProcessCode:  process.Code,
				TemplateCode: itemTmpl.Code,
				MaxScore:     itemTmpl.MaxScore,
				Guidance:     itemTmpl.Guidance,
				Status:       process.Status,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.checklists.Insert(ctx, item); err != nil {
				return 0, 0, dErrors.Wrap(err, dErrors.CodeInternal, "insert checklist item")
			}
			itemCount++
		}
	}
	return len(ordered), itemCount, nil
}

func (s *Service) resolveEnrichment(ctx context.Context, eventRef domain.EventRef, classGroupID string) enrichment.Links {
	var links enrichment.Links
	if s.enricher == nil {
		return links
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		link, err := s.enricher.SlideLink(gctx, eventRef)
		if err == nil {
			links.SlideLink = link
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(gctx, "slide link lookup failed", "event_ref", eventRef, "error", err)
		}
		return nil
	})
	g.Go(func() error {
		videos, err := s.enricher.VideoLinks(gctx, eventRef)
		if err == nil {
			links.VideoLinks = platformstrings.DedupeAndTrim(videos)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(gctx, "video link lookup failed", "event_ref", eventRef, "error", err)
		}
		return nil
	})
	if classGroupID != "" {
		g.Go(func() error {
			code, err := s.enricher.ClassGroupCode(gctx, classGroupID)
			if err == nil {
				links.ClassGroupCode = code
			} else if !errors.Is(err, sentinel.ErrNotFound) {
				s.logger.WarnContext(gctx, "class group lookup failed", "class_group_id", classGroupID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return links
}

// orderSteps sorts step templates by the numeric suffix of their display
// name; names without a numeric suffix sort first, in name order.
func orderSteps(steps []*template.StepTemplate) []*template.StepTemplate {
	out := make([]*template.StepTemplate, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool {
		ni, oki := displayOrder(out[i].DisplayName)
		nj, okj := displayOrder(out[j].DisplayName)
		if oki != okj {
			return !oki
		}
		if oki && ni != nj {
			return ni < nj
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

// orderChecklists sorts checklist templates by code.
func orderChecklists(items []*template.ChecklistTemplate) []*template.ChecklistTemplate {
	out := make([]*template.ChecklistTemplate, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// displayOrder parses the trailing decimal digits of a display name.
func displayOrder(name string) (int, bool) {
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	n := 0
	for _, ch := range name[start:end] {
		n = n*10 + int(ch-'0')
	}
	return n, true
}

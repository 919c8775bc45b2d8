// Package cascade drives the start/score/complete transitions and their
// propagation across the process/step/checklist hierarchy, and runs the
// post-completion scoring pipeline.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auditflow/internal/audit/metrics"
	"auditflow/internal/audit/models"
	"auditflow/internal/audit/ports"
	"auditflow/internal/audit/service/retraining"
	"auditflow/internal/audit/service/scoring"
	"auditflow/internal/events"
	"auditflow/internal/notification"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
)

type Service struct {
	processes  ports.ProcessStore
	steps      ports.StepStore
	checklists ports.ChecklistStore
	scoring    *scoring.Engine
	retraining *retraining.Service
	notifier   *notification.Service
	events     *events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	clock      func() time.Time
}

type Option func(*Service)

// WithRetraining wires the retraining lifecycle into the post-completion
// pipeline.
func WithRetraining(svc *retraining.Service) Option {
	return func(s *Service) { s.retraining = svc }
}

// WithNotifier wires verdict notifications into the post-completion
// pipeline.
func WithNotifier(svc *notification.Service) Option {
	return func(s *Service) { s.notifier = svc }
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

func New(processes ports.ProcessStore, steps ports.StepStore, checklists ports.ChecklistStore, scoringEngine *scoring.Engine, opts ...Option) (*Service, error) {
	if processes == nil || steps == nil || checklists == nil {
		return nil, fmt.Errorf("process, step and checklist stores are required")
	}
	if scoringEngine == nil {
		return nil, fmt.Errorf("scoring engine is required")
	}
	s := &Service{
		processes:  processes,
		steps:      steps,
		checklists: checklists,
		scoring:    scoringEngine,
		logger:     slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StartStep marks a step as started: all its checklist items move to
// Auditing, the step records Started, and the owning process moves to
// Auditing regardless of its previous status.
func (s *Service) StartStep(ctx context.Context, stepCode domain.StepCode) error {
	step, err := s.loadStep(ctx, stepCode)
	if err != nil {
		return err
	}
	if step.Progress != domain.StepNotStarted {
		return dErrors.Newf(dErrors.CodeBadRequest, "step %s is already started", stepCode)
	}

	now := s.clock()
	items, err := s.checklists.ListByStep(ctx, stepCode)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list checklist items")
	}
	for _, item := range items {
		item.Status = domain.StatusAuditing
		item.UpdatedAt = now
		if err := s.checklists.Update(ctx, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update checklist item")
		}
	}

	step.Progress = domain.StepStarted
	step.Status = domain.StatusAuditing
	step.UpdatedAt = now
	if err := s.steps.Update(ctx, step); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update step")
	}

	if err := s.setProcessStatus(ctx, step.ProcessCode, domain.StatusAuditing, now); err != nil {
		return err
	}

	_ = s.events.Emit(ctx, events.Event{
		Type:        events.TypeStepStarted,
		ProcessCode: step.ProcessCode,
		StepCode:    stepCode,
	})
	s.logger.InfoContext(ctx, "step started", "step_code", stepCode, "process_code", step.ProcessCode)
	return nil
}

// ScoreUpdate records one item's score and optional note.
type ScoreUpdate struct {
	ChecklistCode domain.ChecklistCode `json:"checklist_code"`
	Score         float64              `json:"score"`
	Note          string               `json:"note,omitempty"`
}

// ScoreChecklists applies a batch of score updates. The whole batch is
// rejected when any referenced code is unknown; on success every touched
// item, its step, and its process move to Auditing.
func (s *Service) ScoreChecklists(ctx context.Context, updates []ScoreUpdate) error {
	if len(updates) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "no score updates given")
	}
	codes := make([]domain.ChecklistCode, len(updates))
	for i, u := range updates {
		codes[i] = u.ChecklistCode
	}
	items, err := s.checklists.FindByCodes(ctx, codes)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "batch load checklist items")
	}
	var missing []string
	for _, code := range codes {
		if _, ok := items[code]; !ok {
			missing = append(missing, code.String())
		}
	}
	if len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown checklist codes: %v", missing)
	}

	now := s.clock()
	touchedSteps := make(map[domain.StepCode]bool)
	touchedProcesses := make(map[domain.ProcessCode]bool)
	for _, u := range updates {
		item := items[u.ChecklistCode]
		score := u.Score
		item.Score = &score
		if u.Note != "" {
			item.Note = u.Note
		}
		item.Status = domain.StatusAuditing
		item.UpdatedAt = now
		if err := s.checklists.Update(ctx, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update checklist item")
		}
		touchedSteps[item.StepCode] = true
		touchedProcesses[item.ProcessCode] = true
	}

	for stepCode := range touchedSteps {
		step, err := s.loadStep(ctx, stepCode)
		if err != nil {
			return err
		}
		step.Status = domain.StatusAuditing
		step.UpdatedAt = now
		if err := s.steps.Update(ctx, step); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update step")
		}
	}
	for processCode := range touchedProcesses {
		if err := s.setProcessStatus(ctx, processCode, domain.StatusAuditing, now); err != nil {
			return err
		}
	}
	return nil
}

// CompleteStep closes one step: every child item must be scored; items and
// step move to Audited and the step records Completed.
func (s *Service) CompleteStep(ctx context.Context, stepCode domain.StepCode) error {
	step, err := s.loadStep(ctx, stepCode)
	if err != nil {
		return err
	}
	items, err := s.checklists.ListByStep(ctx, stepCode)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list checklist items")
	}
	unscored := 0
	for _, item := range items {
		if !item.IsScored() {
			unscored++
		}
	}
	if unscored > 0 {
		return dErrors.Newf(dErrors.CodeBadRequest, "%d checklist items are still unscored", unscored)
	}

	now := s.clock()
	for _, item := range items {
		item.Status = domain.StatusAudited
		item.UpdatedAt = now
		if err := s.checklists.Update(ctx, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update checklist item")
		}
	}
	step.Progress = domain.StepCompleted
	step.Status = domain.StatusAudited
	step.UpdatedAt = now
	if err := s.steps.Update(ctx, step); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update step")
	}

	_ = s.events.Emit(ctx, events.Event{
		Type:        events.TypeStepCompleted,
		ProcessCode: step.ProcessCode,
		StepCode:    stepCode,
	})
	s.logger.InfoContext(ctx, "step completed", "step_code", stepCode, "process_code", step.ProcessCode)
	return nil
}

// CompleteResult is the outcome of CompleteAudit.
type CompleteResult struct {
	ProcessCode domain.ProcessCode `json:"process_code"`
	Score       float64            `json:"score"`
	Verdict     domain.Verdict     `json:"verdict"`
}

// CompleteAudit finishes a run: optionally persists a final score batch,
// verifies every item is scored, cascades Audited through the hierarchy,
// computes score and verdict, and fires the post-completion pipeline. The
// pipeline never fails the completion response.
func (s *Service) CompleteAudit(ctx context.Context, processCode domain.ProcessCode, finalScores []ScoreUpdate) (*CompleteResult, error) {
	process, err := s.loadProcess(ctx, processCode)
	if err != nil {
		return nil, err
	}
	if len(finalScores) > 0 {
		if err := s.ScoreChecklists(ctx, finalScores); err != nil {
			return nil, err
		}
	}

	summary, err := s.scoring.CalculateScore(ctx, processCode)
	if err != nil {
		return nil, err
	}
	if remaining := summary.Unscored(); remaining > 0 {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "not all items scored: %d remaining", remaining)
	}

	if err := s.cascadeAudited(ctx, processCode); err != nil {
		return nil, err
	}

	verdict, err := s.scoring.CheckThreshold(ctx, process.AuditType, summary.Final)
	if err != nil {
		return nil, err
	}

	s.metrics.IncVerdict(verdict.String(), process.AuditType.String())
	_ = s.events.Emit(ctx, events.Event{
		Type:        events.TypeAuditCompleted,
		ProcessCode: processCode,
		AuditType:   process.AuditType,
		TeacherID:   process.TeacherID,
		AuditorID:   process.AuditorID,
		Verdict:     verdict,
		Score:       summary.Final,
	})
	s.logger.InfoContext(ctx, "audit completed",
		"process_code", processCode, "score", summary.Final, "verdict", verdict)

	s.afterCompletion(ctx, process, verdict, summary.Final)

	return &CompleteResult{ProcessCode: processCode, Score: summary.Final, Verdict: verdict}, nil
}

// cascadeAudited closes the hierarchy bottom-up: scored items become
// Audited, a step becomes Audited once all its items are, and the process
// becomes Audited once no step remains incomplete.
func (s *Service) cascadeAudited(ctx context.Context, processCode domain.ProcessCode) error {
	now := s.clock()
	steps, err := s.steps.ListByProcess(ctx, processCode)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list steps")
	}
	incompleteSteps := 0
	for _, step := range steps {
		items, err := s.checklists.ListByStep(ctx, step.Code)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "list checklist items")
		}
		allAudited := true
		for _, item := range items {
			if item.IsScored() && item.Status != domain.StatusAudited {
				item.Status = domain.StatusAudited
				item.UpdatedAt = now
				if err := s.checklists.Update(ctx, item); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "update checklist item")
				}
			}
			if item.Status != domain.StatusAudited {
				allAudited = false
			}
		}
		if allAudited {
			if step.Status != domain.StatusAudited {
				step.Status = domain.StatusAudited
				step.Progress = domain.StepCompleted
				step.UpdatedAt = now
				if err := s.steps.Update(ctx, step); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "update step")
				}
			}
		} else {
			incompleteSteps++
		}
	}
	if incompleteSteps == 0 {
		return s.setProcessStatus(ctx, processCode, domain.StatusAudited, now)
	}
	return nil
}

// afterCompletion runs notification fan-out and, for a failed first run,
// schedules the retraining clone. Every failure here is logged and
// swallowed: the completion is already committed.
func (s *Service) afterCompletion(ctx context.Context, process *models.ProcessInstance, verdict domain.Verdict, score float64) {
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notification.Outcome{
			ProcessCode: process.Code,
			AuditType:   process.AuditType,
			TeacherID:   process.TeacherID,
			Verdict:     verdict,
			Score:       score,
		})
	}

	if verdict == domain.VerdictRetrain && !process.AuditType.IsRetraining() && s.retraining != nil {
		if _, err := s.retraining.CreateRetrainingAudit(ctx, process.Code); err != nil {
			s.logger.ErrorContext(ctx, "retraining clone failed",
				"process_code", process.Code, "error", err)
		}
	}
}

func (s *Service) setProcessStatus(ctx context.Context, code domain.ProcessCode, status domain.Status, now time.Time) error {
	process, err := s.loadProcess(ctx, code)
	if err != nil {
		return err
	}
	process.Status = status
	process.UpdatedAt = now
	if err := s.processes.Update(ctx, process); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update process")
	}
	return nil
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

func (s *Service) loadStep(ctx context.Context, code domain.StepCode) (*models.StepInstance, error) {
	step, err := s.steps.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "audit step %s not found", code)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load step")
	}
	return step, nil
}

package retraining

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"auditflow/internal/audit/models"
	"auditflow/internal/audit/store/memory"
	"auditflow/internal/events"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// =============================================================================
// Retraining Service Test Suite
// =============================================================================
// Justification for unit tests: the clone must be a genuinely fresh run
// (new codes, reset scores) that still grades against the origin's criteria,
// and the origin must never be cloned twice. Both properties are pinned here
// record by record.

type RetrainingSuite struct {
	suite.Suite
	processes  *memory.ProcessStore
	steps      *memory.StepStore
	checklists *memory.ChecklistStore
	sink       *events.InMemorySink
	service    *Service
}

func TestRetrainingSuite(t *testing.T) {
	suite.Run(t, new(RetrainingSuite))
}

func (s *RetrainingSuite) SetupTest() {
	s.processes = memory.NewProcessStore()
	s.steps = memory.NewStepStore()
	s.checklists = memory.NewChecklistStore()
	s.sink = events.NewInMemorySink()

	var err error
	s.service, err = New(s.processes, s.steps, s.checklists,
		WithEvents(events.NewPublisher(s.sink)),
		WithLogger(slog.New(slog.DiscardHandler)))
	s.Require().NoError(err)
}

// SetupSubTest gives each s.Run subtest the same fresh fixtures SetupTest
// gives each test method; the assertions count per-subtest events.
func (s *RetrainingSuite) SetupSubTest() {
	s.SetupTest()
}

// seedOrigin creates a completed standard run with two steps and scored
// items carrying distinct maxima and guidance.
func (s *RetrainingSuite) seedOrigin(code string) domain.ProcessCode {
	ctx := context.Background()
	now := time.Now()
	process := domain.ProcessCode(code)
	s.Require().NoError(s.processes.Insert(ctx, &models.ProcessInstance{
		Code: process, TemplateCode: "tmpl-1", AuditType: domain.AuditTypeStandard,
		EventRef: domain.EventRef("evt-" + code), TeacherID: "teacher-1",
		AuditorID: "aud-1", SlideLink: "https://slides/1",
		VideoLinks: []string{"https://v/1"}, ClassGroupCode: "5B",
		Status: domain.StatusAudited, CreatedAt: now, UpdatedAt: now,
	}))

	score := 2.0
	for i := 0; i < 2; i++ {
		step := domain.StepCode(code + "_s" + string(rune('0'+i)))
		s.Require().NoError(s.steps.Insert(ctx, &models.StepInstance{
			Code: step, ProcessCode: process, TemplateCode: "st-tmpl", AuditorID: "aud-1",
			Position: i, Progress: domain.StepCompleted, Status: domain.StatusAudited,
			CreatedAt: now, UpdatedAt: now,
		}))
		s.Require().NoError(s.checklists.Insert(ctx, &models.ChecklistInstance{
			Code: domain.ChecklistCode(string(step) + "_i0"), StepCode: step,
			ProcessCode: process, TemplateCode: "cl-tmpl", Score: &score,
			MaxScore: float64(10 + i), Guidance: "guidance " + string(rune('0'+i)),
			Status: domain.StatusAudited, CreatedAt: now, UpdatedAt: now,
		}))
	}
	return process
}

// =============================================================================
// CreateRetrainingAudit Tests
// =============================================================================

func (s *RetrainingSuite) TestCreateRetrainingAudit() {
	ctx := context.Background()

	s.Run("clones the full hierarchy with fresh codes and reset scores", func() {
		origin := s.seedOrigin("orig-1")

		result, err := s.service.CreateRetrainingAudit(ctx, origin)
		s.Require().NoError(err)
		s.False(result.AlreadyExists)
		s.NotEqual(origin, result.ProcessCode)

		clone, err := s.processes.FindByCode(ctx, result.ProcessCode)
		s.Require().NoError(err)
		s.Equal(domain.AuditTypeRetraining, clone.AuditType)
		s.Equal(domain.StatusAssigned, clone.Status)
		s.Equal(origin, clone.OriginCode)
		s.Equal(domain.AuditorID("aud-1"), clone.AuditorID)
		s.Equal("tmpl-1", clone.TemplateCode)
		s.Equal("https://slides/1", clone.SlideLink)
		s.Equal("5B", clone.ClassGroupCode)

		steps, _ := s.steps.ListByProcess(ctx, clone.Code)
		s.Require().Len(steps, 2)
		for i, step := range steps {
			s.Equal(i, step.Position)
			s.Equal(domain.StepNotStarted, step.Progress)
			s.Equal(domain.StatusAssigned, step.Status)
			s.Equal(domain.AuditorID("aud-1"), step.AuditorID)
			s.NotContains(step.Code.String(), "orig-1_s")
		}

		items, _ := s.checklists.ListByProcess(ctx, clone.Code)
		s.Require().Len(items, 2)
		for _, item := range items {
			s.Nil(item.Score)
			s.Equal(domain.StatusAssigned, item.Status)
			s.Contains([]float64{10, 11}, item.MaxScore)
			s.NotEmpty(item.Guidance)
		}

		s.Len(s.sink.ByType(events.TypeRetrainingScheduled), 1)
	})

	s.Run("second clone of the same origin reports the existing run", func() {
		origin := s.seedOrigin("orig-2")

		first, err := s.service.CreateRetrainingAudit(ctx, origin)
		s.Require().NoError(err)

		second, err := s.service.CreateRetrainingAudit(ctx, origin)
		s.Require().NoError(err)
		s.True(second.AlreadyExists)
		s.Equal(first.ProcessCode, second.ProcessCode)

		// No second event either.
		s.Len(s.sink.ByType(events.TypeRetrainingScheduled), 1)
	})

	s.Run("missing origin returns not found", func() {
		_, err := s.service.CreateRetrainingAudit(ctx, "absent")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

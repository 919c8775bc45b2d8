package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"auditflow/internal/audit/models"
	"auditflow/internal/audit/store/memory"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// =============================================================================
// Scoring Engine Test Suite
// =============================================================================
// Justification for unit tests: the score formula and band matching carry the
// pass/retrain/terminate decision for a run; exercising the rounding and the
// half-open band edges here is far cheaper than via full completion flows.

type EngineSuite struct {
	suite.Suite
	checklists *memory.ChecklistStore
	thresholds *memory.ThresholdStore
	engine     *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.checklists = memory.NewChecklistStore()
	s.thresholds = memory.NewThresholdStore()

	var err error
	s.engine, err = NewEngine(s.checklists, s.thresholds)
	s.Require().NoError(err)
}

func (s *EngineSuite) seedItem(process domain.ProcessCode, code string, score *float64, maxScore float64) {
	s.Require().NoError(s.checklists.Insert(context.Background(), &models.ChecklistInstance{
		Code:        domain.ChecklistCode(code),
		StepCode:    domain.StepCode(string(process) + "_step"),
		ProcessCode: process,
		Score:       score,
		MaxScore:    maxScore,
		Status:      domain.StatusAuditing,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}))
}

func ptr(v float64) *float64 { return &v }

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *EngineSuite) TestNewEngine() {
	s.Run("nil checklist store returns error", func() {
		_, err := NewEngine(nil, s.thresholds)
		s.Error(err)
	})

	s.Run("nil threshold store returns error", func() {
		_, err := NewEngine(s.checklists, nil)
		s.Error(err)
	})
}

// =============================================================================
// CalculateScore Tests
// =============================================================================

func (s *EngineSuite) TestCalculateScore() {
	ctx := context.Background()

	s.Run("scales actual over max to a five point scale", func() {
		process := domain.ProcessCode("p1")
		s.seedItem(process, "p1_i1", ptr(7), 10)
		s.seedItem(process, "p1_i2", ptr(7), 10)

		sum, err := s.engine.CalculateScore(ctx, process)
		s.NoError(err)
		s.Equal(3.5, sum.Final)
		s.Equal(14.0, sum.ActualSum)
		s.Equal(20.0, sum.MaxSum)
		s.Equal(2, sum.ScoredItems)
		s.Equal(0, sum.Unscored())
	})

	s.Run("rounds to two decimals", func() {
		process := domain.ProcessCode("p2")
		s.seedItem(process, "p2_i1", ptr(1), 3)
		s.seedItem(process, "p2_i2", ptr(1), 3)

		// 2/6*5 = 1.666... -> 1.67
		sum, err := s.engine.CalculateScore(ctx, process)
		s.NoError(err)
		s.Equal(1.67, sum.Final)
	})

	s.Run("counts unscored items without adding to the actual sum", func() {
		process := domain.ProcessCode("p3")
		s.seedItem(process, "p3_i1", ptr(4), 5)
		s.seedItem(process, "p3_i2", nil, 5)

		sum, err := s.engine.CalculateScore(ctx, process)
		s.NoError(err)
		s.Equal(1, sum.Unscored())
		s.Equal(4.0, sum.ActualSum)
		s.Equal(10.0, sum.MaxSum)
	})

	s.Run("zero maxima yields a zero final score", func() {
		process := domain.ProcessCode("p4")
		s.seedItem(process, "p4_i1", ptr(0), 0)

		sum, err := s.engine.CalculateScore(ctx, process)
		s.NoError(err)
		s.Equal(0.0, sum.Final)
	})

	s.Run("empty run yields an empty summary", func() {
		sum, err := s.engine.CalculateScore(ctx, domain.ProcessCode("absent"))
		s.NoError(err)
		s.Equal(0, sum.TotalItems)
		s.Equal(0.0, sum.Final)
	})
}

// =============================================================================
// CheckThreshold Tests
// =============================================================================

func (s *EngineSuite) seedStandardBands() {
	s.thresholds.SeedBand(models.ThresholdBand{
		AuditType: domain.AuditTypeStandard, Verdict: domain.VerdictRetrain, MaxScore: ptr(3.0),
	})
	s.thresholds.SeedBand(models.ThresholdBand{
		AuditType: domain.AuditTypeStandard, Verdict: domain.VerdictPass, MinScore: ptr(3.0),
	})
}

func (s *EngineSuite) TestCheckThreshold() {
	ctx := context.Background()

	s.Run("score below the cut retrains", func() {
		s.seedStandardBands()
		verdict, err := s.engine.CheckThreshold(ctx, domain.AuditTypeStandard, 2.8)
		s.NoError(err)
		s.Equal(domain.VerdictRetrain, verdict)
	})

	s.Run("band minimum is inclusive", func() {
		s.seedStandardBands()
		verdict, err := s.engine.CheckThreshold(ctx, domain.AuditTypeStandard, 3.0)
		s.NoError(err)
		s.Equal(domain.VerdictPass, verdict)
	})

	s.Run("band maximum is exclusive", func() {
		s.thresholds.SeedBand(models.ThresholdBand{
			AuditType: domain.AuditTypeRetraining, Verdict: domain.VerdictTerminate, MaxScore: ptr(3.0),
		})
		s.thresholds.SeedBand(models.ThresholdBand{
			AuditType: domain.AuditTypeRetraining, Verdict: domain.VerdictPass, MinScore: ptr(3.0),
		})

		verdict, err := s.engine.CheckThreshold(ctx, domain.AuditTypeRetraining, 2.99)
		s.NoError(err)
		s.Equal(domain.VerdictTerminate, verdict)
	})

	s.Run("no bands configured is an invariant violation", func() {
		_, err := s.engine.CheckThreshold(ctx, domain.AuditTypeOnboarding, 4.0)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("uncovered score is an invariant violation, not a pass", func() {
		s.thresholds.SeedBand(models.ThresholdBand{
			AuditType: domain.AuditTypeOnboarding, Verdict: domain.VerdictPass,
			MinScore: ptr(4.0), MaxScore: ptr(5.0),
		})

		_, err := s.engine.CheckThreshold(ctx, domain.AuditTypeOnboarding, 3.0)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

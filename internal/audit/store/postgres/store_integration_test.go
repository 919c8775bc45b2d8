//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"auditflow/internal/audit/models"
	"auditflow/internal/audit/store/postgres"
	"auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
	"auditflow/pkg/platform/tx"
	"auditflow/pkg/testutil/containers"
)

// =============================================================================
// Postgres Store Integration Test Suite
// =============================================================================
// Justification for integration tests: the uniqueness constraint, array
// round-tripping, and the ambient-transaction path only exist against a real
// database; the in-memory stores cannot regress them.

type PostgresStoreSuite struct {
	suite.Suite
	pg         *containers.PostgresContainer
	processes  *postgres.ProcessStore
	steps      *postgres.StepStore
	checklists *postgres.ChecklistStore
	thresholds *postgres.ThresholdStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.processes = postgres.NewProcessStore(s.pg.DB)
	s.steps = postgres.NewStepStore(s.pg.DB)
	s.checklists = postgres.NewChecklistStore(s.pg.DB)
	s.thresholds = postgres.NewThresholdStore(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(),
		"audit_processes", "audit_steps", "audit_checklist_items", "threshold_bands"))
}

func (s *PostgresStoreSuite) newProcess(code, eventRef string, t domain.AuditType) *models.ProcessInstance {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.ProcessInstance{
		Code: domain.ProcessCode(code), TemplateCode: "tmpl-1", AuditType: t,
		EventRef: domain.EventRef(eventRef), TeacherID: "teacher-1",
		VideoLinks: []string{"https://v/1", "https://v/2"},
		Status:     domain.StatusOpen, CreatedAt: now, UpdatedAt: now,
	}
}

// =============================================================================
// Process Store Tests
// =============================================================================

func (s *PostgresStoreSuite) TestProcessStore() {
	ctx := context.Background()

	s.Run("insert and find round trip including video links", func() {
		want := s.newProcess("p1", "evt-1", domain.AuditTypeStandard)
		s.Require().NoError(s.processes.Insert(ctx, want))

		got, err := s.processes.FindByCode(ctx, "p1")
		s.Require().NoError(err)
		s.Equal(want.EventRef, got.EventRef)
		s.Equal([]string{"https://v/1", "https://v/2"}, got.VideoLinks)
		s.Equal(domain.StatusOpen, got.Status)
	})

	s.Run("same event and type violates the uniqueness constraint", func() {
		s.Require().NoError(s.processes.Insert(ctx, s.newProcess("p2", "evt-2", domain.AuditTypeStandard)))

		err := s.processes.Insert(ctx, s.newProcess("p3", "evt-2", domain.AuditTypeStandard))
		s.ErrorIs(err, sentinel.ErrConflict)

		// A different audit type for the same event is fine.
		s.NoError(s.processes.Insert(ctx, s.newProcess("p4", "evt-2", domain.AuditTypeOnboarding)))
	})

	s.Run("find by event and type", func() {
		s.Require().NoError(s.processes.Insert(ctx, s.newProcess("p5", "evt-5", domain.AuditTypeStandard)))

		got, err := s.processes.FindByEventAndType(ctx, "evt-5", domain.AuditTypeStandard)
		s.Require().NoError(err)
		s.Equal(domain.ProcessCode("p5"), got.Code)

		_, err = s.processes.FindByEventAndType(ctx, "evt-5", domain.AuditTypeRetraining)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("find by origin", func() {
		origin := s.newProcess("p6", "evt-6", domain.AuditTypeStandard)
		s.Require().NoError(s.processes.Insert(ctx, origin))
		clone := s.newProcess("p7", "evt-6", domain.AuditTypeRetraining)
		clone.OriginCode = origin.Code
		s.Require().NoError(s.processes.Insert(ctx, clone))

		got, err := s.processes.FindByOrigin(ctx, origin.Code)
		s.Require().NoError(err)
		s.Equal(clone.Code, got.Code)
	})

	s.Run("update of a missing row reports not found", func() {
		ghost := s.newProcess("ghost", "evt-ghost", domain.AuditTypeStandard)
		s.ErrorIs(s.processes.Update(ctx, ghost), sentinel.ErrNotFound)
	})

	s.Run("workload counts skip unassigned runs", func() {
		a := s.newProcess("w1", "evt-w1", domain.AuditTypeStandard)
		a.AuditorID = "aud-1"
		b := s.newProcess("w2", "evt-w2", domain.AuditTypeStandard)
		b.AuditorID = "aud-1"
		unassigned := s.newProcess("w3", "evt-w3", domain.AuditTypeStandard)
		for _, p := range []*models.ProcessInstance{a, b, unassigned} {
			s.Require().NoError(s.processes.Insert(ctx, p))
		}

		counts, err := s.processes.CountByAuditor(ctx)
		s.Require().NoError(err)
		s.Equal(2, counts["aud-1"])
		s.Len(counts, 1)
	})
}

// =============================================================================
// Step and Checklist Store Tests
// =============================================================================

func (s *PostgresStoreSuite) TestStepAndChecklistStores() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.processes.Insert(ctx, s.newProcess("p1", "evt-1", domain.AuditTypeStandard)))

	s.Run("steps list in position order", func() {
		for i, code := range []string{"p1_s1", "p1_s0"} {
			s.Require().NoError(s.steps.Insert(ctx, &models.StepInstance{
				Code: domain.StepCode(code), ProcessCode: "p1", TemplateCode: "st-tmpl",
				Position: 1 - i, Progress: domain.StepNotStarted, Status: domain.StatusOpen,
				CreatedAt: now, UpdatedAt: now,
			}))
		}

		steps, err := s.steps.ListByProcess(ctx, "p1")
		s.Require().NoError(err)
		s.Require().Len(steps, 2)
		s.Equal(domain.StepCode("p1_s0"), steps[0].Code)
		s.Equal(domain.StepCode("p1_s1"), steps[1].Code)
	})

	s.Run("checklist scores survive the null round trip", func() {
		score := 7.5
		scored := &models.ChecklistInstance{
			Code: "p1_s0_i0", StepCode: "p1_s0", ProcessCode: "p1", TemplateCode: "cl-tmpl",
			Score: &score, MaxScore: 10, Guidance: "greets the class",
			Status: domain.StatusAuditing, CreatedAt: now, UpdatedAt: now,
		}
		unscored := &models.ChecklistInstance{
			Code: "p1_s0_i1", StepCode: "p1_s0", ProcessCode: "p1", TemplateCode: "cl-tmpl",
			MaxScore: 5, Status: domain.StatusAssigned, CreatedAt: now, UpdatedAt: now,
		}
		s.Require().NoError(s.checklists.Insert(ctx, scored))
		s.Require().NoError(s.checklists.Insert(ctx, unscored))

		got, err := s.checklists.FindByCodes(ctx, []domain.ChecklistCode{"p1_s0_i0", "p1_s0_i1"})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(7.5, *got["p1_s0_i0"].Score)
		s.Nil(got["p1_s0_i1"].Score)
		s.Equal("greets the class", got["p1_s0_i0"].Guidance)
	})
}

// =============================================================================
// Threshold Store Tests
// =============================================================================

func (s *PostgresStoreSuite) TestThresholdStore() {
	ctx := context.Background()

	_, err := s.pg.Exec(ctx, `
		INSERT INTO threshold_bands (audit_type, verdict, min_score, max_score) VALUES
		('standard', 'retrain', NULL, 3.0),
		('standard', 'pass', 3.0, NULL)
	`)
	s.Require().NoError(err)

	bands, err := s.thresholds.ListBands(ctx, domain.AuditTypeStandard)
	s.Require().NoError(err)
	s.Require().Len(bands, 2)
	// NULLS FIRST puts the unbounded-min band first.
	s.Equal(domain.VerdictRetrain, bands[0].Verdict)
	s.Nil(bands[0].MinScore)
	s.Equal(3.0, *bands[0].MaxScore)
	s.Equal(domain.VerdictPass, bands[1].Verdict)

	other, err := s.thresholds.ListBands(ctx, domain.AuditTypeRetraining)
	s.Require().NoError(err)
	s.Empty(other)
}

// =============================================================================
// Ambient Transaction Tests
// =============================================================================

func (s *PostgresStoreSuite) TestAmbientTransaction() {
	ctx := context.Background()

	s.Run("rolled back transaction leaves no rows behind", func() {
		txn, err := s.pg.DB.BeginTx(ctx, nil)
		s.Require().NoError(err)
		txCtx := tx.WithTx(ctx, txn)

		s.Require().NoError(s.processes.Insert(txCtx, s.newProcess("tx-1", "evt-tx1", domain.AuditTypeStandard)))
		s.Require().NoError(txn.Rollback())

		_, err = s.processes.FindByCode(ctx, "tx-1")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("committed transaction is visible outside it", func() {
		txn, err := s.pg.DB.BeginTx(ctx, nil)
		s.Require().NoError(err)
		txCtx := tx.WithTx(ctx, txn)

		s.Require().NoError(s.processes.Insert(txCtx, s.newProcess("tx-2", "evt-tx2", domain.AuditTypeStandard)))
		s.Require().NoError(txn.Commit())

		got, err := s.processes.FindByCode(ctx, "tx-2")
		s.Require().NoError(err)
		s.Equal(domain.ProcessCode("tx-2"), got.Code)
	})
}

package assignment

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"auditflow/internal/audit/models"
	"auditflow/internal/audit/store/memory"
	"auditflow/internal/events"
	"auditflow/internal/identity"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

// =============================================================================
// Assignment Service Test Suite
// =============================================================================
// Justification for unit tests: the cascade rules and the workload-balancing
// pick order are pure service behavior; asserting them against in-memory
// stores pins down exactly which records an assignment touches.

type AssignmentSuite struct {
	suite.Suite
	processes  *memory.ProcessStore
	steps      *memory.StepStore
	checklists *memory.ChecklistStore
	identities *identity.InMemoryStore
	sink       *events.InMemorySink
	service    *Service
}

func TestAssignmentSuite(t *testing.T) {
	suite.Run(t, new(AssignmentSuite))
}

func (s *AssignmentSuite) SetupTest() {
	s.processes = memory.NewProcessStore()
	s.steps = memory.NewStepStore()
	s.checklists = memory.NewChecklistStore()
	s.identities = identity.NewInMemoryStore()
	s.sink = events.NewInMemorySink()

	var err error
	s.service, err = New(s.processes, s.steps, s.checklists, s.identities,
		WithEvents(events.NewPublisher(s.sink)),
		WithLogger(slog.New(slog.DiscardHandler)))
	s.Require().NoError(err)
}

func (s *AssignmentSuite) seedAuditor(id string) {
	s.identities.Seed(&identity.User{
		ID: id, Name: "Auditor " + id, Email: id + "@example.com",
		Roles: []domain.Role{domain.RoleAuditor},
	})
}

func (s *AssignmentSuite) seedProcess(code string, status domain.Status, auditor domain.AuditorID) {
	now := time.Now()
	s.Require().NoError(s.processes.Insert(context.Background(), &models.ProcessInstance{
		Code:      domain.ProcessCode(code),
		AuditType: domain.AuditTypeStandard,
		EventRef:  domain.EventRef("evt-" + code),
		TeacherID: "teacher-1",
		AuditorID: auditor,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (s *AssignmentSuite) seedTree(code string) {
	s.seedProcess(code, domain.StatusOpen, "")
	now := time.Now()
	step := domain.StepCode(code + "_s0")
	s.Require().NoError(s.steps.Insert(context.Background(), &models.StepInstance{
		Code: step, ProcessCode: domain.ProcessCode(code),
		Progress: domain.StepNotStarted, Status: domain.StatusOpen,
		CreatedAt: now, UpdatedAt: now,
	}))
	s.Require().NoError(s.checklists.Insert(context.Background(), &models.ChecklistInstance{
		Code: domain.ChecklistCode(code + "_s0_i0"), StepCode: step,
		ProcessCode: domain.ProcessCode(code), MaxScore: 10,
		Status: domain.StatusOpen, CreatedAt: now, UpdatedAt: now,
	}))
}

// =============================================================================
// AssignAuditor Tests
// =============================================================================

func (s *AssignmentSuite) TestAssignAuditor() {
	ctx := context.Background()

	s.Run("assignment cascades auditor and status through the tree", func() {
		s.seedAuditor("aud-1")
		s.seedTree("proc-1")

		s.NoError(s.service.AssignAuditor(ctx, "proc-1", "aud-1"))

		process, err := s.processes.FindByCode(ctx, "proc-1")
		s.Require().NoError(err)
		s.Equal(domain.AuditorID("aud-1"), process.AuditorID)
		s.Equal(domain.StatusAssigned, process.Status)

		steps, _ := s.steps.ListByProcess(ctx, "proc-1")
		s.Require().Len(steps, 1)
		s.Equal(domain.AuditorID("aud-1"), steps[0].AuditorID)
		s.Equal(domain.StatusAssigned, steps[0].Status)

		items, _ := s.checklists.ListByProcess(ctx, "proc-1")
		s.Require().Len(items, 1)
		s.Equal(domain.StatusAssigned, items[0].Status)

		s.Len(s.sink.ByType(events.TypeAuditorAssigned), 1)
	})

	s.Run("reassignment replaces the previous auditor", func() {
		s.seedAuditor("aud-2")
		s.seedAuditor("aud-3")
		s.seedTree("proc-2")

		s.NoError(s.service.AssignAuditor(ctx, "proc-2", "aud-2"))
		s.NoError(s.service.AssignAuditor(ctx, "proc-2", "aud-3"))

		process, _ := s.processes.FindByCode(ctx, "proc-2")
		s.Equal(domain.AuditorID("aud-3"), process.AuditorID)
	})

	s.Run("completed audit rejects assignment", func() {
		s.seedAuditor("aud-4")
		s.seedProcess("proc-3", domain.StatusAudited, "aud-4")

		err := s.service.AssignAuditor(ctx, "proc-3", "aud-4")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown user is not an auditor", func() {
		s.seedTree("proc-4")

		err := s.service.AssignAuditor(ctx, "proc-4", "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("user without the auditor role is rejected", func() {
		s.identities.Seed(&identity.User{
			ID: "mgr-1", Email: "mgr-1@example.com", Roles: []domain.Role{domain.RoleManager},
		})
		s.seedTree("proc-5")

		err := s.service.AssignAuditor(ctx, "proc-5", "mgr-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing process returns not found", func() {
		s.seedAuditor("aud-5")
		err := s.service.AssignAuditor(ctx, "absent", "aud-5")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// UnassignAuditor Tests
// =============================================================================

func (s *AssignmentSuite) TestUnassignAuditor() {
	ctx := context.Background()

	s.Run("unassignment resets the tree to open", func() {
		s.seedAuditor("aud-1")
		s.seedTree("proc-1")
		s.Require().NoError(s.service.AssignAuditor(ctx, "proc-1", "aud-1"))

		s.NoError(s.service.UnassignAuditor(ctx, "proc-1"))

		process, _ := s.processes.FindByCode(ctx, "proc-1")
		s.True(process.AuditorID.IsZero())
		s.Equal(domain.StatusOpen, process.Status)

		steps, _ := s.steps.ListByProcess(ctx, "proc-1")
		s.True(steps[0].AuditorID.IsZero())
		s.Equal(domain.StatusOpen, steps[0].Status)

		s.Len(s.sink.ByType(events.TypeAuditorUnassigned), 1)
	})

	s.Run("unassigned process rejects unassignment", func() {
		s.seedProcess("proc-2", domain.StatusOpen, "")
		err := s.service.UnassignAuditor(ctx, "proc-2")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("in-flight audit cannot be unassigned", func() {
		s.seedProcess("proc-3", domain.StatusAuditing, "aud-9")
		err := s.service.UnassignAuditor(ctx, "proc-3")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("finished audit cannot be unassigned", func() {
		s.seedProcess("proc-4", domain.StatusAudited, "aud-9")
		err := s.service.UnassignAuditor(ctx, "proc-4")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

// =============================================================================
// RandomAssign Tests
// =============================================================================

func (s *AssignmentSuite) TestRandomAssign() {
	ctx := context.Background()

	s.Run("no eligible auditors aborts the batch", func() {
		s.seedTree("proc-1")
		_, err := s.service.RandomAssign(ctx, []domain.ProcessCode{"proc-1"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("picks the least loaded auditor and counts picks within the batch", func() {
		s.seedAuditor("aud-a")
		s.seedAuditor("aud-b")
		// aud-a already carries three runs, aud-b one.
		for _, code := range []string{"held-1", "held-2", "held-3"} {
			s.seedProcess(code, domain.StatusAssigned, "aud-a")
		}
		s.seedProcess("held-4", domain.StatusAssigned, "aud-b")

		s.seedTree("proc-2")
		s.seedTree("proc-3")
		s.seedTree("proc-4")

		result, err := s.service.RandomAssign(ctx, []domain.ProcessCode{"proc-2", "proc-3", "proc-4"})
		s.Require().NoError(err)
		s.Require().Len(result.Assignments, 3)

		// aud-b (load 1) takes the first two, then loads tie at 3 and the
		// lower id aud-a takes the third.
		s.Equal(domain.AuditorID("aud-b"), result.Assignments[0].AuditorID)
		s.Equal(domain.AuditorID("aud-b"), result.Assignments[1].AuditorID)
		s.Equal(domain.AuditorID("aud-a"), result.Assignments[2].AuditorID)
	})

	s.Run("skips unknown, already assigned, and audited runs", func() {
		s.seedAuditor("aud-c")
		s.seedProcess("taken", domain.StatusAssigned, "aud-c")
		s.seedProcess("done", domain.StatusAudited, "aud-c")
		s.seedTree("fresh")

		result, err := s.service.RandomAssign(ctx,
			[]domain.ProcessCode{"missing", "taken", "done", "fresh"})
		s.Require().NoError(err)

		s.Len(result.Assignments, 1)
		s.Equal(domain.ProcessCode("fresh"), result.Assignments[0].ProcessCode)

		s.Require().Len(result.Skipped, 3)
		s.Equal(SkipNotFound, result.Skipped[0].Reason)
		s.Equal(SkipAlreadyAssigned, result.Skipped[1].Reason)
		s.Equal(SkipAudited, result.Skipped[2].Reason)
	})
}

// =============================================================================
// GetPerformance Tests
// =============================================================================

func (s *AssignmentSuite) TestGetPerformance() {
	ctx := context.Background()

	s.Run("unknown auditor returns not found", func() {
		_, err := s.service.GetPerformance(ctx, "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("counts total and completed runs", func() {
		s.seedAuditor("aud-1")
		s.seedProcess("p1", domain.StatusAssigned, "aud-1")
		s.seedProcess("p2", domain.StatusAudited, "aud-1")
		s.seedProcess("p3", domain.StatusAudited, "aud-1")

		perf, err := s.service.GetPerformance(ctx, "aud-1")
		s.Require().NoError(err)
		s.Equal(3, perf.TotalAudits)
		s.Equal(2, perf.CompletedCount)
		s.Equal(0.0, perf.AverageScore)
	})
}

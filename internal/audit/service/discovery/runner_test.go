package discovery

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"auditflow/internal/audit/service/instantiate"
	"auditflow/internal/audit/store/memory"
	"auditflow/internal/template"
	"auditflow/pkg/attrs"
	"auditflow/pkg/domain"
)

// captureHandler records emitted log attributes so tests can assert on them.
type captureHandler struct {
	mu      sync.Mutex
	records [][]any
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	kv := []any{"msg", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		kv = append(kv, a.Key, a.Value.String())
		return true
	})
	h.mu.Lock()
	h.records = append(h.records, kv)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) last() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return nil
	}
	return h.records[len(h.records)-1]
}

// =============================================================================
// Discovery Runner Test Suite
// =============================================================================
// Justification for unit tests: the batch contract is that one bad candidate
// never takes down the rest; that isolation is exactly what a naive rewrite
// would lose.

type RunnerSuite struct {
	suite.Suite
	classifier *template.StaticClassifier
	templates  *template.InMemoryStore
	logs       *captureHandler
	runner     *Runner
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	s.templates = template.NewInMemoryStore()
	s.classifier = template.NewStaticClassifier()

	quiet := slog.New(slog.DiscardHandler)
	resolver, err := template.NewResolver(s.classifier, s.templates, template.WithLogger(quiet))
	s.Require().NoError(err)
	instantiateSvc, err := instantiate.New(
		memory.NewProcessStore(), memory.NewStepStore(), memory.NewChecklistStore(),
		resolver, instantiate.WithLogger(quiet))
	s.Require().NoError(err)

	s.logs = &captureHandler{}
	s.runner, err = NewRunner(instantiateSvc, slog.New(s.logs))
	s.Require().NoError(err)
}

func (s *RunnerSuite) seedTemplateTree(eventRef string) {
	tmpl := "tmpl-" + eventRef
	s.classifier.Seed(domain.EventRef(eventRef), &template.Classification{
		ProductKey: "math-" + eventRef, GradeKey: "g5", PeriodKey: "2026q1", TeacherID: "teacher-1",
	})
	s.templates.SeedProcess(&template.ProcessTemplate{
		Code: tmpl, ProductKey: "math-" + eventRef, GradeKey: "g5", PeriodKey: "2026q1", Published: true,
	})
	s.templates.SeedStep(&template.StepTemplate{
		Code: tmpl + "-st", ProcessTemplateCode: tmpl, DisplayName: "Warm Up 1", Published: true,
	})
	s.templates.SeedChecklist(&template.ChecklistTemplate{
		Code: tmpl + "-cl", StepTemplateCode: tmpl + "-st", MaxScore: 10, Published: true,
	})
}

func (s *RunnerSuite) TestRun() {
	ctx := context.Background()

	s.Run("a failing candidate does not abort the batch", func() {
		s.seedTemplateTree("evt-ok")

		outcomes := s.runner.Run(ctx, []Candidate{
			{EventRef: "evt-unclassifiable", AuditType: domain.AuditTypeStandard, TeacherID: "teacher-1"},
			{EventRef: "evt-ok", AuditType: domain.AuditTypeStandard, TeacherID: "teacher-1"},
		})

		s.Require().Len(outcomes, 2)
		s.NotEmpty(outcomes[0].Error)
		s.Empty(outcomes[0].ProcessCode)
		s.Empty(outcomes[1].Error)
		s.NotEmpty(outcomes[1].ProcessCode)

		// The skip is logged with the offending event attached.
		s.Equal("evt-unclassifiable", attrs.ExtractString(s.logs.last(), "event_ref"))
	})

	s.Run("duplicate candidates surface as per-candidate errors", func() {
		s.seedTemplateTree("evt-dup")

		outcomes := s.runner.Run(ctx, []Candidate{
			{EventRef: "evt-dup", AuditType: domain.AuditTypeStandard, TeacherID: "teacher-1"},
			{EventRef: "evt-dup", AuditType: domain.AuditTypeStandard, TeacherID: "teacher-1"},
		})

		s.Require().Len(outcomes, 2)
		s.Empty(outcomes[0].Error)
		s.NotEmpty(outcomes[1].Error)
	})

	s.Run("empty batch yields no outcomes", func() {
		s.Empty(s.runner.Run(ctx, nil))
	})
}

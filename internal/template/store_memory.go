package template

import (
	"context"
	"sync"

	"auditflow/pkg/platform/sentinel"
)

// InMemoryStore holds template definitions in memory. Template CRUD lives in
// a separate module; this store doubles as the seedable read model for tests
// and local runs.
type InMemoryStore struct {
	mu         sync.RWMutex
	processes  map[string]*ProcessTemplate
	steps      map[string][]*StepTemplate
	checklists map[string][]*ChecklistTemplate
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		processes:  make(map[string]*ProcessTemplate),
		steps:      make(map[string][]*StepTemplate),
		checklists: make(map[string][]*ChecklistTemplate),
	}
}

// SeedProcess registers a process template.
func (s *InMemoryStore) SeedProcess(t *ProcessTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processes[t.Code] = t
}

// SeedStep registers a step template under its process template.
func (s *InMemoryStore) SeedStep(t *StepTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[t.ProcessTemplateCode] = append(s.steps[t.ProcessTemplateCode], t)
}

// SeedChecklist registers a checklist template under its step template.
func (s *InMemoryStore) SeedChecklist(t *ChecklistTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checklists[t.StepTemplateCode] = append(s.checklists[t.StepTemplateCode], t)
}

func (s *InMemoryStore) FindPublishedProcessTemplate(_ context.Context, productKey, gradeKey, periodKey string) (*ProcessTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.processes {
		if t.Published && t.ProductKey == productKey && t.GradeKey == gradeKey && t.PeriodKey == periodKey {
			clone := *t
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindProcessTemplateByCode(_ context.Context, code string) (*ProcessTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.processes[code]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListPublishedSteps(_ context.Context, processTemplateCode string) ([]*StepTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*StepTemplate
	for _, t := range s.steps[processTemplateCode] {
		if t.Published {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListPublishedChecklists(_ context.Context, stepTemplateCode string) ([]*ChecklistTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ChecklistTemplate
	for _, t := range s.checklists[stepTemplateCode] {
		if t.Published {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

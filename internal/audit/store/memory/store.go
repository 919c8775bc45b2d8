// Package memory provides the in-memory implementations of the audit store
// ports. They favor clarity over performance and back the unit tests and
// local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"auditflow/internal/audit/models"
	"auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

type ProcessStore struct {
	mu        sync.RWMutex
	processes map[domain.ProcessCode]*models.ProcessInstance
}

func NewProcessStore() *ProcessStore {
	return &ProcessStore{processes: make(map[domain.ProcessCode]*models.ProcessInstance)}
}

func (s *ProcessStore) Insert(_ context.Context, p *models.ProcessInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[p.Code]; ok {
		return sentinel.ErrConflict
	}
	clone := *p
	s.processes[p.Code] = &clone
	return nil
}

func (s *ProcessStore) Update(_ context.Context, p *models.ProcessInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[p.Code]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *p
	s.processes[p.Code] = &clone
	return nil
}

func (s *ProcessStore) FindByCode(_ context.Context, code domain.ProcessCode) (*models.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.processes[code]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *ProcessStore) FindByEventAndType(_ context.Context, ref domain.EventRef, t domain.AuditType) (*models.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.processes {
		if p.EventRef == ref && p.AuditType == t {
			clone := *p
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *ProcessStore) FindByOrigin(_ context.Context, origin domain.ProcessCode) (*models.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.processes {
		if p.OriginCode == origin {
			clone := *p
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *ProcessStore) FindByCodes(_ context.Context, codes []domain.ProcessCode) (map[domain.ProcessCode]*models.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.ProcessCode]*models.ProcessInstance, len(codes))
	for _, code := range codes {
		if p, ok := s.processes[code]; ok {
			clone := *p
			out[code] = &clone
		}
	}
	return out, nil
}

func (s *ProcessStore) ListByAuditor(_ context.Context, auditor domain.AuditorID) ([]*models.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ProcessInstance
	for _, p := range s.processes {
		if p.AuditorID == auditor {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *ProcessStore) CountByAuditor(_ context.Context) (map[domain.AuditorID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.AuditorID]int)
	for _, p := range s.processes {
		if !p.AuditorID.IsZero() {
			out[p.AuditorID]++
		}
	}
	return out, nil
}

type StepStore struct {
	mu    sync.RWMutex
	steps map[domain.StepCode]*models.StepInstance
}

func NewStepStore() *StepStore {
	return &StepStore{steps: make(map[domain.StepCode]*models.StepInstance)}
}

func (s *StepStore) Insert(_ context.Context, step *models.StepInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[step.Code]; ok {
		return sentinel.ErrConflict
	}
	clone := *step
	s.steps[step.Code] = &clone
	return nil
}

func (s *StepStore) Update(_ context.Context, step *models.StepInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[step.Code]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *step
	s.steps[step.Code] = &clone
	return nil
}

func (s *StepStore) FindByCode(_ context.Context, code domain.StepCode) (*models.StepInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if step, ok := s.steps[code]; ok {
		clone := *step
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *StepStore) ListByProcess(_ context.Context, process domain.ProcessCode) ([]*models.StepInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.StepInstance
	for _, step := range s.steps {
		if step.ProcessCode == process {
			clone := *step
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

type ChecklistStore struct {
	mu    sync.RWMutex
	items map[domain.ChecklistCode]*models.ChecklistInstance
}

func NewChecklistStore() *ChecklistStore {
	return &ChecklistStore{items: make(map[domain.ChecklistCode]*models.ChecklistInstance)}
}

func (s *ChecklistStore) Insert(_ context.Context, c *models.ChecklistInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[c.Code]; ok {
		return sentinel.ErrConflict
	}
	clone := *c
	s.items[c.Code] = &clone
	return nil
}

func (s *ChecklistStore) Update(_ context.Context, c *models.ChecklistInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[c.Code]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *c
	s.items[c.Code] = &clone
	return nil
}

func (s *ChecklistStore) FindByCodes(_ context.Context, codes []domain.ChecklistCode) (map[domain.ChecklistCode]*models.ChecklistInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.ChecklistCode]*models.ChecklistInstance, len(codes))
	for _, code := range codes {
		if c, ok := s.items[code]; ok {
			clone := *c
			out[code] = &clone
		}
	}
	return out, nil
}

func (s *ChecklistStore) ListByStep(_ context.Context, step domain.StepCode) ([]*models.ChecklistInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ChecklistInstance
	for _, c := range s.items {
		if c.StepCode == step {
			clone := *c
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *ChecklistStore) ListByProcess(_ context.Context, process domain.ProcessCode) ([]*models.ChecklistInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ChecklistInstance
	for _, c := range s.items {
		if c.ProcessCode == process {
			clone := *c
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type ThresholdStore struct {
	mu    sync.RWMutex
	bands map[domain.AuditType][]models.ThresholdBand
}

func NewThresholdStore() *ThresholdStore {
	return &ThresholdStore{bands: make(map[domain.AuditType][]models.ThresholdBand)}
}

// SeedBand registers a band; bands are served in ascending MinScore order
// with nil mins first.
func (s *ThresholdStore) SeedBand(b models.ThresholdBand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bands[b.AuditType] = append(s.bands[b.AuditType], b)
	sort.SliceStable(s.bands[b.AuditType], func(i, j int) bool {
		a, c := s.bands[b.AuditType][i], s.bands[b.AuditType][j]
		if a.MinScore == nil {
			return c.MinScore != nil
		}
		if c.MinScore == nil {
			return false
		}
		return *a.MinScore < *c.MinScore
	})
}

func (s *ThresholdStore) ListBands(_ context.Context, t domain.AuditType) ([]models.ThresholdBand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ThresholdBand, len(s.bands[t]))
	copy(out, s.bands[t])
	return out, nil
}

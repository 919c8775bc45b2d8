package template

import (
	"context"
	"sync"

	"auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

// StaticClassifier serves classifications from a seeded map; the test/local
// stand-in for the scheduling system's classification lookup.
type StaticClassifier struct {
	mu      sync.RWMutex
	entries map[domain.EventRef]*Classification
}

func NewStaticClassifier() *StaticClassifier {
	return &StaticClassifier{entries: make(map[domain.EventRef]*Classification)}
}

func (c *StaticClassifier) Seed(ref domain.EventRef, class *Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ref] = class
}

func (c *StaticClassifier) ResolveClassification(_ context.Context, ref domain.EventRef) (*Classification, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if class, ok := c.entries[ref]; ok {
		clone := *class
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

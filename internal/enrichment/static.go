package enrichment

import (
	"context"
	"sync"

	"auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

// StaticLookup serves enrichment from seeded maps; the test/local stand-in
// for the real content-resolution services.
type StaticLookup struct {
	mu     sync.RWMutex
	slides map[domain.EventRef]string
	videos map[domain.EventRef][]string
	groups map[string]string
}

func NewStaticLookup() *StaticLookup {
	return &StaticLookup{
		slides: make(map[domain.EventRef]string),
		videos: make(map[domain.EventRef][]string),
		groups: make(map[string]string),
	}
}

func (l *StaticLookup) SeedSlide(ref domain.EventRef, link string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slides[ref] = link
}

func (l *StaticLookup) SeedVideos(ref domain.EventRef, links []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.videos[ref] = links
}

func (l *StaticLookup) SeedClassGroup(id, code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.groups[id] = code
}

func (l *StaticLookup) SlideLink(_ context.Context, ref domain.EventRef) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if link, ok := l.slides[ref]; ok {
		return link, nil
	}
	return "", sentinel.ErrNotFound
}

func (l *StaticLookup) VideoLinks(_ context.Context, ref domain.EventRef) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if links, ok := l.videos[ref]; ok {
		return links, nil
	}
	return nil, sentinel.ErrNotFound
}

func (l *StaticLookup) ClassGroupCode(_ context.Context, id string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if code, ok := l.groups[id]; ok {
		return code, nil
	}
	return "", sentinel.ErrNotFound
}

package notification

import (
	"context"
	"sync"

	"auditflow/pkg/platform/sentinel"
)

// InMemorySender records messages for tests. FailAll simulates a collaborator
// outage so swallow-and-log behavior can be asserted.
type InMemorySender struct {
	mu      sync.RWMutex
	sent    []Message
	FailAll bool
}

func NewInMemorySender() *InMemorySender {
	return &InMemorySender{}
}

func (s *InMemorySender) Send(_ context.Context, msg Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAll {
		return false, sentinel.ErrUnavailable
	}
	s.sent = append(s.sent, msg)
	return true, nil
}

// Sent returns a snapshot of delivered messages.
func (s *InMemorySender) Sent() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

package events

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Publisher Test Suite
// =============================================================================
// Justification for unit tests: the publisher's nil and async guarantees are
// what let every service treat emission as optional and non-blocking; a
// regression here deadlocks or panics the whole request path.

type PublisherSuite struct {
	suite.Suite
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) TestEmit() {
	ctx := context.Background()

	s.Run("sync emit appends inline and stamps the timestamp", func() {
		sink := NewInMemorySink()
		pub := NewPublisher(sink)

		s.NoError(pub.Emit(ctx, Event{Type: TypeProcessCreated, ProcessCode: "p1"}))

		got := sink.Events()
		s.Require().Len(got, 1)
		s.Equal(TypeProcessCreated, got[0].Type)
		s.False(got[0].Timestamp.IsZero())
	})

	s.Run("a provided timestamp is preserved", func() {
		sink := NewInMemorySink()
		pub := NewPublisher(sink)

		event := Event{Type: TypeStepStarted, ProcessCode: "p1"}
		s.NoError(pub.Emit(ctx, event))
		first := sink.Events()[0].Timestamp

		s.NoError(pub.Emit(ctx, Event{Type: TypeStepStarted, ProcessCode: "p1", Timestamp: first}))
		s.Equal(first, sink.Events()[1].Timestamp)
	})

	s.Run("nil publisher is a no-op", func() {
		var pub *Publisher
		s.NoError(pub.Emit(ctx, Event{Type: TypeAuditCompleted}))
		s.NotPanics(pub.Close)
	})

	s.Run("async emit is drained by close", func() {
		sink := NewInMemorySink()
		pub := NewPublisher(sink, WithAsyncBuffer(8),
			WithLogger(slog.New(slog.DiscardHandler)))

		for i := 0; i < 5; i++ {
			s.NoError(pub.Emit(ctx, Event{Type: TypeAuditorAssigned, ProcessCode: "p1"}))
		}
		pub.Close()

		s.Len(sink.ByType(TypeAuditorAssigned), 5)
	})

	s.Run("close is idempotent", func() {
		pub := NewPublisher(NewInMemorySink(), WithAsyncBuffer(1))
		pub.Close()
		s.NotPanics(pub.Close)
	})
}

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives emitted events. Implementations must be safe for concurrent
// use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps and forwards lifecycle events to a sink. In sync mode
// Emit appends inline; with an async buffer events are drained by a single
// background goroutine and Close flushes the remainder.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	inbox chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches Emit to buffered, non-blocking delivery. Events
// are dropped (and logged) when the buffer is full rather than stalling the
// request path.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit forwards one event. A nil publisher is a no-op so services can treat
// event emission as optional wiring.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if p == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("event buffer full, dropping event",
			"type", event.Type, "process_code", event.ProcessCode)
	}
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		if err := p.sink.Append(context.Background(), event); err != nil {
			p.logger.Error("event sink append failed",
				"type", event.Type, "process_code", event.ProcessCode, "error", err)
		}
	}
}

// Close flushes buffered events. Safe to call multiple times.
func (p *Publisher) Close() {
	if p == nil || p.inbox == nil {
		return
	}
	p.once.Do(func() {
		close(p.inbox)
		p.wg.Wait()
	})
}

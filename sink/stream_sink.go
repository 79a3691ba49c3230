// Package sink provides EventSink implementations: per-connection delivery
// ends consumed by transports, and permanent observers fed on every event.
package sink

import (
	"context"
	"sync"

	"chat-relay/domain/event"
	"chat-relay/errors"
)

// StreamSink buffers events for one connection. Consume never blocks
// longer than the caller's deadline: when the buffer is full and the
// deadline expires, the connection is reported dead and the dispatcher
// evicts it. The transport drains Events and writes frames at its own
// pace.
type StreamSink struct {
	events chan event.BroadcastEvent
	done   chan struct{}
	once   sync.Once
}

func NewStreamSink(bufferSize int) *StreamSink {
	return &StreamSink{
		events: make(chan event.BroadcastEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *StreamSink) Consume(ctx context.Context, e event.BroadcastEvent) error {
	// Checked first on its own: a select with several ready cases picks one
	// at random, and a closed sink with buffer space left would otherwise
	// accept events nobody will ever drain.
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.events <- e:
		return nil
	}
}

// Events is drained by the transport's write loop.
func (s *StreamSink) Events() <-chan event.BroadcastEvent {
	return s.events
}

// Close marks the sink dead. Idempotent; pending Consume calls unblock
// with ErrSinkClosed.
func (s *StreamSink) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

package events

import (
	"context"
	"sync"
)

// Stream is the bounded response channel the orchestrator yields on.
// Multiple producers may Send concurrently; Close is idempotent, unblocks
// in-flight senders, and closes the receive side so consumers can range.
type Stream struct {
	ch   chan Response
	done chan struct{}
	mu   sync.RWMutex
	once sync.Once
}

// NewStream creates a stream with the given channel capacity.
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = 64
	}
	return &Stream{
		ch:   make(chan Response, capacity),
		done: make(chan struct{}),
	}
}

// Send delivers a response to the consumer. Returns false when the stream
// is closed or the context is cancelled before the response is accepted.
func (s *Stream) Send(ctx context.Context, resp Response) bool {
	// The read lock keeps Close from closing the channel under an
	// in-flight send; the done channel unblocks senders first.
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.ch <- resp:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Ch returns the receive side of the stream.
func (s *Stream) Ch() <-chan Response {
	return s.ch
}

// Close ends the stream. Safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

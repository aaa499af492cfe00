package runtime

import (
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"sync"
)

// recordingSink keeps every envelope it accepts.
type recordingSink struct {
	mu     sync.Mutex
	frames []event.Envelope
	closed bool
	fail   bool
}

func (s *recordingSink) Send(_ context.Context, e event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSinkClosed
	}
	if s.fail {
		return errors.ErrSinkFull
	}
	s.frames = append(s.frames, e)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) Events() []event.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]event.Name, 0, len(s.frames))
	for _, f := range s.frames {
		names = append(names, f.Event)
	}
	return names
}

func (s *recordingSink) Frames() []event.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Envelope(nil), s.frames...)
}

func (s *recordingSink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

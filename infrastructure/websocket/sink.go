package websocket

import (
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"sync"
	"time"
)

// Sink is the buffered outbound queue of one connection. The write pump drains it;
// a slow reader makes Send wait at most timeout before the frame is refused.
type Sink struct {
	frames  chan event.Envelope
	done    chan struct{}
	once    sync.Once
	timeout time.Duration
}

func NewSink(bufferSize int, timeout time.Duration) *Sink {
	return &Sink{
		frames:  make(chan event.Envelope, bufferSize),
		done:    make(chan struct{}),
		timeout: timeout,
	}
}

func (s *Sink) Send(ctx context.Context, e event.Envelope) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}

	select {
	case s.frames <- e:
		return nil
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.frames <- e:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	case <-timer.C:
		return errors.ErrSinkFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting frames. Frames already queued are still written.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Frames is read by the write pump.
func (s *Sink) Frames() <-chan event.Envelope {
	return s.frames
}

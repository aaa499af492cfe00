package workers

import (
	"chat-realtime/contract"
	"chat-realtime/domain/event"
	"context"
	"log/slog"
	"sync"
)

// EventFanout is the in-process domain event bus.
//
// Publishers enqueue typed events; Run hands each one, in publication order,
// to every subscribed handler. A failing handler is logged and does not stop
// the others. Publish never blocks, so a handler may publish follow-up events.
// Nothing survives a restart.
type EventFanout struct {
	log      *slog.Logger
	mu       sync.Mutex
	queue    []event.DomainEvent
	notify   chan struct{}
	hmu      sync.RWMutex
	handlers []contract.EventHandler
}

func NewEventFanout(log *slog.Logger, bufferSize int) *EventFanout {
	return &EventFanout{
		log:    log,
		queue:  make([]event.DomainEvent, 0, max(bufferSize, 0)),
		notify: make(chan struct{}, 1),
	}
}

func (w *EventFanout) Subscribe(handlers ...contract.EventHandler) *EventFanout {
	w.hmu.Lock()
	defer w.hmu.Unlock()
	w.handlers = append(w.handlers, handlers...)
	return w
}

// Publish queues e unless ctx is already done.
func (w *EventFanout) Publish(ctx context.Context, e event.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	w.queue = append(w.queue, e)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return nil
}

func (w *EventFanout) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event bus", "pending", w.Pending())
			return nil
		case <-w.notify:
			for _, e := range w.drain() {
				w.Fanout(ctx, e)
			}
		}
	}
}

func (w *EventFanout) drain() []event.DomainEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := w.queue
	w.queue = make([]event.DomainEvent, 0, cap(batch))
	return batch
}

// Fanout delivers one event to every handler.
func (w *EventFanout) Fanout(ctx context.Context, e event.DomainEvent) {
	w.hmu.RLock()
	handlers := append([]contract.EventHandler(nil), w.handlers...)
	w.hmu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, e); err != nil {
			w.log.Warn("Domain event handler failed",
				"handler", contract.GetHandlerName(h), "event", contract.GetEventName(e), "error", err)
		}
	}
}

// Package runtime tracks live connections, their room subscriptions and in-flight
// calls, and routes client events through them. Durable state lives behind contract.Store.
package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"chat-realtime/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Stats is a point-in-time view of the realtime core.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	ActiveCalls int `json:"active_calls"`
}

type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   *ConnectionRegistry
	membership *RoomMembershipService
	calls      *CallSessionManager
	router     *EventRouter
	store      contract.Store
	bus        *workers.EventFanout
	workers    []contract.Worker
	running    bool
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *ConnectionRegistry,
	membership *RoomMembershipService, calls *CallSessionManager, router *EventRouter,
	store contract.Store, busSize int) *Orchestrator {
	o := &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		membership: membership,
		calls:      calls,
		router:     router,
		store:      store,
	}
	o.bus = workers.NewEventFanout(log, busSize).Subscribe(o)
	return o
}

// Bus is the typed domain event bus. Other services subscribe to it before Start.
func (o *Orchestrator) Bus() *workers.EventFanout {
	return o.bus
}

// AddWorkers registers extra workers supervised alongside the bus.
func (o *Orchestrator) AddWorkers(w ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers = append(o.workers, w...)
}

// Connect registers an authenticated user. A previous connection of the same user
// is told to close itself and loses its subscriptions before the new one is subscribed
// to every room the user belongs to.
func (o *Orchestrator) Connect(ctx context.Context, userID domain.UserID, sink contract.EventSink) (Client, error) {
	client := Client{
		ConnectionID: domain.ConnectionID(uuid.NewString()),
		UserID:       userID,
	}

	evicted, evictedSink, ok := o.registry.Register(userID, client.ConnectionID, sink)
	if ok {
		o.membership.Detach(evicted.ID)
		closing := event.New(event.Closed, event.ClosedPayload{Reason: event.CloseNewWindow})
		if err := evictedSink.Send(ctx, closing); err != nil {
			o.log.Debug("Evicted connection did not receive close", "connection_id", evicted.ID, "error", err)
		}
		evictedSink.Close()
		o.log.Info("Evicted previous connection",
			"user_id", userID, "connection_id", evicted.ID, "replaced_by", client.ConnectionID)
	}
	o.membership.Attach(client.ConnectionID, sink)

	rooms, err := o.store.ListRoomsForUser(ctx, userID)
	if err != nil {
		o.registry.Remove(userID, client.ConnectionID)
		o.membership.Detach(client.ConnectionID)
		return Client{}, fmt.Errorf("listing rooms of %s: %w", userID, err)
	}
	o.membership.JoinAll(client.ConnectionID, rooms)

	// A concurrent login of the same user may have evicted us before Attach.
	if current, ok := o.registry.Lookup(userID); !ok || current.ID != client.ConnectionID {
		o.membership.Detach(client.ConnectionID)
		return Client{}, fmt.Errorf("%w: user %s", errors.ErrConnectionReplaced, userID)
	}

	o.log.Info("User connected", "user_id", userID, "connection_id", client.ConnectionID, "rooms", len(rooms))
	return client, nil
}

// Disconnect releases a connection. A stale disconnect of an evicted connection
// leaves the newer registration untouched.
func (o *Orchestrator) Disconnect(c Client) {
	removed := o.registry.Remove(c.UserID, c.ConnectionID)
	rooms := o.membership.Detach(c.ConnectionID)
	o.log.Info("User disconnected",
		"user_id", c.UserID, "connection_id", c.ConnectionID, "current", removed, "rooms", len(rooms))
}

func (o *Orchestrator) Dispatch(ctx context.Context, c Client, in event.Inbound) error {
	return o.router.Dispatch(ctx, c, in)
}

// Publish puts a domain event on the bus.
func (o *Orchestrator) Publish(ctx context.Context, e event.DomainEvent) error {
	return o.bus.Publish(ctx, e)
}

// Handle keeps live subscriptions in step with durable membership changes.
func (o *Orchestrator) Handle(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.ChatRoomCreated:
		for _, userID := range evt.MemberIDs {
			o.join(userID, evt.RoomID)
		}
	case event.MemberAdded:
		o.join(evt.UserID, evt.RoomID)
	case event.MemberRemoved:
		if conn, ok := o.registry.Lookup(evt.UserID); ok {
			o.registry.ClearActiveRoom(evt.UserID, conn.ID, evt.RoomID)
			o.membership.LeaveRoom(conn.ID, evt.RoomID)
		}
	case event.FriendAccepted:
		// The chat service creates the direct room, which comes back as ChatRoomCreated.
	}
	return nil
}

func (o *Orchestrator) join(userID domain.UserID, roomID domain.RoomID) {
	conn, ok := o.registry.Lookup(userID)
	if !ok {
		return
	}
	if o.membership.JoinRoom(conn.ID, roomID) {
		o.log.Debug("Joined room", "user_id", userID, "room_id", roomID)
	}
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Connections: o.registry.Count(),
		Rooms:       o.membership.RoomCount(),
		ActiveCalls: o.calls.Len(),
	}
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Start launches the supervised workers in the background.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("%w: already started", errors.ErrOrchestratorState)
	}
	o.supervisor.Add(o.bus)
	o.supervisor.Add(o.workers...)
	o.running = true
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the workers, closes every live connection and drops in-flight calls.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
	for _, sink := range o.registry.Shutdown() {
		sink.Close()
	}
	o.membership.Shutdown()
	if dropped := o.calls.Shutdown(); dropped > 0 {
		o.log.Warn("Dropped in-flight calls", "count", dropped)
	}
	o.running = false
}

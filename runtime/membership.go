package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type Set[T comparable] map[T]struct{}

// RoomMembershipService is the live side of room membership: which connection
// currently receives the broadcasts of which room. Durable membership stays in
// the store; a member that is offline simply has no subscription here.
type RoomMembershipService struct {
	mu            sync.RWMutex
	log           *slog.Logger
	sinks         map[domain.ConnectionID]contract.EventSink
	rooms         map[domain.RoomID]Set[domain.ConnectionID]
	subscriptions map[domain.ConnectionID]Set[domain.RoomID]
}

func NewRoomMembershipService(log *slog.Logger) *RoomMembershipService {
	return &RoomMembershipService{
		log:           log,
		sinks:         make(map[domain.ConnectionID]contract.EventSink),
		rooms:         make(map[domain.RoomID]Set[domain.ConnectionID]),
		subscriptions: make(map[domain.ConnectionID]Set[domain.RoomID]),
	}
}

// Attach binds the transport sink of a fresh connection.
func (m *RoomMembershipService) Attach(connID domain.ConnectionID, sink contract.EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sinks[connID] = sink
	if _, ok := m.subscriptions[connID]; !ok {
		m.subscriptions[connID] = make(Set[domain.RoomID])
	}
}

// Detach forgets the connection and every room it was subscribed to.
// Empty rooms are removed so the maps do not grow with dead rooms.
func (m *RoomMembershipService) Detach(connID domain.ConnectionID) []domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()

	subscribed := m.subscriptions[connID]
	for roomID := range subscribed {
		m.unsubscribe(connID, roomID)
	}
	delete(m.subscriptions, connID)
	delete(m.sinks, connID)
	return sortedRooms(subscribed)
}

// JoinAll subscribes a connection to its whole durable room list at connect time.
func (m *RoomMembershipService) JoinAll(connID domain.ConnectionID, roomIDs []domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sinks[connID]; !ok {
		return
	}
	for _, roomID := range lo.Uniq(roomIDs) {
		m.subscribe(connID, roomID)
	}
}

// JoinRoom returns false when the connection is not attached; the durable
// membership is then picked up on the next connect.
func (m *RoomMembershipService) JoinRoom(connID domain.ConnectionID, roomID domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sinks[connID]; !ok {
		return false
	}
	m.subscribe(connID, roomID)
	return true
}

func (m *RoomMembershipService) LeaveRoom(connID domain.ConnectionID, roomID domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscriptions[connID][roomID]; !ok {
		return false
	}
	m.unsubscribe(connID, roomID)
	delete(m.subscriptions[connID], roomID)
	return true
}

func (m *RoomMembershipService) IsSubscribed(connID domain.ConnectionID, roomID domain.RoomID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.rooms[roomID][connID]
	return ok
}

// Subscribers lists the connections currently subscribed to roomID.
func (m *RoomMembershipService) Subscribers(roomID domain.RoomID) []domain.ConnectionID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := lo.Keys(m.rooms[roomID])
	slices.Sort(conns)
	return conns
}

func (m *RoomMembershipService) Rooms(connID domain.ConnectionID) []domain.RoomID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedRooms(m.subscriptions[connID])
}

func (m *RoomMembershipService) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Broadcast sends e to every connection subscribed to roomID except the excluded ones.
// Sinks are collected under the read lock and written to after it is released.
// It returns the number of sinks that accepted the event.
func (m *RoomMembershipService) Broadcast(ctx context.Context, roomID domain.RoomID,
	e event.Envelope, exclude ...domain.ConnectionID) int {
	m.mu.RLock()
	targets := make(map[domain.ConnectionID]contract.EventSink, len(m.rooms[roomID]))
	for connID := range m.rooms[roomID] {
		if slices.Contains(exclude, connID) {
			continue
		}
		if sink, ok := m.sinks[connID]; ok {
			targets[connID] = sink
		}
	}
	m.mu.RUnlock()

	delivered := 0
	for connID, sink := range targets {
		if err := sink.Send(ctx, e); err != nil {
			m.log.Debug("Event not delivered",
				"event", e.Event, "room_id", roomID, "connection_id", connID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Shutdown drops every subscription.
func (m *RoomMembershipService) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sinks = make(map[domain.ConnectionID]contract.EventSink)
	m.rooms = make(map[domain.RoomID]Set[domain.ConnectionID])
	m.subscriptions = make(map[domain.ConnectionID]Set[domain.RoomID])
}

func (m *RoomMembershipService) subscribe(connID domain.ConnectionID, roomID domain.RoomID) {
	if _, ok := m.rooms[roomID]; !ok {
		m.rooms[roomID] = make(Set[domain.ConnectionID])
	}
	m.rooms[roomID][connID] = struct{}{}
	m.subscriptions[connID][roomID] = struct{}{}
}

// unsubscribe removes connID from the room side only; callers own the
// subscriptions side so they can iterate it safely.
func (m *RoomMembershipService) unsubscribe(connID domain.ConnectionID, roomID domain.RoomID) {
	members, ok := m.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(m.rooms, roomID)
	}
}

func sortedRooms(rooms Set[domain.RoomID]) []domain.RoomID {
	out := lo.Keys(rooms)
	slices.Sort(out)
	return out
}

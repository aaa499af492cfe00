package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"sync"
	"time"
)

type session struct {
	conn domain.Connection
	sink contract.EventSink
}

// ConnectionRegistry maps each user to their single live connection.
// Writes are serialized; lookups only take the read lock and never touch the network.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]*session
	now      func() time.Time
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions: make(map[domain.UserID]*session),
		now:      time.Now,
	}
}

// Register installs connID as the live connection of userID.
// When a previous connection existed it is returned with its sink so the caller
// can tell it to close itself before discarding it.
func (r *ConnectionRegistry) Register(userID domain.UserID, connID domain.ConnectionID,
	sink contract.EventSink) (domain.Connection, contract.EventSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, evicted := r.sessions[userID]
	r.sessions[userID] = &session{
		conn: domain.Connection{
			ID:          connID,
			UserID:      userID,
			ConnectedAt: r.now().UTC(),
		},
		sink: sink,
	}
	if !evicted {
		return domain.Connection{}, nil, false
	}
	return previous.conn, previous.sink, true
}

// SetActiveRoom records the room the user is looking at.
// It is a no-op when the user is gone or connID is no longer the live connection.
func (r *ConnectionRegistry) SetActiveRoom(userID domain.UserID, connID domain.ConnectionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok && s.conn.ID == connID {
		s.conn.ActiveRoomID = roomID
	}
}

// ClearActiveRoom drops the focus only if roomID is still the focused room,
// so a late unfocus never clears a newer focus.
func (r *ConnectionRegistry) ClearActiveRoom(userID domain.UserID, connID domain.ConnectionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok && s.conn.ID == connID && s.conn.ActiveRoomID == roomID {
		s.conn.ActiveRoomID = ""
	}
}

func (r *ConnectionRegistry) Lookup(userID domain.UserID) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok {
		return domain.Connection{}, false
	}
	return s.conn, true
}

// Remove deletes the entry of userID only when connID is the registered connection.
// A disconnect arriving late from an evicted connection leaves the newer one in place.
func (r *ConnectionRegistry) Remove(userID domain.UserID, connID domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok || s.conn.ID != connID {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown empties the registry and hands back the sinks that were still live.
func (r *ConnectionRegistry) Shutdown() []contract.EventSink {
	r.mu.Lock()
	defer r.mu.Unlock()

	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, s := range r.sessions {
		sinks = append(sinks, s.sink)
	}
	r.sessions = make(map[domain.UserID]*session)
	return sinks
}

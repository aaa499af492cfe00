package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CallOutcome is what a terminal transition leaves behind.
type CallOutcome struct {
	Session domain.CallSession
	Record  domain.Message
}

// CallSessionManager owns the in-flight call table. Only this type mutates a CallSession.
type CallSessionManager struct {
	mu       sync.Mutex
	log      *slog.Logger
	store    contract.Store
	sessions map[string]*domain.CallSession
}

func NewCallSessionManager(log *slog.Logger, store contract.Store) *CallSessionManager {
	return &CallSessionManager{
		log:      log,
		store:    store,
		sessions: make(map[string]*domain.CallSession),
	}
}

// Offer opens an initiating session. A callID already in the table is refused.
func (m *CallSessionManager) Offer(callID string, callerID domain.UserID, roomID domain.RoomID,
	isVideo bool, now time.Time) (domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[callID]; exists {
		return domain.CallSession{}, false
	}
	s := domain.NewCallSession(callID, callerID, roomID, isVideo, now)
	m.sessions[callID] = &s
	return s.Clone(), true
}

// Connected moves an initiating call of roomID to ongoing.
// Unknown, foreign-room or already progressed calls are ignored.
func (m *CallSessionManager) Connected(callID string, roomID domain.RoomID, userID domain.UserID,
	now time.Time) (domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[callID]
	if !ok || s.ChatRoomID != roomID {
		return domain.CallSession{}, false
	}
	if err := s.Connect(userID, now); err != nil {
		m.log.Debug("Ignoring call transition", "call_id", callID, "error", err)
		return domain.CallSession{}, false
	}
	return s.Clone(), true
}

// Reject turns an unanswered call into a missed call, persists its record and evicts it.
func (m *CallSessionManager) Reject(ctx context.Context, callID string, roomID domain.RoomID,
	now time.Time) (CallOutcome, bool, error) {
	return m.terminate(ctx, callID, roomID, func(s *domain.CallSession) error {
		return s.Reject(now)
	})
}

// End terminates an initiating or ongoing call, persists its record and evicts it.
func (m *CallSessionManager) End(ctx context.Context, callID string, roomID domain.RoomID,
	now time.Time) (CallOutcome, bool, error) {
	return m.terminate(ctx, callID, roomID, func(s *domain.CallSession) error {
		return s.End(now)
	})
}

// terminate claims the terminal transition under the lock, persists outside of it,
// then evicts. A duplicate terminal event sees a terminal status (or no session)
// and is absorbed, so exactly one record is written per call.
func (m *CallSessionManager) terminate(ctx context.Context, callID string, roomID domain.RoomID,
	transition func(*domain.CallSession) error) (CallOutcome, bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[callID]
	if !ok || s.ChatRoomID != roomID || s.Status.IsTerminal() {
		m.mu.Unlock()
		return CallOutcome{}, false, nil
	}
	previous := s.Clone()
	if err := transition(s); err != nil {
		m.mu.Unlock()
		m.log.Debug("Ignoring call transition", "call_id", callID, "error", err)
		return CallOutcome{}, false, nil
	}
	snapshot := s.Clone()
	m.mu.Unlock()

	record, err := m.store.CreateCallRecordMessage(ctx, snapshot)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// Put the session back so a later terminal event can try again.
		if current, ok := m.sessions[callID]; ok && current == s {
			*s = previous
		}
		return CallOutcome{}, false, fmt.Errorf("persisting call record %s: %w", callID, err)
	}
	delete(m.sessions, callID)
	return CallOutcome{Session: snapshot, Record: record}, true, nil
}

func (m *CallSessionManager) Get(callID string) (domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[callID]
	if !ok {
		return domain.CallSession{}, false
	}
	return s.Clone(), true
}

func (m *CallSessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown drops every in-flight session. Terminal sessions are already durable.
func (m *CallSessionManager) Shutdown() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := len(m.sessions)
	m.sessions = make(map[string]*domain.CallSession)
	return dropped
}

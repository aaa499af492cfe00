package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestRoomMembership_JoinAndBroadcast(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	m := NewRoomMembershipService(logs.GetLoggerFromLevel(slog.LevelDebug))
	alice, bob, carol := &recordingSink{}, &recordingSink{}, &recordingSink{fail: true}

	// Given three attached connections
	m.Attach("c-alice", alice)
	m.Attach("c-bob", bob)
	m.Attach("c-carol", carol)
	m.JoinAll("c-alice", []domain.RoomID{"room-1", "room-2", "room-1"})
	m.JoinAll("c-bob", []domain.RoomID{"room-1"})
	m.JoinAll("c-carol", []domain.RoomID{"room-1"})

	req.Equal([]domain.RoomID{"room-1", "room-2"}, m.Rooms("c-alice"))
	req.Equal([]domain.ConnectionID{"c-alice", "c-bob", "c-carol"}, m.Subscribers("room-1"))
	req.Equal(2, m.RoomCount())

	// When alice broadcasts without echo
	delivered := m.Broadcast(ctx, "room-1", event.New(event.UserTyping, nil), "c-alice")

	// Then only bob got it; carol's failing sink does not stop the fan-out
	req.Equal(1, delivered)
	req.Empty(alice.Events())
	req.Equal([]event.Name{event.UserTyping}, bob.Events())

	req.Zero(m.Broadcast(ctx, "unknown", event.New(event.UserTyping, nil)))
}

func TestRoomMembership_DetachAndLeave(t *testing.T) {
	req := require.New(t)
	m := NewRoomMembershipService(logs.GetLoggerFromLevel(slog.LevelDebug))

	// Joining before Attach is refused
	req.False(m.JoinRoom("c-alice", "room-1"))

	m.Attach("c-alice", &recordingSink{})
	req.True(m.JoinRoom("c-alice", "room-1"))
	req.True(m.JoinRoom("c-alice", "room-2"))
	req.True(m.IsSubscribed("c-alice", "room-1"))

	req.True(m.LeaveRoom("c-alice", "room-1"))
	req.False(m.LeaveRoom("c-alice", "room-1"))
	req.False(m.IsSubscribed("c-alice", "room-1"))
	req.Empty(m.Subscribers("room-1"))

	rooms := m.Detach("c-alice")
	req.Equal([]domain.RoomID{"room-2"}, rooms)
	req.False(m.IsSubscribed("c-alice", "room-2"))
	req.Zero(m.RoomCount())
	req.Empty(m.Detach("c-alice"))
}

package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/mocks"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func members(roomID domain.RoomID, ids ...domain.UserID) []domain.Member {
	out := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Member{UserID: id, Username: string(id), ChatRoomID: roomID})
	}
	return out
}

func TestPresence_ComputeDelivery_FocusedOnlineOffline(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	registry := NewConnectionRegistry()
	presence := NewPresenceBroadcaster(store, registry)

	// Given S sending, A focused on the room and B offline
	store.EXPECT().ListRoomMembers(gomock.Any(), domain.RoomID("room-1")).
		Return(members("room-1", "sender", "alice", "bob"), nil)
	registry.Register("sender", "c-s", &recordingSink{})
	registry.Register("alice", "c-a", &recordingSink{})
	registry.SetActiveRoom("alice", "c-a", "room-1")

	// When the delivery is computed
	delivery, err := presence.ComputeDelivery(context.Background(), "room-1", "sender")

	// Then A read it on arrival and B did not
	req.NoError(err)
	req.Equal([]domain.UserID{"sender", "alice"}, delivery.ReadBy)
	req.Equal([]domain.UserID{"bob"}, delivery.NotReadBy)
	req.Equal(domain.StatusDelivered, delivery.Status)
	req.Equal([]domain.UserID{"alice"}, delivery.Readers("sender"))
}

func TestPresence_ComputeDelivery_OnlineButUnfocused(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	registry := NewConnectionRegistry()
	presence := NewPresenceBroadcaster(store, registry)

	store.EXPECT().ListRoomMembers(gomock.Any(), domain.RoomID("room-1")).
		Return(members("room-1", "sender", "alice"), nil)
	registry.Register("alice", "c-a", &recordingSink{})
	registry.SetActiveRoom("alice", "c-a", "room-2")

	delivery, err := presence.ComputeDelivery(context.Background(), "room-1", "sender")

	req.NoError(err)
	req.Equal([]domain.UserID{"sender"}, delivery.ReadBy)
	req.Equal([]domain.UserID{"alice"}, delivery.NotReadBy)
	req.Equal(domain.StatusDelivered, delivery.Status)
	req.Empty(delivery.Readers("sender"))
}

func TestPresence_ComputeDelivery_EverybodyOffline(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	presence := NewPresenceBroadcaster(store, NewConnectionRegistry())

	store.EXPECT().ListRoomMembers(gomock.Any(), domain.RoomID("room-1")).
		Return(members("room-1", "sender", "alice", "bob"), nil)

	delivery, err := presence.ComputeDelivery(context.Background(), "room-1", "sender")

	req.NoError(err)
	req.Equal(domain.StatusSent, delivery.Status)
	req.Equal([]domain.UserID{"alice", "bob"}, delivery.NotReadBy)
}

func TestPresence_ComputeDelivery_StoreError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	presence := NewPresenceBroadcaster(store, NewConnectionRegistry())

	store.EXPECT().ListRoomMembers(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("boom"))

	_, err := presence.ComputeDelivery(context.Background(), "room-1", "sender")
	req.ErrorContains(err, "boom")
}

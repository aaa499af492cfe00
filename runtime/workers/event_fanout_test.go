package workers

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/mocks"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_DeliversInOrderToEveryHandler(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockEventHandler(ctrl)
	recording := mocks.NewMockEventHandler(ctrl)

	var mu sync.Mutex
	var seen []event.DomainEvent
	done := make(chan struct{})

	// Given one failing and one recording handler
	failing.EXPECT().Handle(gomock.Any(), gomock.Any()).Return(fmt.Errorf("boom")).Times(2)
	recording.EXPECT().Handle(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, e)
			if len(seen) == 2 {
				close(done)
			}
			return nil
		}).Times(2)

	bus := NewEventFanout(log, 4).Subscribe(failing, recording)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()

	// When two events are published
	first := event.MemberAdded{RoomID: "room-1", UserID: "alice"}
	second := event.MemberRemoved{RoomID: "room-1", UserID: "alice"}
	req.NoError(bus.Publish(ctx, first))
	req.NoError(bus.Publish(ctx, second))

	// Then the failure of one handler does not starve the other
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("events were not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	req.Equal([]event.DomainEvent{first, second}, seen)
}

type republisher struct {
	bus  *EventFanout
	seen chan event.DomainEvent
}

func (r *republisher) Handle(ctx context.Context, e event.DomainEvent) error {
	r.seen <- e
	if accepted, ok := e.(event.FriendAccepted); ok {
		return r.bus.Publish(ctx, event.ChatRoomCreated{
			RoomID:    "direct",
			MemberIDs: []domain.UserID{accepted.RequesterID, accepted.AccepterID},
		})
	}
	return nil
}

func TestEventFanout_HandlerMayPublish(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a bus with no spare capacity and a handler publishing follow-ups
	bus := NewEventFanout(log, 0)
	h := &republisher{bus: bus, seen: make(chan event.DomainEvent, 2)}
	bus.Subscribe(h)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()

	req.NoError(bus.Publish(ctx, event.FriendAccepted{RequesterID: "alice", AccepterID: "bob"}))

	// Then the follow-up is delivered instead of blocking the bus
	for _, expected := range []string{"FriendAccepted", "ChatRoomCreated"} {
		select {
		case e := <-h.seen:
			req.Equal(expected, fmt.Sprintf("%T", e)[len("event."):])
		case <-time.After(time.Second):
			req.Fail("bus blocked on re-entrant publish")
		}
	}
	req.Equal(0, bus.Pending())
}

func TestEventFanout_PublishAfterCancel(t *testing.T) {
	req := require.New(t)
	bus := NewEventFanout(logs.GetLoggerFromLevel(slog.LevelDebug), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req.ErrorIs(bus.Publish(ctx, event.MemberAdded{}), context.Canceled)
}

package runtime

import (
	"chat-realtime/domain"
	"chat-realtime/mocks"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func callRecord(call domain.CallSession) domain.Message {
	return domain.Message{
		ID:         call.MessageID,
		ChatRoomID: call.ChatRoomID,
		SenderID:   call.CallerID,
		Content:    string(call.Status),
		Type:       domain.TypeCall,
		Call:       &call,
	}
}

func newCallManager(t *testing.T) (*CallSessionManager, *mocks.MockStore) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	return NewCallSessionManager(logs.GetLoggerFromLevel(slog.LevelDebug), store), store
}

func TestCallSessionManager_ConcurrentEndWritesOneRecord(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	manager, store := newCallManager(t)
	now := time.Now().UTC()

	// Given an ongoing call
	_, ok := manager.Offer("call-1", "alice", "room-1", true, now)
	req.True(ok)
	_, ok = manager.Connected("call-1", "room-1", "bob", now.Add(time.Second))
	req.True(ok)

	store.EXPECT().CreateCallRecordMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, call domain.CallSession) (domain.Message, error) {
			return callRecord(call), nil
		}).Times(1)

	// When both sides end it at the same time
	var ended atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := manager.End(ctx, "call-1", "room-1", now.Add(time.Minute))
			if err == nil && ok {
				ended.Add(1)
			}
		}()
	}
	wg.Wait()

	// Then exactly one terminal transition happened and the session is gone
	req.Equal(int32(1), ended.Load())
	req.Zero(manager.Len())
}

func TestCallSessionManager_RejectBecomesMissed(t *testing.T) {
	req := require.New(t)
	manager, store := newCallManager(t)
	now := time.Now().UTC()

	manager.Offer("call-1", "alice", "room-1", false, now)
	store.EXPECT().CreateCallRecordMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, call domain.CallSession) (domain.Message, error) {
			return callRecord(call), nil
		})

	rejectedAt := now.Add(5 * time.Second)
	outcome, ok, err := manager.Reject(context.Background(), "call-1", "room-1", rejectedAt)

	req.NoError(err)
	req.True(ok)
	req.Equal(domain.CallMissed, outcome.Session.Status)
	req.True(outcome.Session.StartTime.Equal(rejectedAt))
	req.True(outcome.Session.EndTime.Equal(rejectedAt))
	req.Equal(domain.TypeCall, outcome.Record.Type)
	req.Equal("missed", outcome.Record.Content)
	req.Zero(manager.Len())

	// A later connected for the same call is a no-op
	_, ok = manager.Connected("call-1", "room-1", "bob", now.Add(time.Minute))
	req.False(ok)
}

func TestCallSessionManager_PersistFailureRestoresSession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	manager, store := newCallManager(t)
	now := time.Now().UTC()

	manager.Offer("call-1", "alice", "room-1", false, now)
	manager.Connected("call-1", "room-1", "bob", now)

	gomock.InOrder(
		store.EXPECT().CreateCallRecordMessage(gomock.Any(), gomock.Any()).
			Return(domain.Message{}, fmt.Errorf("disk full")),
		store.EXPECT().CreateCallRecordMessage(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, call domain.CallSession) (domain.Message, error) {
				return callRecord(call), nil
			}),
	)

	// When the first end cannot be persisted
	_, ok, err := manager.End(ctx, "call-1", "room-1", now.Add(time.Minute))
	req.ErrorContains(err, "disk full")
	req.False(ok)

	// Then the session is back to ongoing and a retry succeeds
	session, found := manager.Get("call-1")
	req.True(found)
	req.Equal(domain.CallOngoing, session.Status)
	req.Nil(session.EndTime)

	outcome, ok, err := manager.End(ctx, "call-1", "room-1", now.Add(2*time.Minute))
	req.NoError(err)
	req.True(ok)
	req.Equal(domain.CallEnded, outcome.Session.Status)
	req.Equal(time.Minute*2, outcome.Session.Duration())
}

func TestCallSessionManager_IgnoresForeignAndUnknownCalls(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	manager, _ := newCallManager(t)
	now := time.Now().UTC()

	_, ok := manager.Offer("call-1", "alice", "room-1", false, now)
	req.True(ok)

	// A duplicate offer is refused
	_, ok = manager.Offer("call-1", "bob", "room-1", false, now)
	req.False(ok)

	// Another room cannot touch the call
	_, ok = manager.Connected("call-1", "room-2", "bob", now)
	req.False(ok)
	_, ok, err := manager.End(ctx, "call-1", "room-2", now)
	req.NoError(err)
	req.False(ok)

	// Unknown calls are absorbed
	_, ok, err = manager.Reject(ctx, "call-404", "room-1", now)
	req.NoError(err)
	req.False(ok)

	session, found := manager.Get("call-1")
	req.True(found)
	req.Equal(domain.CallInitiating, session.Status)
	req.NotEqual(uuid.Nil, session.MessageID)
	req.Equal(1, manager.Shutdown())
	req.Zero(manager.Len())
}

func TestCallSessionManager_RejectAfterConnectIsIgnored(t *testing.T) {
	req := require.New(t)
	manager, _ := newCallManager(t)
	now := time.Now().UTC()

	manager.Offer("call-1", "alice", "room-1", false, now)
	manager.Connected("call-1", "room-1", "bob", now)

	_, ok, err := manager.Reject(context.Background(), "call-1", "room-1", now)
	req.NoError(err)
	req.False(ok)

	session, _ := manager.Get("call-1")
	req.Equal(domain.CallOngoing, session.Status)
}

func TestCallSessionManager_CallerCannotConnectOwnCall(t *testing.T) {
	req := require.New(t)
	manager, store := newCallManager(t)
	now := time.Now().UTC()

	// Given alice offered a call
	manager.Offer("call-1", "alice", "room-1", false, now)

	// When alice signals connected herself
	_, ok := manager.Connected("call-1", "room-1", "alice", now)

	// Then the call is still ringing and bob can still reject it
	req.False(ok)
	session, _ := manager.Get("call-1")
	req.Equal(domain.CallInitiating, session.Status)
	req.Len(session.Participants, 1)

	store.EXPECT().CreateCallRecordMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, call domain.CallSession) (domain.Message, error) {
			return callRecord(call), nil
		})
	outcome, ok, err := manager.Reject(context.Background(), "call-1", "room-1", now.Add(time.Second))
	req.NoError(err)
	req.True(ok)
	req.Equal(domain.CallMissed, outcome.Session.Status)
	req.Equal(outcome.Session.MessageID, outcome.Record.ID)
}

package e2e

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testChatSuite struct {
	BaseSuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

func (s *testChatSuite) TestMessageDeliveryAndReceipts() {
	room := s.CreateRoom("trio", "alice", "bob", "carol")
	alice := s.Connect("alice")
	bob := s.Connect("bob")

	s.Run("Step 1: bob focuses the room", func() {
		bob.Send(event.ChatFocus, map[string]any{"chatRoomId": room})
		s.WaitFocused("bob", room)
	})

	var sent domain.Message
	s.Run("Step 2: alice sends, everybody subscribed gets it censored", func() {
		alice.Send(event.MessageSend, map[string]any{
			"chatRoomId": room,
			"message":    map[string]any{"content": "hello idiot", "clientId": "c-1"},
		})
		alice.Expect(event.MessageNew, &sent)
		var received domain.Message
		bob.Expect(event.MessageNew, &received)

		s.Require().Equal(sent.ID, received.ID)
		s.Require().Equal("hello *****", sent.Content)
		s.Require().Equal(domain.StatusDelivered, sent.Status)
		s.Require().Equal([]domain.UserID{"carol"}, sent.NotReadBy)
	})

	s.Run("Step 3: the focused reader is announced", func() {
		var read event.ReadPayload
		alice.Expect(event.MessageRead, &read)
		s.Require().Equal([]domain.UserID{"bob"}, read.ReaderIDs)
		s.Require().Equal(sent.ID, read.LatestMessageID)
	})

	s.Run("Step 4: carol catches up on connect", func() {
		carol := s.Connect("carol")
		carol.Send(event.ChatFocus, map[string]any{"chatRoomId": room, "latestMessageId": sent.ID})

		var read event.ReadPayload
		alice.Expect(event.MessageRead, &read)
		s.Require().Equal([]domain.UserID{"carol"}, read.ReaderIDs)

		s.Require().Eventually(func() bool {
			history, _, err := s.Store.GetMessages(context.Background(), room, nil)
			return err == nil && len(history) == 1 && history[0].Status == domain.StatusRead
		}, time.Second, 10*time.Millisecond)
	})
}

func (s *testChatSuite) TestUnsubscribedSendIsDropped() {
	room := s.CreateRoom("pair", "alice", "bob")
	bob := s.Connect("bob")
	mallory := s.Connect("mallory")

	mallory.Send(event.MessageSend, map[string]any{
		"chatRoomId": room,
		"message":    map[string]any{"content": "let me in"},
	})
	bob.ExpectNone(event.MessageNew, 200*time.Millisecond)

	history, _, err := s.Store.GetMessages(context.Background(), room, nil)
	s.Require().NoError(err)
	s.Require().Empty(history)
}

func (s *testChatSuite) TestNewWindowEvictsPreviousConnection() {
	s.CreateRoom("pair", "alice", "bob")
	first := s.Connect("alice")
	second := s.Connect("alice")

	var closed event.ClosedPayload
	first.Expect(event.Closed, &closed)
	s.Require().Equal(event.CloseNewWindow, closed.Reason)
	first.Closed()

	second.ExpectNone(event.Closed, 100*time.Millisecond)
	s.Require().Equal(1, s.Orchestrator.Stats().Connections)
}

func (s *testChatSuite) TestRejectedCallBecomesMissed() {
	room := s.CreateRoom("pair", "alice", "bob")
	alice := s.Connect("alice")
	bob := s.Connect("bob")
	callID := uuid.NewString()

	alice.Send(event.CallOffer, map[string]any{"callId": callID, "to": room, "isVideoCall": true,
		"sdp": map[string]any{"type": "offer"}})
	var offer event.CallSignal
	bob.Expect(event.CallOffer, &offer)
	s.Require().Equal(domain.UserID("alice"), offer.From)
	s.Require().True(offer.IsVideoCall)

	bob.Send(event.CallReject, map[string]any{"callId": callID, "to": room})
	alice.Expect(event.CallReject, nil)

	var record domain.Message
	alice.Expect(event.MessageNew, &record)
	s.Require().Equal(domain.TypeCall, record.Type)
	s.Require().NotNil(record.Call)
	s.Require().Equal(domain.CallMissed, record.Call.Status)
	s.Require().NotNil(record.Call.StartTime)
	s.Require().True(record.Call.StartTime.Equal(*record.Call.EndTime))

	// A late end changes nothing
	alice.Send(event.CallEnd, map[string]any{"callId": callID, "to": room})
	bob.ExpectNone(event.CallEnded, 200*time.Millisecond)
	s.Require().Equal(0, s.Orchestrator.Stats().ActiveCalls)
}

func (s *testChatSuite) TestFriendAcceptedOpensDirectRoom() {
	alice := s.Connect("alice")
	bob := s.Connect("bob")

	s.Require().NoError(s.Chat.AcceptFriend(context.Background(), "alice", "bob"))

	var room domain.ChatRoom
	s.Require().Eventually(func() bool {
		found, ok, err := s.Store.FindDirectRoom(context.Background(), "bob", "alice")
		room = found
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
	s.WaitSubscribed("alice", room.ID)
	s.WaitSubscribed("bob", room.ID)

	alice.Send(event.UserTyping, map[string]any{"chatRoomId": room.ID, "username": "Alice", "isTyping": true})
	var typing event.TypingPayload
	bob.Expect(event.UserTyping, &typing)
	s.Require().Equal(domain.UserID("alice"), typing.UserID)
	s.Require().True(typing.IsTyping)
}

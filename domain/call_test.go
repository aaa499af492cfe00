package domain

import (
	"chat-realtime/errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCallSession_ConnectThenEnd(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Given an offered call
	call := NewCallSession("call-1", "alice", "room-1", true, now)
	req.Equal(CallInitiating, call.Status)
	req.NotEqual(uuid.Nil, call.MessageID)
	req.True(call.HasParticipant("alice"))
	req.Zero(call.Duration())

	// When bob picks up and hangs up a minute later
	req.NoError(call.Connect("bob", now.Add(5*time.Second)))
	req.NoError(call.End(now.Add(65 * time.Second)))

	// Then the call lasted a minute and every participant left
	req.Equal(CallEnded, call.Status)
	req.Equal(time.Minute, call.Duration())
	req.Len(call.Participants, 2)
	for _, p := range call.Participants {
		req.NotNil(p.LeftAt)
	}
}

func TestCallSession_RejectIsMissed(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	call := NewCallSession("call-1", "alice", "room-1", false, now)

	req.NoError(call.Reject(now))

	req.Equal(CallMissed, call.Status)
	req.True(call.StartTime.Equal(*call.EndTime))
	req.Zero(call.Duration())
	req.ErrorIs(call.Connect("bob", now), errors.ErrInvalidCallTransition)
	req.ErrorIs(call.End(now), errors.ErrInvalidCallTransition)
	req.ErrorIs(call.Reject(now), errors.ErrInvalidCallTransition)
}

func TestCallSession_EndBeforeAnswer(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	call := NewCallSession("call-1", "alice", "room-1", false, now)

	req.NoError(call.End(now))

	req.Equal(CallEnded, call.Status)
	req.Nil(call.StartTime)
	req.Zero(call.Duration())
}

func TestCallSession_RejectAfterConnectFails(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	call := NewCallSession("call-1", "alice", "room-1", false, now)
	req.NoError(call.Connect("bob", now))

	req.ErrorIs(call.Reject(now), errors.ErrInvalidCallTransition)
	req.ErrorIs(call.Connect("bob", now), errors.ErrInvalidCallTransition)
	req.Equal(CallOngoing, call.Status)
}

func TestCallSession_CloneSharesNothing(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	call := NewCallSession("call-1", "alice", "room-1", false, now)
	req.NoError(call.Connect("bob", now))

	clone := call.Clone()
	req.NoError(call.End(now.Add(time.Second)))

	req.Equal(CallOngoing, clone.Status)
	req.Nil(clone.EndTime)
	req.Nil(clone.Participants[0].LeftAt)
	*clone.StartTime = now.Add(time.Hour)
	req.True(call.StartTime.Equal(now))
}

func TestReaction_IsAllowed(t *testing.T) {
	req := require.New(t)

	req.True(Reaction("👍").IsAllowed())
	req.False(Reaction("🦄").IsAllowed())
	req.False(Reaction("").IsAllowed())
	req.Len(AllowedReactions(), 6)
}

func TestDelivery_Readers(t *testing.T) {
	req := require.New(t)
	d := Delivery{ReadBy: []UserID{"sender", "alice"}}

	req.Equal([]UserID{"alice"}, d.Readers("sender"))
	req.Empty(Delivery{}.Readers("sender"))
}

func TestCallSession_CallerCannotConnect(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	call := NewCallSession("call-1", "alice", "room-1", false, now)

	req.ErrorIs(call.Connect("alice", now), errors.ErrInvalidCallTransition)
	req.Equal(CallInitiating, call.Status)
	req.Nil(call.StartTime)
	req.NoError(call.Reject(now))
}

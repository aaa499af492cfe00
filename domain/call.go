// Package domain contains core concepts of the chat system.
// This file defines the CallSession signaling state machine.
package domain

import (
	"chat-realtime/errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type CallStatus string

const (
	CallInitiating CallStatus = "initiating"
	CallOngoing    CallStatus = "ongoing"
	CallEnded      CallStatus = "ended"
	CallMissed     CallStatus = "missed"
)

// IsTerminal reports whether no further transition is possible.
func (s CallStatus) IsTerminal() bool {
	return s == CallEnded || s == CallMissed
}

type CallParticipant struct {
	UserID   UserID     `json:"userId"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}

// CallSession tracks one signaling exchange scoped to a single room.
//
//	offer -> initiating -connected-> ongoing -end-> ended
//	         initiating -reject----> missed
//	         initiating -end-------> ended
type CallSession struct {
	CallID       string            `json:"callId"`
	CallerID     UserID            `json:"callerId"`
	ChatRoomID   RoomID            `json:"chatRoomId"`
	IsVideoCall  bool              `json:"isVideoCall"`
	Status       CallStatus        `json:"status"`
	Participants []CallParticipant `json:"participants"`
	StartTime    *time.Time        `json:"startTime,omitempty"`
	EndTime      *time.Time        `json:"endTime,omitempty"`
	MessageID    uuid.UUID         `json:"messageId"`
}

// NewCallSession opens a session in the initiating state with the caller as first participant.
func NewCallSession(callID string, callerID UserID, roomID RoomID, isVideo bool, now time.Time) CallSession {
	return CallSession{
		CallID:       callID,
		CallerID:     callerID,
		ChatRoomID:   roomID,
		IsVideoCall:  isVideo,
		Status:       CallInitiating,
		Participants: []CallParticipant{{UserID: callerID, JoinedAt: now}},
		MessageID:    uuid.New(),
	}
}

// Connect moves initiating to ongoing and records the joining participant.
// Only a callee can connect a call.
func (c *CallSession) Connect(userID UserID, now time.Time) error {
	if c.Status != CallInitiating {
		return fmt.Errorf("%w: connect from %s", errors.ErrInvalidCallTransition, c.Status)
	}
	if userID == c.CallerID {
		return fmt.Errorf("%w: caller %s cannot connect its own call", errors.ErrInvalidCallTransition, userID)
	}
	if !c.HasParticipant(userID) {
		c.Participants = append(c.Participants, CallParticipant{UserID: userID, JoinedAt: now})
	}
	c.StartTime = &now
	c.Status = CallOngoing
	return nil
}

// Reject marks a call nobody answered as missed.
func (c *CallSession) Reject(now time.Time) error {
	if c.Status != CallInitiating {
		return fmt.Errorf("%w: reject from %s", errors.ErrInvalidCallTransition, c.Status)
	}
	c.StartTime = &now
	c.EndTime = &now
	c.closeParticipants(now)
	c.Status = CallMissed
	return nil
}

// End terminates an initiating or ongoing call.
func (c *CallSession) End(now time.Time) error {
	if c.Status.IsTerminal() {
		return fmt.Errorf("%w: end from %s", errors.ErrInvalidCallTransition, c.Status)
	}
	c.EndTime = &now
	c.closeParticipants(now)
	c.Status = CallEnded
	return nil
}

func (c *CallSession) HasParticipant(userID UserID) bool {
	return slices.ContainsFunc(c.Participants, func(p CallParticipant) bool {
		return p.UserID == userID
	})
}

// Duration is zero until the call both started and ended.
func (c CallSession) Duration() time.Duration {
	if c.StartTime == nil || c.EndTime == nil {
		return 0
	}
	return c.EndTime.Sub(*c.StartTime)
}

// Clone returns a copy that shares no memory with c.
func (c CallSession) Clone() CallSession {
	out := c
	out.Participants = make([]CallParticipant, len(c.Participants))
	for i, p := range c.Participants {
		out.Participants[i] = p
		if p.LeftAt != nil {
			left := *p.LeftAt
			out.Participants[i].LeftAt = &left
		}
	}
	if c.StartTime != nil {
		start := *c.StartTime
		out.StartTime = &start
	}
	if c.EndTime != nil {
		end := *c.EndTime
		out.EndTime = &end
	}
	return out
}

func (c *CallSession) closeParticipants(now time.Time) {
	for i := range c.Participants {
		if c.Participants[i].LeftAt == nil {
			c.Participants[i].LeftAt = &now
		}
	}
}

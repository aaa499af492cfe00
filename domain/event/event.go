// Package event holds the closed set of domain notifications published on the
// in-process bus, and the names and payloads exchanged with websocket clients.
package event

import (
	"chat-realtime/domain"
	"time"
)

// DomainEvent is sealed: only the variants below implement it, so a
// type switch over it is checked against a fixed set.
type DomainEvent interface {
	OccurredAt() time.Time
	isDomainEvent()
}

// FriendAccepted asks for a direct room between two users.
type FriendAccepted struct {
	RequesterID domain.UserID
	AccepterID  domain.UserID
	At          time.Time
}

type ChatRoomCreated struct {
	RoomID    domain.RoomID
	MemberIDs []domain.UserID
	At        time.Time
}

type MemberAdded struct {
	RoomID domain.RoomID
	UserID domain.UserID
	At     time.Time
}

type MemberRemoved struct {
	RoomID domain.RoomID
	UserID domain.UserID
	At     time.Time
}

func (e FriendAccepted) OccurredAt() time.Time  { return e.At }
func (e ChatRoomCreated) OccurredAt() time.Time { return e.At }
func (e MemberAdded) OccurredAt() time.Time     { return e.At }
func (e MemberRemoved) OccurredAt() time.Time   { return e.At }

func (FriendAccepted) isDomainEvent()  {}
func (ChatRoomCreated) isDomainEvent() {}
func (MemberAdded) isDomainEvent()     {}
func (MemberRemoved) isDomainEvent()   {}

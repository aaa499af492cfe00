// Package domain contains core concepts of the chat system.
// This file defines rooms and their durable membership.
// No runtime, network, or transport logic should be added here.
package domain

import "time"

type UserID string

type RoomID string

type ConnectionID string

// ChatRoom is the durable entity behind a broadcast room.
type ChatRoom struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	IsGroup   bool      `json:"isGroup"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member is a durable ChatRoomMember record.
// Being a member says nothing about being connected.
type Member struct {
	UserID     UserID    `json:"userId"`
	Username   string    `json:"username"`
	ChatRoomID RoomID    `json:"chatRoomId"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// Connection is a snapshot of one live transport session.
type Connection struct {
	ID           ConnectionID
	UserID       UserID
	ActiveRoomID RoomID
	ConnectedAt  time.Time
}

// IsFocused reports whether the connection is actively viewing roomID.
func (c Connection) IsFocused(roomID RoomID) bool {
	return c.ActiveRoomID != "" && c.ActiveRoomID == roomID
}

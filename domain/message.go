// Package domain contains core concepts of the chat system.
// This file defines Message records and delivery status rules.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

type MessageType string

const (
	TypeText MessageType = "text"
	TypeCall MessageType = "call"
)

// Message is the durable chat record returned by the persistence collaborator.
type Message struct {
	ID         uuid.UUID           `json:"id"`
	ChatRoomID RoomID              `json:"chatRoomId"`
	SenderID   UserID              `json:"senderId"`
	Content    string              `json:"content"`
	Type       MessageType         `json:"type"`
	Status     MessageStatus       `json:"status"`
	NotReadBy  []UserID            `json:"notReadBy"`
	Reactions  map[UserID]Reaction `json:"reactions,omitempty"`
	Call       *CallSession        `json:"call,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	EditedAt   *time.Time          `json:"editedAt,omitempty"`
	Deleted    bool                `json:"deleted"`
}

// MessageDraft is what a sender asks to persist.
type MessageDraft struct {
	SenderID UserID
	Content  string
	Type     MessageType
	ClientID string
}

// Delivery is the per-send partition of room members.
// It is computed on every send and never stored.
type Delivery struct {
	ReadBy    []UserID
	NotReadBy []UserID
	Status    MessageStatus
}

// Readers returns the members that read the message on arrival, sender excluded.
func (d Delivery) Readers(senderID UserID) []UserID {
	readers := make([]UserID, 0, len(d.ReadBy))
	for _, id := range d.ReadBy {
		if id != senderID {
			readers = append(readers, id)
		}
	}
	return readers
}

package event

import (
	"chat-realtime/domain"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type Name string

// Inbound events.
const (
	ChatFocus       Name = "chat:focus"
	ChatUnfocus     Name = "chat:unfocus"
	MessageSend     Name = "message:send"
	MessageEdit     Name = "message:edit"
	MessageDelete   Name = "message:delete"
	MessageReaction Name = "message:reaction"
	UserTyping      Name = "user:typing"
	CallOffer       Name = "call:offer"
	CallReject      Name = "call:reject"
	CallAccept      Name = "call:accept"
	CallConnected   Name = "call:connected"
	CallEnd         Name = "call:end"
	CallCancel      Name = "call:cancel"
	CallCandidate   Name = "call:candidate"
)

// Outbound events. message:edit, message:delete, message:reaction, user:typing,
// call:offer, call:reject and call:candidate keep their inbound name.
const (
	MessageNew   Name = "message:new"
	MessageRead  Name = "message:read"
	CallAnswered Name = "call:answered"
	CallCanceled Name = "call:canceled"
	CallEnded    Name = "call:ended"
	Closed       Name = "closed"
)

// CloseNewWindow tells an evicted connection that a newer session took over.
const CloseNewWindow = "NEW_WINDOW"

// Envelope is one frame on the wire, in both directions.
type Envelope struct {
	Event Name `json:"event"`
	Data  any  `json:"data,omitempty"`
}

// Inbound is a frame read from a client before its payload is decoded.
type Inbound struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func New(name Name, data any) Envelope {
	return Envelope{Event: name, Data: data}
}

type ClosedPayload struct {
	Reason string `json:"reason"`
}

type ReadPayload struct {
	ChatRoomID      domain.RoomID   `json:"chatRoomId"`
	ReaderIDs       []domain.UserID `json:"readerIds"`
	LatestMessageID uuid.UUID       `json:"latestMessageId"`
}

type DeletedPayload struct {
	ChatRoomID domain.RoomID `json:"chatRoomId"`
	MessageID  uuid.UUID     `json:"messageId"`
}

type ReactionPayload struct {
	ChatRoomID domain.RoomID   `json:"chatRoomId"`
	MessageID  uuid.UUID       `json:"messageId"`
	UserID     domain.UserID   `json:"userId"`
	Reaction   domain.Reaction `json:"reaction"`
}

type TypingPayload struct {
	ChatRoomID domain.RoomID `json:"chatRoomId"`
	UserID     domain.UserID `json:"userId"`
	Username   string        `json:"username"`
	IsTyping   bool          `json:"isTyping"`
}

// CallSignal is forwarded to the other side of a call. Outbound frames never
// carry the room as "to"; it travels as chatRoomId.
type CallSignal struct {
	CallID      string          `json:"callId"`
	From        domain.UserID   `json:"from"`
	ChatRoomID  domain.RoomID   `json:"chatRoomId"`
	IsVideoCall bool            `json:"isVideoCall,omitempty"`
	SDP         json.RawMessage `json:"sdp,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
}

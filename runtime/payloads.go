package runtime

import (
	"chat-realtime/domain"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// roomScoped is implemented by every inbound payload that targets a room.
type roomScoped interface {
	room() domain.RoomID
}

type focusPayload struct {
	ChatRoomID      domain.RoomID `json:"chatRoomId" validate:"required"`
	LatestMessageID uuid.UUID     `json:"latestMessageId"`
}

type unfocusPayload struct {
	ChatRoomID domain.RoomID `json:"chatRoomId" validate:"required"`
}

type outgoingMessage struct {
	Content  string `json:"content" validate:"required,max=4000"`
	ClientID string `json:"clientId" validate:"omitempty,max=64"`
}

type sendPayload struct {
	ChatRoomID domain.RoomID   `json:"chatRoomId" validate:"required"`
	Message    outgoingMessage `json:"message"`
}

type editPayload struct {
	ChatRoomID domain.RoomID `json:"chatRoomId" validate:"required"`
	MessageID  uuid.UUID     `json:"messageId" validate:"required"`
	Content    string        `json:"content" validate:"required,max=4000"`
}

type deletePayload struct {
	ChatRoomID domain.RoomID `json:"chatRoomId" validate:"required"`
	MessageID  uuid.UUID     `json:"messageId" validate:"required"`
}

type reactionPayload struct {
	ChatRoomID domain.RoomID   `json:"chatRoomId" validate:"required"`
	MessageID  uuid.UUID       `json:"messageId" validate:"required"`
	Reaction   domain.Reaction `json:"reaction" validate:"required,reaction"`
}

type typingPayload struct {
	ChatRoomID domain.RoomID `json:"chatRoomId" validate:"required"`
	Username   string        `json:"username" validate:"required,max=64"`
	IsTyping   bool          `json:"isTyping"`
}

// callPayload covers every call:* event; "to" is the room of the call.
type callPayload struct {
	CallID      string          `json:"callId" validate:"required,max=128"`
	To          domain.RoomID   `json:"to" validate:"required"`
	IsVideoCall bool            `json:"isVideoCall"`
	SDP         json.RawMessage `json:"sdp"`
	Candidate   json.RawMessage `json:"candidate"`
}

func (p focusPayload) room() domain.RoomID    { return p.ChatRoomID }
func (p unfocusPayload) room() domain.RoomID  { return p.ChatRoomID }
func (p sendPayload) room() domain.RoomID     { return p.ChatRoomID }
func (p editPayload) room() domain.RoomID     { return p.ChatRoomID }
func (p deletePayload) room() domain.RoomID   { return p.ChatRoomID }
func (p reactionPayload) room() domain.RoomID { return p.ChatRoomID }
func (p typingPayload) room() domain.RoomID   { return p.ChatRoomID }
func (p callPayload) room() domain.RoomID     { return p.To }

// newPayloadValidator registers the "reaction" tag backed by the fixed reaction set.
func newPayloadValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("reaction", func(fl validator.FieldLevel) bool {
		return domain.Reaction(fl.Field().String()).IsAllowed()
	})
	return v
}

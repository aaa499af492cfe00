//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need for
// manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	return typeName(w)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one live connection.
type EventSink interface {
	Send(ctx context.Context, e event.Envelope) error
	Close()
}

// Store is the persistence collaborator consumed by the realtime core.
type Store interface {
	ListRoomsForUser(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error)
	ListRoomMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error)
	CreateMessage(ctx context.Context, roomID domain.RoomID, draft domain.MessageDraft,
		status domain.MessageStatus, notReadBy []domain.UserID) (domain.Message, error)
	UpdateReadReceipt(ctx context.Context, roomID domain.RoomID, readerIDs []domain.UserID, latestMessageID uuid.UUID) error
	AddReaction(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID,
		userID domain.UserID, reaction domain.Reaction) (domain.Message, error)
	EditMessage(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID,
		editorID domain.UserID, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID, userID domain.UserID) error
	CreateCallRecordMessage(ctx context.Context, call domain.CallSession) (domain.Message, error)
}

// RoomStore holds the durable membership mutations used by the chat service.
type RoomStore interface {
	CreateRoom(ctx context.Context, room domain.ChatRoom, members []domain.Member) error
	AddMember(ctx context.Context, member domain.Member) error
	RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	FindDirectRoom(ctx context.Context, a, b domain.UserID) (domain.ChatRoom, bool, error)
}

// History pages through the messages of a room, newest first.
type History interface {
	GetMessages(ctx context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

// Verifier authenticates the handshake token of a new connection.
type Verifier interface {
	Verify(token string) (domain.Identity, error)
}

// Publisher puts a domain event on the in-process bus.
type Publisher interface {
	Publish(ctx context.Context, e event.DomainEvent) error
}

// EventHandler consumes domain events taken off the bus.
type EventHandler interface {
	Handle(ctx context.Context, e event.DomainEvent) error
}

func GetHandlerName(h EventHandler) string {
	return typeName(h)
}

// GetEventName names a domain event for logs.
func GetEventName(e event.DomainEvent) string {
	return typeName(e)
}

type IConnectionRegistry interface {
	Register(userID domain.UserID, connID domain.ConnectionID, sink EventSink) (domain.Connection, EventSink, bool)
	SetActiveRoom(userID domain.UserID, connID domain.ConnectionID, roomID domain.RoomID)
	ClearActiveRoom(userID domain.UserID, connID domain.ConnectionID, roomID domain.RoomID)
	Lookup(userID domain.UserID) (domain.Connection, bool)
	Remove(userID domain.UserID, connID domain.ConnectionID) bool
}

type IRoomMembership interface {
	Attach(connID domain.ConnectionID, sink EventSink)
	Detach(connID domain.ConnectionID) []domain.RoomID
	JoinAll(connID domain.ConnectionID, roomIDs []domain.RoomID)
	JoinRoom(connID domain.ConnectionID, roomID domain.RoomID) bool
	LeaveRoom(connID domain.ConnectionID, roomID domain.RoomID) bool
	IsSubscribed(connID domain.ConnectionID, roomID domain.RoomID) bool
	Subscribers(roomID domain.RoomID) []domain.ConnectionID
	Broadcast(ctx context.Context, roomID domain.RoomID, e event.Envelope, exclude ...domain.ConnectionID) int
}

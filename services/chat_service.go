package services

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	CreateRoom(ctx context.Context, name string, isGroup bool, members []domain.Member) (domain.ChatRoom, error)
	AddMember(ctx context.Context, member domain.Member) error
	RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	AcceptFriend(ctx context.Context, requesterID, accepterID domain.UserID) error
	GetMessages(ctx context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
}

// ChatService performs durable membership changes and announces them on the bus.
// The realtime core never writes membership: it follows these announcements.
type ChatService struct {
	log       *slog.Logger
	rooms     contract.RoomStore
	history   contract.History
	publisher contract.Publisher
	now       func() time.Time
}

func NewChatService(log *slog.Logger, rooms contract.RoomStore, history contract.History,
	publisher contract.Publisher) *ChatService {
	return &ChatService{log: log, rooms: rooms, history: history, publisher: publisher, now: time.Now}
}

func (s *ChatService) CreateRoom(ctx context.Context, name string, isGroup bool,
	members []domain.Member) (domain.ChatRoom, error) {
	now := s.now().UTC()
	room := domain.ChatRoom{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      name,
		IsGroup:   isGroup,
		CreatedAt: now,
	}
	members = lo.UniqBy(members, func(m domain.Member) domain.UserID { return m.UserID })
	for i := range members {
		members[i].ChatRoomID = room.ID
		if members[i].JoinedAt.IsZero() {
			members[i].JoinedAt = now
		}
	}
	if err := s.rooms.CreateRoom(ctx, room, members); err != nil {
		return domain.ChatRoom{}, fmt.Errorf("creating room %q: %w", name, err)
	}

	created := event.ChatRoomCreated{
		RoomID:    room.ID,
		MemberIDs: lo.Map(members, func(m domain.Member, _ int) domain.UserID { return m.UserID }),
		At:        now,
	}
	if err := s.publisher.Publish(ctx, created); err != nil {
		return room, err
	}
	s.log.Info("Room created", "room_id", room.ID, "members", len(members), "group", isGroup)
	return room, nil
}

func (s *ChatService) AddMember(ctx context.Context, member domain.Member) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = s.now().UTC()
	}
	if err := s.rooms.AddMember(ctx, member); err != nil {
		return fmt.Errorf("adding %s to %s: %w", member.UserID, member.ChatRoomID, err)
	}
	return s.publisher.Publish(ctx, event.MemberAdded{
		RoomID: member.ChatRoomID,
		UserID: member.UserID,
		At:     member.JoinedAt,
	})
}

func (s *ChatService) RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	if err := s.rooms.RemoveMember(ctx, roomID, userID); err != nil {
		return fmt.Errorf("removing %s from %s: %w", userID, roomID, err)
	}
	return s.publisher.Publish(ctx, event.MemberRemoved{RoomID: roomID, UserID: userID, At: s.now().UTC()})
}

// AcceptFriend only announces the friendship; the direct room is created when
// the announcement comes back through Handle.
func (s *ChatService) AcceptFriend(ctx context.Context, requesterID, accepterID domain.UserID) error {
	return s.publisher.Publish(ctx, event.FriendAccepted{
		RequesterID: requesterID,
		AccepterID:  accepterID,
		At:          s.now().UTC(),
	})
}

func (s *ChatService) GetMessages(ctx context.Context, roomID domain.RoomID,
	cursor *string) ([]domain.Message, *string, error) {
	return s.history.GetMessages(ctx, roomID, cursor)
}

// Handle creates the direct room of two new friends unless they already share one.
func (s *ChatService) Handle(ctx context.Context, e event.DomainEvent) error {
	accepted, ok := e.(event.FriendAccepted)
	if !ok {
		return nil
	}
	_, exists, err := s.rooms.FindDirectRoom(ctx, accepted.RequesterID, accepted.AccepterID)
	if err != nil {
		return err
	}
	if exists {
		s.log.Debug("Direct room already exists",
			"requester_id", accepted.RequesterID, "accepter_id", accepted.AccepterID)
		return nil
	}
	_, err = s.CreateRoom(ctx, "", false, []domain.Member{
		{UserID: accepted.RequesterID, JoinedAt: accepted.At},
		{UserID: accepted.AccepterID, JoinedAt: accepted.At},
	})
	return err
}

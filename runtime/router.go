package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Client identifies the connection an inbound event arrived on.
type Client struct {
	ConnectionID domain.ConnectionID
	UserID       domain.UserID
}

// ContentFilter rewrites message content before it is persisted.
type ContentFilter interface {
	Censor(content string) string
}

type passThrough struct{}

func (passThrough) Censor(content string) string { return content }

type handler func(ctx context.Context, c Client, raw json.RawMessage) error

// EventRouter dispatches inbound client events. It keeps no state of its own:
// every handler checks the room subscription first, persists through the store,
// and only broadcasts once the durable write has been acknowledged.
type EventRouter struct {
	log        *slog.Logger
	registry   contract.IConnectionRegistry
	membership contract.IRoomMembership
	presence   *PresenceBroadcaster
	calls      *CallSessionManager
	store      contract.Store
	filter     ContentFilter
	validate   *validator.Validate
	handlers   map[event.Name]handler
	now        func() time.Time
}

func NewEventRouter(log *slog.Logger, registry contract.IConnectionRegistry, membership contract.IRoomMembership,
	presence *PresenceBroadcaster, calls *CallSessionManager, store contract.Store, filter ContentFilter) *EventRouter {
	if filter == nil {
		filter = passThrough{}
	}
	r := &EventRouter{
		log:        log,
		registry:   registry,
		membership: membership,
		presence:   presence,
		calls:      calls,
		store:      store,
		filter:     filter,
		validate:   newPayloadValidator(),
		now:        time.Now,
	}
	r.handlers = map[event.Name]handler{
		event.ChatFocus:       scoped(r, r.focus),
		event.ChatUnfocus:     scoped(r, r.unfocus),
		event.MessageSend:     scoped(r, r.send),
		event.MessageEdit:     scoped(r, r.edit),
		event.MessageDelete:   scoped(r, r.delete),
		event.MessageReaction: scoped(r, r.react),
		event.UserTyping:      scoped(r, r.typing),
		event.CallOffer:       scoped(r, r.offer),
		event.CallReject:      scoped(r, r.reject),
		event.CallAccept:      scoped(r, r.forward(event.CallAnswered)),
		event.CallConnected:   scoped(r, r.connected),
		event.CallEnd:         scoped(r, r.end),
		event.CallCancel:      scoped(r, r.forward(event.CallCanceled)),
		event.CallCandidate:   scoped(r, r.forward(event.CallCandidate)),
	}
	return r
}

// Dispatch routes one inbound frame. Dropped events return nil; only a failed
// durable write is reported, in which case nothing was broadcast.
func (r *EventRouter) Dispatch(ctx context.Context, c Client, in event.Inbound) error {
	h, ok := r.handlers[in.Event]
	if !ok {
		r.log.Debug("Dropping unknown event", "event", in.Event, "connection_id", c.ConnectionID)
		return nil
	}
	if err := h(ctx, c, in.Data); err != nil {
		return fmt.Errorf("%s: %w", in.Event, err)
	}
	return nil
}

// scoped decodes and validates the payload, then enforces the room subscription
// before fn runs. Both failures drop the event without replying.
func scoped[T roomScoped](r *EventRouter, fn func(ctx context.Context, c Client, p T) error) handler {
	return func(ctx context.Context, c Client, raw json.RawMessage) error {
		var p T
		if len(raw) == 0 {
			r.log.Debug("Dropping event without payload", "connection_id", c.ConnectionID)
			return nil
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			r.log.Debug("Dropping malformed payload", "connection_id", c.ConnectionID, "error", err)
			return nil
		}
		if err := r.validate.Struct(p); err != nil {
			r.log.Debug("Dropping invalid payload", "connection_id", c.ConnectionID, "error", err)
			return nil
		}
		if !r.membership.IsSubscribed(c.ConnectionID, p.room()) {
			r.log.Debug("Dropping event for unsubscribed room",
				"connection_id", c.ConnectionID, "room_id", p.room())
			return nil
		}
		return fn(ctx, c, p)
	}
}

func (r *EventRouter) focus(ctx context.Context, c Client, p focusPayload) error {
	r.registry.SetActiveRoom(c.UserID, c.ConnectionID, p.ChatRoomID)
	if p.LatestMessageID == uuid.Nil {
		return nil
	}
	readers := []domain.UserID{c.UserID}
	if err := r.store.UpdateReadReceipt(ctx, p.ChatRoomID, readers, p.LatestMessageID); err != nil {
		return err
	}
	r.membership.Broadcast(ctx, p.ChatRoomID, event.New(event.MessageRead, event.ReadPayload{
		ChatRoomID:      p.ChatRoomID,
		ReaderIDs:       readers,
		LatestMessageID: p.LatestMessageID,
	}), c.ConnectionID)
	return nil
}

func (r *EventRouter) unfocus(_ context.Context, c Client, p unfocusPayload) error {
	r.registry.ClearActiveRoom(c.UserID, c.ConnectionID, p.ChatRoomID)
	return nil
}

func (r *EventRouter) send(ctx context.Context, c Client, p sendPayload) error {
	delivery, err := r.presence.ComputeDelivery(ctx, p.ChatRoomID, c.UserID)
	if err != nil {
		return err
	}
	draft := domain.MessageDraft{
		SenderID: c.UserID,
		Content:  r.filter.Censor(p.Message.Content),
		Type:     domain.TypeText,
		ClientID: p.Message.ClientID,
	}
	msg, err := r.store.CreateMessage(ctx, p.ChatRoomID, draft, delivery.Status, delivery.NotReadBy)
	if err != nil {
		return err
	}
	r.membership.Broadcast(ctx, p.ChatRoomID, event.New(event.MessageNew, msg))

	readers := delivery.Readers(c.UserID)
	if len(readers) == 0 {
		return nil
	}
	if err := r.store.UpdateReadReceipt(ctx, p.ChatRoomID, readers, msg.ID); err != nil {
		return err
	}
	r.membership.Broadcast(ctx, p.ChatRoomID, event.New(event.MessageRead, event.ReadPayload{
		ChatRoomID:      p.ChatRoomID,
		ReaderIDs:       readers,
		LatestMessageID: msg.ID,
	}))
	return nil
}

func (r *EventRouter) edit(ctx context.Context, c Client, p editPayload) error {
	msg, err := r.store.EditMessage(ctx, p.ChatRoomID, p.MessageID, c.UserID, r.filter.Censor(p.Content))
	if err != nil {
		return err
	}
	r.membership.Broadcast(ctx, p.ChatRoomID, event.New(event.MessageEdit, msg))
	return nil
}

func (r *EventRouter) delete(ctx context.Context, c Client, p deletePayload) error {
	if err := r.store.DeleteMessage(ctx, p.ChatRoomID, p.MessageID, c.UserID); err != nil {
		return err
	}
	r.membership.Broadcast(ctx, p.ChatRoomID, event.New(event.MessageDelete, event.DeletedPayload{
		ChatRoomID: p.ChatRoomID,
		MessageID:  p.MessageID,
	}))
	return nil
}

func (r *EventRouter) react(ctx context.Context, c Client, p reactionPayload) error {
	if _, err := r.store.AddReaction(ctx, p.ChatRoomID, p.MessageID, c.UserID, p.Reaction); err != nil {
		return err
	}
	r.membership.Broadcast(ctx, p.ChatRoomID, event.New(event.MessageReaction, event.ReactionPayload{
		ChatRoomID: p.ChatRoomID,
		MessageID:  p.MessageID,
		UserID:     c.UserID,
		Reaction:   p.Reaction,
	}))
	return nil
}

// typing has no durable side and is forwarded right away.
func (r *EventRouter) typing(ctx context.Context, c Client, p typingPayload) error {
	r.membership.Broadcast(ctx, p.ChatRoomID, event.New(event.UserTyping, event.TypingPayload{
		ChatRoomID: p.ChatRoomID,
		UserID:     c.UserID,
		Username:   p.Username,
		IsTyping:   p.IsTyping,
	}), c.ConnectionID)
	return nil
}

// offer is dropped unless somebody else is subscribed to the room to receive it.
func (r *EventRouter) offer(ctx context.Context, c Client, p callPayload) error {
	if !r.hasCallee(c, p.To) {
		r.log.Debug("Dropping offer without callee", "call_id", p.CallID, "room_id", p.To)
		return nil
	}
	if _, ok := r.calls.Offer(p.CallID, c.UserID, p.To, p.IsVideoCall, r.now().UTC()); !ok {
		r.log.Debug("Dropping duplicate offer", "call_id", p.CallID)
		return nil
	}
	r.membership.Broadcast(ctx, p.To, event.New(event.CallOffer, r.signal(c, p)), c.ConnectionID)
	return nil
}

func (r *EventRouter) reject(ctx context.Context, c Client, p callPayload) error {
	outcome, ok, err := r.calls.Reject(ctx, p.CallID, p.To, r.now().UTC())
	if err != nil || !ok {
		return err
	}
	r.membership.Broadcast(ctx, p.To, event.New(event.CallReject, r.signal(c, p)), c.ConnectionID)
	r.membership.Broadcast(ctx, p.To, event.New(event.MessageNew, outcome.Record))
	return nil
}

func (r *EventRouter) connected(_ context.Context, c Client, p callPayload) error {
	if _, ok := r.calls.Connected(p.CallID, p.To, c.UserID, r.now().UTC()); !ok {
		r.log.Debug("Ignoring connected for unknown call", "call_id", p.CallID)
	}
	return nil
}

func (r *EventRouter) end(ctx context.Context, c Client, p callPayload) error {
	outcome, ok, err := r.calls.End(ctx, p.CallID, p.To, r.now().UTC())
	if err != nil || !ok {
		return err
	}
	r.membership.Broadcast(ctx, p.To, event.New(event.CallEnded, r.signal(c, p)), c.ConnectionID)
	r.membership.Broadcast(ctx, p.To, event.New(event.MessageNew, outcome.Record))
	return nil
}

// forward relays pure signaling that neither needs nor changes a session.
func (r *EventRouter) forward(name event.Name) func(ctx context.Context, c Client, p callPayload) error {
	return func(ctx context.Context, c Client, p callPayload) error {
		r.membership.Broadcast(ctx, p.To, event.New(name, r.signal(c, p)), c.ConnectionID)
		return nil
	}
}

func (r *EventRouter) hasCallee(c Client, roomID domain.RoomID) bool {
	for _, connID := range r.membership.Subscribers(roomID) {
		if connID != c.ConnectionID {
			return true
		}
	}
	return false
}

func (r *EventRouter) signal(c Client, p callPayload) event.CallSignal {
	return event.CallSignal{
		CallID:      p.CallID,
		From:        c.UserID,
		ChatRoomID:  p.To,
		IsVideoCall: p.IsVideoCall,
		SDP:         p.SDP,
		Candidate:   p.Candidate,
	}
}

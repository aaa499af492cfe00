package runtime

import (
	"chat-realtime/contract"
	"chat-realtime/domain"
	"context"
	"fmt"
)

// PresenceBroadcaster decides, for one outbound message, who reads it on arrival
// and whether it counts as delivered.
type PresenceBroadcaster struct {
	store    contract.Store
	registry contract.IConnectionRegistry
}

func NewPresenceBroadcaster(store contract.Store, registry contract.IConnectionRegistry) *PresenceBroadcaster {
	return &PresenceBroadcaster{store: store, registry: registry}
}

// ComputeDelivery partitions the durable members of roomID:
//   - the sender and members focused on the room go to ReadBy
//   - everybody else goes to NotReadBy
//
// The status is delivered as soon as one non-sender member is connected, focused or not.
func (p *PresenceBroadcaster) ComputeDelivery(ctx context.Context, roomID domain.RoomID,
	senderID domain.UserID) (domain.Delivery, error) {
	members, err := p.store.ListRoomMembers(ctx, roomID)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("listing members of %s: %w", roomID, err)
	}

	delivery := domain.Delivery{
		ReadBy:    make([]domain.UserID, 0, len(members)),
		NotReadBy: make([]domain.UserID, 0, len(members)),
		Status:    domain.StatusSent,
	}
	for _, member := range members {
		if member.UserID == senderID {
			delivery.ReadBy = append(delivery.ReadBy, member.UserID)
			continue
		}
		conn, online := p.registry.Lookup(member.UserID)
		switch {
		case online && conn.IsFocused(roomID):
			delivery.ReadBy = append(delivery.ReadBy, member.UserID)
			delivery.Status = domain.StatusDelivered
		case online:
			delivery.NotReadBy = append(delivery.NotReadBy, member.UserID)
			delivery.Status = domain.StatusDelivered
		default:
			delivery.NotReadBy = append(delivery.NotReadBy, member.UserID)
		}
	}
	return delivery, nil
}

package repositories

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// diskMessage is the stored form of a message. ClientID is kept for
// deduplication on the client side but never broadcast back.
type diskMessage struct {
	domain.Message
	ClientID string `json:"clientId,omitempty"`
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}":
//  1. 19-digit zero padding keeps lexicographical order chronological.
//  2. The UUID separates two messages stored at the same nanosecond.
func messageKey(roomID domain.RoomID, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s%s:%019d:%s", messagePrefix, roomID, at.UnixNano(), id)
}

func (s *Store) CreateMessage(ctx context.Context, roomID domain.RoomID, draft domain.MessageDraft,
	status domain.MessageStatus, notReadBy []domain.UserID) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{
		ID:         uuid.New(),
		ChatRoomID: roomID,
		SenderID:   draft.SenderID,
		Content:    draft.Content,
		Type:       lo.Ternary(draft.Type == "", domain.TypeText, draft.Type),
		Status:     status,
		NotReadBy:  lo.Uniq(notReadBy),
		CreatedAt:  time.Now().UTC(),
	}
	if msg.NotReadBy == nil {
		msg.NotReadBy = []domain.UserID{}
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return putMessage(txn, diskMessage{Message: msg, ClientID: draft.ClientID}, true)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("storing message in %s: %w", roomID, err)
	}
	return msg, nil
}

// CreateCallRecordMessage stores the terminal snapshot of a call as a message of the call room.
func (s *Store) CreateCallRecordMessage(ctx context.Context, call domain.CallSession) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	snapshot := call.Clone()
	msg := domain.Message{
		ID:         call.MessageID,
		ChatRoomID: call.ChatRoomID,
		SenderID:   call.CallerID,
		Content:    string(call.Status),
		Type:       domain.TypeCall,
		Status:     domain.StatusSent,
		NotReadBy:  []domain.UserID{},
		Call:       &snapshot,
		CreatedAt:  lo.FromPtrOr(call.EndTime, time.Now().UTC()),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return putMessage(txn, diskMessage{Message: msg}, true)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("storing call record %s: %w", call.CallID, err)
	}
	return msg, nil
}

// UpdateReadReceipt removes readerIDs from the unread list of every message of the room
// up to latestMessageID. A message nobody has left to read becomes read.
func (s *Store) UpdateReadReceipt(ctx context.Context, roomID domain.RoomID, readerIDs []domain.UserID,
	latestMessageID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		latest, _, err := findMessage(txn, roomID, latestMessageID)
		if err != nil {
			return err
		}
		upTo := messageKey(roomID, latest.CreatedAt, latest.ID)

		var changed []diskMessage
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := []byte(messagePrefix + string(roomID) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if string(item.Key()) > upTo {
				break
			}
			var dm diskMessage
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &dm) }); err != nil {
				it.Close()
				return err
			}
			remaining, _ := lo.Difference(dm.NotReadBy, readerIDs)
			if len(remaining) == len(dm.NotReadBy) {
				continue
			}
			dm.NotReadBy = remaining
			if len(remaining) == 0 {
				dm.Status = domain.StatusRead
			}
			changed = append(changed, dm)
		}
		it.Close()

		for _, dm := range changed {
			if err := putMessage(txn, dm, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddReaction sets the reaction of userID on the message, replacing a previous one.
func (s *Store) AddReaction(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID,
	userID domain.UserID, reaction domain.Reaction) (domain.Message, error) {
	if !reaction.IsAllowed() {
		return domain.Message{}, fmt.Errorf("%w: %q", errors.ErrReactionNotAllowed, reaction)
	}
	return s.mutate(ctx, roomID, messageID, func(dm *diskMessage) error {
		if dm.Reactions == nil {
			dm.Reactions = make(map[domain.UserID]domain.Reaction)
		}
		dm.Reactions[userID] = reaction
		return nil
	})
}

// EditMessage replaces the content of a message owned by editorID.
func (s *Store) EditMessage(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID,
	editorID domain.UserID, content string) (domain.Message, error) {
	return s.mutate(ctx, roomID, messageID, func(dm *diskMessage) error {
		if dm.SenderID != editorID {
			return errors.ErrNotMessageOwner
		}
		dm.Content = content
		dm.EditedAt = lo.ToPtr(time.Now().UTC())
		return nil
	})
}

// DeleteMessage soft-deletes a message owned by userID: the record stays, its content goes.
func (s *Store) DeleteMessage(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID,
	userID domain.UserID) error {
	_, err := s.mutate(ctx, roomID, messageID, func(dm *diskMessage) error {
		if dm.SenderID != userID {
			return errors.ErrNotMessageOwner
		}
		dm.Content = ""
		dm.Reactions = nil
		dm.Deleted = true
		return nil
	})
	return err
}

// GetMessages returns the room history, newest first, starting after cursor.
// The returned cursor is the key suffix of the last message read.
func (s *Store) GetMessages(ctx context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var messages []domain.Message
	var lastKey string
	err := s.db.View(func(txn *badger.Txn) error {
		prefixStr := messagePrefix + string(roomID) + ":"
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Past the newest possible key, then walk backwards
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if s.limitMessages > 0 && len(messages) == s.limitMessages {
				s.log.Debug(fmt.Sprintf("Maximum of %d message reached", s.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var dm diskMessage
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &dm) }); err != nil {
				return err
			}
			messages = append(messages, dm.Message)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}

func (s *Store) mutate(ctx context.Context, roomID domain.RoomID, messageID uuid.UUID,
	fn func(dm *diskMessage) error) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	var updated domain.Message
	err := s.db.Update(func(txn *badger.Txn) error {
		dm, _, err := findMessage(txn, roomID, messageID)
		if err != nil {
			return err
		}
		if dm.Deleted {
			return fmt.Errorf("%w: %s was deleted", errors.ErrMessageNotFound, messageID)
		}
		if err := fn(&dm); err != nil {
			return err
		}
		updated = dm.Message
		return putMessage(txn, dm, false)
	})
	return updated, err
}

// findMessage resolves a message through its id index and checks it belongs to roomID.
func findMessage(txn *badger.Txn, roomID domain.RoomID, messageID uuid.UUID) (diskMessage, string, error) {
	item, err := txn.Get([]byte(msgIndexPrefix + messageID.String()))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return diskMessage{}, "", fmt.Errorf("%w: %s", errors.ErrMessageNotFound, messageID)
	}
	if err != nil {
		return diskMessage{}, "", err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return diskMessage{}, "", err
	}
	var dm diskMessage
	if err := getJSON(txn, string(key), &dm); err != nil {
		return diskMessage{}, "", err
	}
	if dm.ChatRoomID != roomID {
		return diskMessage{}, "", fmt.Errorf("%w: %s in %s", errors.ErrMessageNotFound, messageID, roomID)
	}
	return dm, string(key), nil
}

func putMessage(txn *badger.Txn, dm diskMessage, index bool) error {
	key := messageKey(dm.ChatRoomID, dm.CreatedAt, dm.ID)
	if err := setJSON(txn, key, dm); err != nil {
		return err
	}
	if !index {
		return nil
	}
	return txn.Set([]byte(msgIndexPrefix+dm.ID.String()), []byte(key))
}

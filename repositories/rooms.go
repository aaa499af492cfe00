package repositories

import (
	"chat-realtime/domain"
	"chat-realtime/errors"
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// CreateRoom writes the room and its initial members in one transaction.
// A two-member non-group room is also indexed as the direct room of the pair.
func (s *Store) CreateRoom(ctx context.Context, room domain.ChatRoom, members []domain.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, roomPrefix+string(room.ID), room); err != nil {
			return err
		}
		for _, m := range members {
			m.ChatRoomID = room.ID
			if err := putMember(txn, m); err != nil {
				return err
			}
		}
		if !room.IsGroup && len(members) == 2 {
			key := directKey(members[0].UserID, members[1].UserID)
			if err := txn.Set([]byte(key), []byte(room.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetRoom(ctx context.Context, roomID domain.RoomID) (domain.ChatRoom, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatRoom{}, err
	}
	var room domain.ChatRoom
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roomPrefix+string(roomID), &room)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.ChatRoom{}, fmt.Errorf("%w: %s", errors.ErrRoomNotFound, roomID)
	}
	return room, err
}

func (s *Store) AddMember(ctx context.Context, member domain.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(roomPrefix + string(member.ChatRoomID))); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", errors.ErrRoomNotFound, member.ChatRoomID)
			}
			return err
		}
		return putMember(txn, member)
	})
}

func (s *Store) RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(joinKey(memberPrefix+string(roomID), string(userID)))
		if _, err := txn.Get(key); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s in %s", errors.ErrMemberNotFound, userID, roomID)
			}
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete([]byte(joinKey(userRoomPrefix+string(userID), string(roomID))))
	})
}

// FindDirectRoom returns the one-to-one room of a and b, in either order.
func (s *Store) FindDirectRoom(ctx context.Context, a, b domain.UserID) (domain.ChatRoom, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatRoom{}, false, err
	}
	var room domain.ChatRoom
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(directKey(a, b)))
		if err != nil {
			return err
		}
		roomID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, roomPrefix+string(roomID), &room)
	})
	switch {
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return domain.ChatRoom{}, false, nil
	case err != nil:
		return domain.ChatRoom{}, false, err
	}
	return room, true, nil
}

// ListRoomsForUser scans the reverse membership index of userID.
func (s *Store) ListRoomsForUser(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rooms []domain.RoomID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(userRoomPrefix + string(userID) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rooms = append(rooms, domain.RoomID(strings.TrimPrefix(key, string(prefix))))
		}
		return nil
	})
	return rooms, err
}

func (s *Store) ListRoomMembers(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var members []domain.Member
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(memberPrefix + string(roomID) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m domain.Member
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			members = append(members, m)
		}
		return nil
	})
	return members, err
}

func putMember(txn *badger.Txn, m domain.Member) error {
	if err := setJSON(txn, joinKey(memberPrefix+string(m.ChatRoomID), string(m.UserID)), m); err != nil {
		return err
	}
	return txn.Set([]byte(joinKey(userRoomPrefix+string(m.UserID), string(m.ChatRoomID))), nil)
}

func directKey(a, b domain.UserID) string {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return directPrefix + joinKey(pair...)
}

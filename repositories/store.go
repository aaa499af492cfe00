// Package repositories persists rooms, memberships and messages in BadgerDB.
// Values are JSON documents; keys are laid out so that prefix scans return
// room members and room messages in a stable order.
package repositories

import (
	"chat-realtime/contract"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	roomPrefix     = "room:"
	memberPrefix   = "member:"
	userRoomPrefix = "userroom:"
	directPrefix   = "direct:"
	messagePrefix  = "msg:"
	msgIndexPrefix = "msgidx:"
)

var (
	_ contract.Store     = (*Store)(nil)
	_ contract.RoomStore = (*Store)(nil)
)

// Store is the Badger implementation of the persistence collaborator.
type Store struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages int
}

func NewStore(db *badger.DB, log *slog.Logger, limitMessages int) *Store {
	return &Store{db: db, log: log, limitMessages: limitMessages}
}

// Open opens (or creates) the Badger directory at path with quiet logging.
func Open(path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", path, err)
	}
	return db, nil
}

// KV is one raw entry returned by Scan.
type KV struct {
	Key   string
	Value []byte
	Size  int64
}

// Scan returns at most limit raw entries under prefix, for inspection tools.
func (s *Store) Scan(ctx context.Context, prefix string, limit int) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []KV
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if limit > 0 && len(entries) == limit {
				break
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, KV{Key: string(item.KeyCopy(nil)), Value: value, Size: item.EstimatedSize()})
		}
		return nil
	})
	return entries, err
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), bytes)
}

func joinKey(parts ...string) string {
	return strings.Join(parts, ":")
}

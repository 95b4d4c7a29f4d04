package blocklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "block:"

// BadgerStore is the on-device block registry. Badger runs embedded with
// SyncWrites on, so a block request is durable before SetBlocked returns; a
// crash right after blocking must not let the next call from that number
// through unscreened.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the registry at dir. Pass dir="" to run
// fully in memory, which the tests use.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true).WithSyncWrites(false)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open block registry: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) IsBlocked(ctx context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	blocked := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(badgerKeyPrefix + fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		blocked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read block entry: %w", err)
	}
	return blocked, nil
}

func (s *BadgerStore) SetBlocked(ctx context.Context, fingerprint string, blocked bool) error {
	if fingerprint == "" {
		return nil
	}
	key := []byte(badgerKeyPrefix + fingerprint)
	err := s.db.Update(func(txn *badger.Txn) error {
		if blocked {
			return txn.Set(key, []byte(time.Now().UTC().Format(time.RFC3339)))
		}
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("write block entry: %w", err)
	}
	return nil
}

func (s *BadgerStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			entry := Entry{Fingerprint: string(item.Key()[len(prefix):])}
			if err := item.Value(func(val []byte) error {
				if at, err := time.Parse(time.RFC3339, string(val)); err == nil {
					entry.CreatedAt = at
				}
				return nil
			}); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list block entries: %w", err)
	}
	return entries, nil
}

// Close releases the underlying badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

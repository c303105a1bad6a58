package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const gamePrefix = "game/"

// Badger archives games in an embedded key-value store, one JSON value per game.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the store in dir. An empty dir keeps the
// store in memory.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func gameKey(id uuid.UUID) []byte { return []byte(gamePrefix + id.String()) }

// StoreGame inserts or replaces the record.
func (b *Badger) StoreGame(_ context.Context, rec GameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", rec.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(gameKey(rec.ID), data)
	})
}

// GetGame loads one record.
func (b *Badger) GetGame(_ context.Context, id uuid.UUID) (*GameRecord, error) {
	var rec GameRecord
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gameKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	return &rec, nil
}

// RecentGames returns up to limit records, newest first. Keys are not
// time-ordered, so every record is read and sorted.
func (b *Badger) RecentGames(_ context.Context, limit int) ([]GameRecord, error) {
	var out []GameRecord
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(gamePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec GameRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent games: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close flushes and closes the store.
func (b *Badger) Close() error {
	return b.db.Close()
}

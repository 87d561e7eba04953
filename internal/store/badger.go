package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Badger is the embedded gateway, the default backend.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database under dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable logging
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Game numbers are zero-padded so prefix scans return game order.
func badgerGameKey(sessionID string, gameNumber int) []byte {
	return []byte(fmt.Sprintf("game/%s/%06d", sessionID, gameNumber))
}

func badgerMatchKey(sessionID string) []byte {
	return []byte("match/" + sessionID)
}

func badgerResultKey(sessionID string, gameNumber int) []byte {
	return []byte(fmt.Sprintf("result/%s/%06d", sessionID, gameNumber))
}

// heldVersion reads the version of the snapshot stored under key, or
// ok=false when the key is absent.
func heldVersion(txn *badger.Txn, key []byte) (uint64, bool, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var probe struct {
		Version uint64 `json:"version"`
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &probe)
	}); err != nil {
		return 0, false, err
	}
	return probe.Version, true, nil
}

// SaveGame stores a game checkpoint unless a newer one is held.
func (b *Badger) SaveGame(ctx context.Context, snap GameSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	key := badgerGameKey(snap.SessionID, snap.GameNumber)
	return b.db.Update(func(txn *badger.Txn) error {
		held, ok, err := heldVersion(txn, key)
		if err != nil {
			return err
		}
		if ok && held > snap.Version {
			return nil
		}
		return txn.Set(key, data)
	})
}

// SaveMatch stores a match checkpoint unless a newer one is held.
func (b *Badger) SaveMatch(ctx context.Context, snap MatchSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	key := badgerMatchKey(snap.SessionID)
	return b.db.Update(func(txn *badger.Txn) error {
		held, ok, err := heldVersion(txn, key)
		if err != nil {
			return err
		}
		if ok && held > snap.Version {
			return nil
		}
		return txn.Set(key, data)
	})
}

// LoadGame returns a stored game checkpoint.
func (b *Badger) LoadGame(ctx context.Context, sessionID string, gameNumber int) (GameSnapshot, error) {
	var snap GameSnapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerGameKey(sessionID, gameNumber))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	return snap, err
}

// LoadMatch returns a stored match checkpoint.
func (b *Badger) LoadMatch(ctx context.Context, sessionID string) (MatchSnapshot, error) {
	var snap MatchSnapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerMatchKey(sessionID))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	return snap, err
}

// AppendResult records one settled game; a retried settlement rewrites
// the same key.
func (b *Badger) AppendResult(ctx context.Context, rec ResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerResultKey(rec.SessionID, rec.GameNumber), data)
	})
}

// Results returns the settled games of a session in game order.
func (b *Badger) Results(ctx context.Context, sessionID string) ([]ResultRecord, error) {
	prefix := []byte("result/" + sessionID + "/")
	var out []ResultRecord
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec ResultRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

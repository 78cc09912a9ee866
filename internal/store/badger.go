package store

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Badger is a disk-backed Store on badger with native entry TTLs, so
// saved links survive a restart and expiry needs no sweeper of ours.
type Badger struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadger opens (or creates) a badger store at path.
func NewBadger(path string, ttl time.Duration) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db, ttl: ttl}, nil
}

func (b *Badger) Save(_ context.Context, s SavedState) (string, error) {
	key := uuid.NewString()

	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data).WithTTL(b.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (b *Badger) Load(_ context.Context, key string) (SavedState, bool, error) {
	var data []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return SavedState{}, false, nil
	}
	if err != nil {
		return SavedState{}, false, err
	}

	var s SavedState
	if err := json.Unmarshal(data, &s); err != nil {
		return SavedState{}, false, err
	}
	return s, true, nil
}

func (b *Badger) Close() error { return b.db.Close() }

package durable

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerSlot stores the value under one key of an embedded badger database.
type BadgerSlot struct {
	db  *badger.DB
	key []byte
}

func OpenBadgerSlot(path, key string) (*BadgerSlot, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerSlot{db: db, key: []byte("slot:" + key)}, nil
}

func (b *BadgerSlot) Name() string { return "badger" }

func (b *BadgerSlot) Load(ctx context.Context) ([]byte, bool, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	return data, true, nil
}

func (b *BadgerSlot) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key, data)
	})
}

func (b *BadgerSlot) Close() error {
	return b.db.Close()
}

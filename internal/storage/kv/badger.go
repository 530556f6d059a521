package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by dgraph-io/badger.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database in dir. An empty dir opens
// an in-memory instance.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(ctx context.Context, key []byte) ([]byte, error) {
	if b.db == nil {
		return nil, ErrClosed
	}
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (b *Badger) Batch(ctx context.Context, ops []Op) error {
	if b.db == nil {
		return ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			switch op.Type {
			case OpPut:
				if err := txn.Set(op.Key, op.Value); err != nil {
					return err
				}
			case OpDelete:
				if err := txn.Delete(op.Key); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown batch operation type: %d", op.Type)
			}
		}
		return nil
	})
}

func (b *Badger) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	if b.db == nil {
		return ErrClosed
	}
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

// Pebble is a Store backed by cockroachdb/pebble.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a pebble database in dir.
func OpenPebble(dir string) (*Pebble, error) {
	if dir == "" {
		return nil, fmt.Errorf("pebble data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(ctx context.Context, key []byte) ([]byte, error) {
	if p.db == nil {
		return nil, ErrClosed
	}
	val, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(val), nil
}

func (p *Pebble) Batch(ctx context.Context, ops []Op) error {
	if p.db == nil {
		return ErrClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case OpPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return err
			}
		case OpDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}

	return batch.Commit(pebble.Sync)
}

func (p *Pebble) Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	if p.db == nil {
		return ErrClosed
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

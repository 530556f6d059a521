// Package kv is the key-value substrate under the pool store and the custody
// ledger. Every backend applies a batch atomically.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("kv store is closed")
)

// Store is an ordered key-value store with atomic batches.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Batch(ctx context.Context, ops []Op) error
	Iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// OpType is the kind of a batch operation.
type OpType int

const (
	OpPut OpType = iota
	OpDelete
)

// Op is a single operation in a batch.
type Op struct {
	Type  OpType
	Key   []byte
	Value []byte
}

// Put builds a put operation.
func Put(key, value []byte) Op {
	return Op{Type: OpPut, Key: key, Value: value}
}

// Delete builds a delete operation.
func Delete(key []byte) Op {
	return Op{Type: OpDelete, Key: key}
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendBadger = "badger"
)

// Open opens a store for the named backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemory(), nil
	case BackendPebble, "":
		return OpenPebble(dir)
	case BackendBadger:
		return OpenBadger(dir)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
}

// prefixEnd returns the smallest key greater than every key with the prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

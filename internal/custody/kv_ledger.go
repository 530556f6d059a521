package custody

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage/kv"
)

const (
	balancePrefix = "bal/"
	supplyPrefix  = "supply/"
)

// KVLedger keeps balances and supplies in a kv.Store.
type KVLedger struct {
	mu    sync.Mutex
	store kv.Store
}

func NewKVLedger(store kv.Store) *KVLedger {
	return &KVLedger{store: store}
}

// Apply validates every movement against current balances and writes the
// result in a single batch.
func (l *KVLedger) Apply(ctx context.Context, moves []Movement) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	working := make(map[string]uint64)
	order := make([]string, 0, len(moves)*2)

	load := func(key string) (uint64, error) {
		if val, ok := working[key]; ok {
			return val, nil
		}
		val, err := l.read(ctx, []byte(key))
		if err != nil {
			return 0, err
		}
		working[key] = val
		order = append(order, key)
		return val, nil
	}

	for _, m := range moves {
		if m.Amount == 0 {
			continue
		}
		if m.IsMint() && m.IsBurn() {
			return fmt.Errorf("%w: %s", ErrInvalidMovement, m)
		}

		if m.IsMint() {
			key := supplyKey(m.Asset)
			supply, err := load(key)
			if err != nil {
				return err
			}
			if working[key], err = fixedpoint.Add(supply, m.Amount); err != nil {
				return fmt.Errorf("mint %s: %w", m, err)
			}
		} else {
			key := balanceKey(m.Asset, m.From)
			bal, err := load(key)
			if err != nil {
				return err
			}
			if bal < m.Amount {
				return fmt.Errorf("%w: %s has %d", ErrInsufficientBalance, m, bal)
			}
			working[key] = bal - m.Amount
		}

		if m.IsBurn() {
			key := supplyKey(m.Asset)
			supply, err := load(key)
			if err != nil {
				return err
			}
			if working[key], err = fixedpoint.Sub(supply, m.Amount); err != nil {
				return fmt.Errorf("burn %s: %w", m, err)
			}
		} else {
			key := balanceKey(m.Asset, m.To)
			bal, err := load(key)
			if err != nil {
				return err
			}
			if working[key], err = fixedpoint.Add(bal, m.Amount); err != nil {
				return fmt.Errorf("credit %s: %w", m, err)
			}
		}
	}

	if len(order) == 0 {
		return nil
	}

	ops := make([]kv.Op, 0, len(order))
	for _, key := range order {
		ops = append(ops, kv.Put([]byte(key), encodeUint64(working[key])))
	}
	if err := l.store.Batch(ctx, ops); err != nil {
		return fmt.Errorf("write balances: %w", err)
	}
	return nil
}

// Balance returns the holder's balance of asset.
func (l *KVLedger) Balance(ctx context.Context, asset, holder model.AssetID) (uint64, error) {
	return l.read(ctx, []byte(balanceKey(asset, holder)))
}

// Supply returns the minted-minus-burned supply of asset.
func (l *KVLedger) Supply(ctx context.Context, asset model.AssetID) (uint64, error) {
	return l.read(ctx, []byte(supplyKey(asset)))
}

func (l *KVLedger) read(ctx context.Context, key []byte) (uint64, error) {
	val, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt balance entry %s", key)
	}
	return binary.BigEndian.Uint64(val), nil
}

func balanceKey(asset, holder model.AssetID) string {
	return balancePrefix + asset.Hex() + "/" + holder.Hex()
}

func supplyKey(asset model.AssetID) string {
	return supplyPrefix + asset.Hex()
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

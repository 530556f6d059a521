package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage/kv"
)

const poolPrefix = "pool/"

// KVPoolStore persists pool records as JSON in a kv.Store, fronted by an LRU
// cache of decoded records.
type KVPoolStore struct {
	mu    sync.Mutex
	store kv.Store
	cache *lru.Cache[model.PoolKey, model.PoolRecord]
}

// NewKVPoolStore builds a pool store. cacheSize <= 0 uses a default of 256.
func NewKVPoolStore(store kv.Store, cacheSize int) (*KVPoolStore, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[model.PoolKey, model.PoolRecord](cacheSize)
	if err != nil {
		return nil, err
	}
	return &KVPoolStore{store: store, cache: cache}, nil
}

func (s *KVPoolStore) Get(ctx context.Context, key model.PoolKey) (model.PoolRecord, bool, error) {
	if rec, ok := s.cache.Get(key); ok {
		return rec, true, nil
	}

	data, err := s.store.Get(ctx, poolKey(key))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return model.PoolRecord{}, false, nil
		}
		return model.PoolRecord{}, false, fmt.Errorf("read pool %s: %w", key, err)
	}

	var rec model.PoolRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.PoolRecord{}, false, fmt.Errorf("decode pool %s: %w", key, err)
	}
	s.cache.Add(key, rec)
	return rec, true, nil
}

func (s *KVPoolStore) Create(ctx context.Context, rec model.PoolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.State.Key()
	_, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", ErrPoolExists, key)
	}
	return s.write(ctx, rec)
}

func (s *KVPoolStore) Put(ctx context.Context, rec model.PoolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.State.Key()
	_, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, key)
	}
	return s.write(ctx, rec)
}

func (s *KVPoolStore) List(ctx context.Context) ([]model.PoolRecord, error) {
	var out []model.PoolRecord
	err := s.store.Iterate(ctx, []byte(poolPrefix), func(_, value []byte) error {
		var rec model.PoolRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("decode pool: %w", err)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *KVPoolStore) write(ctx context.Context, rec model.PoolRecord) error {
	key := rec.State.Key()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode pool %s: %w", key, err)
	}
	if err := s.store.Batch(ctx, []kv.Op{kv.Put(poolKey(key), data)}); err != nil {
		s.cache.Remove(key)
		return fmt.Errorf("write pool %s: %w", key, err)
	}
	s.cache.Add(key, rec)
	return nil
}

func poolKey(key model.PoolKey) []byte {
	return []byte(poolPrefix + key.AssetX.Hex() + "/" + key.AssetY.Hex() + "/" + strconv.FormatUint(key.Seed, 10))
}

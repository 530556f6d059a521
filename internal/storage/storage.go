package storage

import (
	"context"
	"errors"

	"liquidityEngine/internal/model"
)

var (
	// ErrPoolExists is returned by Create when the pool key is taken.
	ErrPoolExists = errors.New("pool already exists")

	// ErrPoolNotFound is returned by Put for an unknown pool.
	ErrPoolNotFound = errors.New("pool not found")
)

// Storage defines a sink for journal log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// PoolStore persists pool records keyed by (asset x, asset y, seed).
type PoolStore interface {
	Get(ctx context.Context, key model.PoolKey) (model.PoolRecord, bool, error)
	Create(ctx context.Context, rec model.PoolRecord) error
	Put(ctx context.Context, rec model.PoolRecord) error
	List(ctx context.Context) ([]model.PoolRecord, error)
}

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liquidityEngine/internal/amm"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/events"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/kv"
)

// runtime bundles the opened state of one command invocation.
type runtime struct {
	kv     kv.Store
	engine *amm.Engine
	ledger *custody.KVLedger
	logger *zap.Logger
}

func openRuntime(cfg config.Config, logger *zap.Logger) (*runtime, error) {
	store, err := kv.Open(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	pools, err := storage.NewKVPoolStore(store, cfg.CacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}
	ledger := custody.NewKVLedger(store)

	opts := amm.Options{Logger: logger}
	if cfg.Journal != "" {
		sink, err := events.NewJournalSink(storage.NewJsonlStorage(cfg.Journal))
		if err != nil {
			store.Close()
			return nil, err
		}
		opts.Sink = sink
	}

	return &runtime{
		kv:     store,
		engine: amm.NewEngine(pools, ledger, opts),
		ledger: ledger,
		logger: logger,
	}, nil
}

func (r *runtime) Close() error {
	if r == nil || r.kv == nil {
		return nil
	}
	return r.kv.Close()
}

// poolAction runs fn against an opened runtime and prints its result as JSON.
type poolAction func(ctx context.Context, rt *runtime) (interface{}, error)

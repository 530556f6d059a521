package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/config"
	"liquidityEngine/internal/replay"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(cfg.Config, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	var results replay.ResultWriter
	if cfg.Results != "" {
		writer, err := storage.NewJSONLWriter(cfg.Results, true)
		if err != nil {
			return err
		}
		defer writer.Close()
		results = writer
	}

	var snapshots replay.SnapshotSink
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		snapshots = store
	}

	runner := replay.NewRunner(replay.RunConfig{
		FromSeq:           cfg.FromSeq,
		ToSeq:             cfg.ToSeq,
		BatchSize:         cfg.BatchSize,
		Workers:           cfg.Workers,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, rt.engine, rt.ledger, results, snapshots, logger)

	logger.Info("replay start",
		zap.String("script", cfg.Script),
		zap.String("data_dir", cfg.DataDir),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Uint64("from", cfg.FromSeq),
		zap.Uint64("to", cfg.ToSeq),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Int("workers", cfg.Workers),
		zap.String("results", cfg.Results),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	summary, err := runner.Run(ctx, cfg.Script)
	if err != nil {
		return err
	}

	logger.Info("replay complete",
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Uint64("last_seq", summary.LastSeq),
	)
	return nil
}

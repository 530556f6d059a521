package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "pool",
		Short:        "Constant-product liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newOpCommands()...)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an operation script against the pool state",
		RunE:  runReplay,
	}

	stateFlags(replayCmd.Flags())
	replayCmd.Flags().String("script", "", "operation script JSONL")
	replayCmd.Flags().String("results", "./data/results.jsonl", "operation results JSONL")
	replayCmd.Flags().Uint64("from", 0, "first sequence to apply (inclusive)")
	replayCmd.Flags().Uint64("to", 0, "last sequence to apply (inclusive), 0 means end of script")
	replayCmd.Flags().Uint64("batch-size", 500, "operations per batch")
	replayCmd.Flags().Int("workers", 8, "pools applied in parallel within a batch")
	replayCmd.Flags().String("checkpoint", "./data/replay_checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts for snapshot writes")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for results and pool snapshots")

	root.AddCommand(replayCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode the event journal into readable events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "./data/journal.jsonl", "input journal JSONL")
	decodeCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate the event journal into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/journal.jsonl", "input journal JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// stateFlags registers the flags every state-opening command shares.
func stateFlags(flags *pflag.FlagSet) {
	flags.String("data-dir", "./data/state", "pool state directory")
	flags.String("store-backend", "pebble", "state backend (pebble, badger, memory)")
	flags.Int("cache-size", 256, "pool record cache entries")
	flags.String("journal", "./data/journal.jsonl", "event journal JSONL, empty disables it")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndFlags(t *testing.T) {

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("store-backend", "pebble", "")
	flags.Int("cache-size", 256, "")
	require.NoError(t, flags.Parse([]string{"--store-backend", " Badger ", "--cache-size", "32"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	require.Equal(t, "badger", cfg.StoreBackend)
	require.Equal(t, 32, cfg.CacheSize)
	require.Equal(t, "./data/state", cfg.DataDir)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadReplayEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("script: ops.jsonl\nworkers: 2\nretry-backoff: 1s\n"), 0o644))
	t.Setenv("POOL_BATCH_SIZE", "7")

	cfg, err := LoadReplay(path, nil)
	require.NoError(t, err)
	require.Equal(t, "ops.jsonl", cfg.Script)
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, time.Second, cfg.RetryBackoff)
	require.Equal(t, uint64(7), cfg.BatchSize)
	require.True(t, cfg.CheckpointEnabled)
	require.Equal(t, "pebble", cfg.StoreBackend)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := LoadAggregate(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestWindowSeconds(t *testing.T) {
	secs, err := AggregateConfig{Window: "5m"}.WindowSeconds()
	require.NoError(t, err)
	require.Equal(t, uint64(300), secs)

	for _, window := range []string{"", "-1m", "500ms", "soon"} {
		_, err := AggregateConfig{Window: window}.WindowSeconds()
		require.Error(t, err, window)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("")
	require.NoError(t, err)
	require.Zero(t, ts)

	ts, err = ParseTimestamp("1700000000")
	require.NoError(t, err)
	require.Equal(t, uint64(1700000000), ts)

	ts, err = ParseTimestamp("2023-11-14T22:13:20Z")
	require.NoError(t, err)
	require.Equal(t, uint64(1700000000), ts)

	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}

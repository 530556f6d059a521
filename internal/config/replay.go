package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Config
	Script            string
	Results           string
	FromSeq           uint64
	ToSeq             uint64
	BatchSize         uint64
	Workers           int
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	PGDSN             string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, setStateDefaults, func(v *viper.Viper) {
		v.SetDefault("results", "./data/results.jsonl")
		v.SetDefault("batch-size", uint64(500))
		v.SetDefault("workers", 8)
		v.SetDefault("checkpoint", "./data/replay_checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Config:            stateConfig(v),
		Script:            v.GetString("script"),
		Results:           v.GetString("results"),
		FromSeq:           v.GetUint64("from"),
		ToSeq:             v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Workers:           v.GetInt("workers"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		PGDSN:             v.GetString("pg-dsn"),
	}, nil
}

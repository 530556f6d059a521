package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. POOL_DATA_DIR.
const EnvPrefix = "POOL"

// Config holds the settings shared by every command that opens pool state.
type Config struct {
	DataDir      string
	StoreBackend string
	CacheSize    int
	Journal      string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, setStateDefaults)
	if err != nil {
		return Config{}, err
	}
	return stateConfig(v), nil
}

func setStateDefaults(v *viper.Viper) {
	v.SetDefault("data-dir", "./data/state")
	v.SetDefault("store-backend", "pebble")
	v.SetDefault("cache-size", 256)
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("log-level", "info")
}

func stateConfig(v *viper.Viper) Config {
	return Config{
		DataDir:      v.GetString("data-dir"),
		StoreBackend: strings.ToLower(strings.TrimSpace(v.GetString("store-backend"))),
		CacheSize:    v.GetInt("cache-size"),
		Journal:      v.GetString("journal"),
		LogLevel:     v.GetString("log-level"),
	}
}

// newViper builds a viper instance with the POOL env prefix, the given
// defaults, bound flags and an optional config file. Without an explicit file
// a config.yaml in the working directory is read when present.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults ...func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, fn := range defaults {
		fn(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// Package config loads the YAML configuration of the grove binaries.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/jacentio/grove/backend/dynamo"
	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/stream"
)

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendDynamo = "dynamodb"
)

// Config is the file configuration.
type Config struct {
	Listen      string  `yaml:"listen"`
	LogLevel    string  `yaml:"log_level"`
	RootID      string  `yaml:"root_id"`
	RootContent string  `yaml:"root_content"`
	Backend     Backend `yaml:"backend"`
	Store       Store   `yaml:"store"`
	Prune       Prune   `yaml:"prune"`
}

// Backend selects and configures the key-value backend.
type Backend struct {
	Kind       string `yaml:"kind"`
	BadgerPath string `yaml:"badger_path"`
	Dynamo     Dynamo `yaml:"dynamo"`
}

// Dynamo configures the DynamoDB backend.
type Dynamo struct {
	Region    string `yaml:"region"`
	Profile   string `yaml:"profile"`
	Endpoint  string `yaml:"endpoint"`
	Table     string `yaml:"table"`
	RankTable string `yaml:"rank_table"`
	RankIndex string `yaml:"rank_index"`
	NumShards int    `yaml:"num_shards"`
}

// Store configures the store.
type Store struct {
	CallTimeout    time.Duration `yaml:"call_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	SlugAttempts   int           `yaml:"slug_attempts"`
}

// Prune configures the rank pruning handler.
type Prune struct {
	Below int64         `yaml:"below"`
	Delay time.Duration `yaml:"delay"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	storeCfg := store.DefaultConfig()
	dynamoCfg := dynamo.DefaultConfig()
	pruneCfg := stream.DefaultConfig()

	return Config{
		Listen:      ":8080",
		LogLevel:    "info",
		RootID:      "root",
		RootContent: "grove",
		Backend: Backend{
			Kind:       BackendMemory,
			BadgerPath: "grove-data",
			Dynamo: Dynamo{
				Table:     dynamoCfg.Table,
				RankTable: dynamoCfg.RankTable,
				RankIndex: dynamoCfg.RankIndex,
				NumShards: dynamoCfg.NumShards,
			},
		},
		Store: Store{
			CallTimeout:    storeCfg.CallTimeout,
			MaxConcurrency: storeCfg.MaxConcurrency,
			SlugAttempts:   storeCfg.SlugAttempts,
		},
		Prune: Prune{
			Below: pruneCfg.PruneBelow,
			Delay: pruneCfg.Delay,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that have no sensible fallback.
func (c Config) Validate() error {
	switch c.Backend.Kind {
	case BackendMemory, BackendDynamo:
	case BackendBadger:
		if c.Backend.BadgerPath == "" {
			return fmt.Errorf("config: backend.badger_path is required for kind %q", BackendBadger)
		}
	default:
		return fmt.Errorf("config: unknown backend.kind %q", c.Backend.Kind)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return level, nil
}

// StoreConfig returns the store configuration.
func (c Config) StoreConfig(logger *slog.Logger) store.Config {
	return store.Config{
		CallTimeout:    c.Store.CallTimeout,
		MaxConcurrency: c.Store.MaxConcurrency,
		SlugAttempts:   c.Store.SlugAttempts,
		Logger:         logger,
	}
}

// DynamoConfig returns the DynamoDB backend configuration.
func (c Config) DynamoConfig() dynamo.Config {
	return dynamo.Config{
		Table:     c.Backend.Dynamo.Table,
		RankTable: c.Backend.Dynamo.RankTable,
		RankIndex: c.Backend.Dynamo.RankIndex,
		NumShards: c.Backend.Dynamo.NumShards,
	}
}

// PruneConfig returns the pruning policy.
func (c Config) PruneConfig() stream.Config {
	return stream.Config{
		PruneBelow: c.Prune.Below,
		Delay:      c.Prune.Delay,
	}
}

package store

import (
	"log/slog"
	"time"
)

// Config holds configuration for the Store.
type Config struct {
	// CallTimeout bounds every individual backend call. A timed out call is
	// treated as a failure: absence for reads, a lost write for writes.
	// Default: 5s
	CallTimeout time.Duration

	// MaxConcurrency bounds the backend calls in flight for one batch.
	// Default: 16
	// Max: 256
	MaxConcurrency int

	// SlugAttempts is how many numbered slug candidates are tried before a
	// post is left without a slug until its next write.
	// Default: 10
	// Max: 100
	SlugAttempts int

	// Logger receives partial write and decode failures.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout:    5 * time.Second,
		MaxConcurrency: 16,
		SlugAttempts:   10,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 16
	}
	if c.MaxConcurrency > 256 {
		c.MaxConcurrency = 256
	}
	if c.SlugAttempts < 1 {
		c.SlugAttempts = 10
	}
	if c.SlugAttempts > 100 {
		c.SlugAttempts = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

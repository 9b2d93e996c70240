package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Database.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return errors.New("database.min_conns must be between 0 and max_conns")
	}

	if c.Lifecycle.ChunkInterval <= 0 {
		return errors.New("lifecycle.chunk_interval must be positive")
	}
	if c.Lifecycle.CompressAfter <= 0 {
		return errors.New("lifecycle.compress_after must be positive")
	}
	if c.Lifecycle.RetainFor <= c.Lifecycle.CompressAfter {
		return errors.New("lifecycle.retain_for must exceed compress_after")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

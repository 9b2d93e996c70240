// Package config loads YAML configuration with environment variable
// expansion, defaults, and validation.
package config

import (
	"time"
)

// Config is the root configuration for the series engine binaries.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Lifecycle   LifecycleConfig   `yaml:"lifecycle"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// DatabaseConfig holds TimescaleDB connection settings.
type DatabaseConfig struct {
	DSN            string        `yaml:"dsn"`
	MinConns       int32         `yaml:"min_conns"`
	MaxConns       int32         `yaml:"max_conns"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// LifecycleConfig holds the chunk lifecycle thresholds. Chunk interval,
// compression age, and retention age are independent values.
type LifecycleConfig struct {
	ChunkInterval time.Duration `yaml:"chunk_interval"`
	CompressAfter time.Duration `yaml:"compress_after"`
	RetainFor     time.Duration `yaml:"retain_for"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// MaintenanceConfig holds the maintenance scheduling settings.
type MaintenanceConfig struct {
	CompressionSchedule string        `yaml:"compression_schedule"`
	RetentionSchedule   string        `yaml:"retention_schedule"`
	MaxRetries          uint          `yaml:"max_retries"`
	RetryInterval       time.Duration `yaml:"retry_interval"`
	RunOnStart          bool          `yaml:"run_on_start"`
}

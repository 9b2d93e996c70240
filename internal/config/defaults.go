package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultMinConns       = 2
	DefaultMaxConns       = 10
	DefaultAcquireTimeout = 5 * time.Second

	DefaultChunkInterval = 7 * 24 * time.Hour
	DefaultCompressAfter = 30 * 24 * time.Hour
	DefaultRetainFor     = 365 * 24 * time.Hour

	DefaultCompressionSchedule = "0 30 3 * * *"
	DefaultRetentionSchedule   = "0 0 4 * * *"
	DefaultMaxRetries          = 3
	DefaultRetryInterval       = 500 * time.Millisecond

	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"
)

// ApplyDefaults fills in zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.AcquireTimeout == 0 {
		c.Database.AcquireTimeout = DefaultAcquireTimeout
	}

	if c.Lifecycle.ChunkInterval == 0 {
		c.Lifecycle.ChunkInterval = DefaultChunkInterval
	}
	if c.Lifecycle.CompressAfter == 0 {
		c.Lifecycle.CompressAfter = DefaultCompressAfter
	}
	if c.Lifecycle.RetainFor == 0 {
		c.Lifecycle.RetainFor = DefaultRetainFor
	}

	if c.Maintenance.CompressionSchedule == "" {
		c.Maintenance.CompressionSchedule = DefaultCompressionSchedule
	}
	if c.Maintenance.RetentionSchedule == "" {
		c.Maintenance.RetentionSchedule = DefaultRetentionSchedule
	}
	if c.Maintenance.MaxRetries == 0 {
		c.Maintenance.MaxRetries = DefaultMaxRetries
	}
	if c.Maintenance.RetryInterval == 0 {
		c.Maintenance.RetryInterval = DefaultRetryInterval
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Package lifecycle drives the chunk state machine of the price store:
// open chunks compress once they age past the compression threshold, and
// compressed chunks are dropped once they age past the retention horizon.
// Both transitions run out of band on a cron schedule, decoupled from the
// request path, and are retried with backoff on failure.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"

	"crypto-series-engine/internal/storage"
)

// Config holds the lifecycle thresholds and schedules. Chunk interval,
// compression age, and retention age are independent values.
type Config struct {
	CompressAfter time.Duration // age of a chunk's upper boundary before compression
	RetainFor     time.Duration // age of a chunk's upper boundary before it is dropped

	CompressionSchedule string // cron spec, e.g. "0 30 3 * * *"
	RetentionSchedule   string // cron spec, e.g. "0 0 4 * * *"

	MaxRetries    uint          // retry attempts per maintenance run before giving up until next cycle
	RetryInterval time.Duration // initial backoff interval, defaults to 500ms
}

// Stats is a snapshot of maintenance activity since the manager started.
type Stats struct {
	CompressionRuns   int64
	CompressionErrors int64
	ChunksCompressed  int64
	RetentionRuns     int64
	RetentionErrors   int64
	ChunksDropped     int64
	LastCompression   time.Time
	LastRetention     time.Time
}

// Observer receives the outcome of each maintenance run. The observability
// metrics satisfy it.
type Observer interface {
	RecordMaintenanceRun(job string, durationSeconds float64, chunks int, err error)
}

// Manager schedules compression and retention cycles over a ChunkMaintainer.
// Each job skips its next firing while a previous run is still in flight, so
// maintenance never overlaps itself; the maintainer serializes across
// processes on its own.
type Manager struct {
	maintainer storage.ChunkMaintainer
	cfg        Config
	logger     *log.Logger
	now        func() time.Time
	observer   Observer

	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc

	mu    sync.Mutex
	stats Stats

	// wg tracks in-flight maintenance runs for graceful shutdown.
	wg sync.WaitGroup
}

// Options for creating a Manager.
type Options struct {
	Maintainer storage.ChunkMaintainer
	Config     Config
	Logger     *log.Logger // defaults to the standard logger
	Now        func() time.Time
	Observer   Observer // optional
}

// New creates a Manager. It does not start scheduling until Start.
func New(opts Options) (*Manager, error) {
	if opts.Maintainer == nil {
		return nil, fmt.Errorf("maintainer is required")
	}
	if opts.Config.CompressAfter <= 0 || opts.Config.RetainFor <= 0 {
		return nil, fmt.Errorf("compression and retention ages must be positive")
	}
	if opts.Config.RetainFor <= opts.Config.CompressAfter {
		return nil, fmt.Errorf("retention horizon must exceed compression age")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		maintainer: opts.Maintainer,
		cfg:        opts.Config,
		logger:     logger,
		now:        now,
		observer:   opts.Observer,
	}
	m.cron = cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
	)
	return m, nil
}

// Start registers both jobs and begins scheduling.
func (m *Manager) Start() error {
	m.baseCtx, m.cancel = context.WithCancel(context.Background())

	if _, err := m.cron.AddFunc(m.cfg.CompressionSchedule, func() {
		m.wg.Add(1)
		defer m.wg.Done()
		m.RunCompression(m.baseCtx)
	}); err != nil {
		return fmt.Errorf("register compression job: %w", err)
	}
	if _, err := m.cron.AddFunc(m.cfg.RetentionSchedule, func() {
		m.wg.Add(1)
		defer m.wg.Done()
		m.RunRetention(m.baseCtx)
	}); err != nil {
		return fmt.Errorf("register retention job: %w", err)
	}

	m.cron.Start()
	m.logger.Printf("lifecycle manager started (compress after %s, retain for %s)",
		m.cfg.CompressAfter, m.cfg.RetainFor)
	return nil
}

// Stop halts scheduling, cancels in-flight runs, and waits for them to
// return.
func (m *Manager) Stop() {
	m.cron.Stop()
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Printf("lifecycle manager stopped")
}

// RunCompression compresses every chunk whose upper boundary is older than
// the compression threshold. Failures are logged and retried with
// exponential backoff up to the configured attempt cap; a run that still
// fails waits for the next scheduled cycle.
func (m *Manager) RunCompression(ctx context.Context) {
	olderThan := m.now().Add(-m.cfg.CompressAfter)
	started := time.Now()

	var compressed int
	err := m.retry(ctx, func() error {
		n, err := m.maintainer.CompressEligible(ctx, olderThan)
		compressed = n
		return err
	})
	if m.observer != nil {
		m.observer.RecordMaintenanceRun("compression", time.Since(started).Seconds(), compressed, err)
	}

	m.mu.Lock()
	m.stats.CompressionRuns++
	m.stats.LastCompression = m.now()
	if err != nil {
		m.stats.CompressionErrors++
	} else {
		m.stats.ChunksCompressed += int64(compressed)
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Printf("compression run failed: %v", err)
		return
	}
	if compressed > 0 {
		m.logger.Printf("compressed %d chunk(s) older than %s", compressed, olderThan.Format(time.RFC3339))
	}
}

// RunRetention drops every chunk whose upper boundary is past the retention
// horizon. Retirement is irreversible.
func (m *Manager) RunRetention(ctx context.Context) {
	olderThan := m.now().Add(-m.retainFor())
	started := time.Now()

	var dropped int
	err := m.retry(ctx, func() error {
		n, err := m.maintainer.DropExpired(ctx, olderThan)
		dropped = n
		return err
	})
	if m.observer != nil {
		m.observer.RecordMaintenanceRun("retention", time.Since(started).Seconds(), dropped, err)
	}

	m.mu.Lock()
	m.stats.RetentionRuns++
	m.stats.LastRetention = m.now()
	if err != nil {
		m.stats.RetentionErrors++
	} else {
		m.stats.ChunksDropped += int64(dropped)
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Printf("retention run failed: %v", err)
		return
	}
	if dropped > 0 {
		m.logger.Printf("dropped %d chunk(s) older than %s", dropped, olderThan.Format(time.RFC3339))
	}
}

// ShrinkRetention lowers the retention horizon and kicks off an asynchronous
// retention run so newly eligible chunks are cleaned up without blocking the
// caller. Growing the horizon just updates the threshold.
func (m *Manager) ShrinkRetention(retainFor time.Duration) error {
	if retainFor <= m.cfg.CompressAfter {
		return fmt.Errorf("retention horizon must exceed compression age")
	}

	m.mu.Lock()
	shrunk := retainFor < m.cfg.RetainFor
	m.cfg.RetainFor = retainFor
	m.mu.Unlock()

	if shrunk && m.baseCtx != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.RunRetention(m.baseCtx)
		}()
	}
	return nil
}

func (m *Manager) retainFor() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.RetainFor
}

// Snapshot returns a copy of the maintenance counters.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) retry(ctx context.Context, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	if m.cfg.RetryInterval > 0 {
		exp.InitialInterval = m.cfg.RetryInterval
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(m.cfg.MaxRetries)),
		ctx,
	)
	return backoff.Retry(op, policy)
}

// Package engine is the collaborator-facing surface of the series store:
// instrument resolution, ingestion, queries, and derived metrics behind one
// handle built from plain structs, so any front end can bind to it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/metrics"
	"crypto-series-engine/internal/observability"
	"crypto-series-engine/internal/storage"
)

// SeriesSource abstracts the external quote fetcher. It returns a parsed
// daily series sorted descending by timestamp (latest first).
type SeriesSource interface {
	FetchDaily(ctx context.Context, symbol, market string, days int) ([]*domain.PricePoint, error)
}

// Snapshot is the full read model for one instrument: metadata, the most
// recent points (descending), and metrics derived from them.
type Snapshot struct {
	Instrument *domain.Instrument   `json:"instrument"`
	Points     []*domain.PricePoint `json:"points"`
	Metrics    *metrics.Summary     `json:"metrics"`
	FromSource bool                 `json:"from_source"` // points came from a live fetch, not storage
}

// Engine wires the stores together. Construct one at startup and pass it to
// each consumer; Close the underlying pool on shutdown.
type Engine struct {
	instruments storage.InstrumentStore
	prices      storage.PricePointStore
	source      SeriesSource           // optional live fallback
	obs         *observability.Metrics // optional
}

// Options for creating an Engine.
type Options struct {
	Instruments storage.InstrumentStore
	Prices      storage.PricePointStore
	Source      SeriesSource
	Metrics     *observability.Metrics
}

func New(opts Options) (*Engine, error) {
	if opts.Instruments == nil || opts.Prices == nil {
		return nil, fmt.Errorf("instrument and price stores are required")
	}
	return &Engine{
		instruments: opts.Instruments,
		prices:      opts.Prices,
		source:      opts.Source,
		obs:         opts.Metrics,
	}, nil
}

// ResolveInstrument returns the instrument for a (symbol, market) pair,
// creating it on first reference.
func (e *Engine) ResolveInstrument(ctx context.Context, symbol, market, name string) (*domain.Instrument, error) {
	return e.instruments.ResolveOrCreate(ctx, symbol, market, name)
}

// DeactivateInstrument soft-deletes an instrument. Its points remain
// queryable.
func (e *Engine) DeactivateInstrument(ctx context.Context, id int64) (bool, error) {
	return e.instruments.Deactivate(ctx, id)
}

// ListInstruments pages through instruments ordered by ID.
func (e *Engine) ListInstruments(ctx context.Context, activeOnly bool, offset, limit int) ([]*domain.Instrument, error) {
	return e.instruments.List(ctx, activeOnly, offset, limit)
}

// Ingest appends a batch of points for one instrument in a single
// transaction. Any key conflict rejects the whole batch.
func (e *Engine) Ingest(ctx context.Context, instrumentID int64, points []*domain.PricePoint) (int, error) {
	for _, p := range points {
		p.InstrumentID = instrumentID
	}
	n, err := e.prices.BulkAppend(ctx, points)
	e.recordIngest(n, err)
	return n, err
}

func (e *Engine) recordIngest(n int, err error) {
	if e.obs == nil {
		return
	}
	if err == nil {
		e.obs.PointsAppended.Add(float64(n))
		e.obs.BatchesIngested.Inc()
		e.obs.LastSuccessfulIngestion.SetToCurrentTime()
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		reason = "duplicate"
	case errors.Is(err, storage.ErrHistoricalWriteRejected):
		reason = "historical"
		e.obs.HistoricalRejected.Inc()
	case errors.Is(err, storage.ErrInvalidInput):
		reason = "invalid"
	}
	e.obs.BatchesRejected.WithLabelValues(reason).Inc()
}

func (e *Engine) observeQuery(op string, started time.Time, err error) {
	if e.obs == nil {
		return
	}
	e.obs.QueryDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil {
		e.obs.QueryErrors.WithLabelValues(op).Inc()
	}
}

// Correct replaces the point at an exact timestamp. Points are immutable,
// so a correction is modeled as delete plus reinsert. The replacement is
// validated up front: a bad point must not cost the original row.
func (e *Engine) Correct(ctx context.Context, p *domain.PricePoint) error {
	if p == nil || p.InstrumentID == 0 {
		return storage.ErrInvalidInput
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if err := e.prices.Delete(ctx, p.InstrumentID, p.Timestamp); err != nil {
		return fmt.Errorf("remove stale point: %w", err)
	}
	return e.prices.Append(ctx, p)
}

// GetRange returns points within [start, end] inclusive, ascending.
func (e *Engine) GetRange(ctx context.Context, instrumentID int64, start, end time.Time) ([]*domain.PricePoint, error) {
	started := time.Now()
	points, err := e.prices.GetRange(ctx, instrumentID, start, end)
	e.observeQuery("get_range", started, err)
	return points, err
}

// GetRecent returns the last `days` days of points, ascending.
func (e *Engine) GetRecent(ctx context.Context, instrumentID int64, days int) ([]*domain.PricePoint, error) {
	now := time.Now().UTC()
	return e.prices.GetRange(ctx, instrumentID, now.AddDate(0, 0, -days), now)
}

// Stats returns server-side aggregates over an inclusive window.
func (e *Engine) Stats(ctx context.Context, instrumentID int64, start, end time.Time) (*domain.PriceStats, error) {
	started := time.Now()
	stats, err := e.prices.Stats(ctx, instrumentID, start, end)
	e.observeQuery("stats", started, err)
	return stats, err
}

// ComputeMetrics derives the metrics summary from stored points, latest
// first. Returns ErrEmptySeries when the instrument has no history.
func (e *Engine) ComputeMetrics(ctx context.Context, instrumentID int64, n int) (*metrics.Summary, error) {
	series, err := e.prices.GetLatest(ctx, instrumentID, n)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	return metrics.Compute(series)
}

// Snapshot assembles the read model for one (symbol, market) pair: the
// instrument, its most recent points, and computed metrics. When storage
// holds no history and a live source is configured, the series is fetched
// instead (without being persisted) and FromSource is set.
func (e *Engine) Snapshot(ctx context.Context, symbol, market string, days int) (snap *Snapshot, err error) {
	started := time.Now()
	defer func() { e.observeQuery("snapshot", started, err) }()

	inst, err := e.instruments.GetBySymbolMarket(ctx, symbol, market)
	if err != nil {
		return nil, fmt.Errorf("resolve instrument: %w", err)
	}

	points, err := e.prices.GetLatest(ctx, inst.ID, days)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	fromSource := false
	if len(points) == 0 && e.source != nil {
		points, err = e.source.FetchDaily(ctx, inst.Symbol, inst.Market, days)
		if err != nil {
			return nil, fmt.Errorf("fetch series: %w", err)
		}
		fromSource = true
	}

	summary, err := metrics.Compute(points)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Instrument: inst,
		Points:     points,
		Metrics:    summary,
		FromSource: fromSource,
	}, nil
}

package storage

import (
	"context"
	"time"

	"crypto-series-engine/internal/domain"
)

// InstrumentStore provides access to instruments storage.
type InstrumentStore interface {
	// ResolveOrCreate looks up an instrument by its normalized
	// (symbol, market) pair, creating it if absent. Idempotent:
	// concurrent callers with the same pair resolve to the same row.
	ResolveOrCreate(ctx context.Context, symbol, market, name string) (*domain.Instrument, error)

	// GetByID retrieves an instrument by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Instrument, error)

	// GetBySymbolMarket retrieves an instrument by its normalized pair.
	// Returns ErrNotFound if not exists.
	GetBySymbolMarket(ctx context.Context, symbol, market string) (*domain.Instrument, error)

	// List retrieves instruments ordered by ID with offset/limit
	// pagination, optionally restricted to active ones.
	List(ctx context.Context, activeOnly bool, offset, limit int) ([]*domain.Instrument, error)

	// Deactivate flips the active flag off and bumps updated_at.
	// Returns false if the instrument is unknown. Instruments are never
	// hard-deleted.
	Deactivate(ctx context.Context, id int64) (bool, error)
}

// PricePointStore provides access to the price_points hypertable.
type PricePointStore interface {
	// Append adds one point. Returns ErrDuplicateKey if
	// (instrument_id, timestamp) exists; ErrHistoricalWriteRejected if
	// the point falls in a retired chunk.
	Append(ctx context.Context, p *domain.PricePoint) error

	// BulkAppend adds multiple points in a single transaction.
	// Whole-batch rejection: any conflicting key, including an
	// intra-batch duplicate, fails the batch with ErrDuplicateKey and
	// inserts nothing. On success it returns the number of rows inserted.
	BulkAppend(ctx context.Context, points []*domain.PricePoint) (int, error)

	// Delete removes the point at an exact timestamp, enabling
	// delete+reinsert corrections. Returns ErrNotFound if absent.
	Delete(ctx context.Context, instrumentID int64, ts time.Time) error

	// GetLatest retrieves the n most recent points, ordered descending
	// by timestamp. Fewer than n are returned when history is short.
	GetLatest(ctx context.Context, instrumentID int64, n int) ([]*domain.PricePoint, error)

	// GetRange retrieves points within [start, end] (inclusive), ordered
	// ascending by timestamp. An empty window is an empty result, not an
	// error.
	GetRange(ctx context.Context, instrumentID int64, start, end time.Time) ([]*domain.PricePoint, error)

	// GetAt retrieves the point at an exact timestamp. Returns
	// ErrNotFound when absent; there is no nearest-neighbor fallback.
	GetAt(ctx context.Context, instrumentID int64, ts time.Time) (*domain.PricePoint, error)

	// Stats computes server-side aggregates over [start, end] inclusive,
	// regardless of chunk compression state. Count is 0 and all
	// aggregates nil for an empty window.
	Stats(ctx context.Context, instrumentID int64, start, end time.Time) (*domain.PriceStats, error)
}

// IndicatorStore provides access to computed_indicators storage.
type IndicatorStore interface {
	// Insert adds a single indicator value. Returns ErrDuplicateKey if
	// (instrument_id, timestamp, type, parameters) exists.
	Insert(ctx context.Context, ind *domain.ComputedIndicator) error

	// InsertBulk adds multiple indicator values atomically. Fails the
	// entire batch on any duplicate.
	InsertBulk(ctx context.Context, inds []*domain.ComputedIndicator) (int, error)

	// GetLatest retrieves the n most recent values of one indicator
	// type, ordered descending by timestamp.
	GetLatest(ctx context.Context, instrumentID int64, indicatorType string, n int) ([]*domain.ComputedIndicator, error)

	// GetByTypeRange retrieves values of one indicator type within
	// [start, end] inclusive, ordered descending by timestamp.
	GetByTypeRange(ctx context.Context, instrumentID int64, indicatorType string, start, end time.Time) ([]*domain.ComputedIndicator, error)

	// DeleteByRange removes indicator values within [start, end]
	// inclusive, optionally restricted to one type (empty means all).
	// Returns the number of rows removed. Recomputation is
	// delete-then-recreate.
	DeleteByRange(ctx context.Context, instrumentID int64, start, end time.Time, indicatorType string) (int64, error)
}

// ChunkMaintainer exposes the out-of-band chunk lifecycle operations
// consumed by the lifecycle manager. Implementations must be safe to run
// concurrently with reads and writes.
type ChunkMaintainer interface {
	// CompressEligible compresses every open chunk whose upper boundary
	// is older than olderThan. Returns the number of chunks compressed.
	// Compression is transparent to query semantics.
	CompressEligible(ctx context.Context, olderThan time.Time) (int, error)

	// DropExpired retires and drops every chunk whose upper boundary is
	// older than olderThan. Returns the number of chunks dropped.
	// Retirement is irreversible.
	DropExpired(ctx context.Context, olderThan time.Time) (int, error)
}

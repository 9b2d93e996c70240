package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-series-engine/internal/domain"
	"crypto-series-engine/internal/storage"
)

// PricePointStore implements storage.PricePointStore over the
// price_points hypertable.
type PricePointStore struct {
	pool *Pool
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(pool *Pool) *PricePointStore {
	return &PricePointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

const pricePointColumns = `id, instrument_id, ts, open, high, low, close, volume, created_at`

const insertPricePoint = `
	INSERT INTO price_points (instrument_id, ts, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// retentionWatermark reads the newest timestamp covered by dropped
// chunks, share-locking the row so a concurrent retention cycle cannot
// advance it until the caller's transaction commits. TimescaleDB
// recreates dropped chunks on insert, so the engine enforces
// HistoricalWriteRejected itself against this watermark. Must run
// inside the same transaction as the insert it guards.
func retentionWatermark(ctx context.Context, tx pgx.Tx) (time.Time, error) {
	var wm time.Time
	err := tx.QueryRow(ctx,
		`SELECT dropped_before FROM retention_watermarks WHERE relation = 'price_points' FOR SHARE`,
	).Scan(&wm)
	if err != nil {
		return time.Time{}, fmt.Errorf("read retention watermark: %w", err)
	}
	return wm, nil
}

// Append adds one point. Returns ErrDuplicateKey if the
// (instrument_id, timestamp) pair exists, ErrHistoricalWriteRejected if
// the point falls in retired history.
func (s *PricePointStore) Append(ctx context.Context, p *domain.PricePoint) error {
	if p == nil || p.InstrumentID == 0 {
		return storage.ErrInvalidInput
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	return s.pool.withTx(ctx, func(tx pgx.Tx) error {
		wm, err := retentionWatermark(ctx, tx)
		if err != nil {
			return err
		}
		if p.Timestamp.Before(wm) {
			return storage.ErrHistoricalWriteRejected
		}

		_, err = tx.Exec(ctx, insertPricePoint,
			p.InstrumentID,
			p.Timestamp,
			p.Open,
			p.High,
			p.Low,
			p.Close,
			p.Volume,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert price point: %w", err)
		}
		return nil
	})
}

// BulkAppend adds multiple points in a single transaction with
// whole-batch rejection: any conflicting key, including an intra-batch
// duplicate, fails the batch with ErrDuplicateKey and inserts nothing.
func (s *PricePointStore) BulkAppend(ctx context.Context, points []*domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	for _, p := range points {
		if p == nil || p.InstrumentID == 0 {
			return 0, storage.ErrInvalidInput
		}
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}

	err := s.pool.withTx(ctx, func(tx pgx.Tx) error {
		wm, err := retentionWatermark(ctx, tx)
		if err != nil {
			return err
		}

		for _, p := range points {
			if p.Timestamp.Before(wm) {
				return storage.ErrHistoricalWriteRejected
			}
			_, err := tx.Exec(ctx, insertPricePoint,
				p.InstrumentID,
				p.Timestamp,
				p.Open,
				p.High,
				p.Low,
				p.Close,
				p.Volume,
			)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert price point in bulk: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(points), nil
}

// Delete removes the point at an exact timestamp. Returns ErrNotFound
// if absent.
func (s *PricePointStore) Delete(ctx context.Context, instrumentID int64, ts time.Time) error {
	query := `
		DELETE FROM price_points
		WHERE instrument_id = $1 AND ts = $2
	`

	return s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, instrumentID, ts)
		if err != nil {
			return fmt.Errorf("delete price point: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

// GetLatest retrieves the n most recent points, ordered descending by
// timestamp. Fewer than n are returned when history is short; the
// result is never padded.
func (s *PricePointStore) GetLatest(ctx context.Context, instrumentID int64, n int) ([]*domain.PricePoint, error) {
	if n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + pricePointColumns + `
		FROM price_points
		WHERE instrument_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`

	return s.queryPoints(ctx, query, instrumentID, n)
}

// GetRange retrieves points within [start, end] inclusive, ordered
// ascending by timestamp.
func (s *PricePointStore) GetRange(ctx context.Context, instrumentID int64, start, end time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT ` + pricePointColumns + `
		FROM price_points
		WHERE instrument_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`

	return s.queryPoints(ctx, query, instrumentID, start, end)
}

// GetAt retrieves the point at an exact timestamp or ErrNotFound.
func (s *PricePointStore) GetAt(ctx context.Context, instrumentID int64, ts time.Time) (*domain.PricePoint, error) {
	query := `
		SELECT ` + pricePointColumns + `
		FROM price_points
		WHERE instrument_id = $1 AND ts = $2
	`

	var point domain.PricePoint
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, query, instrumentID, ts).Scan(
			&point.ID,
			&point.InstrumentID,
			&point.Timestamp,
			&point.Open,
			&point.High,
			&point.Low,
			&point.Close,
			&point.Volume,
			&point.CreatedAt,
		)
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("get price point at timestamp: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &point, nil
}

// Stats computes server-side aggregates over [start, end] inclusive.
// SQL aggregates are NULL over an empty window, which scans into nil
// pointers, so no division by zero can occur here.
func (s *PricePointStore) Stats(ctx context.Context, instrumentID int64, start, end time.Time) (*domain.PriceStats, error) {
	query := `
		SELECT
			avg(close),
			max(high),
			min(low),
			avg(volume),
			count(*)
		FROM price_points
		WHERE instrument_id = $1 AND ts >= $2 AND ts <= $3
	`

	var stats domain.PriceStats
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		err := conn.QueryRow(ctx, query, instrumentID, start, end).Scan(
			&stats.AvgClose,
			&stats.MaxHigh,
			&stats.MinLow,
			&stats.AvgVolume,
			&stats.Count,
		)
		if err != nil {
			return fmt.Errorf("aggregate price stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *PricePointStore) queryPoints(ctx context.Context, query string, args ...any) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint
	err := s.pool.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query price points: %w", err)
		}
		defer rows.Close()

		scanned, err := scanPricePoints(rows)
		if err != nil {
			return err
		}
		points = scanned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// scanPricePoints scans multiple rows into a slice of PricePoint.
func scanPricePoints(rows pgx.Rows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var point domain.PricePoint

		err := rows.Scan(
			&point.ID,
			&point.InstrumentID,
			&point.Timestamp,
			&point.Open,
			&point.High,
			&point.Low,
			&point.Close,
			&point.Volume,
			&point.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price point row: %w", err)
		}

		points = append(points, &point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price point rows: %w", err)
	}

	return points, nil
}
